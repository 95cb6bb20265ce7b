package cache

import (
	"github.com/monobilisim/logagent/common/api/models"
	"github.com/spf13/viper"
)

// LoadConfig loads the valkey section of the shared config file.
func LoadConfig() models.ValkeyConfig {
	viper.SetDefault("valkey.enabled", false)
	viper.SetDefault("valkey.address", "localhost:6379")
	viper.SetDefault("valkey.database", 0)
	viper.SetDefault("valkey.key_prefix", "logagent:")
	viper.SetDefault("valkey.search_ttl", 30)
	viper.SetDefault("valkey.write_timeout", 5)

	return models.ValkeyConfig{
		Enabled:      viper.GetBool("valkey.enabled"),
		Address:      viper.GetString("valkey.address"),
		Password:     viper.GetString("valkey.password"),
		Database:     viper.GetInt("valkey.database"),
		KeyPrefix:    viper.GetString("valkey.key_prefix"),
		SearchTTL:    viper.GetInt("valkey.search_ttl"),
		WriteTimeout: viper.GetInt("valkey.write_timeout"),
	}
}
