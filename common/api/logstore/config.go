package logstore

import (
	"github.com/monobilisim/logagent/common/api/models"
	"github.com/spf13/viper"
)

const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// LoadConfig loads the store configuration from the shared config file.
func LoadConfig() models.StoreConfig {
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.path", "")
	viper.SetDefault("store.default_limit", DefaultLimit)
	viper.SetDefault("store.seed_count", 100)
	viper.SetDefault("store.postgres.port", "5432")
	viper.SetDefault("store.postgres.sslmode", "disable")

	return models.StoreConfig{
		Driver:       viper.GetString("store.driver"),
		Path:         viper.GetString("store.path"),
		DefaultLimit: viper.GetInt("store.default_limit"),
		SeedCount:    viper.GetInt("store.seed_count"),
		Postgres: models.PostgresConfig{
			Host:     viper.GetString("store.postgres.host"),
			Port:     viper.GetString("store.postgres.port"),
			User:     viper.GetString("store.postgres.user"),
			Password: viper.GetString("store.postgres.password"),
			Dbname:   viper.GetString("store.postgres.dbname"),
			SSLMode:  viper.GetString("store.postgres.sslmode"),
		},
	}
}
