package logbuffer

import (
	"time"

	"github.com/spf13/viper"
)

// Config controls batching of ingested entries.
type Config struct {
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	MaxBacklog    int           `mapstructure:"max_backlog"` // 0 means unbounded
}

// LoadConfig reads the logbuffer section of the shared config file.
func LoadConfig() Config {
	viper.SetDefault("logbuffer.batch_size", 100)
	viper.SetDefault("logbuffer.flush_interval", 2*time.Second)
	viper.SetDefault("logbuffer.max_backlog", 10000)

	cfg := Config{
		BatchSize:     viper.GetInt("logbuffer.batch_size"),
		FlushInterval: viper.GetDuration("logbuffer.flush_interval"),
		MaxBacklog:    viper.GetInt("logbuffer.max_backlog"),
	}
	if cfg.MaxBacklog > 0 && cfg.MaxBacklog < cfg.BatchSize {
		cfg.MaxBacklog = cfg.BatchSize
	}
	return cfg
}
