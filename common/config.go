package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ConfigDir is the system-wide configuration directory.
const ConfigDir = "/etc/mono"

// ConfInit reads <configName>.yaml into the global viper instance and, when
// config is non-nil, unmarshals it there. Environment variables prefixed with
// LOGAGENT_ override file values ("server.port" -> LOGAGENT_SERVER_PORT).
// A missing file is not an error; defaults registered with viper.SetDefault
// apply.
func ConfInit(configName string, config interface{}) error {
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(ConfigDir)
	viper.AddConfigPath(userConfigDir())
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("LOGAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Error().
				Str("component", "config").
				Str("operation", "read").
				Str("config", configName).
				Err(err).
				Msg("Failed to parse config file")
			return err
		}
		log.Debug().
			Str("component", "config").
			Str("config", configName).
			Msg("No config file found, using defaults")
	} else {
		log.Debug().
			Str("component", "config").
			Str("file", viper.ConfigFileUsed()).
			Msg("Config file loaded")
	}

	if config == nil {
		return nil
	}
	if err := viper.Unmarshal(config); err != nil {
		log.Error().
			Str("component", "config").
			Str("operation", "unmarshal").
			Str("config", configName).
			Err(err).
			Msg("Failed to unmarshal config file")
		return err
	}
	return nil
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "logagent")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "logagent")
}
