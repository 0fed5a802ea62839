package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	crowdfundconfig "github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/config"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/logger/slogx"
	"github.com/crowdfund-network/crowdfund-engine/pkg/middleware/requestcontext"
	"github.com/crowdfund-network/crowdfund-engine/pkg/middleware/requestlogger"
	"github.com/crowdfund-network/crowdfund-engine/pkg/reportingclient"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configOnce sync.Once
	config     = &Config{
		Logger: logger.Config{
			Output: "TEXT",
		},
		HTTPServer: HTTPServerConfig{
			Port: 8080,
		},
	}
)

type Config struct {
	Logger        logger.Config          `mapstructure:"logger"`
	APIOnly       bool                   `mapstructure:"api_only"`
	EnableModules []string               `mapstructure:"enable_modules"`
	HTTPServer    HTTPServerConfig       `mapstructure:"http_server"`
	Reporting     reportingclient.Config `mapstructure:"reporting"`
	Modules       Modules                `mapstructure:"modules"`
}

type HTTPServerConfig struct {
	Port      int                               `mapstructure:"port"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
}

type Modules struct {
	Crowdfund crowdfundconfig.Config `mapstructure:"crowdfund"`
}

// BindPFlag binds a command-line flag to a configuration key.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("failed to bind flag to config", slogx.String("key", key), slogx.Error(err))
	}
}

// Parse loads the configuration from the given file (or the default search
// path when empty) exactly once.
func Parse(configFile string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	configOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
		logger.InfoContext(ctx, "loaded config successfully")
	})

	return *config
}

// Load returns the parsed configuration, parsing from the default search
// path if Parse has not been called.
func Load() Config {
	return Parse("")
}
