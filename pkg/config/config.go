// Package config locates and loads service configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config gives read access to loaded settings.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetFloat64(key string) float64
	GetStringSlice(key string) []string
	GetStringMap(key string) map[string]interface{}
	GetAll() map[string]interface{}
	// File returns the path of the file that was read.
	File() string
}

type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) GetString(key string) string { return c.v.GetString(key) }
func (c *viperConfig) GetInt(key string) int { return c.v.GetInt(key) }
func (c *viperConfig) GetBool(key string) bool { return c.v.GetBool(key) }
func (c *viperConfig) GetFloat64(key string) float64 { return c.v.GetFloat64(key) }
func (c *viperConfig) GetStringSlice(key string) []string { return c.v.GetStringSlice(key) }
func (c *viperConfig) GetStringMap(key string) map[string]interface{} { return c.v.GetStringMap(key) }
func (c *viperConfig) GetAll() map[string]interface{} { return c.v.AllSettings() }
func (c *viperConfig) File() string { return c.v.ConfigFileUsed() }

const configDir = "configs"

// Load reads {serviceName}.yaml. CONFIG_PATH may point at a file or a directory;
// otherwise configs/{APP_ENV}/ is searched, then configs/example/.
// Environment variables prefixed with the upper-cased service name override file values
// (booking.database.host -> BOOKING_DATABASE_HOST).
func Load(serviceName string) (Config, error) {
	v := viper.New()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix(strings.ToUpper(serviceName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := os.Getenv("CONFIG_PATH")
	if strings.HasSuffix(configPath, ".yaml") || strings.HasSuffix(configPath, ".yml") {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		return &viperConfig{v: v}, nil
	}

	if configPath == "" {
		configPath = filepath.Join(configDir, env)
	}

	v.SetConfigName(serviceName)
	v.AddConfigPath(configPath)

	if err := v.ReadInConfig(); err != nil {
		v.AddConfigPath(filepath.Join(configDir, "example"))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config for %s: %w", serviceName, err)
		}
	}

	return &viperConfig{v: v}, nil
}
