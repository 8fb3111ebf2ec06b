package configs

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	//go:embed config.example.yaml
	defaultConfigYAML string

	defaultConfigOnce sync.Once
	defaultConfig     Config
	defaultConfigErr  error
)

// DefaultConfig returns the validated configuration embedded from config.example.yaml.
func DefaultConfig() (Config, error) {
	defaultConfigOnce.Do(func() {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
			defaultConfigErr = fmt.Errorf("failed to read embedded config.example.yaml: %w", err)
			return
		}

		if err := v.Unmarshal(&defaultConfig); err != nil {
			defaultConfigErr = fmt.Errorf("failed to decode embedded config.example.yaml: %w", err)
			return
		}
		defaultConfigErr = defaultConfig.Validate()
	})

	if defaultConfigErr != nil {
		return Config{}, defaultConfigErr
	}

	return defaultConfig, nil
}

// SetDefaults registers the embedded values as viper defaults, so a partial
// config file or flags only override what they name.
func SetDefaults(v *viper.Viper) {
	d := viper.New()
	d.SetConfigType("yaml")
	if err := d.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return
	}
	for _, key := range d.AllKeys() {
		v.SetDefault(key, d.Get(key))
	}
}
