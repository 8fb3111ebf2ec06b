package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load re-reads the global viper state into Values so flag overrides bound
// after the root pre-run are included, then validates it.
func Load() (Config, error) {
	if err := viper.Unmarshal(&Values); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
	}
	if err := Values.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return Values, nil
}
