package device

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/ProdMoon/go-vmm/internal/types"
)

// Config holds configuration for the virtual memory subsystem
type Config struct {
	Frames          int    `mapstructure:"frames"`
	SwapSectors     int64  `mapstructure:"swap_sectors"`
	SwapPath        string `mapstructure:"swap_path"`
	StackLimitBytes uint64 `mapstructure:"stack_limit_bytes"`
}

// LoadConfig loads the VM configuration using Viper
func LoadConfig() (*Config, error) {
	viper.SetConfigName("vmm-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.vmm")
	viper.AddConfigPath("/etc/vmm")

	// Set defaults
	viper.SetDefault("frames", 64)
	viper.SetDefault("swap_sectors", 256*types.SectorsPerPage) // 256 slots
	viper.SetDefault("swap_path", "")                         // in-memory swap
	viper.SetDefault("stack_limit_bytes", types.DefaultStackLimit)

	// Allow environment variables
	viper.SetEnvPrefix("VMM")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the configuration for values the VM cannot run with
func (c *Config) Validate() error {
	if c.Frames <= 0 {
		return fmt.Errorf("invalid frame count: %d", c.Frames)
	}
	if c.SwapSectors < 0 {
		return fmt.Errorf("invalid swap sector count: %d", c.SwapSectors)
	}
	if c.SwapSectors%types.SectorsPerPage != 0 {
		return fmt.Errorf("swap sector count %d is not a whole number of pages", c.SwapSectors)
	}
	if c.StackLimitBytes == 0 || c.StackLimitBytes%types.PageSize != 0 {
		return fmt.Errorf("invalid stack limit: %d", c.StackLimitBytes)
	}
	return nil
}
