package configs

import (
	_ "embed"
	"fmt"
	"os"
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

// envBindings maps config keys to the environment variables of the Hardhat
// project. The first variable that is set wins.
var envBindings = map[string][]string{
	"network.rpc-url":     {"CORE_MAINNET_RPC"},
	"network.private-key": {"PRIVATE_KEY", "CORE_PRIVATE_KEY"},
	"explorer.api-key":    {"ETHERSCAN_API_KEY"},
}

// DefaultConfig returns the parsed configuration from the embedded config.example.yaml.
func DefaultConfig() (Config, error) {
	defaultConfigOnce.Do(func() {
		v := viper.New()
		if err := LoadDefaults(v); err != nil {
			defaultConfigErr = err
			return
		}

		if err := v.Unmarshal(&defaultConfig); err != nil {
			defaultConfigErr = fmt.Errorf("failed to decode embedded config.example.yaml: %w", err)
			return
		}
	})

	if defaultConfigErr != nil {
		return Config{}, defaultConfigErr
	}

	return defaultConfig, nil
}

// LoadDefaults seeds v with the embedded defaults. A config file merged
// afterwards only needs to carry the keys it overrides.
func LoadDefaults(v *viper.Viper) error {
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return fmt.Errorf("failed to read embedded config.example.yaml: %w", err)
	}
	return nil
}

// BindEnv binds the environment variables in envBindings to their keys.
func BindEnv(v *viper.Viper) error {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv exports the variables of a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) (int, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("dotenv")
	if err := v.ReadInConfig(); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	exported := 0
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return exported, fmt.Errorf("failed to export %s: %w", name, err)
		}
		exported++
	}

	return exported, nil
}
