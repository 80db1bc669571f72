package configs

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagDef defines a command-line flag with its configuration key.
type (
	FlagType interface {
		string | int | bool
	}

	FlagDef[T FlagType] struct {
		Name         string
		ViperKey     string
		DefaultValue T
		Description  string
	}
)

// DeclareFlags declares multiple flags on fs and binds them to viper
// configuration keys. A viper key can be bound to one flag only, so flags
// shared by several commands belong on the root command's persistent set.
func DeclareFlags[T FlagType](fs *pflag.FlagSet, flags []FlagDef[T]) error {
	for _, flag := range flags {
		if err := DeclareFlag(fs, flag); err != nil {
			return err
		}
	}
	return nil
}

// DeclareFlag declares a single flag and binds it to a viper configuration key.
// The type parameter T determines the flag type (string, int, or bool). A
// flag left unset does not override the config file or the environment.
func DeclareFlag[T FlagType](fs *pflag.FlagSet, flag FlagDef[T]) error {
	switch value := any(flag.DefaultValue).(type) {
	case string:
		fs.String(flag.Name, value, flag.Description)
	case int:
		fs.Int(flag.Name, value, flag.Description)
	case bool:
		fs.Bool(flag.Name, value, flag.Description)
	}

	if err := viper.BindPFlag(flag.ViperKey, fs.Lookup(flag.Name)); err != nil {
		return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
	}
	return nil
}

// MustDeclareFlags is DeclareFlags for use in init functions.
func MustDeclareFlags[T FlagType](fs *pflag.FlagSet, flags []FlagDef[T]) {
	if err := DeclareFlags(fs, flags); err != nil {
		panic(err)
	}
}
