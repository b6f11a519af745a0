package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"poolprobe/internal/errors"
)

// Sources names the optional files Load reads.
type Sources struct {
	// ConfigFile is an explicit YAML file. When empty, $HOME/.poolprobe.yaml is
	// used if it exists.
	ConfigFile string
	// EnvFile is a dotenv file with P21_* assignments. Missing is fine.
	EnvFile string
}

// New returns a viper instance with poolprobe defaults and environment binding.
// Callers may bind CLI flags to it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves configuration with this precedence, highest first:
//  1. flags bound to v
//  2. P21_* environment variables
//  3. the dotenv file
//  4. the YAML config file
//  5. defaults
func Load(ctx context.Context, v *viper.Viper, src Sources) (*Config, error) {
	if v == nil {
		v = New()
	}
	if err := LoadFiles(v, src); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("base_url", cfg.BaseURL).
		Str("token_mode", cfg.TokenMode).
		Bool("verify_ssl", cfg.VerifySSL).
		Dur("request_timeout", cfg.RequestTimeout).
		Dur("settle_pause", cfg.SettlePause).
		Msg("configuration loaded")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFiles layers the YAML and dotenv files onto v without decoding or
// validating. Commands that need no ERP credentials, such as history, read
// their keys from v afterwards.
func LoadFiles(v *viper.Viper, src Sources) error {
	if err := loadConfigFile(v, src.ConfigFile); err != nil {
		return err
	}
	return mergeEnvFile(v, src.EnvFile)
}

func decoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

func loadConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".poolprobe.yaml")
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return nil
		}
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	return nil
}

// mergeEnvFile overlays P21_* assignments from a dotenv file on top of the YAML
// layer. Real environment variables still win because viper checks them first.
func mergeEnvFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	d := viper.New()
	d.SetConfigFile(path)
	d.SetConfigType("env")
	if err := d.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read env file %s", path)
	}

	overlay := map[string]any{}
	for _, key := range v.AllKeys() {
		name := strings.ToLower(EnvName(key))
		if !d.IsSet(name) {
			continue
		}
		setNested(overlay, strings.Split(key, "."), d.Get(name))
	}
	if len(overlay) == 0 {
		return nil
	}
	return errors.Wrap(v.MergeConfigMap(overlay), "failed to merge env file")
}

func setNested(m map[string]any, path []string, val any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = val
}
