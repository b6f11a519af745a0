// Package config loads poolprobe settings from flags, the environment, a .env
// file and an optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"poolprobe/internal/errors"
)

// Token exchange modes.
const (
	TokenModeV1 = "v1" // credentials in headers
	TokenModeV2 = "v2" // credentials in a JSON body
)

// Config holds everything a probe sweep needs.
type Config struct {
	BaseURL     string `mapstructure:"base_url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ConsumerKey string `mapstructure:"consumer_key"`
	TokenMode   string `mapstructure:"token_mode"`
	VerifySSL   bool   `mapstructure:"verify_ssl"`

	// RequestTimeout bounds a single transaction attempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// ClientTimeout bounds every other call (token, router).
	ClientTimeout time.Duration `mapstructure:"client_timeout"`
	// SettlePause is the wait between patterns of a sweep.
	SettlePause time.Duration `mapstructure:"settle_pause"`

	ResultsFile string `mapstructure:"results_file"`
	HistoryPath string `mapstructure:"history_path"`

	Endpoints EndpointConfig `mapstructure:"endpoints"`
	Payload   PayloadConfig  `mapstructure:"payload"`
}

// EndpointConfig holds the vendor paths. They are opaque and vendor-versioned.
type EndpointConfig struct {
	Token       string `mapstructure:"token"`
	TokenV2     string `mapstructure:"token_v2"`
	Router      string `mapstructure:"router"`
	Transaction string `mapstructure:"transaction"`
}

// PayloadConfig describes the test record the probe creates on every attempt.
type PayloadConfig struct {
	Service           string  `mapstructure:"service"`
	DescriptionPrefix string  `mapstructure:"description_prefix"`
	PricePageType     string  `mapstructure:"price_page_type"`
	CompanyID         string  `mapstructure:"company_id"`
	SupplierID        float64 `mapstructure:"supplier_id"`
	ProductGroupID    string  `mapstructure:"product_group_id"`
	PricingMethod     string  `mapstructure:"pricing_method"`
	SourcePrice       string  `mapstructure:"source_price"`
	EffectiveDate     string  `mapstructure:"effective_date"`
	ExpirationDate    string  `mapstructure:"expiration_date"`
	TotalingMethod    string  `mapstructure:"totaling_method"`
	TotalingBasis     string  `mapstructure:"totaling_basis"`
	CalculationMethod string  `mapstructure:"calculation_method"`
	CalculationValue  string  `mapstructure:"calculation_value"`
}

// Validate checks required settings and value ranges. Every missing required
// variable is reported at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.Wrap(errors.ErrConfigInvalid, "config is nil")
	}

	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, EnvName("base_url"))
	}
	if c.Username == "" {
		missing = append(missing, EnvName("username"))
	}
	if c.Password == "" && c.ConsumerKey == "" {
		missing = append(missing, EnvName("password"))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrMissingConfig, strings.Join(missing, ", "))
	}

	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w: base_url %q must start with http:// or https://", errors.ErrConfigInvalid, c.BaseURL)
	}
	if c.TokenMode != TokenModeV1 && c.TokenMode != TokenModeV2 {
		return fmt.Errorf("%w: token_mode %q must be %s or %s", errors.ErrConfigInvalid, c.TokenMode, TokenModeV1, TokenModeV2)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", errors.ErrConfigInvalid)
	}
	if c.ClientTimeout <= 0 {
		return fmt.Errorf("%w: client_timeout must be positive", errors.ErrConfigInvalid)
	}
	if c.SettlePause < 0 {
		return fmt.Errorf("%w: settle_pause cannot be negative", errors.ErrConfigInvalid)
	}
	if c.Endpoints.Token == "" || c.Endpoints.Router == "" || c.Endpoints.Transaction == "" {
		return fmt.Errorf("%w: endpoint paths cannot be empty", errors.ErrConfigInvalid)
	}
	return nil
}

// EnvName maps a config key to its environment variable, e.g. base_url -> P21_BASE_URL.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
