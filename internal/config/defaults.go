package config

import (
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable poolprobe reads.
const EnvPrefix = "P21"

// Defaults.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultClientTimeout  = 60 * time.Second
	DefaultSettlePause    = 2 * time.Second
	DefaultResultsFile    = "session_pool_results.json"
	DefaultEnvFile        = ".env"
)

// setDefaults registers every key with viper. A key without a default is not
// visible to AutomaticEnv during Unmarshal, so empty strings are registered too.
func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("consumer_key", "")
	v.SetDefault("token_mode", TokenModeV1)
	v.SetDefault("verify_ssl", false)

	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("client_timeout", DefaultClientTimeout)
	v.SetDefault("settle_pause", DefaultSettlePause)

	v.SetDefault("results_file", DefaultResultsFile)
	v.SetDefault("history_path", "")

	v.SetDefault("endpoints.token", "/api/security/token")
	v.SetDefault("endpoints.token_v2", "/api/security/token/v2")
	v.SetDefault("endpoints.router", "/api/ui/router/v1?urlType=external")
	v.SetDefault("endpoints.transaction", "/api/v2/transaction")

	v.SetDefault("payload.service", "SalesPricePage")
	v.SetDefault("payload.description_prefix", "SESSION-TEST-")
	v.SetDefault("payload.price_page_type", "Supplier / Product Group")
	v.SetDefault("payload.company_id", "ACME")
	v.SetDefault("payload.supplier_id", 10.0)
	v.SetDefault("payload.product_group_id", "FA5")
	v.SetDefault("payload.pricing_method", "Source")
	v.SetDefault("payload.source_price", "Supplier List Price")
	v.SetDefault("payload.effective_date", "2025-01-01")
	v.SetDefault("payload.expiration_date", "2030-12-31")
	v.SetDefault("payload.totaling_method", "Item")
	v.SetDefault("payload.totaling_basis", "Supplier List Price")
	v.SetDefault("payload.calculation_method", "Multiplier")
	v.SetDefault("payload.calculation_value", "0.5")
}

// Default returns the built-in settings. Credentials and base URL are empty,
// so the result does not pass Validate until they are filled in.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c, decoderOption()); err != nil {
		panic("config: defaults do not decode: " + err.Error())
	}
	return &c
}
