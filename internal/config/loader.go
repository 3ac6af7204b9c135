package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix every config key can be
// overridden under, e.g. CONTEXTIFY_CORE_HTTP_ADDR for core.http_addr.
const EnvPrefix = "CONTEXTIFY"

// InitViper initializes the global viper instance with a config file and
// environment variable support. If configFile is empty, standard
// locations are searched for contextify.yaml/.yml.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("contextify")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{".", filepath.Join(home, ".contextify"), "/etc/contextify"}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "contextify"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every scalar config key so it can be
// overridden by environment variable alone, with no config file at all.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("core.transport_mode")
	_ = viper.BindEnv("core.application_name")
	_ = viper.BindEnv("core.application_version")
	_ = viper.BindEnv("core.enable_debug_endpoints")
	_ = viper.BindEnv("core.http_addr")
	_ = viper.BindEnv("core.log_level")

	_ = viper.BindEnv("policy.deny_by_default")
	_ = viper.BindEnv("policy.deny_on_policy_evaluation_failure")
	_ = viper.BindEnv("policy.policy_source_file")
	_ = viper.BindEnv("policy.candidate_source_file")

	_ = viper.BindEnv("actions.backend_base_url")
	_ = viper.BindEnv("actions.default_execution_timeout_seconds")
	_ = viper.BindEnv("actions.max_concurrent_actions")
	_ = viper.BindEnv("actions.reject_when_over_capacity")
	_ = viper.BindEnv("actions.max_queue_depth")
	_ = viper.BindEnv("actions.enable_retry")
	_ = viper.BindEnv("actions.max_retry_attempts")
	_ = viper.BindEnv("actions.retry_delay_milliseconds")

	_ = viper.BindEnv("gateway.tool_name_separator")
	_ = viper.BindEnv("gateway.catalog_refresh_interval")
	_ = viper.BindEnv("gateway.health_probe_interval")

	_ = viper.BindEnv("rate_limit.enabled")
	_ = viper.BindEnv("rate_limit.max_cache_size")
	_ = viper.BindEnv("rate_limit.cleanup_interval")
	_ = viper.BindEnv("rate_limit.entry_expiration")
	_ = viper.BindEnv("rate_limit.backend")
	_ = viper.BindEnv("rate_limit.redis_addr")
	_ = viper.BindEnv("rate_limit.redis_key_prefix")

	_ = viper.BindEnv("transport.max_request_body_bytes")
	_ = viper.BindEnv("transport.max_arguments_json_depth")
	_ = viper.BindEnv("transport.max_arguments_property_count")
	_ = viper.BindEnv("transport.include_correlation_id_in_errors")
	_ = viper.BindEnv("transport.tenant_id_header")
	_ = viper.BindEnv("transport.user_id_header")
}

// LoadConfig reads the bound viper instance into a Config, applies
// defaults, and validates it. Callers needing to override a field from
// CLI flags before validation should use LoadConfigRaw instead.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the bound viper instance and applies defaults, but
// does not validate, so callers can still apply overrides first.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigNotFound(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
