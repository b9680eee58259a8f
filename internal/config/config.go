package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv             string `json:"app_env"`
	ServerPort         int    `json:"server_port"`
	JWTSecretKey       string `json:"jwt_secret_key"`
	JWTExpirationHours int    `json:"jwt_expiration_hours"`
	DefaultRateLimit   int    `json:"default_rate_limit"`
	GlobalRateLimit    int    `json:"global_rate_limit"`
	AutoMigrate        bool   `json:"auto_migrate"`

	// Tenant resolution
	DefaultSchema       string   `json:"default_schema"`
	PublicRoutePrefixes []string `json:"public_route_prefixes"`
	ReservedSubdomains  []string `json:"reserved_subdomains"`

	// Feature flags
	FeatureFlagCacheTTL time.Duration `json:"feature_flag_cache_ttl"`
	FeatureCatalogPath  string        `json:"feature_catalog_path"`
	SeedFeatureFlags    bool          `json:"seed_feature_flags"`

	// Subscription provider
	BillingAPIURL     string        `json:"billing_api_url"`
	BillingAPIToken   string        `json:"billing_api_token"`
	BillingAPITimeout time.Duration `json:"billing_api_timeout"`
}

func Load() (*Config, error) {
	return &Config{
		AppEnv:             getEnvWithDefault("APP_ENV", "development"),
		ServerPort:         getEnvIntWithDefault("SERVER_PORT", 10000),
		JWTSecretKey:       os.Getenv("JWT_SECRET_KEY"),
		JWTExpirationHours: getEnvIntWithDefault("JWT_EXPIRATION_HOURS", 24),
		DefaultRateLimit:   getEnvIntWithDefault("DEFAULT_RATE_LIMIT", 1000),  // requests per minute per tenant
		GlobalRateLimit:    getEnvIntWithDefault("GLOBAL_RATE_LIMIT", 10000), // requests per minute per IP
		AutoMigrate:        getEnvBoolWithDefault("DB_AUTO_MIGRATE", true),

		DefaultSchema:       getEnvWithDefault("DEFAULT_SCHEMA", "public"),
		PublicRoutePrefixes: getEnvListWithDefault("PUBLIC_ROUTE_PREFIXES", []string{"/health", "/swagger", "/api/v1/auth", "/api/v1/public"}),
		ReservedSubdomains:  getEnvListWithDefault("RESERVED_SUBDOMAINS", []string{"www", "api"}),

		FeatureFlagCacheTTL: getEnvDurationWithDefault("FEATURE_FLAG_CACHE_TTL", 5*time.Minute),
		FeatureCatalogPath:  os.Getenv("FEATURE_CATALOG_PATH"),
		SeedFeatureFlags:    getEnvBoolWithDefault("SEED_FEATURE_FLAGS", false),

		BillingAPIURL:     os.Getenv("BILLING_API_URL"),
		BillingAPIToken:   os.Getenv("BILLING_API_TOKEN"),
		BillingAPITimeout: getEnvDurationWithDefault("BILLING_API_TIMEOUT", 3*time.Second),
	}, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDurationWithDefault returns environment variable as duration or default if not set
func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvListWithDefault splits a comma separated variable, dropping empty items
func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
