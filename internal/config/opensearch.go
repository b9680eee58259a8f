package config

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
)

type OpenSearchConfig struct {
	Addresses          []string
	Username           string
	Password           string
	IndexPrefix        string
	InsecureSkipVerify bool
	MaxRetries         int
}

func DefaultOpenSearchConfig() *OpenSearchConfig {
	host := getEnvWithDefault("OPENSEARCH_HOST", "localhost")
	port := getEnvWithDefault("OPENSEARCH_PORT", "9200")
	return &OpenSearchConfig{
		Addresses:          getEnvListWithDefault("OPENSEARCH_ADDRESSES", []string{fmt.Sprintf("http://%s:%s", host, port)}),
		Username:           getEnvWithDefault("OPENSEARCH_USERNAME", ""),
		Password:           getEnvWithDefault("OPENSEARCH_PASSWORD", ""),
		IndexPrefix:        getEnvWithDefault("OPENSEARCH_INDEX_PREFIX", "feature_flag_changes"),
		InsecureSkipVerify: getEnvBoolWithDefault("OPENSEARCH_INSECURE_SKIP_VERIFY", true),
		MaxRetries:         getEnvIntWithDefault("OPENSEARCH_MAX_RETRIES", 3),
	}
}

func (c *OpenSearchConfig) GetClient() (*opensearch.Client, error) {
	config := opensearch.Config{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: c.InsecureSkipVerify,
			},
		},
		Addresses:     c.Addresses,
		MaxRetries:    c.MaxRetries,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests},
	}

	if c.Username != "" && c.Password != "" {
		config.Username = c.Username
		config.Password = c.Password
	}

	return opensearch.NewClient(config)
}

// GetIndexName returns the monthly flag change index for t
// Format: feature_flag_changes_YYYY_MM
func (c *OpenSearchConfig) GetIndexName(t time.Time) string {
	return fmt.Sprintf("%s_%s", c.IndexPrefix, t.UTC().Format("2006_01"))
}

// GetIndexPattern returns a pattern matching every flag change index
func (c *OpenSearchConfig) GetIndexPattern() string {
	return c.IndexPrefix + "_*"
}
