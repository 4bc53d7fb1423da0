package index

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
)

// NewESClient creates the Elasticsearch client the index runs on
func NewESClient(scheme, host string, port int, user, password string, verifyCerts bool, maxRetries int) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses:  []string{fmt.Sprintf("%s://%s:%d", scheme, host, port)},
		MaxRetries: maxRetries,
	}
	if user != "" {
		cfg.Username = user
		cfg.Password = password
	}

	if !verifyCerts {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return client, nil
}
