package backend

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Config contains the configuration of a remote backend. It is passed to the
// adapter at construction; nothing is read from the process environment.
type Config struct {
	// Name is the backend name, used for logs, metrics and rate limiting
	Name string

	// Endpoint is the URL of the search resource
	Endpoint string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Username and Password are sent as basic auth when set and APIKey is empty
	Username string
	Password string

	// ProxyURL routes requests through a proxy, empty uses the environment proxy
	ProxyURL string

	// Headers are added to every request
	Headers map[string]string

	// Timeout is the total request timeout (default: 30s)
	Timeout time.Duration

	// ConnectTimeout is the dial timeout (default: 10s)
	ConnectTimeout time.Duration

	// ReadTimeout is the response header timeout (default: 20s)
	ReadTimeout time.Duration

	// Connection pool settings
	MaxIdleConns        int           // default: 100
	MaxConnsPerHost     int           // default: 10
	MaxIdleConnsPerHost int           // default: 10
	IdleConnTimeout     time.Duration // default: 90s

	// RetryConfig controls retries of failed fetches
	RetryConfig *RetryConfig

	// HTTPClient overrides the client built from the settings above
	HTTPClient *http.Client
}

// DefaultConfig returns a default backend configuration
func DefaultConfig() *Config {
	return NewConfig("http")
}

// NewConfig creates a new backend configuration with the given name
func NewConfig(name string) *Config {
	return &Config{
		Name:                name,
		Timeout:             30 * time.Second,
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         20 * time.Second,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		RetryConfig:         DefaultRetryConfig(),
	}
}

// WithEndpoint sets the search endpoint
func (c *Config) WithEndpoint(endpoint string) *Config {
	c.Endpoint = endpoint
	return c
}

// WithAPIKey sets the API key
func (c *Config) WithAPIKey(apiKey string) *Config {
	c.APIKey = apiKey
	return c
}

// WithCredentials sets basic auth credentials
func (c *Config) WithCredentials(username, password string) *Config {
	c.Username = username
	c.Password = password
	return c
}

// WithProxy sets the proxy URL
func (c *Config) WithProxy(proxyURL string) *Config {
	c.ProxyURL = proxyURL
	return c
}

// WithHeader adds a request header
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithTimeout sets the timeout
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithConnectTimeout sets the connection timeout
func (c *Config) WithConnectTimeout(timeout time.Duration) *Config {
	c.ConnectTimeout = timeout
	return c
}

// WithReadTimeout sets the read timeout
func (c *Config) WithReadTimeout(timeout time.Duration) *Config {
	c.ReadTimeout = timeout
	return c
}

// WithConnectionPool sets the connection pool parameters
func (c *Config) WithConnectionPool(maxIdleConns, maxConnsPerHost, maxIdleConnsPerHost int, idleConnTimeout time.Duration) *Config {
	c.MaxIdleConns = maxIdleConns
	c.MaxConnsPerHost = maxConnsPerHost
	c.MaxIdleConnsPerHost = maxIdleConnsPerHost
	c.IdleConnTimeout = idleConnTimeout
	return c
}

// WithRetryConfig sets the retry configuration
func (c *Config) WithRetryConfig(retryConfig *RetryConfig) *Config {
	c.RetryConfig = retryConfig
	return c
}

// WithHTTPClient sets the HTTP client
func (c *Config) WithHTTPClient(client *http.Client) *Config {
	c.HTTPClient = client
	return c
}

// GetHTTPClient returns the HTTP client, creating one from the settings if not set
func (c *Config) GetHTTPClient() (*http.Client, error) {
	if c.HTTPClient != nil {
		return c.HTTPClient, nil
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          c.MaxIdleConns,
		MaxConnsPerHost:       c.MaxConnsPerHost,
		MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
		IdleConnTimeout:       c.IdleConnTimeout,
		ResponseHeaderTimeout: c.ReadTimeout,
	}

	if c.ConnectTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: c.ConnectTimeout}).DialContext
	}

	if c.ProxyURL != "" {
		proxy, err := url.Parse(c.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}, nil
}
