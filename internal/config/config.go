package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"

	"github.com/datalab/connectctl/internal/constants"
)

// Environment variables read by MergeWithFlagsAndTokenFile.
const (
	EnvAPIKey        = "CONNECTCTL_API_KEY"
	EnvAPIURL        = "CONNECTCTL_API_URL"
	EnvProject       = "CONNECTCTL_PROJECT"
	EnvProxyPassword = "CONNECTCTL_PROXY_PASSWORD"
)

// Proxy modes.
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the connectctl configuration.
type Config struct {
	// API settings
	APIKey            string  `validate:"required"`
	APIBaseURL        string  `validate:"required,url"`
	ProjectID         string
	MaxRetries        int     `validate:"gte=0,lte=10"`
	RequestsPerSecond float64 `validate:"gt=0"`

	// APIKeySource describes where APIKey came from; it is never persisted.
	APIKeySource string `validate:"-"`

	// Proxy settings
	ProxyMode     string `validate:"omitempty,oneof=no-proxy system basic ntlm"`
	ProxyHost     string
	ProxyPort     int `validate:"gte=0,lte=65535"`
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// LogFile enables the rotating file sink when set.
	LogFile string
}

// NewConfig returns a config with default values.
func NewConfig() *Config {
	return &Config{
		APIBaseURL:        constants.DefaultAPIBaseURL,
		MaxRetries:        constants.DefaultMaxRetries,
		RequestsPerSecond: constants.DefaultRequestsPerSecond,
		ProxyMode:         ProxyModeNone,
	}
}

// Load reads the INI config at path. An empty path means the default
// location. A missing file yields the defaults and no error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		path = GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	apiSection := f.Section("api")
	cfg.APIBaseURL = apiSection.Key("base_url").MustString(cfg.APIBaseURL)
	cfg.ProjectID = apiSection.Key("project_id").String()
	cfg.MaxRetries = apiSection.Key("max_retries").MustInt(cfg.MaxRetries)
	cfg.RequestsPerSecond = apiSection.Key("requests_per_second").MustFloat64(cfg.RequestsPerSecond)

	proxySection := f.Section("proxy")
	cfg.ProxyMode = proxySection.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxySection.Key("host").String()
	cfg.ProxyPort = proxySection.Key("port").MustInt(0)
	cfg.ProxyUser = proxySection.Key("user").String()
	cfg.NoProxy = proxySection.Key("no_proxy").String()
	cfg.ProxyWarmup = proxySection.Key("warmup").MustBool(false)

	cfg.LogFile = f.Section("logging").Key("file").String()

	return cfg, nil
}

// Save writes cfg to path as INI. The API key and proxy password are never
// written; the key belongs in the token file.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = GetDefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f := ini.Empty()

	apiSection, err := f.NewSection("api")
	if err != nil {
		return fmt.Errorf("failed to create api section: %w", err)
	}
	apiSection.Key("base_url").SetValue(cfg.APIBaseURL)
	apiSection.Key("project_id").SetValue(cfg.ProjectID)
	apiSection.Key("max_retries").SetValue(strconv.Itoa(cfg.MaxRetries))
	apiSection.Key("requests_per_second").SetValue(strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))

	proxySection, err := f.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxySection.Key("mode").SetValue(cfg.ProxyMode)
	proxySection.Key("host").SetValue(cfg.ProxyHost)
	proxySection.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxySection.Key("user").SetValue(cfg.ProxyUser)
	proxySection.Key("no_proxy").SetValue(cfg.NoProxy)
	proxySection.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	logSection, err := f.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logSection.Key("file").SetValue(cfg.LogFile)

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// MergeWithFlagsAndTokenFile merges config with flags, token file, and environment variables.
// API key priority (highest to lowest):
//  1. --api-key flag
//  2. CONNECTCTL_API_KEY environment variable
//  3. --token-file flag
//  4. Default token file (~/.config/connectctl/token)
//
// If multiple sources are set, only the highest priority source is used.
func (c *Config) MergeWithFlagsAndTokenFile(apiKey, tokenFilePath, apiBaseURL, projectID, proxyMode, proxyHost string, proxyPort int) {
	var apiKeySources []string

	var defaultTokenKey string
	if defaultTokenPath := GetDefaultTokenPath(); defaultTokenPath != "" && defaultTokenPath != tokenFilePath {
		if tokenKey, err := ReadTokenFile(defaultTokenPath); err == nil {
			defaultTokenKey = tokenKey
			apiKeySources = append(apiKeySources, fmt.Sprintf("default token file (%s)", defaultTokenPath))
		}
	}

	var explicitTokenKey string
	if tokenFilePath != "" {
		tokenKey, err := ReadTokenFile(tokenFilePath)
		if err != nil {
			log.Warn().Err(err).Str("path", tokenFilePath).Msg("Ignoring --token-file")
		} else {
			explicitTokenKey = tokenKey
			apiKeySources = append(apiKeySources, "--token-file flag")
		}
	}

	envKey := os.Getenv(EnvAPIKey)
	if envKey != "" {
		apiKeySources = append(apiKeySources, EnvAPIKey+" environment variable")
	}
	if apiKey != "" {
		apiKeySources = append(apiKeySources, "--api-key flag")
	}

	if len(apiKeySources) > 1 {
		log.Debug().Strs("sources", apiKeySources).Msg("Multiple API key sources detected")
		log.Debug().Msgf("API key precedence (highest to lowest): --api-key > %s > --token-file > default token file", EnvAPIKey)
	}
	if len(apiKeySources) > 0 {
		c.APIKeySource = apiKeySources[len(apiKeySources)-1]
	}

	// Lowest to highest, each overwriting the previous
	if defaultTokenKey != "" {
		c.APIKey = defaultTokenKey
	}
	if explicitTokenKey != "" {
		c.APIKey = explicitTokenKey
	}
	if envKey != "" {
		c.APIKey = envKey
	}
	if apiKey != "" {
		c.APIKey = apiKey
	}

	if envURL := os.Getenv(EnvAPIURL); envURL != "" {
		c.APIBaseURL = envURL
	}
	if envProject := os.Getenv(EnvProject); envProject != "" {
		c.ProjectID = envProject
	}
	if envPassword := os.Getenv(EnvProxyPassword); envPassword != "" {
		c.ProxyPassword = envPassword
	}
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && c.ProxyHost == "" {
		c.parseProxyURL(envProxy)
	}

	if apiBaseURL != "" {
		c.APIBaseURL = apiBaseURL
	}
	if projectID != "" {
		c.ProjectID = projectID
	}
	if proxyMode != "" {
		c.ProxyMode = proxyMode
	}
	if proxyHost != "" {
		c.ProxyHost = proxyHost
	}
	if proxyPort > 0 {
		c.ProxyPort = proxyPort
	}

	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http") {
		c.APIBaseURL = "https://" + c.APIBaseURL
	}
}

// parseProxyURL fills the proxy host and port from a proxy URL such as
// http://proxy.example.com:3128.
func (c *Config) parseProxyURL(proxyURL string) {
	if !strings.Contains(proxyURL, "://") {
		proxyURL = "http://" + proxyURL
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Hostname() == "" {
		return
	}
	c.ProxyHost = u.Hostname()
	if port, err := strconv.Atoi(u.Port()); err == nil {
		c.ProxyPort = port
	}
	if c.ProxyMode == "" || c.ProxyMode == ProxyModeNone {
		c.ProxyMode = ProxyModeSystem
	}
}

var validate = validator.New()

// Validate checks if the configuration is usable for API calls.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if (c.ProxyMode == ProxyModeBasic || c.ProxyMode == ProxyModeNTLM) && c.ProxyHost == "" {
		return fmt.Errorf("%w: proxy host is required for proxy mode %q", ErrInvalidConfig, c.ProxyMode)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "APIKey":
		return fmt.Errorf("%w: API key is required (set via %s, --api-key or --token-file)", ErrInvalidConfig, EnvAPIKey)
	case "APIBaseURL":
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: API base URL is required", ErrInvalidConfig)
		}
		return fmt.Errorf("%w: API base URL %q is not a valid URL", ErrInvalidConfig, fe.Value())
	case "MaxRetries":
		return fmt.Errorf("%w: max_retries must be between 0 and 10", ErrInvalidConfig)
	case "RequestsPerSecond":
		return fmt.Errorf("%w: requests_per_second must be positive", ErrInvalidConfig)
	case "ProxyMode":
		return fmt.Errorf("%w: proxy mode must be one of no-proxy, system, basic, ntlm (got %q)", ErrInvalidConfig, fe.Value())
	case "ProxyPort":
		return fmt.Errorf("%w: proxy port must be between 0 and 65535", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: %s failed %s", ErrInvalidConfig, fe.Field(), fe.Tag())
	}
}
