package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/datalab/connectctl/internal/api"
	"github.com/datalab/connectctl/internal/config"
	"github.com/datalab/connectctl/internal/http"
)

// configPath returns the --config path or the default one.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.GetDefaultConfigPath()
}

// loadConfig loads the config file and merges environment, token file and
// flags. Priority: flags > environment > token file > config file > defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlagsAndTokenFile(apiKey, tokenFile, apiBaseURL, projectID, proxyMode, proxyHost, proxyPort)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required (use --api-key, %s, --token-file or 'connectctl config init')", config.EnvAPIKey)
	}
	if http.NeedsProxyPassword(cfg) {
		p := newPrompter(os.Stdin, os.Stderr)
		password, err := p.askSecret(fmt.Sprintf("Proxy password for %s", cfg.ProxyUser), false)
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = password
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LogFile != "" && logFile == "" {
		GetLogger().EnableFile(cfg.LogFile)
	}
	return cfg, nil
}

// getAPIClient loads configuration and creates an API client.
func getAPIClient() (*api.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	client, err := api.NewClient(cfg, GetLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return client, nil
}

// requireProject returns the configured project, or an error naming the
// ways to set one.
func requireProject(cfg *config.Config) (string, error) {
	if cfg.ProjectID == "" {
		return "", errors.New("a project is required (use --project, " + config.EnvProject + " or the config file)")
	}
	return cfg.ProjectID, nil
}
