// Package cli provides configuration management commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/datalab/connectctl/internal/api"
	"github.com/datalab/connectctl/internal/config"
	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/progress"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage connectctl configuration",
		Long: `Configuration management commands for connectctl.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test API connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for connectctl.

The configuration is saved to ~/.config/connectctl/config and the API key to
a separate token file (~/.config/connectctl/token, mode 0600).

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()
			path := configPath()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "connectctl Configuration Setup")
			fmt.Fprintln(out, "==============================")
			fmt.Fprintln(out)

			p := newPrompter(cmd.InOrStdin(), out)
			cfg := config.NewConfig()

			key, err := p.askSecret("API Key (required)", false)
			if err != nil {
				return err
			}
			for key == "" {
				fmt.Fprintln(out, "  Error: API key is required")
				if key, err = p.askSecret("API Key (required)", false); err != nil {
					return err
				}
			}

			if cfg.APIBaseURL, err = p.ask("API Base URL", constants.DefaultAPIBaseURL); err != nil {
				return err
			}
			if cfg.ProjectID, err = p.ask("Default project (optional)", ""); err != nil {
				return err
			}

			fmt.Fprintln(out)
			useProxy, err := p.confirm("Configure proxy?", false)
			if err != nil {
				return err
			}
			cfg.ProxyMode = config.ProxyModeNone
			if useProxy {
				fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
				if cfg.ProxyMode, err = p.ask("Proxy mode", config.ProxyModeSystem); err != nil {
					return err
				}
				if cfg.ProxyMode != config.ProxyModeNone {
					if cfg.ProxyHost, err = p.ask("Proxy host", ""); err != nil {
						return err
					}
					portInput, err := p.ask("Proxy port", strconv.Itoa(constants.DefaultProxyPort))
					if err != nil {
						return err
					}
					if v, err := strconv.Atoi(portInput); err == nil && v > 0 {
						cfg.ProxyPort = v
					}
				}
				if cfg.ProxyMode == config.ProxyModeBasic || cfg.ProxyMode == config.ProxyModeNTLM {
					if cfg.ProxyUser, err = p.ask("Proxy user", ""); err != nil {
						return err
					}
				}
			}

			cfg.APIKey = key
			if err := cfg.Validate(); err != nil {
				return err
			}

			tokenPath := config.GetDefaultTokenPath()
			if err := config.WriteTokenFile(tokenPath, key); err != nil {
				return fmt.Errorf("failed to save API token file: %w", err)
			}
			logger.Info().Str("path", tokenPath).Msg("API token saved")

			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			logger.Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintf(out, "✓ API token saved to: %s\n", tokenPath)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Test your configuration with: connectctl config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/connectctl/config)
  2. Token file (~/.config/connectctl/token or --token-file)
  3. Environment variables (CONNECTCTL_API_KEY, CONNECTCTL_API_URL, CONNECTCTL_PROJECT)
  4. Command-line flags (--api-key, --api-url, --project)

Priority: flags > environment > token file > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.MergeWithFlagsAndTokenFile(apiKey, tokenFile, apiBaseURL, projectID, proxyMode, proxyHost, proxyPort)

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "API Settings:")
			fmt.Fprintf(out, "  API Base URL: %s\n", cfg.APIBaseURL)
			if cfg.APIKey != "" {
				// Never display any portion of the API key
				fmt.Fprintf(out, "  API Key:      <set (%d chars) from %s>\n", len(cfg.APIKey), cfg.APIKeySource)
			} else {
				fmt.Fprintln(out, "  API Key:      <not set>")
			}
			if cfg.ProjectID != "" {
				fmt.Fprintf(out, "  Project:      %s\n", cfg.ProjectID)
			}
			fmt.Fprintf(out, "  Max Retries:  %d\n", cfg.MaxRetries)
			fmt.Fprintf(out, "  Rate Limit:   %.1f req/s\n", cfg.RequestsPerSecond)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
			}
			if cfg.ProxyUser != "" {
				fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
			}
			if cfg.NoProxy != "" {
				fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
			}
			fmt.Fprintln(out)

			if cfg.LogFile != "" {
				fmt.Fprintf(out, "Log file: %s\n", cfg.LogFile)
			}
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}

			return nil
		},
	}

	return cmd
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test API connection",
		Long: `Test the API connection with current configuration.

Fetches the storage schema catalog to verify the API key, proxy settings and
network connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "API URL: %s\n", apiClient.BaseURL())

			ctx, cancel := context.WithTimeout(GetContext(), constants.ConfigTestTimeout)
			defer cancel()

			var count int
			err = progress.Run(progress.NewCLIProgress(), "Testing connection", "Connection SUCCESSFUL", func() error {
				schemas, err := apiClient.GetStorageSchemas(ctx)
				count = len(schemas)
				return err
			})
			if err != nil {
				logger.Error().Err(err).Msg("Connection test failed")
				if api.IsUnauthorized(err) {
					fmt.Fprintln(out, "  The API key was rejected. Check --api-key, the token file or CONNECTCTL_API_KEY.")
				}
				return fmt.Errorf("connection test failed: %w", err)
			}

			logger.Info().Int("schemas", count).Msg("Connection test successful")
			fmt.Fprintf(out, "  %d storage types available\n", count)
			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if fileInfo, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", fileInfo.Size())
				fmt.Fprintf(out, "Modified: %s\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: connectctl config init")
			}
			fmt.Fprintf(out, "Token file: %s\n", config.GetDefaultTokenPath())

			return nil
		},
	}

	return cmd
}
