package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datalab/connectctl/internal/api"
	"github.com/datalab/connectctl/internal/config"
	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/credentials"
	"github.com/datalab/connectctl/internal/http"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/probe"
	"github.com/datalab/connectctl/internal/progress"
)

// newStorageCmd creates the 'storage' command group.
func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "storage",
		Aliases: []string{"storages"},
		Short:   "Manage cloud storage connections",
		Long: `Create, edit, test and remove the cloud storage connections of a project.

Commands:
  list     - List the storages of a project
  show     - Show one storage
  add      - Add a storage with the wizard
  edit     - Edit a storage with the wizard
  test     - Test a saved storage
  secrets  - List the stored credential fields of a storage
  delete   - Delete a storage`,
	}

	cmd.AddCommand(newStorageListCmd())
	cmd.AddCommand(newStorageShowCmd())
	cmd.AddCommand(newStorageAddCmd())
	cmd.AddCommand(newStorageEditCmd())
	cmd.AddCommand(newStorageTestCmd())
	cmd.AddCommand(newStorageSecretsCmd())
	cmd.AddCommand(newStorageDeleteCmd())

	return cmd
}

// newStorageListCmd creates the 'storage list' command.
func newStorageListCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the storages of a project",
		Example: `  connectctl storage list --project 01HX...
  connectctl storage list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			project, err := requireProject(apiClient.GetConfig())
			if err != nil {
				return err
			}

			storages, err := apiClient.ListStorages(GetContext(), project)
			if err != nil {
				return fmt.Errorf("failed to list storages: %w", err)
			}
			return printStorages(cmd.OutOrStdout(), storages, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&outputJSON, "json", "J", false, "Output as JSON")

	return cmd
}

func printStorages(out io.Writer, storages []models.Storage, outputJSON bool) error {
	if outputJSON {
		return printJSON(out, storages)
	}
	if len(storages) == 0 {
		fmt.Fprintln(out, "No storages found")
		return nil
	}

	fmt.Fprintf(out, "Found %d storage(s):\n\n", len(storages))
	fmt.Fprintf(out, "%-28s %-24s %-10s %-12s %s\n", "ID", "NAME", "TYPE", "PROVIDER", "MOUNT")
	fmt.Fprintln(out, strings.Repeat("-", 96))
	for _, s := range storages {
		mount := s.TargetPath
		if s.Readonly {
			mount += " (ro)"
		}
		fmt.Fprintf(out, "%-28s %-24s %-10s %-12s %s\n",
			s.StorageID, truncate(s.Name, 24), s.Configuration.Type(), s.Configuration.Provider(), mount)
	}
	return nil
}

// newStorageShowCmd creates the 'storage show' command.
func newStorageShowCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "show <storage-id>",
		Short: "Show one storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			s, err := apiClient.GetStorage(GetContext(), args[0])
			if err != nil {
				if api.IsNotFound(err) {
					return fmt.Errorf("storage %s not found", args[0])
				}
				return fmt.Errorf("failed to get storage: %w", err)
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			printStorage(cmd.OutOrStdout(), s)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&outputJSON, "json", "J", false, "Output as JSON")

	return cmd
}

func printStorage(out io.Writer, s *models.Storage) {
	fmt.Fprintf(out, "ID:          %s\n", s.StorageID)
	fmt.Fprintf(out, "Name:        %s\n", s.Name)
	fmt.Fprintf(out, "Project:     %s\n", s.ProjectID)
	fmt.Fprintf(out, "Source path: %s\n", s.SourcePath)
	fmt.Fprintf(out, "Mount point: %s\n", s.TargetPath)
	fmt.Fprintf(out, "Read-only:   %t\n", s.Readonly)
	fmt.Fprintln(out, "Configuration:")
	for _, k := range s.Configuration.Keys() {
		v := s.Configuration[k]
		if credentials.IsSentinel(v) {
			v = "<stored secret>"
		}
		fmt.Fprintf(out, "  %s = %v\n", k, v)
	}
}

// newStorageDeleteCmd creates the 'storage delete' command.
func newStorageDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <storage-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a storage",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			if !yes {
				p := newPrompter(cmd.InOrStdin(), out)
				ok, err := p.confirm(fmt.Sprintf("Delete storage %s?", args[0]), false)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
			}

			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			if err := apiClient.DeleteStorage(GetContext(), args[0]); err != nil {
				return fmt.Errorf("failed to delete storage: %w", err)
			}
			logger.Info().Str("storage_id", args[0]).Msg("Storage deleted")
			fmt.Fprintf(out, "✓ Storage %s deleted\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// newStorageSecretsCmd creates the 'storage secrets' command.
func newStorageSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets <storage-id>",
		Short: "List the stored credential fields of a storage",
		Long: `List which options of a storage have a stored secret. Values are never
shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			secrets, err := apiClient.ListSecrets(GetContext(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list secrets: %w", err)
			}
			if len(secrets) == 0 {
				fmt.Fprintln(out, "No stored credentials")
				return nil
			}
			for _, s := range secrets {
				fmt.Fprintf(out, "%-28s %s\n", s.Name, s.SecretID)
			}
			return nil
		},
	}

	return cmd
}

// newStorageTestCmd creates the 'storage test' command.
func newStorageTestCmd() *cobra.Command {
	var (
		local      bool
		sourcePath string
	)

	cmd := &cobra.Command{
		Use:   "test <storage-id>",
		Short: "Test a saved storage",
		Long: `Test the connection of a saved storage.

Stored secrets are never returned by the API, so their values are asked for
again. By default the data API runs the test. With --local the storage is
contacted directly from this machine (supported types: ` + strings.Join(probe.Supported(), ", ") + `).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()
			ctx := GetContext()

			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			s, err := apiClient.GetStorage(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get storage: %w", err)
			}
			if sourcePath == "" {
				sourcePath = s.SourcePath
			}

			cfg, err := rehydrate(newPrompter(cmd.InOrStdin(), out), s.Configuration)
			if err != nil {
				return err
			}

			testCtx, cancel := context.WithTimeout(ctx, constants.ProbeTimeout)
			defer cancel()

			if local {
				err = testLocally(testCtx, apiClient.GetConfig(), cfg, sourcePath)
			} else {
				err = progress.Run(progress.NewCLIProgress(), "Testing connection", "Connection SUCCESSFUL", func() error {
					return apiClient.TestConnection(testCtx, models.TestConnectionRequest{Configuration: cfg, SourcePath: sourcePath})
				})
			}
			if err != nil {
				logger.Debug().Err(err).Str("storage_id", s.StorageID).Msg("Storage test failed")
				if hint := hintFor(err); hint != "" {
					fmt.Fprintf(out, "  Hint: %s\n", hint)
				}
				return fmt.Errorf("connection test failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Contact the storage directly from this machine")
	cmd.Flags().StringVar(&sourcePath, "source", "", "Path inside the storage to test (default: the saved source path)")

	return cmd
}

// rehydrate asks for every stored secret of cfg and returns a copy carrying
// the entered values.
func rehydrate(p *prompter, cfg models.Configuration) (models.Configuration, error) {
	plain := make(map[string]string)
	for _, name := range credentials.ProvidedSensitiveFields(cfg) {
		v, err := p.askSecret(name, false)
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, fmt.Errorf("a value for %s is required to test the connection", name)
		}
		plain[name] = v
	}
	return credentials.DefinitionFromConfig(cfg, plain), nil
}

func testLocally(ctx context.Context, cfg *config.Config, storageCfg models.Configuration, sourcePath string) error {
	httpClient, err := http.ConfigureHTTPClient(cfg, GetLogger())
	if err != nil {
		return err
	}
	prober, err := probe.ForType(storageCfg.Type(), httpClient)
	if err != nil {
		return err
	}
	return progress.Run(progress.NewCLIProgress(), "Contacting "+storageCfg.Type()+" storage", "Storage reachable", func() error {
		return prober.Probe(ctx, storageCfg, sourcePath)
	})
}

// hintFor suggests a fix for a failed connection test.
func hintFor(err error) string {
	var perr *probe.Error
	if errors.As(err, &perr) {
		return perr.Hint()
	}
	return http.ClassifyError(err).Hint()
}
