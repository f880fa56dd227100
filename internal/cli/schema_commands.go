package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datalab/connectctl/internal/schema"
	"github.com/datalab/connectctl/internal/session"
)

// newSchemaCmd creates the 'schema' command group.
func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Browse storage types, providers and options",
		Long: `Browse the storage schema catalog served by the data API.

Commands:
  list       - List storage types
  providers  - List the providers of a storage type
  options    - List the options of a storage type`,
	}

	cmd.AddCommand(newSchemaListCmd())
	cmd.AddCommand(newSchemaProvidersCmd())
	cmd.AddCommand(newSchemaOptionsCmd())

	return cmd
}

// loadCatalog fetches the schema catalog with the default shortlist.
func loadCatalog(ctx context.Context, src session.SchemaSource) (*schema.Catalog, error) {
	schemas, err := src.GetStorageSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrSchemaUnavailable, err)
	}
	return schema.NewCatalog(schemas,
		schema.WithShortlist(schema.DefaultShortlist()),
		schema.WithOverrides(schema.DefaultOverrides()),
	)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// newSchemaListCmd creates the 'schema list' command.
func newSchemaListCmd() *cobra.Command {
	var (
		showAll    bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List storage types",
		Long: `List the storage types offered by the wizard.

By default only the shortlisted types are shown. Use --all for the full
catalog.

Examples:
  connectctl schema list
  connectctl schema list --all --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(GetContext(), apiClient)
			if err != nil {
				return err
			}
			return printSchemas(out, catalog, showAll, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Show all storage types")
	cmd.Flags().BoolVarP(&outputJSON, "json", "J", false, "Output as JSON")

	return cmd
}

func printSchemas(out io.Writer, catalog *schema.Catalog, showAll, outputJSON bool) error {
	schemas := catalog.Schemas(showAll)
	if outputJSON {
		return printJSON(out, schemas)
	}
	if len(schemas) == 0 {
		fmt.Fprintln(out, "No storage types found")
		return nil
	}
	fmt.Fprintf(out, "%-12s %-30s %s\n", "TYPE", "NAME", "DESCRIPTION")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, s := range schemas {
		fmt.Fprintf(out, "%-12s %-30s %s\n", s.Prefix, truncate(s.Name, 30), truncate(s.Description, 46))
	}
	if !showAll && len(schemas) < catalog.Len() {
		fmt.Fprintf(out, "\n%d more available with --all\n", catalog.Len()-len(schemas))
	}
	return nil
}

// newSchemaProvidersCmd creates the 'schema providers' command.
func newSchemaProvidersCmd() *cobra.Command {
	var (
		showAll    bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "providers <type>",
		Short: "List the providers of a storage type",
		Example: `  connectctl schema providers s3
  connectctl schema providers s3 --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(GetContext(), apiClient)
			if err != nil {
				return err
			}
			if _, ok := catalog.Schema(args[0]); !ok {
				return fmt.Errorf("%w: %s", schema.ErrUnknownSchema, args[0])
			}

			providers := catalog.Providers(!showAll, args[0], "")
			if outputJSON {
				return printJSON(out, providers)
			}
			if len(providers) == 0 {
				fmt.Fprintf(out, "Storage type %s has no providers\n", args[0])
				return nil
			}
			for _, p := range providers {
				fmt.Fprintf(out, "%-20s %s\n", p.Name, truncate(p.Description, 60))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Show all providers")
	cmd.Flags().BoolVarP(&outputJSON, "json", "J", false, "Output as JSON")

	return cmd
}

// newSchemaOptionsCmd creates the 'schema options' command.
func newSchemaOptionsCmd() *cobra.Command {
	var (
		provider   string
		showAll    bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "options <type>",
		Short: "List the options of a storage type",
		Long: `List the options the wizard asks for a storage type and provider.

Advanced options are hidden unless --all is given.`,
		Example: `  connectctl schema options s3 --provider AWS
  connectctl schema options webdav --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(GetContext(), apiClient)
			if err != nil {
				return err
			}
			return printOptions(out, catalog, args[0], provider, showAll, outputJSON)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to show options for")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Include advanced options")
	cmd.Flags().BoolVarP(&outputJSON, "json", "J", false, "Output as JSON")

	return cmd
}

func printOptions(out io.Writer, catalog *schema.Catalog, schemaID, provider string, showAll, outputJSON bool) error {
	if _, ok := catalog.Schema(schemaID); !ok {
		return fmt.Errorf("%w: %s", schema.ErrUnknownSchema, schemaID)
	}
	opts := catalog.Options(!showAll, schemaID, provider)
	if outputJSON {
		return printJSON(out, opts)
	}
	if len(opts) == 0 {
		fmt.Fprintln(out, "No options")
		return nil
	}
	fmt.Fprintf(out, "%-28s %-8s %-9s %s\n", "OPTION", "TYPE", "FLAGS", "HELP")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, o := range opts {
		var flags []string
		if o.Required {
			flags = append(flags, "req")
		}
		if o.Advanced {
			flags = append(flags, "adv")
		}
		fmt.Fprintf(out, "%-28s %-8s %-9s %s\n", o.Name, o.ConvertedType(), strings.Join(flags, ","), truncate(o.Help, 42))
	}
	return nil
}
