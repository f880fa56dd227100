package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datalab/connectctl/internal/logging"
	"github.com/datalab/connectctl/internal/persist"
	"github.com/datalab/connectctl/internal/progress"
	"github.com/datalab/connectctl/internal/schema"
	"github.com/datalab/connectctl/internal/session"
	"github.com/datalab/connectctl/internal/wizard"
)

// wizardFlags pre-fill the wizard. Nil pointers and empty strings leave the
// draft value alone.
type wizardFlags struct {
	schemaID       string
	provider       string
	options        []string
	fromFile       string
	name           string
	target         string
	source         *string
	readonly       *bool
	saveCreds      *bool
	skipTest       bool
	nonInteractive bool
}

func addWizardFlags(cmd *cobra.Command, f *wizardFlags) {
	cmd.Flags().StringVarP(&f.schemaID, "type", "t", "", "Storage type (see 'schema list')")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Provider (see 'schema providers <type>')")
	cmd.Flags().StringArrayVarP(&f.options, "option", "o", nil, "Option as key=value (repeatable)")
	cmd.Flags().StringVar(&f.fromFile, "from-file", "", "Read the configuration from an rclone-style file")
	cmd.Flags().StringVar(&f.name, "name", "", "Storage name")
	cmd.Flags().StringVar(&f.target, "target", "", "Mount point inside the session")
	cmd.Flags().String("source", "", "Path inside the storage to mount")
	cmd.Flags().Bool("readonly", false, "Mount read-only")
	cmd.Flags().Bool("save-credentials", false, "Store credentials after a successful connection test")
	cmd.Flags().BoolVar(&f.skipTest, "skip-test", false, "Do not test the connection (credentials are not stored)")
	cmd.Flags().BoolVar(&f.nonInteractive, "non-interactive", false, "Fail instead of prompting for missing values")
}

// resolveWizardFlags reads the flags whose absence must be told apart from
// their zero value.
func resolveWizardFlags(cmd *cobra.Command, f *wizardFlags) {
	if cmd.Flags().Changed("source") {
		v, _ := cmd.Flags().GetString("source")
		f.source = &v
	}
	if cmd.Flags().Changed("readonly") {
		v, _ := cmd.Flags().GetBool("readonly")
		f.readonly = &v
	}
	if cmd.Flags().Changed("save-credentials") {
		v, _ := cmd.Flags().GetBool("save-credentials")
		f.saveCreds = &v
	}
}

// newStorageAddCmd creates the 'storage add' command.
func newStorageAddCmd() *cobra.Command {
	var flags wizardFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a storage with the wizard",
		Long: `Add a cloud storage connection to a project.

The wizard asks for the storage type and provider, then the options, tests
the connection, and finally asks for a name and mount point. Any value given
as a flag is not asked for.`,
		Example: `  connectctl storage add
  connectctl storage add -t s3 --provider AWS -o access_key_id=AKIA... -o region=eu-west-1 \
      --source my-bucket --name data --target data --save-credentials
  connectctl storage add --from-file remote.conf --name data --target data --non-interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveWizardFlags(cmd, &flags)
			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}
			project, err := requireProject(apiClient.GetConfig())
			if err != nil {
				return err
			}

			ctx := GetContext()
			sess, err := session.Open(ctx, apiClient, session.WithLogger(GetLogger()))
			if err != nil {
				return err
			}
			sess.StartAdd(project)

			r := newWizardRunner(sess, cmd.InOrStdin(), cmd.OutOrStdout(), flags, GetLogger())
			_, err = r.run(ctx)
			return err
		},
	}

	addWizardFlags(cmd, &flags)

	return cmd
}

// newStorageEditCmd creates the 'storage edit' command.
func newStorageEditCmd() *cobra.Command {
	var flags wizardFlags

	cmd := &cobra.Command{
		Use:   "edit <storage-id>",
		Short: "Edit a storage with the wizard",
		Long: `Edit a saved storage connection.

Stored credentials are kept unless a new value is entered. To test the
connection, the stored credentials must be entered again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveWizardFlags(cmd, &flags)
			logger := GetLogger()
			apiClient, err := getAPIClient()
			if err != nil {
				return err
			}

			ctx := GetContext()
			storage, err := apiClient.GetStorage(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get storage: %w", err)
			}
			if len(storage.SensitiveFields) == 0 {
				secrets, err := apiClient.ListSecrets(ctx, storage.StorageID)
				if err != nil {
					logger.Debug().Err(err).Msg("Could not list stored secrets")
				}
				for _, s := range secrets {
					storage.SensitiveFields = append(storage.SensitiveFields, s.Name)
				}
			}

			sess, err := session.Open(ctx, apiClient, session.WithLogger(logger))
			if err != nil {
				return err
			}
			sess.StartEdit(*storage)

			r := newWizardRunner(sess, cmd.InOrStdin(), cmd.OutOrStdout(), flags, logger)
			_, err = r.run(ctx)
			return err
		},
	}

	addWizardFlags(cmd, &flags)

	return cmd
}

// wizardRunner drives a session from the terminal.
type wizardRunner struct {
	sess     *session.Session
	p        *prompter
	out      io.Writer
	flags    wizardFlags
	reporter progress.Reporter
	logger   *logging.Logger

	// optionsAsked is set once the options were prompted for on this visit.
	optionsAsked bool
	// reselect asks for type and provider again after the user went back.
	reselect bool
}

func newWizardRunner(sess *session.Session, in io.Reader, out io.Writer, flags wizardFlags, logger *logging.Logger) *wizardRunner {
	var reporter progress.Reporter = progress.NewCLIProgressTo(out)
	if out == os.Stdout {
		reporter = progress.NewCLIProgress()
	}
	return &wizardRunner{
		sess:     sess,
		p:        newPrompter(in, out),
		out:      out,
		flags:    flags,
		reporter: reporter,
		logger:   logger,
	}
}

func (r *wizardRunner) interactive() bool {
	return !r.flags.nonInteractive
}

// run walks the wizard until the storage is saved or the user quits.
func (r *wizardRunner) run(ctx context.Context) (persist.Outcome, error) {
	stop := watchSessionEvents(r.sess.Events(), r.logger.Child("session"))
	defer stop()

	if err := r.prefill(); err != nil {
		r.sess.Close()
		return persist.Outcome{}, err
	}

	for {
		if err := ctx.Err(); err != nil {
			r.sess.Close()
			return persist.Outcome{}, err
		}

		var err error
		switch r.sess.Wizard().State().Step {
		case wizard.Advanced:
			err = r.stepAdvanced()
		case wizard.TypeAndProvider:
			err = r.stepType()
		case wizard.Options:
			err = r.stepOptions(ctx)
		case wizard.FinalDetailsStep:
			var (
				out  persist.Outcome
				done bool
			)
			out, done, err = r.stepFinal(ctx)
			if err == nil && done {
				r.sess.Close()
				return out, nil
			}
		}
		if err != nil {
			r.sess.Close()
			if errors.Is(err, errAborted) {
				fmt.Fprintln(r.out, "Cancelled, nothing was saved")
			}
			return persist.Outcome{}, err
		}
		if r.sess.Closed() {
			fmt.Fprintln(r.out, "Cancelled, nothing was saved")
			return persist.Outcome{}, errAborted
		}
	}
}

// prefill applies the flags to the draft.
func (r *wizardRunner) prefill() error {
	f := r.flags
	if f.fromFile != "" {
		data, err := os.ReadFile(f.fromFile)
		if err != nil {
			return fmt.Errorf("failed to read configuration file: %w", err)
		}
		if err := r.sess.ToggleAdvancedMode(); err != nil {
			return err
		}
		if err := r.sess.SetRawConfig(string(data)); err != nil {
			return err
		}
		if err := r.sess.ToggleAdvancedMode(); err != nil {
			return err
		}
	}
	if f.schemaID != "" {
		if err := r.sess.SelectSchema(f.schemaID); err != nil {
			return err
		}
	}
	if f.provider != "" {
		if err := r.sess.SelectProvider(f.provider); err != nil {
			return err
		}
	}
	if r.sess.Wizard().State().Step == wizard.TypeAndProvider && r.sess.Wizard().CanNext() == nil &&
		(f.schemaID != "" || f.fromFile != "") {
		if err := r.sess.Next(); err != nil {
			return err
		}
	}
	for _, kv := range f.options {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --option %q, expected key=value", kv)
		}
		if err := r.sess.SetOption(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	if f.source != nil {
		if err := r.sess.SetSourcePath(*f.source); err != nil {
			return err
		}
	}
	return nil
}

func (r *wizardRunner) stepAdvanced() error {
	if !r.interactive() {
		return r.sess.Next()
	}
	fmt.Fprintln(r.out, "\nCurrent configuration:")
	fmt.Fprintln(r.out, r.sess.Wizard().Draft().RawConfig)
	ok, err := r.p.confirm("Apply this configuration?", true)
	if err != nil {
		return err
	}
	if !ok {
		return r.sess.ToggleAdvancedMode()
	}
	return r.sess.Next()
}

func (r *wizardRunner) stepType() error {
	w := r.sess.Wizard()
	d := w.Draft()
	if !r.interactive() {
		if err := w.CanNext(); err != nil {
			return fmt.Errorf("%w (use --type and --provider)", err)
		}
		return r.sess.Next()
	}

	fmt.Fprintln(r.out, "\nStep 1/3: Storage type")
	if d.SchemaID == "" || r.reselect {
		if err := r.chooseSchema(); err != nil {
			return err
		}
	}
	if w.ProviderRequired() && (w.Draft().ProviderID == "" || r.reselect) {
		if err := r.chooseProvider(); err != nil {
			return err
		}
	}
	r.reselect = false
	r.optionsAsked = false
	return r.sess.Next()
}

func (r *wizardRunner) chooseSchema() error {
	w := r.sess.Wizard()
	for {
		schemas := w.Schemas()
		labels := make([]string, len(schemas))
		for i, s := range schemas {
			labels[i] = fmt.Sprintf("%-12s %s", s.Prefix, s.Name)
		}
		actions := map[string]string{"q": "Cancel"}
		if !w.State().ShowAllSchemas {
			actions["m"] = "More storage types"
		}
		idx, action, err := r.p.choose("Storage type", labels, actions)
		if err != nil {
			return err
		}
		switch action {
		case "m":
			w.SetShowAllSchemas(true)
			continue
		case "q":
			return errAborted
		}
		return r.sess.SelectSchema(schemas[idx].Prefix)
	}
}

func (r *wizardRunner) chooseProvider() error {
	w := r.sess.Wizard()
	for {
		providers := w.Providers()
		labels := make([]string, len(providers))
		for i, p := range providers {
			labels[i] = fmt.Sprintf("%-16s %s", p.Name, truncate(p.Description, 50))
		}
		actions := map[string]string{"q": "Cancel"}
		if !w.State().ShowAllProviders {
			actions["m"] = "More providers"
		}
		idx, action, err := r.p.choose("Provider", labels, actions)
		if err != nil {
			return err
		}
		switch action {
		case "m":
			w.SetShowAllProviders(true)
			continue
		case "q":
			return errAborted
		}
		return r.sess.SelectProvider(providers[idx].Name)
	}
}

func (r *wizardRunner) stepOptions(ctx context.Context) error {
	w := r.sess.Wizard()
	if r.interactive() && !r.optionsAsked {
		fmt.Fprintf(r.out, "\nStep 2/3: Options for %s %s\n", w.Draft().SchemaID, w.Draft().ProviderID)
		fmt.Fprintln(r.out, "(Enter keeps the current value, '-' clears it)")
		if err := r.askOptions(w.VisibleOptions()); err != nil {
			return err
		}
		if err := r.askSourcePath(); err != nil {
			return err
		}
		r.optionsAsked = true
	}
	if err := w.CanNext(); err != nil {
		if !r.interactive() {
			return err
		}
		fmt.Fprintf(r.out, "  %v\n", err)
		r.optionsAsked = false
		return nil
	}

	if r.flags.skipTest {
		r.logger.Debug().Msg("Connection test skipped by flag")
		return r.sess.SkipTest()
	}
	return r.testAndContinue(ctx)
}

// askSourcePath asks for the path inside the storage. The connection test
// runs against it, so it is collected with the options.
func (r *wizardRunner) askSourcePath() error {
	current := r.sess.Wizard().FinalDetails().SourcePath
	input, err := r.p.ask("Source path (bucket or folder)", current)
	if err != nil {
		return err
	}
	if input == current {
		return nil
	}
	if input == "-" {
		input = ""
	}
	return r.sess.SetSourcePath(input)
}

func (r *wizardRunner) askOptions(opts []schema.NormalizedOption) error {
	d := r.sess.Wizard().Draft()
	for _, opt := range opts {
		if opt.Help != "" {
			fmt.Fprintf(r.out, "  %s\n", truncate(opt.Help, 76))
		}
		if len(opt.FilteredExamples) > 0 {
			var ex []string
			for _, e := range opt.FilteredExamples {
				ex = append(ex, e.Value)
			}
			fmt.Fprintf(r.out, "  Examples: %s\n", truncate(strings.Join(ex, ", "), 66))
		}

		label := opt.Name
		if opt.Required {
			label += " (required)"
		}
		current := d.Options[opt.Name]

		var (
			input string
			def   string
			err   error
		)
		if opt.ConvertedType() == schema.KindSecret {
			sv, _ := current.(schema.SecretValue)
			input, err = r.p.askSecret(label, sv.Stored)
		} else {
			if current != nil {
				def = current.Text()
			} else if v, ok := opt.ConvertedDefault(); ok {
				def = v.Text()
			}
			input, err = r.p.ask(label, def)
		}
		if err != nil {
			return err
		}
		// Unchanged answers must not invalidate an earlier test
		if input == "" || (input == def && current != nil) {
			continue
		}

		if input == "-" {
			err = r.sess.ClearOption(opt.Name)
		} else {
			err = r.sess.SetOption(opt.Name, input)
		}
		if err != nil {
			fmt.Fprintf(r.out, "  %v\n", err)
		}
	}
	return nil
}

// testAndContinue runs the connection test and offers retry, skip, edit or
// back on failure.
func (r *wizardRunner) testAndContinue(ctx context.Context) error {
	w := r.sess.Wizard()
	if missing := w.RequiredCredentials(); len(missing) > 0 {
		if !r.interactive() {
			return fmt.Errorf("%w: %s (use --option or --skip-test)", session.ErrCredentialsRequired, strings.Join(missing, ", "))
		}
		fmt.Fprintln(r.out, "Stored credentials must be entered again to test the connection.")
		for _, name := range missing {
			v, err := r.p.askSecret(name, true)
			if err != nil {
				return err
			}
			if v != "" {
				if err := r.sess.SetOption(name, v); err != nil {
					return err
				}
			}
		}
	}

	var res error
	_ = progress.Run(r.reporter, "Testing connection", "Connection SUCCESSFUL", func() error {
		res = r.sess.TestConnection(ctx).Err()
		return res
	})
	if res == nil {
		return r.sess.Continue()
	}
	if hint := hintFor(res); hint != "" {
		fmt.Fprintf(r.out, "  Hint: %s\n", hint)
	}
	if !r.interactive() {
		return fmt.Errorf("connection test failed: %w", res)
	}

	idx, _, err := r.p.choose("What next", []string{
		"Retry the test",
		"Skip the test (credentials will not be stored)",
		"Edit the options",
		"Back to storage type",
	}, nil)
	if err != nil {
		return err
	}
	switch idx {
	case 1:
		return r.sess.SkipTest()
	case 2:
		r.optionsAsked = false
	case 3:
		r.reselect = true
		_, err := r.sess.Back()
		return err
	}
	return nil
}

func (r *wizardRunner) stepFinal(ctx context.Context) (persist.Outcome, bool, error) {
	w := r.sess.Wizard()
	fd := w.FinalDetails()
	if r.flags.name != "" {
		fd.Name = r.flags.name
	}
	if r.flags.target != "" {
		fd.TargetPath = r.flags.target
	}
	if r.flags.readonly != nil {
		fd.Readonly = *r.flags.readonly
	}
	if r.flags.saveCreds != nil {
		fd.SaveCredentials = *r.flags.saveCreds
	}
	hasSecrets := len(w.ActiveSensitive()) > 0

	if r.interactive() {
		fmt.Fprintln(r.out, "\nStep 3/3: Storage details")
		var err error
		if fd.Name, err = r.p.askRequired("Name", fd.Name); err != nil {
			return persist.Outcome{}, false, err
		}
		defTarget := fd.TargetPath
		if defTarget == "" {
			defTarget = fd.Name
		}
		if fd.TargetPath, err = r.p.askRequired("Mount point", defTarget); err != nil {
			return persist.Outcome{}, false, err
		}
		if fd.Readonly, err = r.p.confirm("Read-only", fd.Readonly); err != nil {
			return persist.Outcome{}, false, err
		}
		if hasSecrets && r.sess.Validation().IsSucceeded() && r.flags.saveCreds == nil {
			if fd.SaveCredentials, err = r.p.confirm("Store credentials", true); err != nil {
				return persist.Outcome{}, false, err
			}
		}
	}
	if err := r.sess.SetFinalDetails(fd); err != nil {
		return persist.Outcome{}, false, err
	}
	if fd.SaveCredentials && hasSecrets && !r.sess.Validation().IsSucceeded() {
		fmt.Fprintln(r.out, "Note: the connection was not tested successfully, credentials will not be stored")
	}

	var out persist.Outcome
	err := progress.Run(r.reporter, "Saving storage", "", func() error {
		var err error
		out, err = r.sess.Commit(ctx)
		return err
	})
	if err != nil {
		if !r.interactive() {
			return out, false, err
		}
		retry, cerr := r.p.confirm("Saving failed. Edit and try again?", true)
		if cerr != nil {
			return out, false, cerr
		}
		if !retry {
			return out, false, err
		}
		return out, false, nil
	}

	r.printOutcome(out)
	return out, true, nil
}

func (r *wizardRunner) printOutcome(out persist.Outcome) {
	s := out.Storage
	verb := "updated"
	if out.Created {
		verb = "created"
	}
	if s != nil {
		fmt.Fprintf(r.out, "✓ Storage %q %s (%s)\n", s.Name, verb, s.StorageID)
	} else {
		fmt.Fprintf(r.out, "✓ Storage %s\n", verb)
	}
	switch out.Credentials {
	case persist.CredentialsSaved:
		fmt.Fprintln(r.out, "✓ Credentials stored")
	case persist.CredentialsDeleted:
		fmt.Fprintln(r.out, "✓ Stored credentials removed")
	case persist.CredentialsFailed:
		fmt.Fprintf(r.out, "⚠ Storage saved, but credentials were not: %v\n", out.CredentialsErr)
	}
}
