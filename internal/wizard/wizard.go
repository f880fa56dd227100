// Package wizard implements the storage configuration wizard as a state
// machine over an explicit draft. It performs no I/O.
package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/credentials"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/schema"
)

// Step is a wizard step.
type Step int

const (
	Advanced Step = iota
	TypeAndProvider
	Options
	FinalDetailsStep
)

// TotalSteps is the number of guided steps.
const TotalSteps = constants.TotalWizardSteps

func (s Step) String() string {
	switch s {
	case Advanced:
		return "advanced"
	case TypeAndProvider:
		return "type-and-provider"
	case Options:
		return "options"
	case FinalDetailsStep:
		return "final-details"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

var (
	ErrSchemaRequired   = errors.New("select a storage type first")
	ErrProviderRequired = errors.New("select a provider first")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrUnknownOption    = errors.New("unknown option")
	ErrMissingOption    = errors.New("required option not set")
	ErrStepLocked       = errors.New("step is not reachable yet")
	ErrCannotAdvance    = errors.New("final step submits, it cannot advance")
	ErrFinished         = errors.New("wizard already finished")
	ErrInvalidDetails   = errors.New("invalid storage details")
)

// State is the navigation state of the wizard.
type State struct {
	Step           Step
	CompletedSteps int
	AdvancedMode   bool

	ShowAllSchemas      bool
	ShowAllProviders    bool
	ShowAdvancedOptions bool

	Success bool
}

// Wizard drives a draft through the configuration steps.
type Wizard struct {
	catalog *schema.Catalog

	draft   Draft
	initial Draft
	state   State

	editing               bool
	storageID             string
	projectID             string
	savedCredentialFields []string
}

// NewAdd starts a wizard for a new storage in the given project.
func NewAdd(catalog *schema.Catalog, projectID string) *Wizard {
	d := Draft{Options: make(map[string]schema.Value)}
	return &Wizard{
		catalog:   catalog,
		draft:     d,
		initial:   d.Clone(),
		state:     State{Step: TypeAndProvider},
		projectID: projectID,
	}
}

// NewEdit starts a wizard seeded from a persisted storage. Stored secrets are
// represented without plaintext.
func NewEdit(catalog *schema.Catalog, s models.Storage) *Wizard {
	d := draftFromStorage(catalog, s)

	saved := credentials.ProvidedSensitiveFields(s.Configuration)
	for _, name := range s.SensitiveFields {
		if !contains(saved, name) {
			saved = append(saved, name)
		}
	}

	return &Wizard{
		catalog:               catalog,
		draft:                 d,
		initial:               d.Clone(),
		state:                 State{Step: Options, CompletedSteps: TotalSteps},
		editing:               true,
		storageID:             s.StorageID,
		projectID:             s.ProjectID,
		savedCredentialFields: saved,
	}
}

func (w *Wizard) Catalog() *schema.Catalog { return w.catalog }
func (w *Wizard) Draft() Draft             { return w.draft.Clone() }
func (w *Wizard) State() State             { return w.state }
func (w *Wizard) Editing() bool            { return w.editing }
func (w *Wizard) StorageID() string        { return w.storageID }
func (w *Wizard) ProjectID() string        { return w.projectID }

// SavedCredentialFields returns the options that had a stored secret when the
// wizard opened.
func (w *Wizard) SavedCredentialFields() []string {
	return append([]string(nil), w.savedCredentialFields...)
}

// Schemas lists the storage types offered on the type step.
func (w *Wizard) Schemas() []models.StorageSchema {
	return w.catalog.Schemas(w.state.ShowAllSchemas)
}

// Providers lists the providers offered for the selected schema.
func (w *Wizard) Providers() []models.ProviderDefinition {
	return w.catalog.Providers(!w.state.ShowAllProviders, w.draft.SchemaID, w.draft.ProviderID)
}

// VisibleOptions lists the options shown on the options step.
func (w *Wizard) VisibleOptions() []schema.NormalizedOption {
	return w.catalog.Options(!w.state.ShowAdvancedOptions, w.draft.SchemaID, w.draft.ProviderID)
}

// ProviderRequired reports whether the selected schema needs a provider.
func (w *Wizard) ProviderRequired() bool {
	if !w.catalog.HasProviderShortlist(w.draft.SchemaID) {
		return false
	}
	// a shortlist for a schema without a provider option has nothing to pick
	return len(w.catalog.Providers(false, w.draft.SchemaID, "")) > 0
}

func (w *Wizard) SetShowAllSchemas(v bool)      { w.state.ShowAllSchemas = v }
func (w *Wizard) SetShowAllProviders(v bool)    { w.state.ShowAllProviders = v }
func (w *Wizard) SetShowAdvancedOptions(v bool) { w.state.ShowAdvancedOptions = v }

// SelectSchema picks the storage type. Changing it clears the provider and
// every option value.
func (w *Wizard) SelectSchema(id string) error {
	if _, ok := w.catalog.Schema(id); !ok {
		return fmt.Errorf("%w: %q", schema.ErrUnknownSchema, id)
	}
	if id == w.draft.SchemaID {
		return nil
	}
	w.draft.SchemaID = id
	w.draft.ProviderID = ""
	w.draft.Options = make(map[string]schema.Value)
	return nil
}

// SelectProvider picks the provider of the selected schema.
func (w *Wizard) SelectProvider(id string) error {
	if w.draft.SchemaID == "" {
		return ErrSchemaRequired
	}
	if id != "" {
		providers := w.catalog.Providers(false, w.draft.SchemaID, w.draft.ProviderID)
		found := false
		for _, p := range providers {
			if p.Name == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %q for %s", ErrUnknownProvider, id, w.draft.SchemaID)
		}
	}
	w.draft.ProviderID = id
	return nil
}

// SetOption parses input for a schema option and stores it in the draft.
// Empty input clears the option; for a secret it clears only the fresh value,
// leaving a stored secret in place.
func (w *Wizard) SetOption(name, input string) error {
	opt, ok := w.option(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}

	prev, hadSecret := w.draft.Options[name].(schema.SecretValue)
	if input == "" {
		if hadSecret && prev.Stored {
			w.draft.Options[name] = schema.SecretValue{Stored: true}
		} else {
			delete(w.draft.Options, name)
		}
		return nil
	}

	v, err := opt.Field.Parse(input)
	if err != nil {
		return fmt.Errorf("option %s: %w", name, err)
	}
	if sv, ok := v.(schema.SecretValue); ok && hadSecret {
		sv.Stored = sv.Stored || prev.Stored
		v = sv
	}
	w.draft.Options[name] = v
	return nil
}

// ClearOption removes an option from the draft, including a stored secret
// reference.
func (w *Wizard) ClearOption(name string) {
	delete(w.draft.Options, name)
}

// ApplyDefaults fills every visible option that has no value with its default.
func (w *Wizard) ApplyDefaults() {
	for _, opt := range w.VisibleOptions() {
		if _, set := w.draft.Options[opt.Name]; set {
			continue
		}
		if v, ok := opt.ConvertedDefault(); ok {
			w.draft.Options[opt.Name] = v
		}
	}
}

func (w *Wizard) option(name string) (schema.NormalizedOption, bool) {
	for _, opt := range w.catalog.Options(false, w.draft.SchemaID, w.draft.ProviderID) {
		if opt.Name == name {
			return opt, true
		}
	}
	return schema.NormalizedOption{}, false
}

// SetFinalDetails records the last step's fields without validating them.
func (w *Wizard) SetFinalDetails(fd FinalDetails) {
	w.draft.Name = strings.TrimSpace(fd.Name)
	w.draft.TargetPath = strings.TrimSpace(fd.TargetPath)
	w.draft.SourcePath = strings.TrimSpace(fd.SourcePath)
	w.draft.Readonly = fd.Readonly
	w.draft.SaveCredentials = fd.SaveCredentials
}

// FinalDetails returns the last step's fields from the draft.
func (w *Wizard) FinalDetails() FinalDetails {
	return FinalDetails{
		Name:            w.draft.Name,
		TargetPath:      w.draft.TargetPath,
		SourcePath:      w.draft.SourcePath,
		Readonly:        w.draft.Readonly,
		SaveCredentials: w.draft.SaveCredentials,
	}
}

// SetSourcePath sets the path inside the storage to mount.
func (w *Wizard) SetSourcePath(p string) {
	w.draft.SourcePath = strings.TrimSpace(p)
}

// SetRawConfig replaces the advanced mode text.
func (w *Wizard) SetRawConfig(text string) {
	w.draft.RawConfig = text
}

// CanNext reports whether Next would be accepted, and why not.
func (w *Wizard) CanNext() error {
	if w.state.Success {
		return ErrFinished
	}
	switch w.state.Step {
	case Advanced:
		rc, err := parseRawConfig(w.draft.RawConfig)
		if err != nil {
			return err
		}
		_, err = applyRawConfig(w.catalog, w.draft, rc)
		return err
	case TypeAndProvider:
		if w.draft.SchemaID == "" {
			return ErrSchemaRequired
		}
		if w.ProviderRequired() && w.draft.ProviderID == "" {
			return ErrProviderRequired
		}
	case Options:
		if missing := w.MissingRequired(); len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingOption, strings.Join(missing, ", "))
		}
	case FinalDetailsStep:
		return ErrCannotAdvance
	}
	return nil
}

// MissingRequired lists required visible options without a value or default.
func (w *Wizard) MissingRequired() []string {
	var missing []string
	for _, opt := range w.catalog.Options(false, w.draft.SchemaID, w.draft.ProviderID) {
		if !opt.Required {
			continue
		}
		if v, ok := w.draft.Options[opt.Name]; ok && !v.Empty() {
			continue
		}
		if _, ok := opt.ConvertedDefault(); ok {
			continue
		}
		missing = append(missing, opt.Name)
	}
	return missing
}

// Next moves forward one step. From advanced mode it applies the raw
// configuration and jumps to the final step.
func (w *Wizard) Next() error {
	if err := w.CanNext(); err != nil {
		return err
	}
	if w.state.Step == Advanced {
		rc, _ := parseRawConfig(w.draft.RawConfig)
		d, _ := applyRawConfig(w.catalog, w.draft, rc)
		d.RawConfig = w.draft.RawConfig
		w.draft = d
		w.state.CompletedSteps = max(w.state.CompletedSteps, int(FinalDetailsStep)-1)
		w.state.Step = FinalDetailsStep
		return nil
	}
	w.advance()
	return nil
}

// SkipStep leaves the options step without a passing connection test. The
// required-option gate still applies.
func (w *Wizard) SkipStep() error {
	if w.state.Success {
		return ErrFinished
	}
	if w.state.Step != Options {
		return ErrCannotAdvance
	}
	if missing := w.MissingRequired(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingOption, strings.Join(missing, ", "))
	}
	w.advance()
	return nil
}

func (w *Wizard) advance() {
	w.state.CompletedSteps = max(w.state.CompletedSteps, int(w.state.Step))
	w.state.Step++
}

// Back moves one step back. It reports closed when the action is Cancel or
// Close instead: on the first step, in advanced mode, or after success.
func (w *Wizard) Back() (closed bool) {
	switch {
	case w.state.Success, w.state.Step <= TypeAndProvider:
		return true
	case w.state.AdvancedMode && w.state.Step == FinalDetailsStep:
		w.state.Step = Advanced
		return false
	default:
		w.state.Step--
		return false
	}
}

// JumpTo moves to a guided step already reached, or the one right after.
func (w *Wizard) JumpTo(step Step) error {
	if w.state.Success {
		return ErrFinished
	}
	if w.state.AdvancedMode {
		return fmt.Errorf("%w: leave advanced mode first", ErrStepLocked)
	}
	if step < TypeAndProvider || step > FinalDetailsStep {
		return fmt.Errorf("%w: %s", ErrStepLocked, step)
	}
	if int(step) > w.state.CompletedSteps+1 {
		return fmt.Errorf("%w: %s", ErrStepLocked, step)
	}
	w.state.Step = step
	return nil
}

// ToggleAdvancedMode switches between guided and raw configuration entry.
// Leaving advanced mode applies the raw text and lands on the type step when
// the schema is unknown or a required provider is missing, else on options.
func (w *Wizard) ToggleAdvancedMode() error {
	if w.state.Success {
		return ErrFinished
	}
	if !w.state.AdvancedMode {
		w.draft.RawConfig = renderRawConfig(w.draft)
		w.state.AdvancedMode = true
		w.state.Step = Advanced
		return nil
	}

	rc, err := parseRawConfig(w.draft.RawConfig)
	if err != nil {
		return err
	}
	d, err := applyRawConfig(w.catalog, w.draft, rc)
	if err != nil && !errors.Is(err, ErrUnknownType) {
		return err
	}
	w.draft = d
	w.state.AdvancedMode = false

	if _, ok := w.catalog.Schema(w.draft.SchemaID); !ok ||
		(w.ProviderRequired() && w.draft.ProviderID == "") {
		w.state.Step = TypeAndProvider
		return nil
	}
	w.state.CompletedSteps = max(w.state.CompletedSteps, int(TypeAndProvider))
	w.state.Step = Options
	return nil
}

// Reset restores the draft to its initial snapshot. An edit keeps its
// position; an add starts over.
func (w *Wizard) Reset() {
	w.draft = w.initial.Clone()
	w.state.Success = false
	w.state.AdvancedMode = false
	if !w.editing {
		w.state.Step = TypeAndProvider
		w.state.CompletedSteps = 0
	} else if w.state.Step == Advanced {
		w.state.Step = Options
	}
}

// MarkSuccess enters the terminal state after a successful commit.
func (w *Wizard) MarkSuccess() {
	w.state.Success = true
}

// Reopen resets a finished wizard so it can be used again.
func (w *Wizard) Reopen() {
	if !w.state.Success {
		return
	}
	w.Reset()
	if w.editing {
		w.state.Step = Options
		w.state.CompletedSteps = TotalSteps
	}
}

// ValidateFinalDetails checks the draft's name and mount point.
func (w *Wizard) ValidateFinalDetails() error {
	return ValidateFinalDetails(w.FinalDetails())
}

// Configuration returns the draft in wire form with fresh secrets in
// plaintext and stored secrets as the sentinel.
func (w *Wizard) Configuration() models.Configuration {
	return configuration(w.catalog, w.draft)
}

// RedactedConfiguration returns the draft in wire form with every secret
// replaced by the sentinel, and the fresh plaintext values removed.
func (w *Wizard) RedactedConfiguration() (models.Configuration, []models.SecretValue) {
	return credentials.Redact(w.Configuration(), sensitiveNames(w.catalog, w.draft))
}

// TestConfiguration returns the payload for a connection test: the redacted
// configuration rehydrated with this session's plaintext secrets.
func (w *Wizard) TestConfiguration() models.Configuration {
	base, _ := w.RedactedConfiguration()
	return credentials.DefinitionFromConfig(base, credentials.Plaintext(w.draft.Options))
}

// RequiredCredentials lists stored secrets that need a fresh value before a
// connection test.
func (w *Wizard) RequiredCredentials() []string {
	return credentials.RequiredCredentials(w.draft.Options)
}

// ActiveSensitive lists the options currently holding a secret.
func (w *Wizard) ActiveSensitive() []string {
	return credentials.ActiveSensitive(w.draft.Options)
}

// Payload builds the create/update body from the draft. Secrets are redacted.
func (w *Wizard) Payload() (models.StoragePayload, []models.SecretValue) {
	cfg, secrets := w.RedactedConfiguration()
	return models.StoragePayload{
		Name:          w.draft.Name,
		Readonly:      w.draft.Readonly,
		ProjectID:     w.projectID,
		SourcePath:    w.draft.SourcePath,
		TargetPath:    w.draft.TargetPath,
		Configuration: cfg,
	}, secrets
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
