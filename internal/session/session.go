// Package session coordinates one storage wizard with the data API: the
// schema catalog, the connection validator and the persistence
// orchestrator. Every action reports errors to the caller; none escape as
// panics and none discard the draft.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/datalab/connectctl/internal/connection"
	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/events"
	"github.com/datalab/connectctl/internal/logging"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/persist"
	"github.com/datalab/connectctl/internal/result"
	"github.com/datalab/connectctl/internal/schema"
	"github.com/datalab/connectctl/internal/wizard"
)

var (
	// ErrSchemaUnavailable means the schema catalog could not be loaded. The
	// wizard cannot run without it.
	ErrSchemaUnavailable = errors.New("storage schemas are unavailable")
	// ErrClosed is returned by actions on a closed session, and for results
	// that arrived after Close.
	ErrClosed = errors.New("session is closed")
	// ErrNoWizard is returned before StartAdd or StartEdit.
	ErrNoWizard = errors.New("no wizard started")
	// ErrNotValidated is returned by Continue without a passing connection test.
	ErrNotValidated = errors.New("connection has not been tested successfully")
	// ErrCredentialsRequired is returned by TestConnection while a stored
	// secret has no fresh value.
	ErrCredentialsRequired = errors.New("stored credentials must be entered again to test the connection")
)

// SchemaSource provides the storage schema catalog.
type SchemaSource interface {
	GetStorageSchemas(ctx context.Context) ([]models.StorageSchema, error)
}

// API is everything a session needs from the data API.
type API interface {
	SchemaSource
	connection.Tester
	persist.StorageAPI
}

// Option configures a session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithEventBus publishes session events on bus instead of a private bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithCatalogOptions replaces the default shortlist and overrides.
func WithCatalogOptions(opts ...schema.CatalogOption) Option {
	return func(s *Session) { s.catalogOpts = opts }
}

// Session is one wizard run against the data API.
type Session struct {
	api          API
	catalog      *schema.Catalog
	catalogOpts  []schema.CatalogOption
	wizard       *wizard.Wizard
	validator    *connection.Validator
	orchestrator *persist.Orchestrator
	bus          *events.EventBus
	logger       *logging.Logger

	closed atomic.Bool
}

// Open fetches the schema catalog and prepares a session. A fetch failure is
// blocking and wraps ErrSchemaUnavailable.
func Open(ctx context.Context, api API, opts ...Option) (*Session, error) {
	s := &Session{
		api: api,
		catalogOpts: []schema.CatalogOption{
			schema.WithShortlist(schema.DefaultShortlist()),
			schema.WithOverrides(schema.DefaultOverrides()),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.bus == nil {
		s.bus = events.NewEventBus(constants.EventBusDefaultBuffer)
	}

	schemas, err := api.GetStorageSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaUnavailable, err)
	}
	catalog, err := schema.NewCatalog(schemas, s.catalogOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaUnavailable, err)
	}
	s.catalog = catalog
	s.validator = connection.NewValidator(api, s.logger.Child("validator"))
	s.orchestrator = persist.NewOrchestrator(api, s.logger.Child("persist"))

	s.logger.Debug().Int("schemas", catalog.Len()).Msg("Storage schema catalog loaded")
	return s, nil
}

// Catalog returns the read-only schema catalog.
func (s *Session) Catalog() *schema.Catalog { return s.catalog }

// Events returns the bus the session publishes on.
func (s *Session) Events() *events.EventBus { return s.bus }

// Wizard returns the current wizard, or nil before StartAdd/StartEdit.
func (s *Session) Wizard() *wizard.Wizard { return s.wizard }

// Validation returns the state of the current connection test.
func (s *Session) Validation() result.Result[struct{}] {
	return s.validator.Result()
}

// StartAdd begins a wizard for a new storage.
func (s *Session) StartAdd(projectID string) *wizard.Wizard {
	s.closed.Store(false)
	s.validator.Reset()
	s.wizard = wizard.NewAdd(s.catalog, projectID)
	return s.wizard
}

// StartEdit begins a wizard seeded from a persisted storage.
func (s *Session) StartEdit(storage models.Storage) *wizard.Wizard {
	s.closed.Store(false)
	s.validator.Reset()
	s.wizard = wizard.NewEdit(s.catalog, storage)
	return s.wizard
}

func (s *Session) active() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.wizard == nil {
		return ErrNoWizard
	}
	return nil
}

// invalidate discards any connection test result; the draft it was run
// against no longer matches.
func (s *Session) invalidate() {
	if s.validator.Result().IsNotStarted() {
		return
	}
	s.validator.Reset()
	s.bus.PublishValidation(s.validator.Generation(), "reset", nil)
}

// navigate runs a wizard transition and publishes the step change.
func (s *Session) navigate(fn func() error) error {
	before := s.wizard.State()
	if err := fn(); err != nil {
		return err
	}
	after := s.wizard.State()
	if before.Step != after.Step || before.CompletedSteps != after.CompletedSteps || before.AdvancedMode != after.AdvancedMode {
		s.bus.PublishStepChanged(before.Step.String(), after.Step.String(), after.CompletedSteps, after.AdvancedMode)
	}
	return nil
}

// SelectSchema picks the storage type and invalidates the connection test.
func (s *Session) SelectSchema(id string) error {
	if err := s.active(); err != nil {
		return err
	}
	if err := s.wizard.SelectSchema(id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// SelectProvider picks the provider and invalidates the connection test.
func (s *Session) SelectProvider(id string) error {
	if err := s.active(); err != nil {
		return err
	}
	if err := s.wizard.SelectProvider(id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// SetOption sets an option value and invalidates the connection test.
func (s *Session) SetOption(name, input string) error {
	if err := s.active(); err != nil {
		return err
	}
	if err := s.wizard.SetOption(name, input); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// ClearOption removes an option and invalidates the connection test.
func (s *Session) ClearOption(name string) error {
	if err := s.active(); err != nil {
		return err
	}
	s.wizard.ClearOption(name)
	s.invalidate()
	return nil
}

// SetRawConfig replaces the advanced text and invalidates the connection test.
func (s *Session) SetRawConfig(text string) error {
	if err := s.active(); err != nil {
		return err
	}
	s.wizard.SetRawConfig(text)
	s.invalidate()
	return nil
}

// SetFinalDetails records the final step's fields. A changed source path
// invalidates the connection test, since the test covers it.
func (s *Session) SetFinalDetails(fd wizard.FinalDetails) error {
	if err := s.active(); err != nil {
		return err
	}
	prev := s.wizard.FinalDetails().SourcePath
	s.wizard.SetFinalDetails(fd)
	if s.wizard.FinalDetails().SourcePath != prev {
		s.invalidate()
	}
	return nil
}

// SetSourcePath sets the path inside the storage and invalidates the
// connection test when it changes.
func (s *Session) SetSourcePath(p string) error {
	if err := s.active(); err != nil {
		return err
	}
	prev := s.wizard.FinalDetails().SourcePath
	s.wizard.SetSourcePath(p)
	if s.wizard.FinalDetails().SourcePath != prev {
		s.invalidate()
	}
	return nil
}

// ToggleAdvancedMode switches between raw and guided entry.
func (s *Session) ToggleAdvancedMode() error {
	if err := s.active(); err != nil {
		return err
	}
	if err := s.navigate(s.wizard.ToggleAdvancedMode); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Next advances through a gated step. On the options step it behaves like
// Continue.
func (s *Session) Next() error {
	if err := s.active(); err != nil {
		return err
	}
	if s.wizard.State().Step == wizard.Options {
		return s.Continue()
	}
	return s.navigate(s.wizard.Next)
}

// Continue leaves the options step after a passing connection test.
func (s *Session) Continue() error {
	if err := s.active(); err != nil {
		return err
	}
	if s.wizard.State().Step == wizard.Options && !s.validator.Succeeded() {
		return ErrNotValidated
	}
	return s.navigate(s.wizard.Next)
}

// SkipTest proceeds past the options step without a passing test. No
// validation success is recorded, so credentials will not be saved. Other
// steps return wizard.ErrCannotAdvance.
func (s *Session) SkipTest() error {
	if err := s.active(); err != nil {
		return err
	}
	s.logger.Debug().Msg("Skipping connection test")
	return s.navigate(s.wizard.SkipStep)
}

// Back moves one step back. It reports closed, after closing the session,
// when the action is Cancel or Close.
func (s *Session) Back() (closed bool, err error) {
	if err := s.active(); err != nil {
		return false, err
	}
	err = s.navigate(func() error {
		closed = s.wizard.Back()
		return nil
	})
	if closed {
		s.Close()
	}
	return closed, err
}

// JumpTo moves to a reachable guided step.
func (s *Session) JumpTo(step wizard.Step) error {
	if err := s.active(); err != nil {
		return err
	}
	return s.navigate(func() error { return s.wizard.JumpTo(step) })
}

// Reset restores the initial draft and invalidates the connection test.
func (s *Session) Reset() error {
	if err := s.active(); err != nil {
		return err
	}
	err := s.navigate(func() error {
		s.wizard.Reset()
		return nil
	})
	s.invalidate()
	return err
}

// TestConnection submits the draft to the test endpoint. Stored secrets need
// a fresh value first. A result that arrives after Close is discarded.
func (s *Session) TestConnection(ctx context.Context) result.Result[struct{}] {
	if err := s.active(); err != nil {
		return result.Fail[struct{}](err)
	}
	if missing := s.wizard.RequiredCredentials(); len(missing) > 0 {
		return result.Fail[struct{}](fmt.Errorf("%w: %s", ErrCredentialsRequired, strings.Join(missing, ", ")))
	}

	d := s.wizard.Draft()
	s.bus.PublishValidation(s.validator.Generation()+1, "pending", nil)
	gen, res := s.validator.Test(ctx, s.wizard.TestConfiguration(), d.SourcePath)

	if s.closed.Load() {
		return result.Fail[struct{}](ErrClosed)
	}
	switch {
	case res.IsSucceeded():
		s.bus.PublishValidation(gen, "succeeded", nil)
	case errors.Is(res.Err(), connection.ErrSuperseded):
		// the newer generation reports its own outcome
	default:
		s.logger.Debug().Err(res.Err()).Msg("Connection test failed")
		s.bus.PublishValidation(gen, "failed", res.Err())
	}
	return res
}

// Retry re-submits the connection test after a failure.
func (s *Session) Retry(ctx context.Context) result.Result[struct{}] {
	return s.TestConnection(ctx)
}

// Commit validates the final details and saves the storage and its
// credentials. A failure keeps the draft for correction. A credential
// failure after a saved definition is reported in the outcome, not as an
// error.
func (s *Session) Commit(ctx context.Context) (persist.Outcome, error) {
	if err := s.active(); err != nil {
		return persist.Outcome{}, err
	}
	if s.wizard.State().Success {
		return persist.Outcome{}, wizard.ErrFinished
	}
	if st := s.wizard.State(); st.Step != wizard.FinalDetailsStep {
		return persist.Outcome{}, fmt.Errorf("%w: commit from %s", wizard.ErrStepLocked, st.Step)
	}
	if err := s.wizard.ValidateFinalDetails(); err != nil {
		return persist.Outcome{}, err
	}

	req := persist.FromWizard(s.wizard, s.validator.Succeeded())
	out, err := s.orchestrator.Commit(ctx, req)
	if err != nil {
		s.bus.PublishCommit(req.StorageID, req.StorageID == "", err)
		return out, err
	}
	if s.closed.Load() {
		s.logger.Debug().Msg("Commit finished after the session was closed")
	}

	id := ""
	if out.Storage != nil {
		id = out.Storage.StorageID
	}
	s.bus.PublishCommit(id, out.Created, nil)

	switch out.Credentials {
	case persist.CredentialsSaved:
		s.bus.PublishCredentials(id, "saved", secretNames(req.Secrets), nil)
	case persist.CredentialsDeleted:
		s.bus.PublishCredentials(id, "deleted", s.wizard.SavedCredentialFields(), nil)
	case persist.CredentialsFailed:
		s.logger.Warn().Err(out.CredentialsErr).Msg("Storage saved, but credentials were not")
		s.bus.PublishCredentials(id, "failed", secretNames(req.Secrets), out.CredentialsErr)
	}

	s.wizard.MarkSuccess()
	return out, nil
}

// Close resets local state and stops listening for in-flight results.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.validator.Reset()
	success := s.wizard != nil && s.wizard.State().Success
	s.bus.PublishClosed(success)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

func secretNames(secrets []models.SecretValue) []string {
	var names []string
	for _, sv := range secrets {
		if sv.Value != "" {
			names = append(names, sv.Name)
		}
	}
	return names
}
