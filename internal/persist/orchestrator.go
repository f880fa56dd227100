// Package persist commits a confirmed wizard draft: the storage definition
// first, then its credentials.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/datalab/connectctl/internal/api"
	"github.com/datalab/connectctl/internal/logging"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/wizard"
)

// ErrCommitInProgress is returned when Commit is called while another commit
// on the same orchestrator has not finished.
var ErrCommitInProgress = errors.New("a commit is already in progress")

// StorageAPI is the part of the data API the orchestrator needs.
type StorageAPI interface {
	CreateStorage(ctx context.Context, payload models.StoragePayload) (*models.Storage, error)
	UpdateStorage(ctx context.Context, storageID string, payload models.StoragePayload) (*models.Storage, error)
	SaveSecrets(ctx context.Context, storageID string, secrets []models.SecretValue) error
	DeleteSecrets(ctx context.Context, storageID string) error
}

// CredentialsOutcome says what happened to the credentials after a commit.
type CredentialsOutcome int

const (
	CredentialsNone CredentialsOutcome = iota
	CredentialsSaved
	CredentialsDeleted
	CredentialsFailed
)

func (c CredentialsOutcome) String() string {
	switch c {
	case CredentialsNone:
		return "none"
	case CredentialsSaved:
		return "saved"
	case CredentialsDeleted:
		return "deleted"
	case CredentialsFailed:
		return "failed"
	default:
		return fmt.Sprintf("credentials(%d)", int(c))
	}
}

// CommitRequest is everything Commit needs, decoupled from the wizard.
type CommitRequest struct {
	// StorageID is the storage being edited; empty creates a new one.
	StorageID string
	Payload   models.StoragePayload
	// Secrets are the fresh plaintext values removed from Payload.
	Secrets []models.SecretValue
	// ActiveSensitive names the options still holding a secret, fresh or stored.
	ActiveSensitive []string

	SaveCredentials     bool
	ValidationSucceeded bool
}

// FromWizard builds the commit request for a wizard's draft. Secrets are
// redacted out of the payload.
func FromWizard(w *wizard.Wizard, validationSucceeded bool) CommitRequest {
	payload, secrets := w.Payload()
	d := w.Draft()
	return CommitRequest{
		StorageID:           w.StorageID(),
		Payload:             payload,
		Secrets:             secrets,
		ActiveSensitive:     w.ActiveSensitive(),
		SaveCredentials:     d.SaveCredentials,
		ValidationSucceeded: validationSucceeded,
	}
}

// Outcome is the result of a commit whose definition was saved.
type Outcome struct {
	Storage        *models.Storage
	Created        bool
	Credentials    CredentialsOutcome
	CredentialsErr error
}

// Degraded reports a saved definition whose credentials were not handled.
func (o Outcome) Degraded() bool {
	return o.Credentials == CredentialsFailed
}

// Orchestrator sequences create-or-update and the follow-up secret mutation.
type Orchestrator struct {
	api      StorageAPI
	logger   *logging.Logger
	inFlight atomic.Bool
}

// NewOrchestrator creates an orchestrator over the data API client.
func NewOrchestrator(client StorageAPI, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Orchestrator{api: client, logger: logger}
}

// InProgress reports whether a commit is running.
func (o *Orchestrator) InProgress() bool {
	return o.inFlight.Load()
}

// Commit creates or updates the storage and then saves or deletes its
// secrets. A failure of the definition call aborts with an error. A failure
// of the secret call is a partial success reported in the outcome; nothing is
// rolled back or retried.
func (o *Orchestrator) Commit(ctx context.Context, req CommitRequest) (Outcome, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return Outcome{}, ErrCommitInProgress
	}
	defer o.inFlight.Store(false)

	var (
		stored *models.Storage
		err    error
	)
	created := req.StorageID == ""
	if created {
		stored, err = o.api.CreateStorage(ctx, req.Payload)
	} else {
		stored, err = o.api.UpdateStorage(ctx, req.StorageID, req.Payload)
	}
	if err != nil {
		if created {
			return Outcome{}, fmt.Errorf("failed to create storage: %w", err)
		}
		return Outcome{}, fmt.Errorf("failed to update storage %s: %w", req.StorageID, err)
	}

	out := Outcome{Storage: stored, Created: created}
	if stored == nil || stored.StorageID == "" {
		o.logger.Warn().Msg("Storage saved but no storage id was returned, skipping credentials")
		return out, nil
	}
	id := stored.StorageID

	secrets := nonEmpty(req.Secrets)
	switch {
	case req.SaveCredentials && req.ValidationSucceeded && len(secrets) > 0:
		if err := o.api.SaveSecrets(ctx, id, secrets); err != nil {
			o.logger.Warn().Err(err).Str("storage_id", id).Msg("Storage saved, but credentials were not")
			out.Credentials = CredentialsFailed
			out.CredentialsErr = fmt.Errorf("failed to save credentials: %w", err)
			return out, nil
		}
		out.Credentials = CredentialsSaved
	case len(req.ActiveSensitive) == 0 && !created:
		err := o.api.DeleteSecrets(ctx, id)
		if api.IsNotFound(err) {
			o.logger.Debug().Str("storage_id", id).Msg("No stored credentials to remove")
			return out, nil
		}
		if err != nil {
			o.logger.Warn().Err(err).Str("storage_id", id).Msg("Storage saved, but stored credentials were not removed")
			out.Credentials = CredentialsFailed
			out.CredentialsErr = fmt.Errorf("failed to delete credentials: %w", err)
			return out, nil
		}
		out.Credentials = CredentialsDeleted
	}
	return out, nil
}

func nonEmpty(secrets []models.SecretValue) []models.SecretValue {
	out := make([]models.SecretValue, 0, len(secrets))
	for _, s := range secrets {
		if s.Value != "" {
			out = append(out, s)
		}
	}
	return out
}
