// Package probe checks from the local machine that a storage configuration
// can reach its backend. It complements, and never replaces, the data API's
// own connection test.
package probe

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/http"
	"github.com/datalab/connectctl/internal/models"
)

var (
	// ErrUnsupportedType is returned for storage types without a local probe.
	ErrUnsupportedType = errors.New("no local probe for storage type")
	// ErrStoredSecret is returned when a secret is only available as the
	// stored sentinel; the probe needs the plaintext.
	ErrStoredSecret = errors.New("secret is stored server-side, enter it again to probe locally")
)

// Prober checks one storage configuration.
type Prober interface {
	Probe(ctx context.Context, cfg models.Configuration, sourcePath string) error
}

// Supported lists the storage types with a local probe.
func Supported() []string {
	return []string{"azureblob", "s3"}
}

// ForType returns the prober for a storage type. httpClient may be nil, in
// which case the SDK default is used.
func ForType(storageType string, httpClient *nethttp.Client) (Prober, error) {
	switch storageType {
	case "s3":
		return &S3Prober{HTTPClient: httpClient}, nil
	case "azureblob":
		return &AzureProber{HTTPClient: httpClient}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedType, storageType)
	}
}

// Error is a failed probe, classified by what the user can do about it.
type Error struct {
	Backend string
	Kind    http.ErrorType
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s probe failed (%s): %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hint returns a short suggestion for the user.
func (e *Error) Hint() string {
	return e.Kind.Hint()
}

func probeError(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Kind: http.ClassifyError(err), Err: err}
}

// decodeOptions decodes an option bag into a typed options struct. String
// values are converted to the field types.
func decodeOptions(cfg models.Configuration, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(cfg)); err != nil {
		return fmt.Errorf("invalid %s options: %w", cfg.Type(), err)
	}
	return nil
}

// checkSecrets rejects secrets that are still the stored sentinel.
func checkSecrets(fields map[string]string) error {
	for name, value := range fields {
		if value == constants.SensitiveSentinel {
			return fmt.Errorf("%s: %w", name, ErrStoredSecret)
		}
	}
	return nil
}

// splitSourcePath splits "bucket/some/prefix" into the bucket and the prefix.
func splitSourcePath(sourcePath string) (string, string) {
	sourcePath = strings.Trim(sourcePath, "/")
	bucket, prefix, _ := strings.Cut(sourcePath, "/")
	return bucket, prefix
}

func withScheme(endpoint string) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}
