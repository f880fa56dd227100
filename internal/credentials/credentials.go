// Package credentials converts storage configurations between their wire form,
// where secrets are replaced by a sentinel, and their editable form, where
// secrets are held as plaintext for the current session only.
package credentials

import (
	"sort"

	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/schema"
)

// IsSentinel reports whether v is the redaction placeholder.
func IsSentinel(v any) bool {
	s, ok := v.(string)
	return ok && s == constants.SensitiveSentinel
}

// ProvidedSensitiveFields returns the keys of a persisted configuration whose
// value is the sentinel, i.e. the fields already backed by a stored secret.
func ProvidedSensitiveFields(cfg models.Configuration) []string {
	var names []string
	for k, v := range cfg {
		if IsSentinel(v) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// FindSensitive returns the option names of a schema flagged as password or
// sensitive, in schema order.
func FindSensitive(s models.StorageSchema) []string {
	var names []string
	for _, opt := range s.Options {
		if opt.IsSecret() {
			names = append(names, opt.Name)
		}
	}
	return names
}

// DefinitionFromConfig returns a copy of base with the given plaintext
// credentials merged in. Empty plaintext values leave base untouched.
// The result is what gets sent to the connection test endpoint.
func DefinitionFromConfig(base models.Configuration, plaintext map[string]string) models.Configuration {
	out := base.Clone()
	if out == nil {
		out = models.Configuration{}
	}
	for name, value := range plaintext {
		if value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// Redact returns a copy of cfg in which every sensitive key holding plaintext
// is replaced by the sentinel, together with the plaintext values removed.
// Sentinel values stay as they are. Empty values are dropped from the copy.
func Redact(cfg models.Configuration, sensitive []string) (models.Configuration, []models.SecretValue) {
	out := cfg.Clone()
	if out == nil {
		out = models.Configuration{}
	}
	var secrets []models.SecretValue
	for _, name := range sensitive {
		v, ok := out[name]
		if !ok {
			continue
		}
		if IsSentinel(v) {
			continue
		}
		s, _ := v.(string)
		if s == "" {
			delete(out, name)
			continue
		}
		out[name] = constants.SensitiveSentinel
		secrets = append(secrets, models.SecretValue{Name: name, Value: s})
	}
	sort.Slice(secrets, func(i, j int) bool { return secrets[i].Name < secrets[j].Name })
	return out, secrets
}

// RequiredCredentials returns the secret options that are backed only by a
// stored secret and have no fresh value in this session. The connection test
// cannot use the stored secret, so these must be collected before testing.
func RequiredCredentials(options map[string]schema.Value) []string {
	var names []string
	for name, v := range options {
		sv, ok := v.(schema.SecretValue)
		if ok && sv.Stored && !sv.HasPlain() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Plaintext returns the fresh secret values entered this session.
func Plaintext(options map[string]schema.Value) map[string]string {
	out := make(map[string]string)
	for name, v := range options {
		if sv, ok := v.(schema.SecretValue); ok && sv.HasPlain() {
			out[name] = sv.Plain
		}
	}
	return out
}

// ActiveSensitive returns the option names holding a secret, fresh or stored.
func ActiveSensitive(options map[string]schema.Value) []string {
	var names []string
	for name, v := range options {
		if sv, ok := v.(schema.SecretValue); ok && !sv.Empty() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
