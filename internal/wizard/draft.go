package wizard

import (
	"sort"

	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/credentials"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/schema"
)

// Draft is the storage configuration being edited. It is never persisted
// partially; only a confirmed draft is committed.
type Draft struct {
	SchemaID   string
	ProviderID string
	Options    map[string]schema.Value

	SourcePath      string
	TargetPath      string
	Name            string
	Readonly        bool
	SaveCredentials bool

	// RawConfig is the text edited in advanced mode.
	RawConfig string
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	out := d
	out.Options = make(map[string]schema.Value, len(d.Options))
	for k, v := range d.Options {
		out.Options[k] = v
	}
	return out
}

// draftFromStorage seeds an edit draft. Sentinel values become stored secrets
// with no plaintext.
func draftFromStorage(catalog *schema.Catalog, s models.Storage) Draft {
	d := Draft{
		SchemaID:   s.Configuration.Type(),
		ProviderID: s.Configuration.Provider(),
		Options:    make(map[string]schema.Value),
		SourcePath: s.SourcePath,
		TargetPath: s.TargetPath,
		Name:       s.Name,
		Readonly:   s.Readonly,
	}
	for k, raw := range s.Configuration {
		if k == constants.TypeOptionName || k == constants.ProviderOptionName {
			continue
		}
		v := schema.ValueFromWire(raw)
		if f, ok := catalog.FieldOf(d.SchemaID, k); ok {
			if coerced, err := schema.Coerce(f, v); err == nil {
				v = coerced
			}
		}
		d.Options[k] = v
	}
	for _, name := range s.SensitiveFields {
		if _, ok := d.Options[name]; !ok {
			d.Options[name] = schema.SecretValue{Stored: true}
		}
	}
	return d
}

// applicable reports whether a draft option should be sent for the current
// schema and provider. Keys unknown to the schema are kept as entered.
func applicable(catalog *schema.Catalog, d Draft, name string) bool {
	s, ok := catalog.Schema(d.SchemaID)
	if !ok {
		return true
	}
	for _, opt := range s.Options {
		if opt.Name == name {
			return schema.Applies(schema.ParseProviderFilter(opt.Provider), d.ProviderID)
		}
	}
	return true
}

// configuration renders the draft in wire form. Fresh secrets are included as
// plaintext; stored secrets appear as the sentinel.
func configuration(catalog *schema.Catalog, d Draft) models.Configuration {
	cfg := models.Configuration{constants.TypeOptionName: d.SchemaID}
	if d.ProviderID != "" {
		cfg[constants.ProviderOptionName] = d.ProviderID
	}
	for name, v := range d.Options {
		if v == nil || v.Empty() || !applicable(catalog, d, name) {
			continue
		}
		cfg[name] = v.Wire()
	}
	return cfg
}

// sensitiveNames returns the option names that must be redacted before the
// configuration is persisted: those the schema marks as secret plus any draft
// value held as a secret.
func sensitiveNames(catalog *schema.Catalog, d Draft) []string {
	set := make(map[string]struct{})
	if s, ok := catalog.Schema(d.SchemaID); ok {
		for _, name := range credentials.FindSensitive(s) {
			set[name] = struct{}{}
		}
	}
	for name, v := range d.Options {
		if _, ok := v.(schema.SecretValue); ok {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
