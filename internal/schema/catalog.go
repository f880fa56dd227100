// Package schema normalizes the storage schema catalog served by the data API
// into typed, provider-filtered option lists.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/models"
)

// ErrUnknownSchema is returned when a schema id does not resolve in the catalog.
var ErrUnknownSchema = errors.New("unknown storage schema")

// ProviderShortlist restricts the providers offered for a schema. Allow also
// fixes display order: a provider's position is its index in Allow.
type ProviderShortlist struct {
	Allow []string
	Deny  []string
}

// Shortlist is the curated subset shown when the user has not asked to see everything.
type Shortlist struct {
	// Schemas lists schema prefixes in display order. Empty means all.
	Schemas []string
	// Providers maps a schema prefix to its provider shortlist.
	Providers map[string]ProviderShortlist
}

// OptionOverride adjusts how a single option is presented.
type OptionOverride struct {
	Hide     *bool
	Advanced *bool
	Help     string
	Default  json.RawMessage
}

// SchemaOverride adjusts a schema and its options.
type SchemaOverride struct {
	Position *int
	Options  map[string]OptionOverride
}

// Overrides maps a schema prefix to its override.
type Overrides map[string]SchemaOverride

// NormalizedOption is an option that survived filtering, with its derived attributes.
type NormalizedOption struct {
	models.OptionDefinition
	Field            Field
	FilteredExamples []models.OptionExample
}

// ConvertedType returns the UI type of the option.
func (o NormalizedOption) ConvertedType() Kind {
	return o.Field.Kind()
}

// ConvertedDefault returns the coerced default, if any.
func (o NormalizedOption) ConvertedDefault() (Value, bool) {
	return o.Field.Default()
}

// Catalog is an immutable snapshot of the schema catalog for one wizard session.
type Catalog struct {
	schemas   []models.StorageSchema
	index     map[string]int
	shortlist Shortlist
	overrides Overrides
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithShortlist sets the schema and provider shortlists.
func WithShortlist(s Shortlist) CatalogOption {
	return func(c *Catalog) { c.shortlist = s }
}

// WithOverrides sets per-schema and per-option overrides.
func WithOverrides(o Overrides) CatalogOption {
	return func(c *Catalog) { c.overrides = o }
}

// NewCatalog builds a catalog from the schemas returned by the data API.
// The schemas are copied; later changes to the input do not affect the catalog.
func NewCatalog(schemas []models.StorageSchema, opts ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		schemas: make([]models.StorageSchema, 0, len(schemas)),
		index:   make(map[string]int, len(schemas)),
	}
	for _, s := range schemas {
		if s.Prefix == "" {
			return nil, fmt.Errorf("schema %q has no prefix", s.Name)
		}
		if _, dup := c.index[s.Prefix]; dup {
			return nil, fmt.Errorf("duplicate schema prefix %q", s.Prefix)
		}
		s.Options = append([]models.OptionDefinition(nil), s.Options...)
		c.index[s.Prefix] = len(c.schemas)
		c.schemas = append(c.schemas, s)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Len returns the number of schemas in the catalog.
func (c *Catalog) Len() int {
	return len(c.schemas)
}

// Schema looks up a schema by prefix.
func (c *Catalog) Schema(id string) (models.StorageSchema, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.StorageSchema{}, false
	}
	return c.schemas[i], true
}

// Schemas returns the schemas for the type selection step, sorted by position
// (undefined last) and then by name. Unless showAll is set, only shortlisted
// schemas are returned.
func (c *Catalog) Schemas(showAll bool) []models.StorageSchema {
	listed := make(map[string]int, len(c.shortlist.Schemas))
	for i, id := range c.shortlist.Schemas {
		listed[id] = i
	}

	out := make([]models.StorageSchema, 0, len(c.schemas))
	for _, s := range c.schemas {
		pos, inList := listed[s.Prefix]
		if !showAll && len(listed) > 0 && !inList {
			continue
		}
		switch {
		case c.overrides[s.Prefix].Position != nil:
			s.Position = c.overrides[s.Prefix].Position
		case s.Position != nil:
		case inList:
			p := pos
			s.Position = &p
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Position, out[j].Position
		switch {
		case pi != nil && pj != nil && *pi != *pj:
			return *pi < *pj
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Options returns the options the user should fill in for a schema and
// provider. It returns nil when the schema is unknown.
//
// With no provider selected, options that apply to all providers or to all
// but a few are kept and provider-specific options are dropped.
func (c *Catalog) Options(shortListOnly bool, schemaID, providerID string) []NormalizedOption {
	s, ok := c.Schema(schemaID)
	if !ok {
		return nil
	}
	overrides := c.overrides[schemaID].Options

	out := make([]NormalizedOption, 0, len(s.Options))
	for _, opt := range s.Options {
		if opt.Name == constants.ProviderOptionName {
			continue
		}
		ov, hasOverride := overrides[opt.Name]
		if hasOverride {
			opt = applyOverride(opt, ov)
		}

		hidden := opt.Hide.Hidden()
		if hasOverride && ov.Hide != nil {
			hidden = *ov.Hide
		}
		if hidden {
			continue
		}
		if shortListOnly && opt.Advanced {
			continue
		}
		if !Applies(ParseProviderFilter(opt.Provider), providerID) {
			continue
		}

		out = append(out, NormalizedOption{
			OptionDefinition: opt,
			Field:            FieldFor(opt),
			FilteredExamples: filterExamples(opt.Examples, providerID),
		})
	}
	return out
}

func applyOverride(opt models.OptionDefinition, ov OptionOverride) models.OptionDefinition {
	if ov.Advanced != nil {
		opt.Advanced = *ov.Advanced
	}
	if ov.Help != "" {
		opt.Help = ov.Help
	}
	if len(ov.Default) > 0 {
		opt.Default = ov.Default
	}
	return opt
}

func filterExamples(examples []models.OptionExample, providerID string) []models.OptionExample {
	if len(examples) == 0 {
		return nil
	}
	out := make([]models.OptionExample, 0, len(examples))
	for _, ex := range examples {
		if Applies(ParseProviderFilter(ex.Provider), providerID) {
			out = append(out, ex)
		}
	}
	return out
}

// Providers returns the provider choices for a schema. It returns nil when the
// schema is unknown, has no provider option, or that option has no examples.
// When shortListOnly is set the allow/deny shortlist applies, but the current
// provider is always kept.
func (c *Catalog) Providers(shortListOnly bool, schemaID, currentProviderID string) []models.ProviderDefinition {
	s, ok := c.Schema(schemaID)
	if !ok {
		return nil
	}
	var providerOpt *models.OptionDefinition
	for i := range s.Options {
		if s.Options[i].Name == constants.ProviderOptionName {
			providerOpt = &s.Options[i]
			break
		}
	}
	if providerOpt == nil || len(providerOpt.Examples) == 0 {
		return nil
	}

	sl, hasShortlist := c.shortlist.Providers[schemaID]
	seen := make(map[string]struct{}, len(providerOpt.Examples))
	out := make([]models.ProviderDefinition, 0, len(providerOpt.Examples))
	for _, ex := range providerOpt.Examples {
		if ex.Value == "" {
			continue
		}
		if _, dup := seen[ex.Value]; dup {
			continue
		}
		seen[ex.Value] = struct{}{}

		def := models.ProviderDefinition{Name: ex.Value, Description: ex.Help}
		allowIdx := -1
		if hasShortlist {
			allowIdx = indexOf(sl.Allow, ex.Value)
			if allowIdx >= 0 {
				pos := allowIdx
				def.Position = &pos
			}
		}

		if shortListOnly && hasShortlist && ex.Value != currentProviderID {
			if len(sl.Allow) > 0 && allowIdx < 0 {
				continue
			}
			if indexOf(sl.Deny, ex.Value) >= 0 {
				continue
			}
		}
		out = append(out, def)
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Position, out[j].Position
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return *pi < *pj
	})
	return out
}

// HasProviderShortlist reports whether a provider shortlist is configured for
// the schema. A provider must then be chosen before leaving the type step.
func (c *Catalog) HasProviderShortlist(schemaID string) bool {
	if schemaID == "" {
		return false
	}
	_, ok := c.shortlist.Providers[schemaID]
	return ok
}

// IsSensitive reports whether an option of the schema holds a credential.
func (c *Catalog) IsSensitive(schemaID, option string) bool {
	s, ok := c.Schema(schemaID)
	if !ok {
		return false
	}
	for _, opt := range s.Options {
		if opt.Name == option {
			return opt.IsSecret()
		}
	}
	return false
}

// FieldOf returns the typed field of a schema option, ignoring visibility.
func (c *Catalog) FieldOf(schemaID, option string) (Field, bool) {
	s, ok := c.Schema(schemaID)
	if !ok {
		return nil, false
	}
	for _, opt := range s.Options {
		if opt.Name == option {
			return FieldFor(opt), true
		}
	}
	return nil, false
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
