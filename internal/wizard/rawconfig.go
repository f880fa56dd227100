package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/schema"
)

// ErrUnknownType is returned when raw configuration has no type, or a type the
// catalog does not know.
var ErrUnknownType = errors.New("configuration type is missing or unknown")

// rawConfig is a parsed rclone-style block.
type rawConfig struct {
	name     string
	typ      string
	provider string
	values   map[string]string
}

func loadOptions() ini.LoadOptions {
	return ini.LoadOptions{
		KeyValueDelimiters:  "=",
		IgnoreInlineComment: true,
	}
}

// parseRawConfig reads "key = value" lines, optionally under a [name] header.
// Keys from every section are merged; later sections win.
func parseRawConfig(text string) (rawConfig, error) {
	rc := rawConfig{values: make(map[string]string)}
	f, err := ini.LoadSources(loadOptions(), []byte(text))
	if err != nil {
		return rc, fmt.Errorf("failed to parse configuration: %w", err)
	}
	for _, sec := range f.Sections() {
		if sec.Name() != ini.DefaultSection && rc.name == "" {
			rc.name = sec.Name()
		}
		for _, key := range sec.Keys() {
			name := strings.TrimSpace(key.Name())
			value := strings.TrimSpace(key.Value())
			switch name {
			case constants.TypeOptionName:
				rc.typ = value
			case constants.ProviderOptionName:
				rc.provider = value
			default:
				rc.values[name] = value
			}
		}
	}
	return rc, nil
}

// renderRawConfig writes the draft as an rclone-style block. Secrets are
// written as the sentinel, never as plaintext.
func renderRawConfig(d Draft) string {
	f := ini.Empty(loadOptions())
	sec := f.Section(ini.DefaultSection)
	if d.Name != "" {
		sec, _ = f.NewSection(d.Name)
	}
	if d.SchemaID != "" {
		sec.Key(constants.TypeOptionName).SetValue(d.SchemaID)
	}
	if d.ProviderID != "" {
		sec.Key(constants.ProviderOptionName).SetValue(d.ProviderID)
	}

	names := make([]string, 0, len(d.Options))
	for name, v := range d.Options {
		if v != nil && !v.Empty() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sec.Key(name).SetValue(d.Options[name].Text())
	}

	var b strings.Builder
	if _, err := f.WriteTo(&b); err != nil {
		return ""
	}
	return strings.TrimSpace(b.String()) + "\n"
}

// applyRawConfig merges parsed raw configuration into a copy of the draft.
// Values are coerced to the schema's field types when the schema is known. A
// sentinel keeps the draft's current secret, including any fresh plaintext.
// An unknown type clears the schema and provider and returns ErrUnknownType
// together with the partially applied draft.
func applyRawConfig(catalog *schema.Catalog, d Draft, rc rawConfig) (Draft, error) {
	out := d.Clone()
	out.Options = make(map[string]schema.Value, len(rc.values))
	if rc.name != "" && out.Name == "" {
		out.Name = rc.name
	}

	_, known := catalog.Schema(rc.typ)
	if known {
		out.SchemaID = rc.typ
		out.ProviderID = rc.provider
	} else {
		out.SchemaID = ""
		out.ProviderID = ""
	}

	for name, text := range rc.values {
		if text == constants.SensitiveSentinel {
			if prev, ok := d.Options[name].(schema.SecretValue); ok && !prev.Empty() {
				out.Options[name] = prev
			} else {
				out.Options[name] = schema.SecretValue{Stored: true}
			}
			continue
		}
		field, ok := catalog.FieldOf(out.SchemaID, name)
		if !ok {
			out.Options[name] = schema.StringValue(text)
			continue
		}
		v, err := field.Parse(text)
		if err != nil {
			return d, fmt.Errorf("option %s: %w", name, err)
		}
		if sv, ok := v.(schema.SecretValue); ok {
			if prev, ok := d.Options[name].(schema.SecretValue); ok {
				sv.Stored = prev.Stored
			}
			v = sv
		}
		out.Options[name] = v
	}

	if !known {
		return out, fmt.Errorf("%w: %q", ErrUnknownType, rc.typ)
	}
	return out, nil
}
