package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/models"
)

// Kind is the UI-level type of an option.
type Kind string

const (
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindSecret  Kind = "secret"
)

// Field is the typed form of an option, resolved once during normalization.
// It is one of StringField, NumberField, BooleanField or SecretField.
type Field interface {
	Kind() Kind
	// Parse converts user input into a Value of this field's type.
	Parse(input string) (Value, error)
	// Default returns the coerced default, if the schema declared a usable one.
	Default() (Value, bool)
}

// StringField is a free-text option.
type StringField struct {
	DefaultValue *string
}

// NumberField is a numeric option (integers, sizes, durations expressed as numbers).
type NumberField struct {
	DefaultValue *float64
}

// BooleanField is an on/off option.
type BooleanField struct {
	DefaultValue *bool
}

// SecretField is a password or sensitive option. It never carries a default.
type SecretField struct{}

func (StringField) Kind() Kind  { return KindString }
func (NumberField) Kind() Kind  { return KindNumber }
func (BooleanField) Kind() Kind { return KindBoolean }
func (SecretField) Kind() Kind  { return KindSecret }

func (f StringField) Parse(input string) (Value, error) {
	return StringValue(input), nil
}

func (f NumberField) Parse(input string) (Value, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", input)
	}
	return NumberValue(n), nil
}

func (f BooleanField) Parse(input string) (Value, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(input))
	if err != nil {
		return nil, fmt.Errorf("%q is not a boolean (use true or false)", input)
	}
	return BoolValue(b), nil
}

func (f SecretField) Parse(input string) (Value, error) {
	if input == constants.SensitiveSentinel {
		return SecretValue{Stored: true}, nil
	}
	return SecretValue{Plain: input}, nil
}

func (f StringField) Default() (Value, bool) {
	if f.DefaultValue == nil {
		return nil, false
	}
	return StringValue(*f.DefaultValue), true
}

func (f NumberField) Default() (Value, bool) {
	if f.DefaultValue == nil {
		return nil, false
	}
	return NumberValue(*f.DefaultValue), true
}

func (f BooleanField) Default() (Value, bool) {
	if f.DefaultValue == nil {
		return nil, false
	}
	return BoolValue(*f.DefaultValue), true
}

func (f SecretField) Default() (Value, bool) { return nil, false }

var numericTypePattern = regexp.MustCompile(`^(u?int\d*|float\d*|duration|sizesuffix|number)$`)

// KindOf infers the UI type of an option. Secret wins over the declared type.
func KindOf(opt models.OptionDefinition) Kind {
	if opt.IsSecret() {
		return KindSecret
	}
	raw := strings.ToLower(strings.TrimSpace(opt.Type))
	switch {
	case strings.HasPrefix(raw, "bool"):
		return KindBoolean
	case numericTypePattern.MatchString(raw):
		return KindNumber
	default:
		return KindString
	}
}

// FieldFor builds the typed field of an option, coercing its declared default
// (or its declared value when no default is set). Coercion failures leave the
// default unset.
func FieldFor(opt models.OptionDefinition) Field {
	raw := opt.Default
	if isAbsent(raw) {
		raw = opt.Value
	}
	var decoded any
	if !isAbsent(raw) {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			decoded = nil
		}
	}

	switch KindOf(opt) {
	case KindSecret:
		return SecretField{}
	case KindBoolean:
		return BooleanField{DefaultValue: coerceBool(decoded)}
	case KindNumber:
		return NumberField{DefaultValue: coerceNumber(decoded)}
	default:
		return StringField{DefaultValue: coerceString(decoded)}
	}
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func coerceBool(v any) *bool {
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return &b
		}
	}
	return nil
}

func coerceNumber(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &n
		}
	}
	return nil
}

func coerceString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}
