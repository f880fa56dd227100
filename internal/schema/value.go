package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/datalab/connectctl/internal/constants"
)

// Value is a typed option value held by a draft. It is one of StringValue,
// NumberValue, BoolValue or SecretValue.
type Value interface {
	// Wire returns the JSON-ready form sent to the data API.
	Wire() any
	// Empty reports whether the value should be left out of a payload.
	Empty() bool
	// Text renders the value for a raw "key = value" config block.
	Text() string
}

type StringValue string

type NumberValue float64

type BoolValue bool

// SecretValue holds a credential. Plain is the value typed in this session;
// Stored means the backend already holds a secret for this option.
type SecretValue struct {
	Plain  string
	Stored bool
}

func (v StringValue) Wire() any    { return string(v) }
func (v StringValue) Empty() bool  { return v == "" }
func (v StringValue) Text() string { return string(v) }

func (v NumberValue) Wire() any    { return float64(v) }
func (v NumberValue) Empty() bool  { return false }
func (v NumberValue) Text() string { return strconv.FormatFloat(float64(v), 'f', -1, 64) }

func (v BoolValue) Wire() any    { return bool(v) }
func (v BoolValue) Empty() bool  { return false }
func (v BoolValue) Text() string { return strconv.FormatBool(bool(v)) }

// Wire returns fresh plaintext when present, else the sentinel for a stored
// secret. Never both.
func (v SecretValue) Wire() any {
	if v.Plain != "" {
		return v.Plain
	}
	if v.Stored {
		return constants.SensitiveSentinel
	}
	return ""
}

func (v SecretValue) Empty() bool { return v.Plain == "" && !v.Stored }

// Text never renders plaintext.
func (v SecretValue) Text() string {
	if v.Plain != "" || v.Stored {
		return constants.SensitiveSentinel
	}
	return ""
}

// HasPlain reports whether a fresh credential was entered this session.
func (v SecretValue) HasPlain() bool { return v.Plain != "" }

// ValueFromWire converts a configuration value received from the data API.
// The sentinel becomes a stored secret.
func ValueFromWire(v any) Value {
	switch t := v.(type) {
	case nil:
		return StringValue("")
	case string:
		if t == constants.SensitiveSentinel {
			return SecretValue{Stored: true}
		}
		return StringValue(t)
	case float64:
		return NumberValue(t)
	case int:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case bool:
		return BoolValue(t)
	default:
		return StringValue(fmt.Sprint(t))
	}
}

// Coerce converts a loosely typed value into the field's type. Values already
// of the right variant pass through.
func Coerce(f Field, v Value) (Value, error) {
	if v == nil {
		return nil, fmt.Errorf("missing value")
	}
	switch f.(type) {
	case SecretField:
		switch t := v.(type) {
		case SecretValue:
			return t, nil
		default:
			return f.Parse(v.Text())
		}
	case NumberField:
		if t, ok := v.(NumberValue); ok {
			return t, nil
		}
	case BooleanField:
		if t, ok := v.(BoolValue); ok {
			return t, nil
		}
	case StringField:
		if t, ok := v.(StringValue); ok {
			return t, nil
		}
		if _, ok := v.(SecretValue); ok {
			return nil, fmt.Errorf("secret value for a non-secret option")
		}
	}
	return f.Parse(strings.TrimSpace(v.Text()))
}
