// Package models defines the wire types of the storage connector API.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StorageSchema is one backend type from GET /api/data/storage_schema
type StorageSchema struct {
	Prefix      string             `json:"prefix"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Position    *int               `json:"position,omitempty"`
	Options     []OptionDefinition `json:"options"`
}

// OptionDefinition describes one configurable field of a storage schema.
//
// Default and Value are left as raw JSON because the backend mixes
// strings, numbers, booleans and lists depending on the declared type.
type OptionDefinition struct {
	Name       string          `json:"name"`
	Help       string          `json:"help"`
	Type       string          `json:"type"`
	Default    json.RawMessage `json:"default,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Sensitive  bool            `json:"sensitive"`
	IsPassword bool            `json:"ispassword"`
	Provider   string          `json:"provider"`
	Advanced   bool            `json:"advanced"`
	Required   bool            `json:"required"`
	Exclusive  bool            `json:"exclusive"`
	Hide       Visibility      `json:"hide"`
	Examples   []OptionExample `json:"examples,omitempty"`
}

// Visibility is the rclone hide weight of an option. Zero is visible. Some
// backends send a plain boolean instead of the weight.
type Visibility int

// Hidden reports whether the option is hidden from configuration.
func (v Visibility) Hidden() bool {
	return v != 0
}

// UnmarshalJSON accepts a number, a boolean or null.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", "false":
		*v = 0
		return nil
	case "true":
		*v = 1
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid hide value %s: %w", data, err)
	}
	*v = Visibility(n)
	return nil
}

// IsSecret reports whether the option holds a credential.
func (o OptionDefinition) IsSecret() bool {
	return o.IsPassword || o.Sensitive
}

// OptionExample is a suggested value for an option, possibly scoped to providers.
type OptionExample struct {
	Value    string `json:"value"`
	Help     string `json:"help"`
	Provider string `json:"provider,omitempty"`
}

// ProviderDefinition is one named variant of a schema (e.g. S3 provider "AWS").
type ProviderDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    *int   `json:"position,omitempty"`
}
