package models

import "sort"

// Configuration is the rclone-style option bag of a storage definition.
// It always carries "type" and, for schemas with providers, "provider".
type Configuration map[string]any

// Clone returns a shallow copy; values are scalars so the copy is independent.
func (c Configuration) Clone() Configuration {
	if c == nil {
		return nil
	}
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Type returns the schema prefix stored under "type".
func (c Configuration) Type() string {
	s, _ := c["type"].(string)
	return s
}

// Provider returns the provider stored under "provider", if any.
func (c Configuration) Provider() string {
	s, _ := c["provider"].(string)
	return s
}

// Keys returns the configuration keys in sorted order.
func (c Configuration) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StoragePayload is the body of POST /api/data/storage and PATCH /api/data/storage/{id}
type StoragePayload struct {
	Name          string        `json:"name"`
	Readonly      bool          `json:"readonly"`
	ProjectID     string        `json:"project_id"`
	SourcePath    string        `json:"source_path"`
	TargetPath    string        `json:"target_path"`
	Configuration Configuration `json:"configuration"`
}

// Storage is a persisted storage definition.
type Storage struct {
	StorageID     string        `json:"storage_id"`
	Name          string        `json:"name"`
	Readonly      bool          `json:"readonly"`
	ProjectID     string        `json:"project_id"`
	SourcePath    string        `json:"source_path"`
	TargetPath    string        `json:"target_path"`
	StorageType   string        `json:"storage_type,omitempty"`
	Configuration Configuration `json:"configuration"`

	// SensitiveFields lists option names backed by a stored secret, when the
	// server reports them.
	SensitiveFields []string `json:"sensitive_fields,omitempty"`
}

// TestConnectionRequest is the body of POST /api/data/storage_schema/test_connection
type TestConnectionRequest struct {
	Configuration Configuration `json:"configuration"`
	SourcePath    string        `json:"source_path"`
}
