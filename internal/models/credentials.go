package models

// SecretValue is one stored credential sent to POST /api/data/storage/{id}/secrets
type SecretValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StorageSecret is a stored credential as listed by the data API. The value
// itself is never returned.
type StorageSecret struct {
	Name     string `json:"name"`
	SecretID string `json:"secret_id"`
}
