package schema

// DefaultShortlist is the curated view used unless the user asks to see all
// schemas or providers.
func DefaultShortlist() Shortlist {
	return Shortlist{
		Schemas: []string{"s3", "azureblob", "webdav", "gcs", "drive", "dropbox", "sftp", "swift"},
		Providers: map[string]ProviderShortlist{
			"s3": {
				Allow: []string{"AWS", "GCS", "Switch", "Ceph", "Minio", "Wasabi", "Other"},
				Deny:  []string{"ArvanCloud", "Liara", "Qiniu", "StackPath", "TencentCOS"},
			},
		},
	}
}

// DefaultOverrides tunes options whose upstream metadata is a poor fit for
// a mounted data connector.
func DefaultOverrides() Overrides {
	hide := true
	show := false
	advanced := true
	first, second := 0, 1
	return Overrides{
		"s3": {
			Position: &first,
			Options: map[string]OptionOverride{
				"env_auth": {Hide: &hide},
				"region":   {Help: "Region to connect to. Leave empty for the provider default."},
				"endpoint": {Hide: &show},
			},
		},
		"azureblob": {
			Position: &second,
			Options: map[string]OptionOverride{
				"env_auth":     {Hide: &hide},
				"use_msi":      {Hide: &hide},
				"use_emulator": {Advanced: &advanced},
			},
		},
		"webdav": {
			Options: map[string]OptionOverride{
				"bearer_token_command": {Hide: &hide},
			},
		},
		"sftp": {
			Options: map[string]OptionOverride{
				"key_file":    {Hide: &hide},
				"ssh":         {Hide: &hide},
				"key_pem":     {Advanced: &advanced},
				"set_modtime": {Default: []byte("false")},
			},
		},
	}
}
