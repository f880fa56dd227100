package credentials

import (
	"reflect"
	"testing"

	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/schema"
)

func TestProvidedSensitiveFields(t *testing.T) {
	cfg := models.Configuration{
		"type":              "s3",
		"provider":          "AWS",
		"access_key_id":     "AKIA",
		"secret_access_key": constants.SensitiveSentinel,
		"session_token":     constants.SensitiveSentinel,
		"retries":           float64(3),
	}
	got := ProvidedSensitiveFields(cfg)
	want := []string{"secret_access_key", "session_token"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ProvidedSensitiveFields() = %v, want %v", got, want)
	}

	if got := ProvidedSensitiveFields(models.Configuration{"type": "s3"}); len(got) != 0 {
		t.Errorf("expected no sensitive fields, got %v", got)
	}
}

func TestFindSensitive(t *testing.T) {
	s := models.StorageSchema{
		Prefix: "s3",
		Options: []models.OptionDefinition{
			{Name: "access_key_id"},
			{Name: "secret_access_key", Sensitive: true},
			{Name: "sse_customer_key", IsPassword: true},
			{Name: "region"},
		},
	}
	got := FindSensitive(s)
	want := []string{"secret_access_key", "sse_customer_key"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindSensitive() = %v, want %v", got, want)
	}
}

func TestDefinitionFromConfigRoundTrip(t *testing.T) {
	base := models.Configuration{
		"type":              "s3",
		"access_key_id":     "AKIA",
		"secret_access_key": constants.SensitiveSentinel,
		"session_token":     constants.SensitiveSentinel,
	}
	plaintext := map[string]string{
		"secret_access_key": "s3cr3t",
		"session_token":     "",
	}

	got := DefinitionFromConfig(base, plaintext)

	if got["secret_access_key"] != "s3cr3t" {
		t.Errorf("secret_access_key = %v, want fresh plaintext", got["secret_access_key"])
	}
	if got["session_token"] != constants.SensitiveSentinel {
		t.Errorf("session_token = %v, empty plaintext must not replace the sentinel", got["session_token"])
	}
	for _, k := range []string{"type", "access_key_id"} {
		if got[k] != base[k] {
			t.Errorf("%s changed: %v != %v", k, got[k], base[k])
		}
	}
	if base["secret_access_key"] != constants.SensitiveSentinel {
		t.Error("DefinitionFromConfig mutated its input")
	}
}

func TestRedact(t *testing.T) {
	cfg := models.Configuration{
		"type":              "s3",
		"access_key_id":     "AKIA",
		"secret_access_key": "s3cr3t",
		"session_token":     constants.SensitiveSentinel,
		"sse_customer_key":  "",
	}
	sensitive := []string{"secret_access_key", "session_token", "sse_customer_key", "absent"}

	redacted, secrets := Redact(cfg, sensitive)

	if redacted["secret_access_key"] != constants.SensitiveSentinel {
		t.Errorf("secret_access_key = %v, want sentinel", redacted["secret_access_key"])
	}
	if redacted["session_token"] != constants.SensitiveSentinel {
		t.Errorf("session_token = %v, want sentinel kept", redacted["session_token"])
	}
	if _, ok := redacted["sse_customer_key"]; ok {
		t.Error("empty secret must be dropped, not sent as an empty string")
	}
	if _, ok := redacted["absent"]; ok {
		t.Error("absent key must not be added")
	}
	if redacted["access_key_id"] != "AKIA" {
		t.Error("non-sensitive keys must be unchanged")
	}

	want := []models.SecretValue{{Name: "secret_access_key", Value: "s3cr3t"}}
	if !reflect.DeepEqual(secrets, want) {
		t.Errorf("secrets = %v, want %v", secrets, want)
	}
	if cfg["secret_access_key"] != "s3cr3t" {
		t.Error("Redact mutated its input")
	}
}

func TestRedactThenRehydrate(t *testing.T) {
	cfg := models.Configuration{"type": "webdav", "url": "https://dav", "pass": "pw"}
	redacted, secrets := Redact(cfg, []string{"pass"})

	plaintext := make(map[string]string, len(secrets))
	for _, s := range secrets {
		plaintext[s.Name] = s.Value
	}
	if got := DefinitionFromConfig(redacted, plaintext); !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip = %v, want %v", got, cfg)
	}
}

func TestRequiredCredentials(t *testing.T) {
	options := map[string]schema.Value{
		"access_key_id":     schema.StringValue("AKIA"),
		"secret_access_key": schema.SecretValue{Stored: true},
		"session_token":     schema.SecretValue{Stored: true, Plain: "fresh"},
		"sse_customer_key":  schema.SecretValue{Plain: "new"},
		"unused":            schema.SecretValue{},
	}

	if got, want := RequiredCredentials(options), []string{"secret_access_key"}; !reflect.DeepEqual(got, want) {
		t.Errorf("RequiredCredentials() = %v, want %v", got, want)
	}
	wantPlain := map[string]string{"session_token": "fresh", "sse_customer_key": "new"}
	if got := Plaintext(options); !reflect.DeepEqual(got, wantPlain) {
		t.Errorf("Plaintext() = %v, want %v", got, wantPlain)
	}
	wantActive := []string{"secret_access_key", "session_token", "sse_customer_key"}
	if got := ActiveSensitive(options); !reflect.DeepEqual(got, wantActive) {
		t.Errorf("ActiveSensitive() = %v, want %v", got, wantActive)
	}
}
