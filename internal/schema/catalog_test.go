package schema

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/datalab/connectctl/internal/models"
)

func intPtr(i int) *int { return &i }

func testSchemas() []models.StorageSchema {
	return []models.StorageSchema{
		{
			Prefix: "s3",
			Name:   "Amazon S3 Compliant",
			Options: []models.OptionDefinition{
				{
					Name: "provider",
					Type: "string",
					Examples: []models.OptionExample{
						{Value: "Other", Help: "Any other S3 compatible provider"},
						{Value: "AWS", Help: "Amazon Web Services"},
						{Value: "Ceph", Help: "Ceph Object Storage"},
						{Value: "Liara", Help: "Liara"},
						{Value: "AWS", Help: "duplicate"},
					},
				},
				{Name: "env_auth", Type: "bool", Default: json.RawMessage("false")},
				{Name: "access_key_id", Type: "string"},
				{Name: "secret_access_key", Type: "string", Sensitive: true},
				{Name: "region", Type: "string", Provider: "AWS", Examples: []models.OptionExample{
					{Value: "us-east-1", Provider: ""},
					{Value: "eu-central-1", Provider: "AWS"},
					{Value: "ceph-region", Provider: "Ceph"},
				}},
				{Name: "endpoint", Type: "string", Provider: "!AWS"},
				{Name: "upload_cutoff", Type: "SizeSuffix", Default: json.RawMessage(`200`), Advanced: true},
				{Name: "internal_flag", Type: "bool", Hide: 2},
			},
		},
		{
			Prefix:   "webdav",
			Name:     "WebDAV",
			Position: intPtr(5),
			Options: []models.OptionDefinition{
				{Name: "url", Type: "string", Required: true},
				{Name: "pass", Type: "string", IsPassword: true},
			},
		},
		{
			Prefix: "b2",
			Name:   "Backblaze B2",
			Options: []models.OptionDefinition{
				{Name: "account", Type: "string"},
			},
		},
		{
			Prefix: "azureblob",
			Name:   "Azure Blob Storage",
			Options: []models.OptionDefinition{
				{Name: "account", Type: "string"},
				{Name: "key", Type: "string", IsPassword: true},
			},
		},
	}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	hide, show := true, false
	c, err := NewCatalog(testSchemas(),
		WithShortlist(Shortlist{
			Schemas: []string{"s3", "azureblob", "webdav"},
			Providers: map[string]ProviderShortlist{
				"s3": {Allow: []string{"AWS", "Ceph", "Other"}, Deny: []string{"Liara"}},
			},
		}),
		WithOverrides(Overrides{
			"s3": {Options: map[string]OptionOverride{
				"env_auth":      {Hide: &hide},
				"internal_flag": {Hide: &show},
			}},
		}),
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func optionNames(opts []NormalizedOption) []string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		names = append(names, o.Name)
	}
	return names
}

func TestNewCatalogRejectsDuplicatePrefix(t *testing.T) {
	schemas := []models.StorageSchema{{Prefix: "s3"}, {Prefix: "s3"}}
	if _, err := NewCatalog(schemas); err == nil {
		t.Fatal("expected duplicate prefix error")
	}
}

func TestOptionsUnknownSchema(t *testing.T) {
	c := testCatalog(t)
	if got := c.Options(true, "nope", ""); got != nil {
		t.Errorf("Options(unknown) = %v, want nil", got)
	}
	if got := c.Options(false, "", ""); got != nil {
		t.Errorf("Options(\"\") = %v, want nil", got)
	}
}

func TestOptionsS3Scenario(t *testing.T) {
	c := testCatalog(t)
	opts := c.Options(true, "s3", "AWS")

	var secret *NormalizedOption
	for i := range opts {
		if opts[i].Name == "provider" {
			t.Fatal("provider option must never be returned")
		}
		if opts[i].Name == "secret_access_key" {
			secret = &opts[i]
		}
	}
	if secret == nil {
		t.Fatalf("secret_access_key missing from %v", optionNames(opts))
	}
	if secret.ConvertedType() != KindSecret {
		t.Errorf("secret_access_key type = %s, want secret", secret.ConvertedType())
	}
}

func TestOptionsFiltering(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name      string
		shortList bool
		provider  string
		want      []string
	}{
		{
			name:      "no provider keeps generic and negated options",
			shortList: true,
			provider:  "",
			want:      []string{"access_key_id", "secret_access_key", "endpoint", "internal_flag"},
		},
		{
			name:      "AWS drops negated option and keeps AWS-only option",
			shortList: true,
			provider:  "AWS",
			want:      []string{"access_key_id", "secret_access_key", "region", "internal_flag"},
		},
		{
			name:      "Ceph keeps negated option",
			shortList: true,
			provider:  "Ceph",
			want:      []string{"access_key_id", "secret_access_key", "endpoint", "internal_flag"},
		},
		{
			name:      "advanced options shown when not short-listing",
			shortList: false,
			provider:  "AWS",
			want:      []string{"access_key_id", "secret_access_key", "region", "upload_cutoff", "internal_flag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := optionNames(c.Options(tt.shortList, "s3", tt.provider))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Options() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptionsNeverReturnHidden(t *testing.T) {
	c := testCatalog(t)
	for _, shortList := range []bool{true, false} {
		for _, provider := range []string{"", "AWS", "Ceph", "Other"} {
			for _, o := range c.Options(shortList, "s3", provider) {
				if o.Name == "env_auth" {
					t.Errorf("hidden option env_auth returned (shortList=%v provider=%q)", shortList, provider)
				}
			}
		}
	}
}

func TestOptionsFilteredExamples(t *testing.T) {
	c := testCatalog(t)
	for _, o := range c.Options(true, "s3", "AWS") {
		if o.Name != "region" {
			continue
		}
		var got []string
		for _, ex := range o.FilteredExamples {
			got = append(got, ex.Value)
		}
		want := []string{"us-east-1", "eu-central-1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("region examples = %v, want %v", got, want)
		}
		return
	}
	t.Fatal("region option missing")
}

func TestOptionsConvertedDefault(t *testing.T) {
	c := testCatalog(t)
	for _, o := range c.Options(false, "s3", "AWS") {
		if o.Name != "upload_cutoff" {
			continue
		}
		if o.ConvertedType() != KindNumber {
			t.Errorf("upload_cutoff type = %s, want number", o.ConvertedType())
		}
		v, ok := o.ConvertedDefault()
		if !ok || v != NumberValue(200) {
			t.Errorf("upload_cutoff default = %v, %v", v, ok)
		}
		return
	}
	t.Fatal("upload_cutoff option missing")
}

func TestOptionsIdempotent(t *testing.T) {
	c := testCatalog(t)
	a := c.Options(false, "s3", "AWS")
	b := c.Options(false, "s3", "AWS")
	if !reflect.DeepEqual(a, b) {
		t.Error("Options() is not idempotent")
	}
	p1 := c.Providers(true, "s3", "")
	p2 := c.Providers(true, "s3", "")
	if !reflect.DeepEqual(p1, p2) {
		t.Error("Providers() is not idempotent")
	}
}

func providerNames(defs []models.ProviderDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}

func TestProviders(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name      string
		shortList bool
		schema    string
		current   string
		want      []string
	}{
		{"shortlist sorted by allow order", true, "s3", "", []string{"AWS", "Ceph", "Other"}},
		{"current provider always kept", true, "s3", "Liara", []string{"AWS", "Ceph", "Other", "Liara"}},
		{"show all, undefined position last", false, "s3", "", []string{"AWS", "Ceph", "Other", "Liara"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := providerNames(c.Providers(tt.shortList, tt.schema, tt.current))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Providers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProvidersUndefined(t *testing.T) {
	c := testCatalog(t)
	if got := c.Providers(true, "", ""); got != nil {
		t.Errorf("Providers(\"\") = %v, want nil", got)
	}
	if got := c.Providers(true, "webdav", ""); got != nil {
		t.Errorf("Providers(webdav) = %v, want nil", got)
	}
	if got := c.Providers(true, "missing", ""); got != nil {
		t.Errorf("Providers(missing) = %v, want nil", got)
	}
}

func TestHasProviderShortlist(t *testing.T) {
	c := testCatalog(t)
	if c.HasProviderShortlist("") {
		t.Error("HasProviderShortlist(\"\") should be false")
	}
	if !c.HasProviderShortlist("s3") {
		t.Error("HasProviderShortlist(s3) should be true")
	}
	if c.HasProviderShortlist("webdav") {
		t.Error("HasProviderShortlist(webdav) should be false")
	}
}

func TestDefaultShortlistOnlyProviderSchemas(t *testing.T) {
	// rclone names provider variants only through the "provider" option,
	// which s3 has and webdav (vendor) does not
	sl := DefaultShortlist()
	for id := range sl.Providers {
		if id != "s3" {
			t.Errorf("provider shortlist for %q, which has no provider option", id)
		}
	}
}

func TestSchemas(t *testing.T) {
	c := testCatalog(t)

	var got []string
	for _, s := range c.Schemas(false) {
		got = append(got, s.Prefix)
	}
	// webdav carries its own position (5), the rest take their shortlist index.
	want := []string{"s3", "azureblob", "webdav"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Schemas(false) = %v, want %v", got, want)
	}

	got = got[:0]
	for _, s := range c.Schemas(true) {
		got = append(got, s.Prefix)
	}
	want = []string{"s3", "azureblob", "webdav", "b2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Schemas(true) = %v, want %v", got, want)
	}
}

func TestIsSensitive(t *testing.T) {
	c := testCatalog(t)
	if !c.IsSensitive("s3", "secret_access_key") {
		t.Error("secret_access_key should be sensitive")
	}
	if !c.IsSensitive("webdav", "pass") {
		t.Error("webdav pass should be sensitive")
	}
	if c.IsSensitive("s3", "access_key_id") {
		t.Error("access_key_id should not be sensitive")
	}
}

func TestCatalogIsolatedFromInput(t *testing.T) {
	schemas := testSchemas()
	c, err := NewCatalog(schemas)
	if err != nil {
		t.Fatal(err)
	}
	schemas[1].Options[0].Name = "changed"
	s, _ := c.Schema("webdav")
	if s.Options[0].Name != "url" {
		t.Errorf("catalog changed with its input: %q", s.Options[0].Name)
	}
}
