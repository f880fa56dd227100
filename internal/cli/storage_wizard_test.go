package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/datalab/connectctl/internal/api"
	"github.com/datalab/connectctl/internal/config"
	"github.com/datalab/connectctl/internal/constants"
	"github.com/datalab/connectctl/internal/logging"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/session"
)

// fakeDataAPI records the requests a wizard run makes.
type fakeDataAPI struct {
	mu         sync.Mutex
	testStatus int
	tests      []models.TestConnectionRequest
	created    []models.StoragePayload
	secrets    [][]models.SecretValue
}

func (f *fakeDataAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/data/storage_schema", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.StorageSchema{{
			Prefix: "s3",
			Name:   "Amazon S3 Compliant Storage",
			Options: []models.OptionDefinition{
				{Name: "provider", Type: "string", Examples: []models.OptionExample{{Value: "AWS"}, {Value: "Minio"}}},
				{Name: "access_key_id", Type: "string"},
				{Name: "secret_access_key", Type: "string", Sensitive: true},
				{Name: "region", Type: "string"},
			},
		}})
	})
	mux.HandleFunc("POST /api/data/storage_schema/test_connection", func(w http.ResponseWriter, r *http.Request) {
		var req models.TestConnectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode test request: %v", err)
		}
		f.mu.Lock()
		f.tests = append(f.tests, req)
		status := f.testStatus
		f.mu.Unlock()
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"message":"access denied"}`))
		}
	})
	mux.HandleFunc("POST /api/data/storage", func(w http.ResponseWriter, r *http.Request) {
		var p models.StoragePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode storage payload: %v", err)
		}
		f.mu.Lock()
		f.created = append(f.created, p)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Storage{StorageID: "st-1", Name: p.Name, ProjectID: p.ProjectID, Configuration: p.Configuration})
	})
	mux.HandleFunc("POST /api/data/storage/{id}/secrets", func(w http.ResponseWriter, r *http.Request) {
		var s []models.SecretValue
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			t.Errorf("decode secrets: %v", err)
		}
		f.mu.Lock()
		f.secrets = append(f.secrets, s)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func openTestSession(t *testing.T, fake *fakeDataAPI) *session.Session {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.APIKey = "test-key"
	cfg.APIBaseURL = srv.URL
	client, err := api.NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := session.Open(context.Background(), client)
	if err != nil {
		t.Fatal(err)
	}
	sess.StartAdd("proj-1")
	return sess
}

func TestWizardNonInteractiveAdd(t *testing.T) {
	fake := &fakeDataAPI{testStatus: http.StatusOK}
	sess := openTestSession(t, fake)

	source, save := "bucket/data", true
	flags := wizardFlags{
		schemaID:       "s3",
		provider:       "AWS",
		options:        []string{"access_key_id=AKIA", "secret_access_key=s3cr3t"},
		name:           "data",
		target:         "data",
		source:         &source,
		saveCreds:      &save,
		nonInteractive: true,
	}
	var out bytes.Buffer
	r := newWizardRunner(sess, strings.NewReader(""), &out, flags, logging.NewNopLogger())

	outcome, err := r.run(context.Background())
	if err != nil {
		t.Fatalf("run() = %v\n%s", err, out.String())
	}
	if !outcome.Created {
		t.Error("expected a created storage")
	}

	if len(fake.tests) != 1 || fake.tests[0].Configuration["secret_access_key"] != "s3cr3t" || fake.tests[0].SourcePath != "bucket/data" {
		t.Errorf("test requests = %+v", fake.tests)
	}
	if len(fake.created) != 1 {
		t.Fatalf("created = %d storages", len(fake.created))
	}
	p := fake.created[0]
	if p.ProjectID != "proj-1" || p.Name != "data" || p.Configuration["secret_access_key"] != constants.SensitiveSentinel {
		t.Errorf("payload = %+v", p)
	}
	if len(fake.secrets) != 1 || fake.secrets[0][0].Value != "s3cr3t" {
		t.Errorf("secrets = %+v", fake.secrets)
	}
	if !strings.Contains(out.String(), "Credentials stored") {
		t.Errorf("output:\n%s", out.String())
	}
	if !sess.Closed() {
		t.Error("session should be closed after the run")
	}
}

func TestWizardNonInteractiveFailedTest(t *testing.T) {
	fake := &fakeDataAPI{testStatus: http.StatusForbidden}
	sess := openTestSession(t, fake)

	flags := wizardFlags{schemaID: "s3", provider: "AWS", name: "data", target: "data", nonInteractive: true}
	var out bytes.Buffer
	r := newWizardRunner(sess, strings.NewReader(""), &out, flags, logging.NewNopLogger())

	if _, err := r.run(context.Background()); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("run() = %v", err)
	}
	if len(fake.created) != 0 {
		t.Error("nothing should be saved after a failed test")
	}
}

func TestWizardInteractiveSkipTest(t *testing.T) {
	fake := &fakeDataAPI{testStatus: http.StatusBadRequest}
	sess := openTestSession(t, fake)

	answers := strings.Join([]string{
		"1",      // storage type
		"1",      // provider
		"AKIA",   // access_key_id
		"s3cr3t", // secret_access_key
		"",       // region
		"bucket", // source path
		"2",      // skip the failed test
		"data",   // name
		"",       // mount point, defaults to the name
		"n",      // read-only
	}, "\n") + "\n"

	var out bytes.Buffer
	r := newWizardRunner(sess, strings.NewReader(answers), &out, wizardFlags{}, logging.NewNopLogger())

	if _, err := r.run(context.Background()); err != nil {
		t.Fatalf("run() = %v\n%s", err, out.String())
	}
	if len(fake.tests) != 1 || fake.tests[0].SourcePath != "bucket" {
		t.Errorf("test requests = %+v", fake.tests)
	}
	if len(fake.created) != 1 {
		t.Fatalf("created = %d", len(fake.created))
	}
	p := fake.created[0]
	if p.TargetPath != "data" || p.SourcePath != "bucket" || p.Readonly {
		t.Errorf("payload = %+v", p)
	}
	if len(fake.secrets) != 0 {
		t.Error("credentials must not be stored without a passing test")
	}
}

func TestWizardInteractiveStoresCredentials(t *testing.T) {
	fake := &fakeDataAPI{testStatus: http.StatusOK}
	sess := openTestSession(t, fake)

	answers := strings.Join([]string{
		"1",        // storage type
		"1",        // provider
		"AKIA",     // access_key_id
		"s3cr3t",   // secret_access_key
		"",         // region
		"bucket/x", // source path
		"data",     // name
		"",         // mount point
		"n",        // read-only
		"y",        // store credentials
	}, "\n") + "\n"

	var out bytes.Buffer
	r := newWizardRunner(sess, strings.NewReader(answers), &out, wizardFlags{}, logging.NewNopLogger())

	if _, err := r.run(context.Background()); err != nil {
		t.Fatalf("run() = %v\n%s", err, out.String())
	}
	if len(fake.tests) != 1 || fake.tests[0].SourcePath != "bucket/x" {
		t.Errorf("test requests = %+v", fake.tests)
	}
	if len(fake.created) != 1 || fake.created[0].SourcePath != "bucket/x" {
		t.Fatalf("created = %+v", fake.created)
	}
	if len(fake.secrets) != 1 || len(fake.secrets[0]) != 1 || fake.secrets[0][0].Value != "s3cr3t" {
		t.Errorf("secrets = %+v", fake.secrets)
	}
	if strings.Contains(out.String(), "will not be stored") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestWizardLogsSessionEvents(t *testing.T) {
	logging.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { logging.SetGlobalLevel(zerolog.InfoLevel) })

	fake := &fakeDataAPI{testStatus: http.StatusOK}
	sess := openTestSession(t, fake)

	flags := wizardFlags{
		schemaID:       "s3",
		provider:       "AWS",
		options:        []string{"access_key_id=AKIA"},
		name:           "data",
		target:         "data",
		nonInteractive: true,
	}
	var logs bytes.Buffer
	r := newWizardRunner(sess, strings.NewReader(""), &bytes.Buffer{}, flags, logging.NewLogger(&logs))
	if _, err := r.run(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"Wizard step changed", "Connection test", "Storage commit", "Wizard session closed"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("debug log missing %q:\n%s", want, logs.String())
		}
	}
}

func TestWizardCancel(t *testing.T) {
	sess := openTestSession(t, &fakeDataAPI{testStatus: http.StatusOK})

	var out bytes.Buffer
	r := newWizardRunner(sess, strings.NewReader("q\n"), &out, wizardFlags{}, logging.NewNopLogger())

	if _, err := r.run(context.Background()); err != errAborted {
		t.Errorf("run() = %v, want errAborted", err)
	}
	if !strings.Contains(out.String(), "nothing was saved") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestPrompterChoose(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("9\nx\n2\n"), &out)
	idx, action, err := p.choose("Pick", []string{"a", "b"}, nil)
	if err != nil || idx != 1 || action != "" {
		t.Errorf("choose() = %d, %q, %v", idx, action, err)
	}
	if strings.Count(out.String(), "Invalid choice") != 2 {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestPrompterAskDefault(t *testing.T) {
	p := newPrompter(strings.NewReader("\nvalue\n"), &bytes.Buffer{})
	if v, _ := p.ask("Name", "def"); v != "def" {
		t.Errorf("ask() = %q, want default", v)
	}
	if v, _ := p.ask("Name", "def"); v != "value" {
		t.Errorf("ask() = %q", v)
	}
	if _, err := p.ask("Name", ""); err == nil {
		t.Error("expected EOF error")
	}
}

func TestPrompterChooseActionsSorted(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("m\n"), &out)
	_, action, err := p.choose("Pick", []string{"a"}, map[string]string{"q": "Cancel", "m": "More", "b": "Back"})
	if err != nil || action != "m" {
		t.Fatalf("choose() = %q, %v", action, err)
	}
	s := out.String()
	b, m, q := strings.Index(s, "b. Back"), strings.Index(s, "m. More"), strings.Index(s, "q. Cancel")
	if b < 0 || !(b < m && m < q) {
		t.Errorf("actions not listed in order:\n%s", s)
	}

	if _, _, err := newPrompter(strings.NewReader("1\n"), &out).choose("Provider", nil, nil); err == nil {
		t.Error("choose() with nothing to pick should fail")
	}
}
