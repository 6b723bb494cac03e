package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/snippetx/backend/internal/mirror"
	"github.com/snippetx/backend/internal/snippets"
)

type sequentialIDs struct {
	next int
}

func (p *sequentialIDs) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%04d", p.next), nil
}

type emptySuggester struct{}

func (emptySuggester) Suggest(content, title string) ([]string, string) { return nil, "" }

// fakeMirror records puts and serves canned files.
type fakeMirror struct {
	files       map[string][]byte // name -> content, download ref is "ref:"+name
	failingRefs map[string]bool
	putPaths    []string
	putPayloads [][]byte
	listErr     error
	putErr      error
	login       string
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		files:       make(map[string][]byte),
		failingRefs: make(map[string]bool),
		login:       "octo",
	}
}

func (m *fakeMirror) ListFiles(ctx context.Context, pathPrefix string) ([]mirror.File, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var files []mirror.File
	for name := range m.files {
		files = append(files, mirror.File{Name: name, DownloadRef: "ref:" + name})
	}
	return files, nil
}

func (m *fakeMirror) GetContent(ctx context.Context, downloadRef string) ([]byte, error) {
	name := strings.TrimPrefix(downloadRef, "ref:")
	if m.failingRefs[name] {
		return nil, fmt.Errorf("%w: download refused", mirror.ErrCollaborator)
	}
	content, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: no such file", mirror.ErrCollaborator)
	}
	return content, nil
}

func (m *fakeMirror) PutContent(ctx context.Context, path string, content []byte, message string) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	m.putPaths = append(m.putPaths, path)
	m.putPayloads = append(m.putPayloads, content)
	return "sha-1", nil
}

func (m *fakeMirror) TestConnection(ctx context.Context) (string, error) {
	return m.login, nil
}

func newTestReconciler(t *testing.T, remote mirror.Client) (*Reconciler, *snippets.Store) {
	t.Helper()
	store := snippets.NewStore(snippets.StoreConfig{
		Clock:      func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		IDProvider: &sequentialIDs{},
		Suggester:  emptySuggester{},
	})
	reconciler, err := NewReconciler(ReconcilerConfig{
		Store:      store,
		Mirror:     remote,
		Repository: "octo/snippets-backup",
		Clock:      func() time.Time { return time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return reconciler, store
}

func TestImportBulkNormalizesDefaults(t *testing.T) {
	reconciler, store := newTestReconciler(t, nil)

	result := reconciler.ImportBulk([]ExternalRecord{{
		Content:  "  console.log('hi')  ",
		Language: "JavaScript",
		Title:    "  log  ",
		UseCount: -3,
	}})

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %#v", result.Errors)
	}
	if len(result.Saved) != 1 {
		t.Fatalf("expected one saved record, got %d", len(result.Saved))
	}

	saved := result.Saved[0]
	if saved.Content != "console.log('hi')" || saved.Language != "javascript" || saved.Title != "log" {
		t.Fatalf("fields not normalized: %#v", saved)
	}
	if saved.Tags == nil || len(saved.Tags) != 0 {
		t.Fatalf("expected empty tag slice, got %#v", saved.Tags)
	}
	if saved.UseCount != 0 {
		t.Fatalf("negative use count must default to 0, got %d", saved.UseCount)
	}
	if saved.QualityScore != 3.0 {
		t.Fatalf("expected computed quality score 3.0, got %v", saved.QualityScore)
	}
	if !saved.CreatedAt.Equal(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("missing creation time must default to now, got %v", saved.CreatedAt)
	}
	if store.Len() != 1 {
		t.Fatalf("expected record stored")
	}
}

func TestImportBulkKeepsSuppliedScoreAndTimeClamped(t *testing.T) {
	reconciler, _ := newTestReconciler(t, nil)

	score := 42.0
	result := reconciler.ImportBulk([]ExternalRecord{{
		Content:      "SELECT 1;",
		Language:     "sql",
		Title:        "ping",
		QualityScore: &score,
		CreatedAt:    "2024-11-05T10:30:00Z",
	}})

	saved := result.Saved[0]
	if saved.QualityScore != 10.0 {
		t.Fatalf("supplied score must be clamped to 10, got %v", saved.QualityScore)
	}
	if !saved.CreatedAt.Equal(time.Date(2024, 11, 5, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("parseable creation time must be kept, got %v", saved.CreatedAt)
	}
}

func TestImportBulkToleratesInvalidRecords(t *testing.T) {
	reconciler, store := newTestReconciler(t, nil)

	records := []ExternalRecord{
		{Content: "fmt.Println(1)", Language: "go", Title: "one"},
		{Language: "go", Title: "no content"},
		{Content: "fmt.Println(2)", Language: "go", Title: "two"},
		{Content: "fmt.Println(3)", Language: "go"},
	}

	result := reconciler.ImportBulk(records)
	if len(result.Saved) != 2 {
		t.Fatalf("expected 2 saved, got %d", len(result.Saved))
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(result.Errors))
	}
	if store.Len() != 2 {
		t.Fatalf("invalid records must not reach the store, have %d", store.Len())
	}
}

func TestImportBulkLastWriterWinsByID(t *testing.T) {
	reconciler, store := newTestReconciler(t, nil)

	first := reconciler.ImportBulk([]ExternalRecord{{
		ID: "fixed-id", Content: "v1", Language: "go", Title: "first", IsFavorited: true,
	}})
	if len(first.Errors) != 0 {
		t.Fatalf("unexpected errors: %#v", first.Errors)
	}

	second := reconciler.ImportBulk([]ExternalRecord{{
		ID: "fixed-id", Content: "v2 content", Language: "go", Title: "second",
	}})
	if len(second.Errors) != 0 {
		t.Fatalf("unexpected errors: %#v", second.Errors)
	}

	if store.Len() != 1 {
		t.Fatalf("expected one record after re-import, have %d", store.Len())
	}
	stored, err := store.Get("fixed-id")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if stored.Title != "second" || stored.IsFavorited {
		t.Fatalf("expected wholesale replacement, got %#v", stored)
	}
}

func TestExportAllRoundTripsThroughImport(t *testing.T) {
	reconciler, store := newTestReconciler(t, nil)
	reconciler.ImportBulk([]ExternalRecord{
		{ID: "a", Content: "fmt.Println(1)", Language: "go", Title: "one", Tags: []string{"x"}},
		{ID: "b", Content: "fmt.Println(2)", Language: "go", Title: "two"},
	})

	payload, count, err := reconciler.ExportAll()
	if err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 exported records, got %d", count)
	}
	if store.Len() != 2 {
		t.Fatalf("export must not mutate the store")
	}

	var records []ExternalRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		t.Fatalf("export payload must parse as import input: %v", err)
	}

	result := reconciler.ImportBulk(records)
	if len(result.Errors) != 0 {
		t.Fatalf("round trip produced errors: %#v", result.Errors)
	}
	if store.Len() != 2 {
		t.Fatalf("round trip must overwrite in place, have %d records", store.Len())
	}
}

func TestPushMirrorWritesCollectionFile(t *testing.T) {
	remote := newFakeMirror()
	reconciler, _ := newTestReconciler(t, remote)
	reconciler.ImportBulk([]ExternalRecord{{Content: "fmt.Println(1)", Language: "go", Title: "one"}})

	report, err := reconciler.PushMirror(context.Background())
	if err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	if report.Count != 1 || report.Ref != "sha-1" {
		t.Fatalf("unexpected report %#v", report)
	}
	if len(remote.putPaths) != 1 {
		t.Fatalf("expected one upload, got %d", len(remote.putPaths))
	}
	if !strings.HasPrefix(remote.putPaths[0], "snippets/snippets-collection-") ||
		!strings.HasSuffix(remote.putPaths[0], ".json") {
		t.Fatalf("unexpected upload path %q", remote.putPaths[0])
	}

	status := reconciler.Status()
	if status.LastPush == nil {
		t.Fatalf("expected push timestamp in status")
	}
}

func TestPushMirrorFailureLeavesLocalStateAlone(t *testing.T) {
	remote := newFakeMirror()
	remote.putErr = fmt.Errorf("%w: upstream down", mirror.ErrCollaborator)
	reconciler, store := newTestReconciler(t, remote)
	reconciler.ImportBulk([]ExternalRecord{{Content: "fmt.Println(1)", Language: "go", Title: "one"}})

	if _, err := reconciler.PushMirror(context.Background()); !errors.Is(err, mirror.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("local store must be untouched on mirror failure")
	}
	if status := reconciler.Status(); status.LastPush != nil {
		t.Fatalf("failed push must not record a timestamp")
	}
}

func TestPullMirrorSkipsBrokenFiles(t *testing.T) {
	remote := newFakeMirror()
	remote.files["snippets-collection-1.json"] = []byte(`[
		{"id":"a","content":"fmt.Println(1)","language":"go","title":"one"},
		{"id":"b","content":"fmt.Println(2)","language":"go","title":"two"}
	]`)
	remote.files["snippets-collection-2.json"] = []byte(`{"id":"c","content":"fmt.Println(3)","language":"go","title":"three"}`)
	remote.files["snippets-collection-3.json"] = []byte(`not json at all`)
	remote.files["unreachable.json"] = []byte(`[]`)
	remote.failingRefs["unreachable.json"] = true
	remote.files["README.md"] = []byte(`ignored`)

	reconciler, store := newTestReconciler(t, remote)

	result, err := reconciler.PullMirror(context.Background())
	if err != nil {
		t.Fatalf("unexpected pull error: %v", err)
	}
	if len(result.Saved) != 3 {
		t.Fatalf("expected 3 imported records, got %d", len(result.Saved))
	}
	if store.Len() != 3 {
		t.Fatalf("expected 3 stored records, got %d", store.Len())
	}
	if status := reconciler.Status(); status.LastPull == nil {
		t.Fatalf("expected pull timestamp in status")
	}
}

func TestPullMirrorListFailureIsRecoverable(t *testing.T) {
	remote := newFakeMirror()
	remote.listErr = fmt.Errorf("%w: listing refused", mirror.ErrCollaborator)
	reconciler, store := newTestReconciler(t, remote)

	if _, err := reconciler.PullMirror(context.Background()); !errors.Is(err, mirror.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failed pull must not touch the store")
	}
}

func TestMirrorOperationsRequireConfiguredMirror(t *testing.T) {
	reconciler, _ := newTestReconciler(t, nil)

	if _, err := reconciler.PushMirror(context.Background()); !errors.Is(err, ErrMirrorNotConfigured) {
		t.Fatalf("expected not-configured error, got %v", err)
	}
	if _, err := reconciler.PullMirror(context.Background()); !errors.Is(err, ErrMirrorNotConfigured) {
		t.Fatalf("expected not-configured error, got %v", err)
	}
	if _, err := reconciler.TestMirror(context.Background()); !errors.Is(err, ErrMirrorNotConfigured) {
		t.Fatalf("expected not-configured error, got %v", err)
	}

	status := reconciler.Status()
	if status.SyncActive {
		t.Fatalf("status must report sync inactive without a mirror")
	}
}

func TestTestMirrorReportsLogin(t *testing.T) {
	reconciler, _ := newTestReconciler(t, newFakeMirror())

	login, err := reconciler.TestMirror(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if login != "octo" {
		t.Fatalf("expected login octo, got %q", login)
	}
}
