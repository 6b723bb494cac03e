package mirror

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// handlerSwitch lets each test install its routes after the server URL is
// known, since download refs embed the server address.
type handlerSwitch struct {
	current http.Handler
}

func (s *handlerSwitch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.current == nil {
		http.NotFound(w, r)
		return
	}
	s.current.ServeHTTP(w, r)
}

func newTestClient(t *testing.T) (*GitHubClient, *httptest.Server, *handlerSwitch) {
	t.Helper()
	routes := &handlerSwitch{}
	server := httptest.NewServer(routes)
	t.Cleanup(server.Close)

	client, err := NewGitHubClient(GitHubClientConfig{
		Token:      "test-token",
		Repository: "octo/snippets-backup",
		Branch:     "main",
		BaseURL:    server.URL,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return client, server, routes
}

func TestNewGitHubClientValidatesConfig(t *testing.T) {
	if _, err := NewGitHubClient(GitHubClientConfig{Repository: "octo/repo"}); err == nil {
		t.Fatalf("expected error for missing token")
	}
	if _, err := NewGitHubClient(GitHubClientConfig{Token: "t", Repository: "not-a-repo"}); err == nil {
		t.Fatalf("expected error for malformed repository")
	}
}

func TestListFilesReturnsFileEntriesOnly(t *testing.T) {
	client, server, routes := newTestClient(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/snippets-backup/contents/snippets", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token test-token" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if got := r.URL.Query().Get("ref"); got != "main" {
			t.Fatalf("unexpected ref %q", got)
		}
		payload := []map[string]string{
			{"name": "snippets-collection-1.json", "type": "file", "download_url": server.URL + "/download/1"},
			{"name": "archive", "type": "dir", "download_url": ""},
			{"name": "snippets-collection-2.json", "type": "file", "download_url": server.URL + "/download/2"},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encoding listing: %v", err)
		}
	})
	routes.current = mux

	files, err := client.ListFiles(context.Background(), "snippets")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected directories filtered out, got %#v", files)
	}
	if files[0].Name != "snippets-collection-1.json" || files[0].DownloadRef == "" {
		t.Fatalf("unexpected file entry %#v", files[0])
	}
}

func TestListFilesTreatsMissingDirectoryAsEmpty(t *testing.T) {
	client, _, routes := newTestClient(t)
	routes.current = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	files, err := client.ListFiles(context.Background(), "snippets")
	if err != nil {
		t.Fatalf("a missing directory must not be an error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected empty listing, got %#v", files)
	}
}

func TestGetContentDownloadsRawBytes(t *testing.T) {
	client, server, routes := newTestClient(t)
	routes.current = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"title":"hello"}]`)) //nolint:errcheck
	})

	content, err := client.GetContent(context.Background(), server.URL+"/download/1")
	if err != nil {
		t.Fatalf("unexpected download error: %v", err)
	}
	if string(content) != `[{"title":"hello"}]` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestPutContentUploadsBase64OnBranch(t *testing.T) {
	client, _, routes := newTestClient(t)
	routes.current = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/repos/octo/snippets-backup/contents/snippets/collection.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}

		var request struct {
			Message string `json:"message"`
			Content string `json:"content"`
			Branch  string `json:"branch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Fatalf("decoding upload: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(request.Content)
		if err != nil {
			t.Fatalf("content is not base64: %v", err)
		}
		if string(decoded) != `{"records":[]}` {
			t.Fatalf("unexpected decoded content %q", decoded)
		}
		if request.Branch != "main" || request.Message == "" {
			t.Fatalf("unexpected upload metadata %#v", request)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"content":{"sha":"abc123"}}`)) //nolint:errcheck
	})

	ref, err := client.PutContent(context.Background(), "snippets/collection.json", []byte(`{"records":[]}`), "backup")
	if err != nil {
		t.Fatalf("unexpected upload error: %v", err)
	}
	if ref != "abc123" {
		t.Fatalf("expected returned ref, got %q", ref)
	}
}

func TestFailuresWrapCollaboratorError(t *testing.T) {
	client, _, routes := newTestClient(t)
	routes.current = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Bad credentials"}`)) //nolint:errcheck
	})

	if _, err := client.ListFiles(context.Background(), "snippets"); !errors.Is(err, ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if _, err := client.PutContent(context.Background(), "p.json", nil, "m"); !errors.Is(err, ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if _, err := client.TestConnection(context.Background()); !errors.Is(err, ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestTestConnectionReturnsLogin(t *testing.T) {
	client, _, routes := newTestClient(t)
	routes.current = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"login":"octo"}`)) //nolint:errcheck
	})

	login, err := client.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if login != "octo" {
		t.Fatalf("expected login octo, got %q", login)
	}
}
