// Package mirror talks to the remote snippet mirror. The core only depends
// on the narrow list/get/put contract; the one production implementation
// speaks the GitHub contents API.
package mirror

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrCollaborator marks any failure of the remote mirror. Callers treat these
// as recoverable: local state is never affected.
var ErrCollaborator = errors.New("mirror: collaborator request failed")

var (
	errMissingToken      = errors.New("mirror token is required")
	errInvalidRepository = errors.New("repository must use the owner/repo format")
)

// File describes one remote entry returned by ListFiles.
type File struct {
	Name        string
	DownloadRef string
}

// Client is the outbound contract against the remote mirror.
type Client interface {
	ListFiles(ctx context.Context, pathPrefix string) ([]File, error)
	GetContent(ctx context.Context, downloadRef string) ([]byte, error)
	PutContent(ctx context.Context, path string, content []byte, message string) (string, error)
}

const (
	defaultBaseURL        = "https://api.github.com"
	defaultRequestTimeout = 30 * time.Second
	acceptHeader          = "application/vnd.github.v3+json"
)

// GitHubClientConfig configures the GitHub-backed mirror client.
type GitHubClientConfig struct {
	Token      string
	Repository string // owner/repo
	Branch     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GitHubClient stores snippet collections as files in a repository via the
// contents API.
type GitHubClient struct {
	token      string
	repository string
	branch     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGitHubClient validates configuration and constructs a client.
func NewGitHubClient(cfg GitHubClientConfig) (*GitHubClient, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errMissingToken
	}
	repository := strings.TrimSpace(cfg.Repository)
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, errInvalidRepository
	}

	branch := strings.TrimSpace(cfg.Branch)
	if branch == "" {
		branch = "main"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GitHubClient{
		token:      token,
		repository: repository,
		branch:     branch,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type contentsEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// ListFiles returns the files under pathPrefix on the configured branch. A
// missing directory is an empty listing, not an error.
func (c *GitHubClient) ListFiles(ctx context.Context, pathPrefix string) ([]File, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s",
		c.baseURL, c.repository, strings.Trim(pathPrefix, "/"), url.QueryEscape(c.branch))

	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, c.statusError("list", status, body)
	}

	var entries []contentsEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding listing: %v", ErrCollaborator, err)
	}

	files := make([]File, 0, len(entries))
	for _, candidate := range entries {
		if candidate.Type != "file" {
			continue
		}
		files = append(files, File{Name: candidate.Name, DownloadRef: candidate.DownloadURL})
	}
	return files, nil
}

// GetContent downloads the raw bytes behind a DownloadRef.
func (c *GitHubClient) GetContent(ctx context.Context, downloadRef string) ([]byte, error) {
	body, status, err := c.do(ctx, http.MethodGet, downloadRef, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.statusError("download", status, body)
	}
	return body, nil
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// PutContent creates or updates a file on the configured branch and returns
// the resulting content ref.
func (c *GitHubClient) PutContent(ctx context.Context, path string, content []byte, message string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, c.repository, strings.Trim(path, "/"))

	payload, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.branch,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding upload: %v", ErrCollaborator, err)
	}

	body, status, err := c.do(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", c.statusError("upload", status, body)
	}

	var response putResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%w: decoding upload response: %v", ErrCollaborator, err)
	}

	c.logger.Info("mirror file written",
		zap.String("path", path),
		zap.String("ref", response.Content.SHA),
	)
	return response.Content.SHA, nil
}

type userResponse struct {
	Login string `json:"login"`
}

// TestConnection verifies the token by fetching the authenticated user.
func (c *GitHubClient) TestConnection(ctx context.Context) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", c.statusError("connection test", status, body)
	}

	var response userResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%w: decoding user response: %v", ErrCollaborator, err)
	}
	return response.Login, nil
}

func (c *GitHubClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: building request: %v", ErrCollaborator, err)
	}
	request.Header.Set("Authorization", "token "+c.token)
	request.Header.Set("Accept", acceptHeader)
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCollaborator, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response: %v", ErrCollaborator, err)
	}
	return body, response.StatusCode, nil
}

type apiMessage struct {
	Message string `json:"message"`
}

func (c *GitHubClient) statusError(operation string, status int, body []byte) error {
	var detail apiMessage
	_ = json.Unmarshal(body, &detail)
	if detail.Message != "" {
		return fmt.Errorf("%w: %s returned %d: %s", ErrCollaborator, operation, status, detail.Message)
	}
	return fmt.Errorf("%w: %s returned %d", ErrCollaborator, operation, status)
}
