// Package syncer reconciles bulk snippet collections between the local store
// and the remote mirror. Conflicts resolve last-writer-wins by identifier;
// per-record failures never abort a batch.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snippetx/backend/internal/mirror"
	"github.com/snippetx/backend/internal/snippets"
)

// ErrMirrorNotConfigured is returned by mirror-facing operations when no
// remote mirror was wired at startup.
var ErrMirrorNotConfigured = errors.New("syncer: mirror not configured")

var errMissingStore = errors.New("syncer: snippet store is required")

// ExternalRecord is a raw snippet-like object arriving from a bulk import or
// a mirror download. Every field is optional at the wire level; Normalize
// fills defaults and the store validates what must be present.
type ExternalRecord struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Language     string   `json:"language"`
	Title        string   `json:"title"`
	Tags         []string `json:"tags"`
	Description  string   `json:"description"`
	UseCount     int64    `json:"useCount"`
	QualityScore *float64 `json:"qualityScore"`
	IsFavorited  bool     `json:"isFavorited"`
	CreatedAt    string   `json:"createdAt"`
}

// ImportResult reports a bulk import: successfully stored records alongside
// the per-record failures.
type ImportResult struct {
	Saved  []snippets.Snippet   `json:"saved"`
	Errors []snippets.BulkError `json:"errors"`
}

// PushReport describes a completed export to the mirror.
type PushReport struct {
	Path  string `json:"path"`
	Ref   string `json:"ref"`
	Count int    `json:"count"`
}

// StatusReport summarizes mirror connectivity for the status endpoint.
type StatusReport struct {
	Repository string     `json:"repository,omitempty"`
	SyncActive bool       `json:"syncActive"`
	LastPush   *time.Time `json:"lastPush,omitempty"`
	LastPull   *time.Time `json:"lastPull,omitempty"`
}

// ReconcilerConfig bundles reconciler dependencies. Mirror and Repository may
// be empty when no remote mirror is configured.
type ReconcilerConfig struct {
	Store      *snippets.Store
	Mirror     mirror.Client
	Repository string
	PathPrefix string
	Scorer     snippets.Scorer
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Reconciler merges externally supplied snippet collections into the store
// and serializes store snapshots for the mirror.
type Reconciler struct {
	store      *snippets.Store
	mirror     mirror.Client
	repository string
	pathPrefix string
	scorer     snippets.Scorer
	clock      func() time.Time
	logger     *zap.Logger

	mu       sync.Mutex
	lastPush *time.Time
	lastPull *time.Time
}

// NewReconciler constructs a Reconciler.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = snippets.HeuristicScorer{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pathPrefix := strings.Trim(cfg.PathPrefix, "/")
	if pathPrefix == "" {
		pathPrefix = "snippets"
	}

	return &Reconciler{
		store:      cfg.Store,
		mirror:     cfg.Mirror,
		repository: cfg.Repository,
		pathPrefix: pathPrefix,
		scorer:     scorer,
		clock:      clock,
		logger:     logger,
	}, nil
}

// ImportBulk normalizes each external record and upserts the batch into the
// store. Records carrying a known identifier fully replace the stored copy.
func (r *Reconciler) ImportBulk(records []ExternalRecord) ImportResult {
	normalized := make([]snippets.Snippet, len(records))
	for index, record := range records {
		normalized[index] = r.normalize(record)
	}

	saved, failures := r.store.BulkUpsert(normalized)
	if failures == nil {
		failures = []snippets.BulkError{}
	}

	r.logger.Info("bulk import reconciled",
		zap.Int("saved", len(saved)),
		zap.Int("failed", len(failures)),
	)

	return ImportResult{Saved: saved, Errors: failures}
}

// normalize trims fields and fills defaults: empty tags, zeroed counters,
// a computed quality score when none was supplied, and the current time when
// the creation timestamp is absent or unparseable.
func (r *Reconciler) normalize(record ExternalRecord) snippets.Snippet {
	content := strings.TrimSpace(record.Content)

	score := 0.0
	switch {
	case record.QualityScore != nil:
		score = clamp(*record.QualityScore)
	case content != "":
		score = r.scorer.Score(content)
	}

	useCount := record.UseCount
	if useCount < 0 {
		useCount = 0
	}

	createdAt, err := time.Parse(time.RFC3339, strings.TrimSpace(record.CreatedAt))
	if err != nil {
		createdAt = r.clock()
	}

	return snippets.Snippet{
		ID:           strings.TrimSpace(record.ID),
		Content:      content,
		Language:     strings.ToLower(strings.TrimSpace(record.Language)),
		Title:        strings.TrimSpace(record.Title),
		Tags:         snippets.NormalizeTags(record.Tags),
		Description:  strings.TrimSpace(record.Description),
		UseCount:     useCount,
		QualityScore: score,
		IsFavorited:  record.IsFavorited,
		CreatedAt:    createdAt,
	}
}

// ExportAll serializes the current snapshot as the mirror payload. The store
// is not mutated.
func (r *Reconciler) ExportAll() ([]byte, int, error) {
	snapshot := r.store.Snapshot()
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("serializing export: %w", err)
	}
	return payload, len(snapshot), nil
}

// PushMirror exports the full snapshot and writes it to the mirror as a new
// collection file. The snapshot is taken before any network call, so no
// store lock is held while the mirror request is in flight.
func (r *Reconciler) PushMirror(ctx context.Context) (PushReport, error) {
	if r.mirror == nil {
		return PushReport{}, ErrMirrorNotConfigured
	}

	payload, count, err := r.ExportAll()
	if err != nil {
		return PushReport{}, err
	}

	now := r.clock()
	path := fmt.Sprintf("%s/snippets-collection-%d.json", r.pathPrefix, now.UnixMilli())
	message := fmt.Sprintf("Add/update snippets collection - %s", now.UTC().Format(time.RFC3339))

	ref, err := r.mirror.PutContent(ctx, path, payload, message)
	if err != nil {
		return PushReport{}, err
	}

	r.markPush(now)
	r.logger.Info("snapshot pushed to mirror",
		zap.String("path", path),
		zap.Int("count", count),
	)

	return PushReport{Path: path, Ref: ref, Count: count}, nil
}

// PullMirror downloads every collection file from the mirror and imports the
// flattened records. A file that fails to download or parse is logged and
// skipped; it never aborts the pull or touches what was already merged.
func (r *Reconciler) PullMirror(ctx context.Context) (ImportResult, error) {
	if r.mirror == nil {
		return ImportResult{}, ErrMirrorNotConfigured
	}

	files, err := r.mirror.ListFiles(ctx, r.pathPrefix)
	if err != nil {
		return ImportResult{}, err
	}

	var collected []ExternalRecord
	for _, file := range files {
		if !strings.HasSuffix(file.Name, ".json") {
			continue
		}
		content, err := r.mirror.GetContent(ctx, file.DownloadRef)
		if err != nil {
			r.logger.Warn("skipping undownloadable mirror file",
				zap.String("name", file.Name),
				zap.Error(err),
			)
			continue
		}
		records, err := decodeRecords(content)
		if err != nil {
			r.logger.Warn("skipping unparseable mirror file",
				zap.String("name", file.Name),
				zap.Error(err),
			)
			continue
		}
		collected = append(collected, records...)
	}

	result := r.ImportBulk(collected)
	r.markPull(r.clock())
	return result, nil
}

// ConnectionTester is implemented by mirror clients that can verify their
// credentials without transferring snippet data.
type ConnectionTester interface {
	TestConnection(ctx context.Context) (string, error)
}

// TestMirror verifies connectivity to the configured mirror and returns the
// authenticated account name when the client supports probing.
func (r *Reconciler) TestMirror(ctx context.Context) (string, error) {
	if r.mirror == nil {
		return "", ErrMirrorNotConfigured
	}
	tester, ok := r.mirror.(ConnectionTester)
	if !ok {
		return "", nil
	}
	return tester.TestConnection(ctx)
}

// Status reports mirror configuration and the most recent transfers.
func (r *Reconciler) Status() StatusReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return StatusReport{
		Repository: r.repository,
		SyncActive: r.mirror != nil,
		LastPush:   r.lastPush,
		LastPull:   r.lastPull,
	}
}

func (r *Reconciler) markPush(at time.Time) {
	r.mu.Lock()
	r.lastPush = &at
	r.mu.Unlock()
}

func (r *Reconciler) markPull(at time.Time) {
	r.mu.Lock()
	r.lastPull = &at
	r.mu.Unlock()
}

// decodeRecords accepts either a JSON array of records or a single record.
func decodeRecords(content []byte) ([]ExternalRecord, error) {
	var records []ExternalRecord
	if err := json.Unmarshal(content, &records); err == nil {
		return records, nil
	}
	var single ExternalRecord
	if err := json.Unmarshal(content, &single); err != nil {
		return nil, err
	}
	return []ExternalRecord{single}, nil
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
