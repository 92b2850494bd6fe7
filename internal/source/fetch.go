package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	appLog "tkbcal/internal/log"
)

const (
	metaFile = "meta.json"
	bodyFile = "body.bin"
)

// Source is a spreadsheet published at a URL, e.g. a portal export link.
type Source struct {
	ID  string
	URL string
}

// FileName guesses a file name for the source so the decoder can pick a
// format from its extension.
func (s Source) FileName() string {
	if u, err := url.Parse(s.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return s.ID
}

// Result is the body fetched for one source.
type Result struct {
	Source    Source
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads sources with conditional requests and keeps the last
// good body on disk so a flaky portal does not wipe the timetable.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/source-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		cacheDir: cacheDir,
	}
}

// FetchAll fetches every source. Failed sources are logged, skipped and
// reported in the error slice.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]Result, []error) {
	results := make([]Result, 0, len(sources))
	var errs []error
	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
			appLog.Error("source fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne fetches a single source, honoring ETag and Last-Modified.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (Result, error) {
	if src.URL == "" {
		return Result{}, errors.New("source URL is empty")
	}

	dir := f.cachePath(src.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Result{}, err
	}
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, bodyFile))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Result{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("source unreachable, using cached body", "id", src.ID, "url", redactURL(src.URL), "err", err)
			return Result{Source: src, Body: cached, FromCache: true}, nil
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, err
		}
		newMeta := cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, newMeta, body); err != nil {
			appLog.Error("source cache save failed", err, "id", src.ID)
		}
		appLog.Info("source fetched", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return Result{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Result{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("source not modified", "id", src.ID)
		return Result{Source: src, Body: cached, FromCache: true}, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("source returned non-OK, using cached body", "id", src.ID, "status", resp.StatusCode)
			return Result{Source: src, Body: cached, FromCache: true}, nil
		}
		return Result{}, errors.New(resp.Status)
	}
}

func (f *Fetcher) cachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, bodyFile), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFile), data, 0o600)
}

// redactURL keeps only scheme and host; portal links usually carry a
// session token in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
