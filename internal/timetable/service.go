package timetable

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "tkbcal/internal/log"
	"tkbcal/internal/model"
	"tkbcal/internal/store"
)

// ErrEmptySchedule is returned by Import when the rows yield no schedule
// entry at all.
var ErrEmptySchedule = errors.New("timetable: no schedule found in data")

// SnapshotStore persists the raw rows of the current timetable.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context) (model.Snapshot, error)
	ClearSnapshot(ctx context.Context) error
}

// Service ties the engine to persistence. Results are memoized on the
// content of the stored rows so repeated reads do not re-expand.
type Service struct {
	store SnapshotStore
	opts  Options
	now   func() time.Time

	mu     sync.Mutex
	cached *cachedResult
}

type cachedResult struct {
	digest string
	result model.Result
}

// Current is what the service holds right now. Result is shared with the
// service's cache; callers must not modify its maps or slices.
type Current struct {
	Snapshot model.Snapshot
	Result   model.Result
	// Found is false when nothing has been imported.
	Found bool
}

func NewService(s SnapshotStore, opts Options) *Service {
	return &Service{
		store: s,
		opts:  opts.normalize(),
		now:   time.Now,
	}
}

func (s *Service) Options() Options {
	return s.opts
}

// Import builds rows, rejects them if nothing parses, and stores them as the
// current timetable. The returned Current carries the stored snapshot.
func (s *Service) Import(ctx context.Context, fileName string, rows []model.RawRow) (Current, error) {
	res, err := s.build(rows)
	if err != nil {
		return Current{}, err
	}
	if res.IsEmpty() {
		return Current{Result: res}, ErrEmptySchedule
	}

	snap := model.Snapshot{
		FileName:   fileName,
		UploadedAt: s.now().UTC(),
		Rows:       rows,
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return Current{Result: res}, fmt.Errorf("failed to save timetable: %w", err)
	}

	appLog.Info("timetable imported",
		"file", fileName,
		"rows", len(rows),
		"dates", len(res.ScheduleByDate),
		"subjects", len(res.Subjects),
	)
	return Current{Snapshot: snap, Result: res, Found: true}, nil
}

// Current reloads the stored rows and returns their schedule. The Result
// is memoized and shared between callers, so it must be treated as
// read-only.
func (s *Service) Current(ctx context.Context) (Current, error) {
	snap, err := s.store.LoadSnapshot(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return Current{Result: model.EmptyResult()}, nil
	}
	if err != nil {
		return Current{}, err
	}
	res, err := s.build(snap.Rows)
	if err != nil {
		return Current{}, err
	}
	return Current{Snapshot: snap, Result: res, Found: true}, nil
}

// Clear forgets the stored timetable.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.ClearSnapshot(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	return nil
}

func (s *Service) build(rows []model.RawRow) (model.Result, error) {
	digest, err := rowsDigest(rows)
	if err != nil {
		return model.Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cached.digest == digest {
		return s.cached.result, nil
	}
	res := Build(rows, s.opts)
	s.cached = &cachedResult{digest: digest, result: res}
	return res, nil
}

func rowsDigest(rows []model.RawRow) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to hash rows: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
