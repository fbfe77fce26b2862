package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// DefaultCapacity is the number of most recent activities kept.
const DefaultCapacity = 1000

// ActivityLog implements domain.ActivityStore.
// The whole log lives in memory and is written through to the backend as
// one JSON array on every mutation. Readers get snapshot copies.
type ActivityLog struct {
	mu       sync.RWMutex
	items    []domain.DetectedActivity // newest-first
	capacity int
	backend  domain.ActivityBackend
	logger   *zap.Logger
}

// NewActivityLog loads the log from backend. A corrupt blob is logged and
// replaced by an empty log; a backend read failure is returned.
func NewActivityLog(backend domain.ActivityBackend, capacity int, logger *zap.Logger) (*ActivityLog, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &ActivityLog{
		capacity: capacity,
		backend:  backend,
		logger:   logger,
	}

	data, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load activity log: %w", err)
	}

	items, err := DecodeActivities(data)
	if err != nil {
		logger.Warn("activity log corrupt, starting empty",
			zap.String("location", backend.Location()),
			zap.Error(err))
		items = nil
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})
	if len(items) > capacity {
		items = items[:capacity]
	}
	l.items = items

	return l, nil
}

// EncodeActivities renders activities as the on-disk JSON array.
func EncodeActivities(items []domain.DetectedActivity) ([]byte, error) {
	if items == nil {
		items = []domain.DetectedActivity{}
	}
	return json.Marshal(items)
}

// DecodeActivities parses the on-disk JSON array. Empty input is an empty log.
// Unknown fields are ignored.
func DecodeActivities(data []byte) ([]domain.DetectedActivity, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []domain.DetectedActivity
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Append inserts at the head and keeps the newest capacity entries.
func (l *ActivityLog) Append(ctx context.Context, activity domain.DetectedActivity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.items) + 1
	if n > l.capacity {
		n = l.capacity
	}
	next := make([]domain.DetectedActivity, 0, n)
	next = append(next, activity)
	next = append(next, l.items[:n-1]...)

	return l.commitLocked(next)
}

func (l *ActivityLog) ListAll() []domain.DetectedActivity {
	return l.filter(func(domain.DetectedActivity) bool { return true })
}

func (l *ActivityLog) FilterByCategory(category string) []domain.DetectedActivity {
	return l.filter(func(a domain.DetectedActivity) bool { return a.Category == category })
}

func (l *ActivityLog) FilterByApp(appPackage string) []domain.DetectedActivity {
	return l.filter(func(a domain.DetectedActivity) bool { return a.AppPackage == appPackage })
}

func (l *ActivityLog) FilterSince(since time.Time) []domain.DetectedActivity {
	cutoff := since.UnixMilli()
	return l.filter(func(a domain.DetectedActivity) bool { return a.Timestamp >= cutoff })
}

func (l *ActivityLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *ActivityLog) CountByCategory(category string) int {
	return len(l.FilterByCategory(category))
}

func (l *ActivityLog) Categories() []string {
	return l.distinct(func(a domain.DetectedActivity) string { return a.Category })
}

func (l *ActivityLog) Apps() []string {
	return l.distinct(func(a domain.DetectedActivity) string { return a.AppName })
}

// Delete removes one activity by ID.
func (l *ActivityLog) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]domain.DetectedActivity, 0, len(l.items))
	for _, a := range l.items {
		if a.ID != id {
			next = append(next, a)
		}
	}
	if len(next) == len(l.items) {
		return fmt.Errorf("%w: %s", domain.ErrActivityNotFound, id)
	}
	return l.commitLocked(next)
}

// DeleteOlderThan keeps only activities at or after cutoff.
func (l *ActivityLog) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ms := cutoff.UnixMilli()
	next := make([]domain.DetectedActivity, 0, len(l.items))
	for _, a := range l.items {
		if a.Timestamp >= ms {
			next = append(next, a)
		}
	}
	return l.commitLocked(next)
}

func (l *ActivityLog) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commitLocked([]domain.DetectedActivity{})
}

// commitLocked persists next and swaps it in. State is unchanged on error.
func (l *ActivityLog) commitLocked(next []domain.DetectedActivity) error {
	data, err := EncodeActivities(next)
	if err != nil {
		return fmt.Errorf("failed to encode activity log: %w", err)
	}
	if err := l.backend.Save(data); err != nil {
		return fmt.Errorf("failed to save activity log: %w", err)
	}
	l.items = next
	return nil
}

func (l *ActivityLog) filter(keep func(domain.DetectedActivity) bool) []domain.DetectedActivity {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]domain.DetectedActivity, 0, len(l.items))
	for _, a := range l.items {
		if keep(a) {
			result = append(result, a)
		}
	}
	return result
}

func (l *ActivityLog) distinct(key func(domain.DetectedActivity) string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, a := range l.items {
		k := key(a)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Ensure ActivityLog implements domain.ActivityStore.
var _ domain.ActivityStore = (*ActivityLog)(nil)
