package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"coursehub/internal/models"
	"coursehub/internal/redis"
)

const (
	redisSnapshotKey       = "catalog:snapshot"
	redisInvalidateChannel = "catalog:invalidate"
	redisSnapshotTTL       = 24 * time.Hour
)

// Source loads the full course collection in load order.
type Source interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
}

// Origin reports where the last refresh got its data from.
type Origin string

const (
	OriginSource   Origin = "source"
	OriginCache    Origin = "cache"
	OriginFallback Origin = "fallback"
	OriginKept     Origin = "kept"
)

type invalidateMessage struct {
	Instance string `json:"instance"`
	At       int64  `json:"at"`
}

// Loader refreshes a Snapshot from a Source, using redis as a shared cache and
// invalidation bus between instances.
type Loader struct {
	source   Source
	snapshot *Snapshot
	cache    *redis.Client
	instance string

	mu       sync.Mutex
	fallback []models.Course
}

// NewLoader builds a loader. cache may be nil.
func NewLoader(source Source, snapshot *Snapshot, cache *redis.Client) *Loader {
	if snapshot == nil {
		snapshot = NewSnapshot()
	}
	return &Loader{
		source:   source,
		snapshot: snapshot,
		cache:    cache,
		instance: uuid.NewString(),
		fallback: DefaultFallback(),
	}
}

func (l *Loader) Snapshot() *Snapshot {
	return l.snapshot
}

// SetFallback replaces the list used when nothing else is available.
func (l *Loader) SetFallback(courses []models.Course) {
	l.mu.Lock()
	l.fallback = append([]models.Course(nil), courses...)
	l.mu.Unlock()
}

// Refresh reloads the snapshot. When the source fails it tries the redis copy,
// then the fallback list; an already populated snapshot is kept as is.
func (l *Loader) Refresh(ctx context.Context) (Origin, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.source == nil {
		return "", errors.New("catalog source not configured")
	}
	courses, err := l.source.ListCourses(ctx)
	if err == nil {
		l.snapshot.Replace(courses)
		l.storeCache(ctx, courses)
		return OriginSource, nil
	}
	srcErr := fmt.Errorf("load courses: %w", err)

	if l.snapshot.Version() > 0 {
		return OriginKept, srcErr
	}
	if cached, ok := l.loadCache(ctx); ok {
		l.snapshot.Replace(cached)
		return OriginCache, srcErr
	}
	l.snapshot.Replace(l.fallback)
	return OriginFallback, srcErr
}

// Invalidate refreshes locally and tells other instances to refresh.
func (l *Loader) Invalidate(ctx context.Context) error {
	_, err := l.Refresh(ctx)
	l.publish(ctx)
	return err
}

// Start runs the periodic refresh loop and the invalidation listener until ctx is done.
func (l *Loader) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if l.cache != nil {
		err := l.cache.Subscribe(ctx, redisInvalidateChannel, func(payload string) {
			var msg invalidateMessage
			if err := json.Unmarshal([]byte(payload), &msg); err != nil {
				log.Printf("catalog invalidation decode failed: %v", err)
				return
			}
			if msg.Instance == l.instance {
				return
			}
			if _, err := l.Refresh(ctx); err != nil {
				log.Printf("catalog refresh after invalidation failed: %v", err)
			}
		})
		if err != nil {
			log.Printf("catalog invalidation listener disabled: %v", err)
		}
	}
	go l.refreshLoop(ctx, interval)
	go l.reportVersions(ctx, l.snapshot.Subscribe())
}

// reportVersions logs every snapshot replacement until ctx is done.
func (l *Loader) reportVersions(ctx context.Context, versions <-chan uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case version := <-versions:
			log.Printf("catalog snapshot version %d (%d courses)", version, l.snapshot.Len())
		}
	}
}

func (l *Loader) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if origin, err := l.Refresh(ctx); err != nil {
				log.Printf("catalog refresh failed (%s): %v", origin, err)
			}
		}
	}
}

func (l *Loader) storeCache(ctx context.Context, courses []models.Course) {
	if l.cache == nil {
		return
	}
	data, err := json.Marshal(courses)
	if err != nil {
		log.Printf("catalog snapshot marshal failed: %v", err)
		return
	}
	if err := l.cache.Set(ctx, redisSnapshotKey, data, redisSnapshotTTL); err != nil {
		log.Printf("catalog snapshot cache failed: %v", err)
	}
}

func (l *Loader) loadCache(ctx context.Context) ([]models.Course, bool) {
	if l.cache == nil {
		return nil, false
	}
	raw, err := l.cache.Get(ctx, redisSnapshotKey)
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("catalog snapshot load failed: %v", err)
		}
		return nil, false
	}
	var courses []models.Course
	if err := json.Unmarshal([]byte(raw), &courses); err != nil {
		log.Printf("catalog snapshot decode failed: %v", err)
		return nil, false
	}
	return courses, true
}

func (l *Loader) publish(ctx context.Context) {
	if l.cache == nil {
		return
	}
	payload, err := json.Marshal(invalidateMessage{Instance: l.instance, At: time.Now().UnixNano()})
	if err != nil {
		log.Printf("catalog invalidation marshal failed: %v", err)
		return
	}
	if err := l.cache.Publish(ctx, redisInvalidateChannel, payload); err != nil {
		log.Printf("catalog publish invalidation failed: %v", err)
	}
}
