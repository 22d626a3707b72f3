package catalog

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"coursehub/internal/models"
)

type stubSource struct {
	courses []models.Course
	err     error
	calls   int
}

func (s *stubSource) ListCourses(ctx context.Context) ([]models.Course, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.courses, nil
}

func TestLoaderRefreshFromSource(t *testing.T) {
	src := &stubSource{courses: sampleCourses()}
	loader := NewLoader(src, nil, nil)
	origin, err := loader.Refresh(context.Background())
	if err != nil || origin != OriginSource {
		t.Fatalf("Refresh: origin %s err %v", origin, err)
	}
	if got := ids(loader.Snapshot().Courses()); !reflect.DeepEqual(got, []string{"c1", "c2"}) {
		t.Fatalf("unexpected snapshot %v", got)
	}
}

func TestLoaderFallsBackOnFirstFailure(t *testing.T) {
	src := &stubSource{err: errors.New("db down")}
	loader := NewLoader(src, nil, nil)
	loader.SetFallback([]models.Course{{ID: "fb", Category: "Offline"}})
	origin, err := loader.Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected source error to be reported")
	}
	if origin != OriginFallback {
		t.Fatalf("expected fallback origin, got %s", origin)
	}
	if got := loader.Snapshot().Categories(); !reflect.DeepEqual(got, []string{"Offline"}) {
		t.Fatalf("fallback not installed: %v", got)
	}
}

func TestLoaderKeepsSnapshotOnLaterFailure(t *testing.T) {
	src := &stubSource{courses: sampleCourses()}
	loader := NewLoader(src, nil, nil)
	if _, err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	src.err = errors.New("db down")
	origin, err := loader.Refresh(context.Background())
	if err == nil || origin != OriginKept {
		t.Fatalf("expected kept origin with error, got %s %v", origin, err)
	}
	if loader.Snapshot().Len() != 2 {
		t.Fatalf("snapshot should be untouched")
	}
}

func TestLoaderInvalidateWithoutCache(t *testing.T) {
	src := &stubSource{courses: sampleCourses()}
	loader := NewLoader(src, nil, nil)
	if err := loader.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if src.calls != 1 || loader.Snapshot().Version() != 1 {
		t.Fatalf("expected one refresh, calls=%d version=%d", src.calls, loader.Snapshot().Version())
	}
}

func TestDefaultFallbackAndFile(t *testing.T) {
	if len(DefaultFallback()) == 0 {
		t.Fatalf("default fallback empty")
	}
	path := filepath.Join(t.TempDir(), "fallback.json")
	body := `[{"id":"f1","title":"Offline Course","category":"Misc","difficulty":"beginner"}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fallback: %v", err)
	}
	courses, err := LoadFallbackFile(path)
	if err != nil {
		t.Fatalf("LoadFallbackFile: %v", err)
	}
	if len(courses) != 1 || courses[0].Title != "Offline Course" {
		t.Fatalf("unexpected fallback %+v", courses)
	}
	if _, err := LoadFallbackFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLoaderStartReportsNewVersions(t *testing.T) {
	out := &lockedBuffer{}
	log.SetOutput(out)
	defer log.SetOutput(os.Stderr)

	src := &stubSource{courses: sampleCourses()}
	loader := NewLoader(src, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loader.Start(ctx, time.Hour)

	if _, err := loader.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "catalog snapshot version 1") {
		if time.Now().After(deadline) {
			t.Fatalf("version change not reported: %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
