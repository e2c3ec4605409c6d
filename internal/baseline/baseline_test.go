package baseline

import (
	"path/filepath"
	"testing"
	"time"
)

// setupStore creates a new temporary store for testing.
func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "baseline.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestCaptureAndGet(t *testing.T) {
	s := setupStore(t)

	if err := s.Capture("spec/models/user_spec.rb", true, 1200*time.Millisecond); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	e, err := s.Get("spec/models/user_spec.rb")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e == nil {
		t.Fatal("Get returned nil for a captured path")
	}
	if !e.Passed {
		t.Error("Passed = false, want true")
	}
	if e.Duration != 1200*time.Millisecond {
		t.Errorf("Duration = %v, want 1.2s", e.Duration)
	}
	if e.RecordedAt.IsZero() {
		t.Error("RecordedAt was not recorded")
	}
}

func TestGet_MissingPath(t *testing.T) {
	s := setupStore(t)

	e, err := s.Get("spec/never_ran_spec.rb")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e != nil {
		t.Errorf("Get = %+v, want nil for unknown path", e)
	}
}

func TestCapture_ReplacesEarlierEntry(t *testing.T) {
	s := setupStore(t)

	if err := s.Capture("spec/a_spec.rb", false, time.Second); err != nil {
		t.Fatalf("first Capture failed: %v", err)
	}
	if err := s.Capture("spec/a_spec.rb", true, 3*time.Second); err != nil {
		t.Fatalf("second Capture failed: %v", err)
	}

	e, err := s.Get("spec/a_spec.rb")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !e.Passed {
		t.Error("Passed = false, want the replacement entry")
	}
	if e.Duration != 3*time.Second {
		t.Errorf("Duration = %v, want 3s", e.Duration)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d entries, want 1", len(all))
	}
}

func TestAll_PathOrder(t *testing.T) {
	s := setupStore(t)

	for _, path := range []string{"spec/z_spec.rb", "spec/a_spec.rb", "spec/m_spec.rb"} {
		if err := s.Capture(path, true, time.Second); err != nil {
			t.Fatalf("Capture failed: %v", err)
		}
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	if all[0].Path != "spec/a_spec.rb" || all[2].Path != "spec/z_spec.rb" {
		t.Errorf("entries not in path order: %s .. %s", all[0].Path, all[2].Path)
	}
}

func TestRed(t *testing.T) {
	s := setupStore(t)

	if err := s.Capture("spec/green_spec.rb", true, time.Second); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if err := s.Capture("spec/red_spec.rb", false, time.Second); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if s.Red("spec/green_spec.rb") {
		t.Error("Red = true for a passing baseline")
	}
	if !s.Red("spec/red_spec.rb") {
		t.Error("Red = false for a failing baseline")
	}
	if s.Red("spec/unknown_spec.rb") {
		t.Error("Red = true for a path with no baseline")
	}
}

func TestTimeoutFor(t *testing.T) {
	s := setupStore(t)

	if err := s.Capture("spec/slow_spec.rb", true, 20*time.Second); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if err := s.Capture("spec/red_spec.rb", false, 20*time.Second); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	d, ok := s.TimeoutFor("spec/slow_spec.rb")
	if !ok {
		t.Fatal("TimeoutFor ok = false for a passing baseline")
	}
	if d != 80*time.Second {
		t.Errorf("TimeoutFor = %v, want 80s", d)
	}

	if _, ok := s.TimeoutFor("spec/red_spec.rb"); ok {
		t.Error("TimeoutFor ok = true for a failing baseline")
	}
	if _, ok := s.TimeoutFor("spec/unknown_spec.rb"); ok {
		t.Error("TimeoutFor ok = true for a path with no baseline")
	}
}

func TestRecommendTimeout(t *testing.T) {
	tests := []struct {
		name     string
		baseline time.Duration
		want     time.Duration
	}{
		{"zero baseline gets floor", 0, 30 * time.Second},
		{"short baseline gets floor", 2 * time.Second, 30 * time.Second},
		{"floor boundary", 7500 * time.Millisecond, 30 * time.Second},
		{"long baseline scales", 20 * time.Second, 80 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecommendTimeout(tt.baseline)
			if got != tt.want {
				t.Errorf("RecommendTimeout(%v) = %v, want %v", tt.baseline, got, tt.want)
			}
		})
	}
}

func TestDBPath(t *testing.T) {
	path := DBPath("/my/project")
	expected := "/my/project/.factorytune/baseline.db"
	if path != expected {
		t.Errorf("DBPath() = %q, want %q", path, expected)
	}
}
