package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindBaseline(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "dialogue", "test_hostile_01.wav"))
	touch(t, filepath.Join(dir, "voices", "mittenz_friendly_02.wav"))
	touch(t, filepath.Join(dir, "voices", "mittenz_friendly_01.wav"))
	touch(t, filepath.Join(dir, "voices", "mittenz_curious_01.mp3"))

	tests := []struct {
		name    string
		sample  Sample
		want    string
		wantErr error
	}{
		{
			name:   "direct match",
			sample: Sample{Name: "test_hostile_01", Category: "dialogue", Emotion: "hostile"},
			want:   filepath.Join(dir, "dialogue", "test_hostile_01.wav"),
		},
		{
			name:   "emotion fallback picks lexically first",
			sample: Sample{Name: "test_greeting", Category: "greeting", Emotion: "friendly"},
			want:   filepath.Join(dir, "voices", "mittenz_friendly_01.wav"),
		},
		{
			name:    "non-wav ignored",
			sample:  Sample{Name: "x", Category: "dialogue", Emotion: "curious"},
			wantErr: ErrNoBaseline,
		},
		{
			name:    "no emotion",
			sample:  Sample{Name: "x", Category: "dialogue"},
			wantErr: ErrNoBaseline,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := FindBaseline(dir, tt.sample)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err: got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindBaseline_MissingDir(t *testing.T) {
	t.Parallel()
	_, err := FindBaseline(filepath.Join(t.TempDir(), "absent"), Sample{Name: "a", Category: "b", Emotion: "neutral"})
	if !errors.Is(err, ErrNoBaseline) {
		t.Errorf("got %v, want ErrNoBaseline", err)
	}
}

func TestDefaultSamples(t *testing.T) {
	t.Parallel()
	samples := DefaultSamples()
	if len(samples) != 8 {
		t.Fatalf("got %d samples, want 8", len(samples))
	}
	seen := make(map[string]bool)
	for _, s := range samples {
		if s.Text == "" || s.Category == "" || s.Name == "" || s.Emotion == "" {
			t.Errorf("incomplete sample %+v", s)
		}
		if seen[s.Name] {
			t.Errorf("duplicate name %q", s.Name)
		}
		seen[s.Name] = true
	}
}
