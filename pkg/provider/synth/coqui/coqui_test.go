package coqui

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/provider/synth"
)

// ---- test helpers ----

// buildTestWAV constructs a minimal 16-bit mono RIFF/WAVE payload at rate
// holding n samples of a constant level.
func buildTestWAV(rate, n int) []byte {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.25
	}
	pcm := audio.FloatToPCM16(samples)

	le := binary.LittleEndian
	buf := make([]byte, 0, 44+len(pcm))
	u32 := func(v uint32) { buf = le.AppendUint32(buf, v) }
	u16 := func(v uint16) { buf = le.AppendUint16(buf, v) }

	buf = append(buf, "RIFF"...)
	u32(uint32(36 + len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	u32(16)
	u16(1) // PCM
	u16(1) // mono
	u32(uint32(rate))
	u32(uint32(rate * 2))
	u16(2)
	u16(16)
	buf = append(buf, "data"...)
	u32(uint32(len(pcm)))
	return append(buf, pcm...)
}

// mustNew is a test helper that calls New and fails the test on error.
func mustNew(t *testing.T, serverURL string, opts ...Option) *Provider {
	t.Helper()
	p, err := New(serverURL, opts...)
	if err != nil {
		t.Fatalf("New(%q): unexpected error: %v", serverURL, err)
	}
	return p
}

// ---- Provider creation ----

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := mustNew(t, "http://localhost:5002")
		if p.language != defaultLanguage {
			t.Errorf("language = %q, want %q", p.language, defaultLanguage)
		}
		if p.httpClient.Timeout != defaultTimeout {
			t.Errorf("timeout = %v, want %v", p.httpClient.Timeout, defaultTimeout)
		}
		if p.apiMode != APIModeStandard {
			t.Errorf("apiMode = %q, want %q", p.apiMode, APIModeStandard)
		}
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		p := mustNew(t, "http://localhost:5002/")
		if p.serverURL != "http://localhost:5002" {
			t.Errorf("serverURL = %q, want trailing slash stripped", p.serverURL)
		}
	})

	t.Run("options", func(t *testing.T) {
		p := mustNew(t, "http://x", WithLanguage("de"), WithTimeout(5*time.Second), WithVoice("p225"))
		if p.language != "de" || p.httpClient.Timeout != 5*time.Second || p.voice != "p225" {
			t.Errorf("options not applied: language=%q timeout=%v voice=%q", p.language, p.httpClient.Timeout, p.voice)
		}
	})

	t.Run("empty url", func(t *testing.T) {
		if _, err := New(""); err == nil {
			t.Error("expected error for empty serverURL")
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		if _, err := New("http://x", WithAPIMode("grpc")); err == nil {
			t.Error("expected error for unknown api mode")
		}
	})
}

// ---- Synthesize ----

func TestSynthesize_Standard(t *testing.T) {
	t.Parallel()
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != apiTTSEndpoint {
			http.Error(w, "unexpected", http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"text":        q.Get("text"),
			"speaker_id":  q.Get("speaker_id"),
			"language_id": q.Get("language_id"),
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(buildTestWAV(16000, 16000))
	}))
	t.Cleanup(srv.Close)

	p := mustNew(t, srv.URL, WithVoice("p225"))
	w, err := p.Synthesize(context.Background(), synth.Request{Text: "Hello there.  ", Speed: 1})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotQuery["text"] != "Hello there.  " {
		t.Errorf("text = %q, want spacing preserved", gotQuery["text"])
	}
	if gotQuery["speaker_id"] != "p225" {
		t.Errorf("speaker_id = %q, want %q", gotQuery["speaker_id"], "p225")
	}
	if gotQuery["language_id"] != "en" {
		t.Errorf("language_id = %q, want %q", gotQuery["language_id"], "en")
	}
	if w.SampleRate != audio.SampleRate {
		t.Errorf("SampleRate = %d, want %d", w.SampleRate, audio.SampleRate)
	}
	if len(w.Samples) != audio.SampleRate {
		t.Errorf("len = %d, want %d (one second resampled)", len(w.Samples), audio.SampleRate)
	}
}

func TestSynthesize_XTTS(t *testing.T) {
	t.Parallel()
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ttsEndpoint {
			http.Error(w, "unexpected", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write(buildTestWAV(audio.SampleRate, 2205))
	}))
	t.Cleanup(srv.Close)

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))
	w, err := p.Synthesize(context.Background(), synth.Request{Text: "Hi.", Voice: "narrator"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got.Text != "Hi." || got.SpeakerWav != "narrator" || got.Language != "en" {
		t.Errorf("request body = %+v", got)
	}
	if len(w.Samples) != 2205 {
		t.Errorf("len = %d, want 2205", len(w.Samples))
	}
}

func TestSynthesize_XTTSRequiresVoice(t *testing.T) {
	t.Parallel()
	p := mustNew(t, "http://127.0.0.1:1", WithAPIMode(APIModeXTTS))
	if _, err := p.Synthesize(context.Background(), synth.Request{Text: "Hi."}); err == nil {
		t.Fatal("expected error without voice")
	}
}

func TestSynthesize_SpeedStretches(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(buildTestWAV(audio.SampleRate, audio.SampleRate))
	}))
	t.Cleanup(srv.Close)

	p := mustNew(t, srv.URL)
	w, err := p.Synthesize(context.Background(), synth.Request{Text: "Slowly.", Speed: 0.8})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if want := 27563; len(w.Samples) != want {
		t.Errorf("len = %d, want %d", len(w.Samples), want)
	}

	p = mustNew(t, srv.URL, WithShifter(nil))
	w, err = p.Synthesize(context.Background(), synth.Request{Text: "Slowly.", Speed: 0.8})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(w.Samples) != audio.SampleRate {
		t.Errorf("len without shifter = %d, want %d", len(w.Samples), audio.SampleRate)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	t.Parallel()

	t.Run("empty text", func(t *testing.T) {
		p := mustNew(t, "http://127.0.0.1:1")
		_, err := p.Synthesize(context.Background(), synth.Request{Text: "   "})
		if !errors.Is(err, synth.ErrEmptyText) {
			t.Errorf("err = %v, want ErrEmptyText", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)
		p := mustNew(t, srv.URL)
		_, err := p.Synthesize(context.Background(), synth.Request{Text: "Hi."})
		if err == nil || !strings.Contains(err.Error(), "500") {
			t.Errorf("err = %v, want status 500 error", err)
		}
	})

	t.Run("not a wav", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("definitely not audio"))
		}))
		t.Cleanup(srv.Close)
		p := mustNew(t, srv.URL)
		if _, err := p.Synthesize(context.Background(), synth.Request{Text: "Hi."}); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		t.Cleanup(srv.Close)
		p := mustNew(t, srv.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := p.Synthesize(ctx, synth.Request{Text: "Hi."}); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

// ---- Ready ----

func TestReady(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		mode     APIMode
		endpoint string
	}{
		{"standard", APIModeStandard, detailsEndpoint},
		{"xtts", APIModeXTTS, studioSpeakersEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.endpoint {
					http.Error(w, "unexpected", http.StatusNotFound)
					return
				}
				_, _ = w.Write([]byte(`{}`))
			}))
			t.Cleanup(srv.Close)

			p := mustNew(t, srv.URL, WithAPIMode(tt.mode))
			if err := p.Ready(context.Background()); err != nil {
				t.Errorf("Ready: %v", err)
			}
		})
	}

	t.Run("down", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)
		p := mustNew(t, srv.URL)
		if err := p.Ready(context.Background()); err == nil {
			t.Error("expected error for 503")
		}
	})
}
