package main

import (
	"bytes"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/prosodia/pkg/audio"
)

func TestRun_ListEmotions(t *testing.T) {
	t.Parallel()
	var out, errOut bytes.Buffer
	if code := run([]string{"-list-emotions"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code: got %d, want 0 (stderr %q)", code, errOut.String())
	}
	for _, want := range []string{"worried", "Deep thought, measured reflection", "rate 0.82x"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
	}{
		{"missing text", []string{"-output", "x.wav"}},
		{"missing output", []string{"-text", "hi"}},
		{"unknown emotion", []string{"-text", "hi", "-output", "x.wav", "-emotion", "gleeful"}},
		{"unknown urgency", []string{"-text", "hi", "-output", "x.wav", "-urgency", "extreme"}},
		{"unknown relationship", []string{"-text", "hi", "-output", "x.wav", "-relationship", "rival"}},
		{"bad flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out, errOut bytes.Buffer
			if code := run(tt.args, &out, &errOut); code != 2 {
				t.Errorf("exit code: got %d, want 2", code)
			}
		})
	}
}

func TestRun_BadConfig(t *testing.T) {
	t.Parallel()
	var out, errOut bytes.Buffer
	code := run([]string{"-text", "hi", "-output", "x.wav", "-config", filepath.Join(t.TempDir(), "missing.yaml")}, &out, &errOut)
	if code != 1 {
		t.Errorf("exit code: got %d, want 1", code)
	}
}

func TestRun_Synthesizes(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(toneWAV(22050, 11025))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "synthesis:\n  provider:\n    name: coqui\n    base_url: " + srv.URL + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "hello.wav")

	var out, errOut bytes.Buffer
	code := run([]string{
		"-config", cfgPath,
		"-text", "Well, hello there. Stay calm.",
		"-emotion", "worried",
		"-urgency", "high",
		"-seed", "7",
		"-no-variations",
		"-output", outPath,
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code: got %d, want 0 (stderr %q)", code, errOut.String())
	}
	if want := "SUCCESS: Audio saved to " + outPath; !strings.Contains(out.String(), want) {
		t.Errorf("stdout: got %q, want it to contain %q", out.String(), want)
	}
	w, err := audio.ReadFile(outPath, audio.SampleRate)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if w.SampleRate != audio.SampleRate || len(w.Samples) == 0 {
		t.Errorf("output: got %d samples at %d Hz", len(w.Samples), w.SampleRate)
	}
}

func toneWAV(rate, n int) []byte {
	x := make([]float64, n)
	for i := range x {
		if (i/50)%2 == 0 {
			x[i] = 0.3
		} else {
			x[i] = -0.3
		}
	}
	pcm := audio.FloatToPCM16(x)
	le := binary.LittleEndian
	buf := append([]byte("RIFF"), le.AppendUint32(nil, uint32(36+len(pcm)))...)
	buf = append(buf, "WAVEfmt "...)
	buf = le.AppendUint32(buf, 16)
	buf = le.AppendUint16(buf, 1)
	buf = le.AppendUint16(buf, 1)
	buf = le.AppendUint32(buf, uint32(rate))
	buf = le.AppendUint32(buf, uint32(rate*2))
	buf = le.AppendUint16(buf, 2)
	buf = le.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = le.AppendUint32(buf, uint32(len(pcm)))
	return append(buf, pcm...)
}
