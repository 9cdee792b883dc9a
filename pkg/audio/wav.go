package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// wavFormat holds the fields of a RIFF "fmt " chunk needed for decoding.
type wavFormat struct {
	Tag           int
	Channels      int
	SampleRate    int
	BitsPerSample int
}

const (
	wavTagPCM   = 1
	wavTagFloat = 3
)

// ParseWAV decodes an in-memory RIFF/WAVE payload into a mono waveform at the
// payload's own sample rate. It walks the chunk list rather than assuming a
// 44-byte header, and tolerates streaming headers whose data size overruns
// the buffer. 16-bit PCM and 32-bit float payloads are supported.
func ParseWAV(data []byte) (Waveform, error) {
	if len(data) < 12 {
		return Waveform{}, errors.New("audio: WAV payload too short to be a valid RIFF file")
	}
	if string(data[0:4]) != "RIFF" {
		return Waveform{}, errors.New("audio: WAV payload missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return Waveform{}, errors.New("audio: WAV payload missing WAVE identifier")
	}

	var (
		f        wavFormat
		foundFmt bool
	)

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && body+16 <= len(data) {
				fd := data[body:]
				f.Tag = int(binary.LittleEndian.Uint16(fd[0:2]))
				f.Channels = int(binary.LittleEndian.Uint16(fd[2:4]))
				f.SampleRate = int(binary.LittleEndian.Uint32(fd[4:8]))
				f.BitsPerSample = int(binary.LittleEndian.Uint16(fd[14:16]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				f = wavFormat{Tag: wavTagPCM, Channels: 1, SampleRate: SampleRate, BitsPerSample: 16}
			}
			end := body + chunkSize
			if chunkSize < 0 || end > len(data) || end < body {
				end = len(data)
			}
			return decodeWAVData(data[body:end], f)
		}

		// Chunks are word-aligned: pad by 1 if odd size.
		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return Waveform{}, errors.New("audio: WAV payload missing data chunk")
}

func decodeWAVData(payload []byte, f wavFormat) (Waveform, error) {
	if f.Channels <= 0 {
		f.Channels = 1
	}
	var interleaved []float64
	switch {
	case f.Tag == wavTagPCM && f.BitsPerSample == 16:
		interleaved = PCM16ToFloat(payload)
	case f.Tag == wavTagFloat && f.BitsPerSample == 32:
		interleaved = make([]float64, len(payload)/4)
		for i := range interleaved {
			interleaved[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:])))
		}
	default:
		return Waveform{}, fmt.Errorf("audio: unsupported WAV encoding (format tag %d, %d bits)", f.Tag, f.BitsPerSample)
	}
	return Waveform{Samples: Downmix(interleaved, f.Channels), SampleRate: f.SampleRate}, nil
}

// DecodeWAV decodes a WAV payload with beep, downmixing to mono. If beep
// rejects the header (for example a streaming header with an unknown data
// size), the chunk walker in [ParseWAV] is used instead.
func DecodeWAV(data []byte) (Waveform, error) {
	s, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return ParseWAV(data)
	}
	defer s.Close()
	x := Drain(s, s.Len())
	if g := beepDecodeGain(format.Precision); g != 1 {
		for i := range x {
			x[i] *= g
		}
	}
	return Waveform{Samples: x, SampleRate: int(format.SampleRate)}, nil
}

// beepDecodeGain undoes the beep wav decoder's scaling of signed PCM, which
// divides by 2^bits-1 instead of 2^(bits-1) and so reads at half amplitude.
// The encoder writes full scale.
func beepDecodeGain(precision int) float64 {
	switch precision {
	case 2:
		return float64(1<<16-1) / (1 << 15)
	case 3:
		return float64(1<<24-1) / (1 << 23)
	}
	return 1
}

// ReadFile loads a WAV file and converts it to mono at targetRate. A missing
// file yields an error wrapping [os.ErrNotExist].
func ReadFile(path string, targetRate int) (Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: read %s: %w", path, err)
	}
	w, err := DecodeWAV(data)
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	if targetRate > 0 && w.SampleRate != targetRate {
		w = Waveform{Samples: Resample(w.Samples, w.SampleRate, targetRate), SampleRate: targetRate}
	}
	return w, nil
}

// WriteFile writes w as an uncompressed 16-bit PCM mono WAV file. Samples
// outside [-1, 1] are clipped by the encoder.
func WriteFile(path string, w Waveform) (err error) {
	rate := w.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("audio: close %s: %w", path, cerr)
		}
	}()

	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, NewStreamer(w.Samples), format); err != nil {
		return fmt.Errorf("audio: encode %s: %w", path, err)
	}
	return nil
}
