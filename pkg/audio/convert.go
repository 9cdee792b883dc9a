package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"

	"github.com/faiface/beep"
)

// resampleQuality is the beep interpolation quality used for rate conversion.
const resampleQuality = 4

// FormatConverter normalises decoded audio to the pipeline's mono working
// rate. It logs a warning on the first format mismatch.
// Create one per source; not designed for shared use across goroutines.
type FormatConverter struct {
	Target         int
	warnedMismatch sync.Once
}

// Convert downmixes interleaved multi-channel samples to mono and resamples
// them to the converter's target rate. If the source already matches the
// target, the samples are wrapped without copying.
func (c *FormatConverter) Convert(interleaved []float64, sampleRate, channels int) Waveform {
	target := c.Target
	if target <= 0 {
		target = SampleRate
	}
	if channels <= 0 {
		channels = 1
	}

	if sampleRate == target && channels == 1 {
		return Waveform{Samples: interleaved, SampleRate: target}
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from_rate", sampleRate,
			"from_channels", channels,
			"to_rate", target,
		)
	})

	mono := Downmix(interleaved, channels)
	return Waveform{Samples: Resample(mono, sampleRate, target), SampleRate: target}
}

// Downmix averages interleaved frames of the given channel count into mono.
// A trailing partial frame is dropped.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// Resample converts x from srcRate to dstRate with beep's polynomial
// resampler. The result has exactly len(x)*dstRate/srcRate samples. If the
// rates match or either is non-positive, a copy of x is returned.
func Resample(x []float64, srcRate, dstRate int) []float64 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(x) == 0 {
		return append([]float64(nil), x...)
	}
	want := int(int64(len(x)) * int64(dstRate) / int64(srcRate))
	return ResampleRatio(x, float64(srcRate)/float64(dstRate), want)
}

// ResampleRatio resamples x by ratio (old rate divided by new rate) and fixes
// the output to want samples, zero-padding or truncating as needed.
func ResampleRatio(x []float64, ratio float64, want int) []float64 {
	if want <= 0 {
		return nil
	}
	if ratio <= 0 || len(x) == 0 {
		return make([]float64, want)
	}
	r := beep.ResampleRatio(resampleQuality, ratio, NewStreamer(x))
	return FixLength(Drain(r, want), want)
}

// FixLength zero-pads or truncates x to exactly n samples.
func FixLength(x []float64, n int) []float64 {
	if len(x) >= n {
		return x[:n]
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}

// PCM16ToFloat decodes little-endian signed 16-bit PCM into samples in
// [-1, 1). A trailing odd byte is ignored.
func PCM16ToFloat(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out
}

// FloatToPCM16 encodes samples as little-endian signed 16-bit PCM, clamping to
// the int16 range.
func FloatToPCM16(x []float64) []byte {
	out := make([]byte, len(x)*2)
	for i, v := range x {
		s := math.Round(v * 32767)
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}
