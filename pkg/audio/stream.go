package audio

import "github.com/faiface/beep"

// drainChunk is the buffer size used when pulling samples from a streamer.
const drainChunk = 512

// sliceStreamer plays a mono slice as a beep stream with both channels
// carrying the same sample.
type sliceStreamer struct {
	samples []float64
	pos     int
}

// NewStreamer returns a [beep.Streamer] over the mono samples x.
func NewStreamer(x []float64) beep.Streamer {
	return &sliceStreamer{samples: x}
}

// Stream implements [beep.Streamer].
func (s *sliceStreamer) Stream(buf [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := 0
	for n < len(buf) && s.pos < len(s.samples) {
		v := s.samples[s.pos]
		buf[n] = [2]float64{v, v}
		n++
		s.pos++
	}
	return n, true
}

// Err implements [beep.Streamer].
func (s *sliceStreamer) Err() error { return nil }

// Drain reads s to exhaustion and returns the mono mix of its channels.
// sizeHint preallocates the result.
func Drain(s beep.Streamer, sizeHint int) []float64 {
	out := make([]float64, 0, max(sizeHint, 0))
	buf := make([][2]float64, drainChunk)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, (frame[0]+frame[1])/2)
		}
		if !ok {
			return out
		}
	}
}
