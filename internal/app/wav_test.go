package app_test

import (
	"encoding/binary"
	"math"

	"github.com/MrWong99/prosodia/pkg/audio"
)

// sineWAV builds a 16-bit mono WAV body holding n samples of a 220 Hz tone.
func sineWAV(rate, n int) []byte {
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.4 * math.Sin(2*math.Pi*220*float64(i)/float64(rate))
	}
	pcm := audio.FloatToPCM16(x)

	le := binary.LittleEndian
	buf := make([]byte, 0, 44+len(pcm))
	buf = append(buf, "RIFF"...)
	buf = le.AppendUint32(buf, uint32(36+len(pcm)))
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
