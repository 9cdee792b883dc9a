// Package analysis extracts acoustic metrics from waveforms: pitch
// statistics, tempo, spectral shape and energy. Analysis is deterministic; the
// same waveform always yields bit-identical metrics.
package analysis

// Metrics are the acoustic measurements of one waveform. Pitch fields are
// zero when no frame is confidently voiced.
type Metrics struct {
	PitchMean             float64 `json:"pitch_mean"`
	PitchStd              float64 `json:"pitch_std"`
	PitchMin              float64 `json:"pitch_min"`
	PitchMax              float64 `json:"pitch_max"`
	TempoBPM              float64 `json:"tempo_bpm"`
	ZCRMean               float64 `json:"zcr_mean"`
	SpectralCentroidMean  float64 `json:"spectral_centroid_mean"`
	SpectralCentroidStd   float64 `json:"spectral_centroid_std"`
	SpectralRolloffMean   float64 `json:"spectral_rolloff_mean"`
	SpectralBandwidthMean float64 `json:"spectral_bandwidth_mean"`
	RMSMean               float64 `json:"rms_mean"`
	RMSStd                float64 `json:"rms_std"`
	DynamicRange          float64 `json:"dynamic_range"`
	Duration              float64 `json:"duration"`
}

// Vector returns the metrics as a fixed-order feature vector, used for
// similarity search between samples.
func (m Metrics) Vector() []float32 {
	return []float32{
		float32(m.PitchMean),
		float32(m.PitchStd),
		float32(m.PitchMin),
		float32(m.PitchMax),
		float32(m.TempoBPM),
		float32(m.ZCRMean),
		float32(m.SpectralCentroidMean),
		float32(m.SpectralCentroidStd),
		float32(m.SpectralRolloffMean),
		float32(m.SpectralBandwidthMean),
		float32(m.RMSMean),
		float32(m.RMSStd),
		float32(m.DynamicRange),
		float32(m.Duration),
	}
}

// VectorDimensions is the length of [Metrics.Vector].
const VectorDimensions = 14
