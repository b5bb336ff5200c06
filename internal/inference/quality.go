package inference

import (
	"encoding/binary"
	"math"

	"github.com/voicegate/voicegate/internal/models"
)

// silenceFloor is the normalized amplitude below which a frame counts as
// silence when computing the non-silence ratio.
const silenceFloor = 0.01

// MeasurePCM computes cheap quality indicators from 16-bit little-endian
// mono PCM. It runs locally, so orchestrators can reject unusable audio
// before paying for an inference round-trip.
func MeasurePCM(audio []byte) models.QualityIndicators {
	frames := len(audio) / 2
	if frames == 0 {
		return models.QualityIndicators{}
	}

	var sumSquares float64
	loud := 0
	for i := 0; i < frames; i++ {
		raw := int16(binary.LittleEndian.Uint16(audio[2*i:]))
		amp := float64(raw) / 32768.0
		sumSquares += amp * amp
		if math.Abs(amp) > silenceFloor {
			loud++
		}
	}

	return models.QualityIndicators{
		RMS:             math.Sqrt(sumSquares / float64(frames)),
		NonSilenceRatio: float64(loud) / float64(frames),
	}
}
