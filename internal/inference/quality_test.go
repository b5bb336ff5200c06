package inference

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcm16(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestMeasurePCM_Silence(t *testing.T) {
	q := MeasurePCM(pcm16(make([]int16, 1600)))
	assert.Zero(t, q.RMS)
	assert.Zero(t, q.NonSilenceRatio)
}

func TestMeasurePCM_Tone(t *testing.T) {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(float64(i)/8))
	}
	q := MeasurePCM(pcm16(samples))
	assert.Greater(t, q.RMS, 0.1)
	assert.Greater(t, q.NonSilenceRatio, 0.5)
}

func TestMeasurePCM_FullScale(t *testing.T) {
	samples := []int16{-32768, -32768, -32768, -32768}
	q := MeasurePCM(pcm16(samples))
	assert.InDelta(t, 1.0, q.RMS, 1e-9)
	assert.InDelta(t, 1.0, q.NonSilenceRatio, 1e-9)
}

func TestMeasurePCM_Empty(t *testing.T) {
	q := MeasurePCM(nil)
	assert.Zero(t, q.RMS)
	assert.Zero(t, q.NonSilenceRatio)
}

func TestMeasurePCM_HalfSilent(t *testing.T) {
	samples := make([]int16, 1000)
	for i := 0; i < 500; i++ {
		samples[i] = 16000
	}
	q := MeasurePCM(pcm16(samples))
	assert.InDelta(t, 0.5, q.NonSilenceRatio, 1e-9)
}
