// Package analyzer computes real-time per-frame audio diagnostics
// (RMS/peak in dB, clipping, glitches, zero-crossing rate, DC offset,
// silence) and a Hann-windowed-FFT dominant frequency estimate, then
// rolls both up across a page.
package analyzer

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	clipThreshold      = 32600
	glitchThreshold    = 20000
	silenceFloorDB     = -50.0
	fftWindowSize      = 512
	fftFreqCutoffHz    = 50.0
	fftMagnitudeFloor  = 1e-6
	freqHistogramBinHz = 50.0
)

// Frame is the set of per-frame diagnostics computed from one block of
// int16 samples.
type Frame struct {
	RMSDb            float64 // -Inf if silent
	PeakDb           float64
	DominantFreqHz   float64 // 0 if below the magnitude floor
	ClippedCount     int
	GlitchCount      int
	RepeatedCount    int
	ZeroCrossingRate float64 // per second
	DCOffsetPercent  float64
	IsSilence        bool
}

// Analyzer accumulates per-frame state (previous sample for ZCR/glitch
// continuity, and a sliding FFT buffer) across successive Process calls
// for one audio stream, and rolls per-frame results into AudioStats.
type Analyzer struct {
	sampleRate int

	havePrevSample bool
	prevSample     int16

	fftBuffer []float64
	fft       *fourier.FFT
	window    []float64

	stats AudioStats
}

// New constructs an Analyzer for a stream sampled at sampleRate Hz.
func New(sampleRate int) *Analyzer {
	a := &Analyzer{
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(fftWindowSize),
		window:     make([]float64, fftWindowSize),
	}
	for i := 0; i < fftWindowSize; i++ {
		a.window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(fftWindowSize-1)))
	}
	a.stats.reset()
	return a
}

// Process computes diagnostics for one block of decoded PCM samples
// and folds the result into the running AudioStats. The previous
// sample carries across calls so zero-crossing and glitch counts are
// continuous across short packets.
func (a *Analyzer) Process(samples []int16) Frame {
	var f Frame

	var sumSquares float64
	var peak int32
	var dcSum float64
	var crossings int
	var glitches int
	var clipped int
	var repeated int

	prev := a.prevSample
	havePrev := a.havePrevSample

	for i, s := range samples {
		sv := int32(s)
		sumSquares += float64(sv) * float64(sv)
		if abs32(sv) > peak {
			peak = abs32(sv)
		}
		if abs32(sv) >= clipThreshold {
			clipped++
		}
		dcSum += float64(sv)

		if havePrev || i > 0 {
			p := prev
			if i > 0 {
				p = samples[i-1]
			}
			if signChanged(p, s) {
				crossings++
			}
			if abs32(int32(s)-int32(p)) > glitchThreshold {
				glitches++
			}
			if s == p {
				repeated++
			}
		}
	}

	if len(samples) > 0 {
		a.prevSample = samples[len(samples)-1]
		a.havePrevSample = true
	}

	n := len(samples)
	var rms float64
	if n > 0 {
		rms = math.Sqrt(sumSquares / float64(n))
	}

	f.RMSDb = rmsToDb(rms)
	f.PeakDb = rmsToDb(float64(peak))
	f.ClippedCount = clipped
	f.GlitchCount = glitches
	f.RepeatedCount = repeated
	if n > 0 {
		f.ZeroCrossingRate = float64(crossings) / (float64(n) / float64(a.sampleRate))
		f.DCOffsetPercent = 100.0 * (dcSum / float64(n)) / 32768.0
	}
	f.IsSilence = f.RMSDb < silenceFloorDB

	a.fftBuffer = append(a.fftBuffer, int16SliceToFloat64(samples)...)
	if len(a.fftBuffer) >= fftWindowSize {
		f.DominantFreqHz = a.computeDominantFrequency()
		// retain only the last fftWindowSize samples
		a.fftBuffer = append([]float64(nil), a.fftBuffer[len(a.fftBuffer)-fftWindowSize:]...)
	}

	a.stats.fold(f)
	a.stats.AddSamples(n)
	return f
}

func (a *Analyzer) computeDominantFrequency() float64 {
	window := a.fftBuffer[len(a.fftBuffer)-fftWindowSize:]

	windowed := make([]float64, fftWindowSize)
	for i, s := range window {
		windowed[i] = s * a.window[i]
	}

	coeffs := a.fft.Coefficients(nil, windowed)

	cutoffBin := int(math.Ceil(fftFreqCutoffHz * fftWindowSize / float64(a.sampleRate)))
	nyquistBin := fftWindowSize / 2

	bestBin := -1
	bestMag := 0.0
	for i := cutoffBin; i < nyquistBin; i++ {
		re := real(coeffs[i])
		im := imag(coeffs[i])
		mag := re*re + im*im
		if mag > bestMag {
			bestMag = mag
			bestBin = i
		}
	}

	if bestBin < 0 || bestMag <= fftMagnitudeFloor {
		return 0
	}
	return float64(bestBin) * float64(a.sampleRate) / float64(fftWindowSize)
}

// Stats returns the current per-page rollup.
func (a *Analyzer) Stats() AudioStats {
	return a.stats
}

// Reset clears per-page rollup state and the FFT sliding buffer; carry
// state (previous sample) survives, matching the original's semantics
// of resetting per-page accumulators without losing continuity at a
// page boundary mid-stream.
func (a *Analyzer) Reset() {
	a.stats.reset()
	a.fftBuffer = nil
}

func rmsToDb(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(v/32768.0)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func signChanged(a, b int16) bool {
	return (a >= 0) != (b >= 0)
}

func int16SliceToFloat64(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}
