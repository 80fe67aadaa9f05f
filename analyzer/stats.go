package analyzer

import "math"

// AudioStats is the per-page rollup of per-frame Frame values:
// running maxima/means plus a binned dominant-frequency histogram.
type AudioStats struct {
	PeakRMSDb     float64 // running max of Frame.RMSDb (ignoring -Inf)
	MaxPeakDb     float64
	AvgRMSDb      float64 // mean over finite RMSDb values only
	AvgZCR        float64
	AvgDCPct      float64
	TotalClipped  int
	TotalGlitches int
	TotalRepeated int
	TotalSamples  int
	TotalFrames   int
	SilentFrames  int

	DominantFreqHz float64

	finiteRMSSum   float64
	finiteRMSCount int
	zcrSum         float64
	dcSum          float64
	freqHistogram  map[int]int
}

func (s *AudioStats) reset() {
	*s = AudioStats{
		PeakRMSDb:     math.Inf(-1),
		MaxPeakDb:     math.Inf(-1),
		freqHistogram: make(map[int]int),
	}
}

func (s *AudioStats) fold(f Frame) {
	s.TotalFrames++
	s.TotalClipped += f.ClippedCount
	s.TotalGlitches += f.GlitchCount
	s.TotalRepeated += f.RepeatedCount
	s.zcrSum += f.ZeroCrossingRate
	s.dcSum += f.DCOffsetPercent

	if f.IsSilence {
		s.SilentFrames++
	}

	if !math.IsInf(f.RMSDb, -1) {
		if f.RMSDb > s.PeakRMSDb {
			s.PeakRMSDb = f.RMSDb
		}
		s.finiteRMSSum += f.RMSDb
		s.finiteRMSCount++
	}
	if !math.IsInf(f.PeakDb, -1) && f.PeakDb > s.MaxPeakDb {
		s.MaxPeakDb = f.PeakDb
	}

	if f.DominantFreqHz > 0 {
		bin := int(f.DominantFreqHz / freqHistogramBinHz)
		s.freqHistogram[bin]++
	}

	s.AvgZCR = s.zcrSum / float64(s.TotalFrames)
	s.AvgDCPct = s.dcSum / float64(s.TotalFrames)
	if s.finiteRMSCount > 0 {
		s.AvgRMSDb = s.finiteRMSSum / float64(s.finiteRMSCount)
	}
	s.DominantFreqHz = s.argmaxFrequencyBin()
}

// argmaxFrequencyBin returns the bin centre of the most frequently
// observed dominant-frequency bin, breaking ties toward the
// lowest-indexed bin (deterministic arbitrary tie-break).
func (s *AudioStats) argmaxFrequencyBin() float64 {
	if len(s.freqHistogram) == 0 {
		return 0
	}
	bestBin := -1
	bestCount := 0
	// deterministic ascending scan so ties resolve to lowest bin
	maxBin := 0
	for b := range s.freqHistogram {
		if b > maxBin {
			maxBin = b
		}
	}
	for b := 0; b <= maxBin; b++ {
		count, ok := s.freqHistogram[b]
		if !ok {
			continue
		}
		if count > bestCount {
			bestCount = count
			bestBin = b
		}
	}
	if bestBin < 0 {
		return 0
	}
	return (float64(bestBin) + 0.5) * freqHistogramBinHz
}

// AddSamples adds n to the total decoded sample count, which isn't
// derived from Frame; Analyzer.Process calls it for every block.
func (s *AudioStats) AddSamples(n int) {
	s.TotalSamples += n
}
