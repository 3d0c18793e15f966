package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-vox/algorithms/common"
	"github.com/RyanBlaney/sonido-vox/algorithms/spectral"
)

// PitchDetectionParams contains parameters for probabilistic pitch tracking
type PitchDetectionParams struct {
	SampleRate int `json:"sample_rate"`
	FrameSize  int `json:"frame_size"`
	HopSize    int `json:"hop_size"`

	// Frequency range constraints
	MinFreq float64 `json:"min_freq"` // Minimum frequency (Hz)
	MaxFreq float64 `json:"max_freq"` // Maximum frequency (Hz)

	// Candidate probabilities
	NumThresholds  int     `json:"num_thresholds"`   // YIN thresholds spread over (0, 1]
	BetaB          float64 `json:"beta_b"`           // Threshold prior is Beta(2, BetaB)
	Boltzmann      float64 `json:"boltzmann"`        // Decay favouring earlier troughs
	NoTroughWeight float64 `json:"no_trough_weight"` // Mass given to the global minimum when no trough passes

	// Decoding
	CentsPerBin       float64 `json:"cents_per_bin"`       // Pitch grid resolution
	MaxTransitionRate float64 `json:"max_transition_rate"` // Octaves per second
	SwitchProb        float64 `json:"switch_prob"`         // Voiced/unvoiced switch probability
}

// DefaultPitchDetectionParams returns speech-oriented defaults
func DefaultPitchDetectionParams(sampleRate int) PitchDetectionParams {
	return PitchDetectionParams{
		SampleRate:        sampleRate,
		FrameSize:         2048,
		HopSize:           512,
		MinFreq:           50.0,
		MaxFreq:           500.0,
		NumThresholds:     100,
		BetaB:             18.0,
		Boltzmann:         2.0,
		NoTroughWeight:    0.01,
		CentsPerBin:       20.0,
		MaxTransitionRate: 35.92,
		SwitchProb:        0.01,
	}
}

// PitchTrack is a frame-level f0 contour. Unvoiced frames carry 0.
type PitchTrack struct {
	F0         []float64 `json:"f0"`
	Voiced     []bool    `json:"voiced"`
	VoicedProb []float64 `json:"voiced_prob"`
	HopSize    int       `json:"hop_size"`
	SampleRate int       `json:"sample_rate"`
}

// PitchDetector tracks f0 with a probabilistic YIN front end (every trough
// of the cumulative mean normalized difference gets a probability from a
// Beta prior over thresholds) and Viterbi decoding over a pitch grid with
// a parallel set of unvoiced states
//
// References:
// - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency estimator for speech and music"
// - Mauch, M., Dixon, S. (2014). "pYIN: A fundamental frequency estimator using probabilistic threshold distributions"
type PitchDetector struct {
	params PitchDetectionParams

	minPeriod  int
	maxPeriod  int
	yinWindow  int
	numBins    int
	binsPerOct float64

	thresholds []float64
	betaProbs  []float64

	transWidth    int
	logTransition []float64 // log triangle weight by bin distance
	logRowNorm    []float64 // log normalizer per source bin
}

// PitchCandidate is one refined YIN trough with its probability mass
type PitchCandidate struct {
	Frequency   float64 `json:"frequency"`
	Bin         int     `json:"bin"`
	Probability float64 `json:"probability"`
}

// NewPitchDetector creates a new pitch detector with default parameters
func NewPitchDetector(sampleRate int) (*PitchDetector, error) {
	return NewPitchDetectorWithParams(DefaultPitchDetectionParams(sampleRate))
}

// NewPitchDetectorWithParams validates params and precomputes the priors
// and transition weights
func NewPitchDetectorWithParams(params PitchDetectionParams) (*PitchDetector, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", params.SampleRate)
	}
	if params.FrameSize <= 0 || params.HopSize <= 0 {
		return nil, fmt.Errorf("invalid framing %d/%d", params.FrameSize, params.HopSize)
	}
	if params.MinFreq <= 0 || params.MaxFreq <= params.MinFreq {
		return nil, fmt.Errorf("invalid frequency range [%v, %v]", params.MinFreq, params.MaxFreq)
	}

	sr := float64(params.SampleRate)
	pd := &PitchDetector{
		params:    params,
		yinWindow: params.FrameSize / 2,
		minPeriod: max(1, int(math.Floor(sr/params.MaxFreq))),
	}
	pd.maxPeriod = min(int(math.Ceil(sr/params.MinFreq)), params.FrameSize-pd.yinWindow-1)
	if pd.maxPeriod <= pd.minPeriod+1 {
		return nil, fmt.Errorf("frame size %d too short for %v Hz", params.FrameSize, params.MinFreq)
	}

	pd.binsPerOct = 1200.0 / params.CentsPerBin
	pd.numBins = int(math.Floor(pd.binsPerOct*math.Log2(params.MaxFreq/params.MinFreq))) + 1

	pd.initThresholds()
	pd.initTransitions()
	return pd, nil
}

// initThresholds spreads NumThresholds thresholds over (0, 1] and weights
// each by the Beta(2, b) mass of its interval. The Beta(2, b) CDF is
// 1 - (1-x)^b (1 + b x).
func (pd *PitchDetector) initThresholds() {
	n := pd.params.NumThresholds
	b := pd.params.BetaB
	cdf := func(x float64) float64 {
		return 1.0 - math.Pow(1.0-x, b)*(1.0+b*x)
	}

	pd.thresholds = make([]float64, n)
	pd.betaProbs = make([]float64, n)
	for i := range n {
		lo := float64(i) / float64(n)
		hi := float64(i+1) / float64(n)
		pd.thresholds[i] = hi
		pd.betaProbs[i] = cdf(hi) - cdf(lo)
	}
}

// initTransitions builds a triangular local transition over pitch bins,
// wide enough to follow MaxTransitionRate
func (pd *PitchDetector) initTransitions() {
	semitonesPerFrame := math.Round(pd.params.MaxTransitionRate * 12.0 * float64(pd.params.HopSize) / float64(pd.params.SampleRate))
	binsPerSemitone := pd.binsPerOct / 12.0
	half := max(1, int(semitonesPerFrame*binsPerSemitone)/2)

	weights := make([]float64, half+1)
	pd.transWidth = half
	pd.logTransition = make([]float64, half+1)
	for d := range half + 1 {
		weights[d] = 1.0 - float64(d)/float64(half+1)
		pd.logTransition[d] = math.Log(weights[d])
	}

	pd.logRowNorm = make([]float64, pd.numBins)
	for i := range pd.numBins {
		sum := 0.0
		for j := max(0, i-half); j <= min(pd.numBins-1, i+half); j++ {
			sum += weights[absInt(i-j)]
		}
		pd.logRowNorm[i] = math.Log(sum)
	}
}

// Track returns the decoded pitch contour of signal. Frames are taken
// without centering, so every frame lies inside the signal. A signal
// shorter than one frame is zero padded to a single frame.
func (pd *PitchDetector) Track(signal []float64) (*PitchTrack, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	frames := common.Frames(signal, pd.params.FrameSize, pd.params.HopSize, false)
	observations := make([][]float64, len(frames))
	candidates := make([][]PitchCandidate, len(frames))
	voicedProb := make([]float64, len(frames))

	for t, frame := range frames {
		cands := pd.FrameCandidates(frame)
		candidates[t] = cands

		obs := make([]float64, 2*pd.numBins)
		total := 0.0
		for _, c := range cands {
			obs[c.Bin] += c.Probability
			total += c.Probability
		}
		total = math.Min(1.0, math.Max(0.0, total))
		unvoiced := (1.0 - total) / float64(pd.numBins)
		for b := range pd.numBins {
			obs[pd.numBins+b] = unvoiced
		}

		observations[t] = obs
		voicedProb[t] = total
	}

	states := pd.viterbi(observations)

	track := &PitchTrack{
		F0:         make([]float64, len(frames)),
		Voiced:     make([]bool, len(frames)),
		VoicedProb: voicedProb,
		HopSize:    pd.params.HopSize,
		SampleRate: pd.params.SampleRate,
	}
	for t, state := range states {
		if state >= pd.numBins {
			continue
		}
		track.Voiced[t] = true
		track.F0[t] = pd.refine(candidates[t], state)
	}

	return track, nil
}

// FrameCandidates returns the probability-weighted YIN troughs of a frame
func (pd *PitchDetector) FrameCandidates(frame []float64) []PitchCandidate {
	cmndf := pd.cumulativeMeanNormalizedDifference(frame)

	// Local minima inside the period range. A flat (silent) curve has none.
	var troughs []int
	for tau := pd.minPeriod; tau <= pd.maxPeriod; tau++ {
		isTrough := cmndf[tau] < cmndf[tau-1] && cmndf[tau] <= cmndf[tau+1]
		if tau == pd.minPeriod {
			isTrough = cmndf[tau] < cmndf[tau+1]
		}
		if isTrough {
			troughs = append(troughs, tau)
		}
	}
	if len(troughs) == 0 {
		return nil
	}

	probs := make([]float64, len(troughs))
	globalMin := 0
	for i, tau := range troughs {
		if cmndf[tau] < cmndf[troughs[globalMin]] {
			globalMin = i
		}
	}

	lambda := pd.params.Boltzmann
	for k, threshold := range pd.thresholds {
		passing := 0
		for _, tau := range troughs {
			if cmndf[tau] < threshold {
				passing++
			}
		}
		if passing == 0 {
			probs[globalMin] += pd.params.NoTroughWeight * pd.betaProbs[k]
			continue
		}

		// Boltzmann prior over the rank of each passing trough
		norm := (1.0 - math.Exp(-lambda)) / (1.0 - math.Exp(-lambda*float64(passing)))
		rank := 0
		for i, tau := range troughs {
			if cmndf[tau] >= threshold {
				continue
			}
			probs[i] += norm * math.Exp(-lambda*float64(rank)) * pd.betaProbs[k]
			rank++
		}
	}

	sr := float64(pd.params.SampleRate)
	cands := make([]PitchCandidate, 0, len(troughs))
	for i, tau := range troughs {
		if probs[i] <= 0 {
			continue
		}
		period := parabolicInterpolation(cmndf, tau)
		freq := sr / period
		if math.IsNaN(freq) || math.IsInf(freq, 0) || freq <= 0 {
			continue
		}
		cands = append(cands, PitchCandidate{
			Frequency:   freq,
			Bin:         pd.bin(freq),
			Probability: probs[i],
		})
	}
	return cands
}

// cumulativeMeanNormalizedDifference computes d'(tau) for tau in
// [0, maxPeriod+1] over a window of half the frame
func (pd *PitchDetector) cumulativeMeanNormalizedDifference(frame []float64) []float64 {
	size := pd.maxPeriod + 2
	w := pd.yinWindow

	diff := make([]float64, size)
	for tau := 1; tau < size; tau++ {
		sum := 0.0
		for j := range w {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		diff[tau] = sum
	}

	cmndf := make([]float64, size)
	cmndf[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau < size; tau++ {
		runningSum += diff[tau]
		if runningSum <= 0 {
			cmndf[tau] = 1.0
			continue
		}
		cmndf[tau] = diff[tau] * float64(tau) / runningSum
	}
	return cmndf
}

func (pd *PitchDetector) bin(freq float64) int {
	b := int(math.Round(pd.binsPerOct * math.Log2(freq/pd.params.MinFreq)))
	return max(0, min(pd.numBins-1, b))
}

// BinFrequency returns the center frequency of a pitch grid bin
func (pd *PitchDetector) BinFrequency(b int) float64 {
	return pd.params.MinFreq * math.Pow(2, float64(b)/pd.binsPerOct)
}

// refine prefers the strongest candidate that fell into the decoded bin,
// keeping sub-bin resolution, and falls back to the bin center
func (pd *PitchDetector) refine(cands []PitchCandidate, b int) float64 {
	best := -1
	for i, c := range cands {
		if c.Bin == b && (best < 0 || c.Probability > cands[best].Probability) {
			best = i
		}
	}
	if best < 0 {
		return pd.BinFrequency(b)
	}
	return cands[best].Frequency
}

// viterbi decodes the most likely state sequence. States [0, numBins) are
// voiced pitch bins and [numBins, 2*numBins) their unvoiced twins. Moving
// between the halves costs SwitchProb; within and across halves pitch moves
// follow the local triangular transition.
func (pd *PitchDetector) viterbi(observations [][]float64) []int {
	numFrames := len(observations)
	numStates := 2 * pd.numBins
	if numFrames == 0 {
		return nil
	}

	logStay := math.Log(1.0 - pd.params.SwitchProb)
	logSwitch := math.Log(pd.params.SwitchProb)

	score := make([]float64, numStates)
	initial := math.Log(1.0 / float64(numStates))
	for s := range numStates {
		score[s] = initial + safeLog(observations[0][s])
	}

	backptr := make([][]int32, numFrames)
	next := make([]float64, numStates)

	for t := 1; t < numFrames; t++ {
		backptr[t] = make([]int32, numStates)
		for s := range numStates {
			targetBin := s % pd.numBins
			targetVoiced := s < pd.numBins

			best := math.Inf(-1)
			bestFrom := 0
			lo := max(0, targetBin-pd.transWidth)
			hi := min(pd.numBins-1, targetBin+pd.transWidth)
			for fromBin := lo; fromBin <= hi; fromBin++ {
				move := pd.logTransition[absInt(fromBin-targetBin)] - pd.logRowNorm[fromBin]
				for half := range 2 {
					from := fromBin + half*pd.numBins
					voice := logStay
					if (half == 0) != targetVoiced {
						voice = logSwitch
					}
					v := score[from] + move + voice
					if v > best {
						best = v
						bestFrom = from
					}
				}
			}
			next[s] = best + safeLog(observations[t][s])
			backptr[t][s] = int32(bestFrom)
		}
		score, next = next, score
	}

	states := make([]int, numFrames)
	states[numFrames-1] = common.ArgMax(score)
	for t := numFrames - 1; t > 0; t-- {
		states[t-1] = int(backptr[t][states[t]])
	}
	return states
}

// parabolicInterpolation refines the position of an extremum at peakIdx
func parabolicInterpolation(data []float64, peakIdx int) float64 {
	if peakIdx <= 0 || peakIdx >= len(data)-1 {
		return float64(peakIdx)
	}

	y1 := data[peakIdx-1]
	y2 := data[peakIdx]
	y3 := data[peakIdx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(peakIdx)
	}

	shift := -b / (2 * a)
	if math.Abs(shift) > 1 {
		return float64(peakIdx)
	}
	return float64(peakIdx) + shift
}

func safeLog(p float64) float64 {
	return math.Log(math.Max(p, 1e-300))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// AutocorrelationPitch is a single whole-signal estimate: the lag of the
// largest autocorrelation value beyond sampleRate/500 samples. It returns 0
// when that lag is 0, which is the case for silence.
func AutocorrelationPitch(signal []float64, sampleRate int) float64 {
	if len(signal) == 0 || sampleRate <= 0 {
		return 0.0
	}

	mean := common.Mean(signal)
	centered := make([]float64, len(signal))
	for i, x := range signal {
		centered[i] = x - mean
	}

	corr := spectral.NewFFT().Autocorrelation(centered)
	for lag := 0; lag < min(len(corr), sampleRate/500); lag++ {
		corr[lag] = 0
	}

	peak := common.ArgMax(corr)
	if peak <= 0 {
		return 0.0
	}
	return float64(sampleRate) / float64(peak)
}
