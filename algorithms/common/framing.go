package common

// PadCenter returns signal with frameSize/2 zeros added on both sides, the
// layout used by centered short-time analysis
func PadCenter(signal []float64, frameSize int) []float64 {
	pad := frameSize / 2
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)
	return padded
}

// NumFrames reports how many full frames of frameSize fit into n samples
// when stepping by hopSize
func NumFrames(n, frameSize, hopSize int) int {
	if frameSize <= 0 || hopSize <= 0 || n < frameSize {
		return 0
	}
	return (n-frameSize)/hopSize + 1
}

// Frames slices signal into overlapping frames. With center set, the signal
// is zero padded by frameSize/2 on each side first so frame t is centered on
// sample t*hopSize. A signal shorter than one frame yields a single
// zero-padded frame. Returned frames alias the (possibly padded) signal.
func Frames(signal []float64, frameSize, hopSize int, center bool) [][]float64 {
	if len(signal) == 0 || frameSize <= 0 || hopSize <= 0 {
		return nil
	}

	src := signal
	if center {
		src = PadCenter(signal, frameSize)
	}
	if len(src) < frameSize {
		padded := make([]float64, frameSize)
		copy(padded, src)
		return [][]float64{padded}
	}

	numFrames := NumFrames(len(src), frameSize, hopSize)
	frames := make([][]float64, numFrames)
	for i := range numFrames {
		start := i * hopSize
		frames[i] = src[start : start+frameSize]
	}
	return frames
}
