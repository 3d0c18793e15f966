package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-vox/algorithms/common"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft *FFT
}

// STFTResult holds the magnitude spectrogram of one STFT pass
type STFTResult struct {
	Magnitude  [][]float64 `json:"magnitude"`   // Time x Frequency magnitude matrix
	TimeFrames int         `json:"time_frames"` // Number of time frames
	FreqBins   int         `json:"freq_bins"`   // Number of frequency bins
	SampleRate int         `json:"sample_rate"`
	WindowSize int         `json:"window_size"`
	HopSize    int         `json:"hop_size"`
}

// Window is applied in place to every frame before the FFT
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Power returns the squared magnitude spectrogram
func (r *STFTResult) Power() [][]float64 {
	power := make([][]float64, len(r.Magnitude))
	for t, frame := range r.Magnitude {
		power[t] = make([]float64, len(frame))
		for k, mag := range frame {
			power[t][k] = mag * mag
		}
	}
	return power
}

// ComputeWithWindow computes the STFT, spreading frames over a bounded
// worker pool. With center set, frames are centered on multiples of hopSize.
func (s *STFT) ComputeWithWindow(signal []float64, windowSize, hopSize, sampleRate int, window Window, center bool) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	frames := common.Frames(signal, windowSize, hopSize, center)
	numFrames := len(frames)
	if numFrames == 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := windowSize/2 + 1
	magnitude := make([][]float64, numFrames)

	jobs := make(chan int, numFrames)
	for i := range numFrames {
		jobs <- i
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		frameErr error
	)

	for range s.workerCount(numFrames) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for idx := range jobs {
				copy(frameBuffer, frames[idx])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errOnce.Do(func() { frameErr = fmt.Errorf("frame %d: %w", idx, err) })
						continue
					}
				}

				spectrum := s.fft.Compute(frameBuffer)
				row := make([]float64, freqBins)
				for k := range freqBins {
					row[k] = cmplx.Abs(spectrum[k])
				}
				magnitude[idx] = row
			}
		}()
	}

	wg.Wait()

	if frameErr != nil {
		return nil, frameErr
	}

	return &STFTResult{
		Magnitude:  magnitude,
		TimeFrames: numFrames,
		FreqBins:   freqBins,
		SampleRate: sampleRate,
		WindowSize: windowSize,
		HopSize:    hopSize,
	}, nil
}

// workerCount never returns less than one so small inputs still get processed
func (s *STFT) workerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	workers := numCPU
	switch {
	case numFrames < 100:
		workers = numCPU / 2
	case numFrames < 1000:
		workers = min(numCPU, 8)
	}

	return max(1, min(workers, numFrames))
}
