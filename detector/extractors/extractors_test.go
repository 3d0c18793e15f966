package extractors

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/RyanBlaney/sonido-vox/detector/config"
)

const testRate = 16000

func sine(freq, amplitude, seconds float64) []float64 {
	out := make([]float64, int(seconds*testRate))
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

// vibrato follows f(t) = base + depth*sin(2π rate t) with integrated phase
// and adds seeded gaussian noise
func vibrato(base, depth, rate, noise, seconds float64, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, int(seconds*testRate))
	phase := 0.0
	for i := range out {
		t := float64(i) / testRate
		f := base + depth*math.Sin(2*math.Pi*rate*t)
		phase += 2 * math.Pi * f / testRate
		out[i] = 0.5*math.Sin(phase) + noise*r.NormFloat64()
	}
	return out
}

func newBuilder(t *testing.T, mode config.Mode) *Builder {
	t.Helper()
	b, err := NewBuilder(mode)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBuildProducesCompleteFiniteVector(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeRich, config.ModeFallback} {
		t.Run(string(mode), func(t *testing.T) {
			vec, set, err := newBuilder(t, mode).Build(sine(150, 0.5, 1), testRate)
			if err != nil {
				t.Fatal(err)
			}
			if len(vec) != FeatureCount {
				t.Fatalf("vector length %d, want %d", len(vec), FeatureCount)
			}
			if len(set) != FeatureCount {
				t.Fatalf("set has %d keys, want %d", len(set), FeatureCount)
			}
			for i, name := range FeatureNames {
				v, ok := set[name]
				if !ok {
					t.Fatalf("missing feature %s", name)
				}
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("feature %s not finite: %v", name, v)
				}
				if vec[i] != v {
					t.Fatalf("vector[%d] = %v, set[%s] = %v", i, vec[i], name, v)
				}
			}
			if f0 := set[FeatureF0Mean]; math.Abs(f0-150) > 3 {
				t.Fatalf("f0_mean = %v, want ~150", f0)
			}
			if d := set[FeatureDuration]; d <= 0 || d > 1 {
				t.Fatalf("duration = %v out of (0, 1]", d)
			}
		})
	}
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	b := newBuilder(t, config.ModeFallback)
	if _, _, err := b.Build(nil, testRate); !errors.Is(err, ErrEmptySignal) {
		t.Fatalf("got %v, want ErrEmptySignal", err)
	}
	if _, _, err := b.Build([]float64{1, 2}, 0); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("got %v, want ErrInvalidSampleRate", err)
	}
	if _, err := NewBuilder("turbo"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestBuildSilence(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeRich, config.ModeFallback} {
		t.Run(string(mode), func(t *testing.T) {
			vec, set, err := newBuilder(t, mode).Build(make([]float64, 8000), testRate)
			if err != nil {
				t.Fatal(err)
			}
			for i, v := range vec {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("feature %s not finite on silence", FeatureNames[i])
				}
			}
			if set[FeatureF0Mean] != 0 {
				t.Fatalf("f0_mean on silence = %v, want 0", set[FeatureF0Mean])
			}
		})
	}
}

type panicking struct{}

func (panicking) Estimate([]float64, int) (PitchStats, error) { panic("boom") }

type failing struct{}

func (failing) Analyze([]float64) (EnergyStats, error) {
	return EnergyStats{Mean: 1}, errors.New("broken")
}

func TestBuildContainsAnalyzerFailures(t *testing.T) {
	b := NewBuilderWith(NewThresholdTrimmer(), panicking{}, failing{}, NewWholeSpectrum())
	vec, set, err := b.Build(sine(200, 0.5, 0.5), testRate)
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != FeatureCount {
		t.Fatalf("vector length %d", len(vec))
	}
	for _, name := range []string{FeatureF0Mean, FeatureF0Std, FeatureJitter, FeatureEnergyMean, FeatureShimmer} {
		if set[name] != 0 {
			t.Fatalf("%s = %v, want 0 after analyzer failure", name, set[name])
		}
	}
	if set[FeatureZCRMean] == 0 {
		t.Fatal("spectral features should survive other analyzers failing")
	}
}

func TestTrimmers(t *testing.T) {
	body := make([]float64, testRate)
	for i := range body {
		body[i] = math.Cos(2 * math.Pi * 100 * float64(i) / testRate)
	}
	signal := make([]float64, 4000+len(body)+3000)
	copy(signal[4000:], body)

	for name, trimmer := range map[string]Trimmer{
		"threshold": NewThresholdTrimmer(),
		"decibel":   NewDecibelTrimmer(),
	} {
		t.Run(name, func(t *testing.T) {
			once := trimmer.Trim(signal)
			if len(once) == 0 || len(once) > len(signal) {
				t.Fatalf("trimmed length %d", len(once))
			}
			if got := trimmer.Trim([]float64{0.2}); len(got) != 1 {
				t.Fatalf("single sample trimmed to %d", len(got))
			}
			if got := trimmer.Trim(make([]float64, 10)); len(got) != 10 {
				t.Fatalf("silence trimmed to %d", len(got))
			}
		})
	}

	th := NewThresholdTrimmer()
	once := th.Trim(signal)
	if twice := th.Trim(once); len(twice) != len(once) {
		t.Fatalf("threshold trim not idempotent: %d -> %d", len(once), len(twice))
	}
}

func TestAutocorrPitchSilence(t *testing.T) {
	stats, err := AutocorrPitch{}.Estimate(make([]float64, 4000), testRate)
	if err != nil {
		t.Fatal(err)
	}
	if stats != (PitchStats{}) {
		t.Fatalf("silence pitch = %+v, want zeros", stats)
	}
}

func TestShimmerOfSteadySine(t *testing.T) {
	stats, err := NewFramedEnergy().Analyze(sine(150, 0.5, 1))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Shimmer > 0.02 {
		t.Fatalf("shimmer = %v, want ~0", stats.Shimmer)
	}
	if math.Abs(stats.Mean-0.5/math.Sqrt2) > 0.01 {
		t.Fatalf("energy mean = %v, want ~%v", stats.Mean, 0.5/math.Sqrt2)
	}
}

func TestSampleEnergy(t *testing.T) {
	stats, err := SampleEnergy{}.Analyze([]float64{-1, 1, -1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Mean != 1 || stats.Std != 0 || stats.Skew != 0 || len(stats.Frames) != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestVibratoRaisesJitter(t *testing.T) {
	b := newBuilder(t, config.ModeRich)

	_, clean, err := b.Build(sine(150, 0.5, 1.5), testRate)
	if err != nil {
		t.Fatal(err)
	}
	_, human, err := b.Build(vibrato(150, 3, 5, 0.02, 1.5, 7), testRate)
	if err != nil {
		t.Fatal(err)
	}

	if !(human[FeatureJitter] > clean[FeatureJitter]) {
		t.Fatalf("vibrato jitter %v should exceed clean jitter %v", human[FeatureJitter], clean[FeatureJitter])
	}
	if !(human[FeatureF0Std] > clean[FeatureF0Std]) {
		t.Fatalf("vibrato f0_std %v should exceed clean f0_std %v", human[FeatureF0Std], clean[FeatureF0Std])
	}
}

func TestContourStats(t *testing.T) {
	got := ContourStats([]float64{100, 110, 100, 110})
	if got.F0Mean != 105 || got.F0Std != 5 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if want := 10 / (105 + 1e-8); math.Abs(got.Jitter-want) > 1e-12 {
		t.Fatalf("jitter = %v, want %v", got.Jitter, want)
	}
	if single := ContourStats([]float64{120}); single.Jitter != 0 {
		t.Fatalf("single-frame jitter = %v, want 0", single.Jitter)
	}
}

func TestVectorSetRoundTrip(t *testing.T) {
	set := FeatureSet{FeatureJitter: 0.5, FeatureDuration: 2}
	vec := set.Vector()
	if vec[2] != 0.5 || vec[10] != 2 || vec[0] != 0 {
		t.Fatalf("unexpected vector %v", vec)
	}
	back := vec.Set()
	if len(back) != FeatureCount || back[FeatureJitter] != 0.5 {
		t.Fatalf("unexpected set %v", back)
	}
}
