package trainset

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-vox/detector/classifier"
	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/detector/extractors"
)

func fallbackBuilder(t *testing.T) *extractors.Builder {
	t.Helper()
	b, err := extractors.NewBuilder(config.ModeFallback)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestGeneratorIsSeeded(t *testing.T) {
	a, b := NewGenerator(7), NewGenerator(7)
	ha, hb := a.Human(), b.Human()
	if len(ha) != 32000 {
		t.Fatalf("clip length %d, want 32000", len(ha))
	}
	for i := range ha {
		if ha[i] != hb[i] {
			t.Fatalf("sample %d differs for the same seed", i)
		}
	}

	c := NewGenerator(8).Human()
	same := true
	for i := range ha {
		if ha[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical clips")
	}
}

func TestClipsAreBounded(t *testing.T) {
	g := NewGenerator(1)
	for name, clip := range map[string][]float64{"human": g.Human(), "ai": g.AI()} {
		peak := 0.0
		for _, v := range clip {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s: non-finite sample", name)
			}
			peak = max(peak, math.Abs(v))
		}
		if peak < 0.3 || peak > 1 {
			t.Fatalf("%s: peak %v outside expected range", name, peak)
		}
	}
}

func TestEnvelope(t *testing.T) {
	y := envelope([]float64{1, 1, 1})
	want := []float64{0.8, 0.9, 1.0}
	for i := range y {
		if math.Abs(y[i]-want[i]) > 1e-12 {
			t.Fatalf("envelope = %v, want %v", y, want)
		}
	}
}

func TestBuildBalancesClasses(t *testing.T) {
	b := fallbackBuilder(t)

	data, err := Build(context.Background(), b, 6, 3)
	if err != nil {
		t.Fatal(err)
	}
	if data.Len() != 6 {
		t.Fatalf("got %d examples, want 6", data.Len())
	}
	counts := map[classifier.Label]int{}
	for i, y := range data.Y {
		counts[y]++
		if len(data.X[i]) != extractors.FeatureCount {
			t.Fatalf("row %d has %d features", i, len(data.X[i]))
		}
	}
	if counts[classifier.LabelHuman] != 3 || counts[classifier.LabelAIGenerated] != 3 {
		t.Fatalf("class counts %v", counts)
	}

	small, err := Build(context.Background(), b, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if small.Len() != 2 {
		t.Fatalf("n=1 gave %d examples, want one per class", small.Len())
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, fallbackBuilder(t), 4, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if _, err := Build(context.Background(), nil, 4, 1); err == nil {
		t.Fatal("expected error for nil builder")
	}
}

func TestSplitIsStratified(t *testing.T) {
	var d Dataset
	for i := range 10 {
		label := classifier.LabelHuman
		if i%2 == 0 {
			label = classifier.LabelAIGenerated
		}
		d.X = append(d.X, []float64{float64(i)})
		d.Y = append(d.Y, label)
	}

	train, test := Split(d, 0.2, 42)
	if train.Len() != 8 || test.Len() != 2 {
		t.Fatalf("split sizes %d/%d, want 8/2", train.Len(), test.Len())
	}
	if test.Y[0] == test.Y[1] {
		t.Fatal("test set holds a single class")
	}

	// small classes contribute one test example; a single example stays in
	// training
	train, test = Split(Dataset{
		X: [][]float64{{0}, {1}, {2}},
		Y: []classifier.Label{classifier.LabelHuman, classifier.LabelAIGenerated, classifier.LabelHuman},
	}, 0.2, 1)
	if train.Len() != 2 || test.Len() != 1 || test.Y[0] != classifier.LabelHuman {
		t.Fatalf("split sizes %d/%d (%v), want 2/1", train.Len(), test.Len(), test.Y)
	}

	train, test = Split(Dataset{
		X: [][]float64{{0}, {1}},
		Y: []classifier.Label{classifier.LabelHuman, classifier.LabelAIGenerated},
	}, 0.2, 1)
	if train.Len() != 2 || test.Len() != 0 {
		t.Fatalf("split sizes %d/%d, want 2/0", train.Len(), test.Len())
	}
}

func TestTrainerFitsSeparableSet(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeFallback
	cfg.Model.Forest.Trees = 20
	cfg.Training.Samples = 20

	b := fallbackBuilder(t)
	model, err := Trainer(cfg, b)(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if model.Kind() != classifier.KindForest {
		t.Fatalf("kind %s, want forest", model.Kind())
	}

	held, err := Build(context.Background(), b, 10, 99)
	if err != nil {
		t.Fatal(err)
	}
	report, err := Evaluate(model, held)
	if err != nil {
		t.Fatal(err)
	}
	if report.Accuracy < 0.9 {
		t.Fatalf("accuracy %v on held-out synthetic clips", report.Accuracy)
	}
	if len(report.Recall) != 2 {
		t.Fatalf("recall covers %d classes", len(report.Recall))
	}
}

func TestNewClassifierHonorsLearner(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Learner = config.LearnerLogistic
	c, err := NewClassifier(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.Kind() != classifier.KindLogistic {
		t.Fatalf("kind %s, want logistic", c.Kind())
	}

	if _, err := Evaluate(c, Dataset{}); err == nil {
		t.Fatal("expected error for empty evaluation set")
	}
}
