package seq2seq

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gorgonia.org/gorgonia"

	"qdmrseq/internal/text"
)

const tol = 1e-9

func testVocabs() (in, out *text.Vocabulary) {
	in, out = text.NewVocabulary(), text.NewVocabulary()
	in.AddSentence([]string{text.SOSToken, "What", "is", text.EOSToken})
	out.AddSentence(text.WrapSentence("capital " + text.SepToken + " @@1@@"))
	return in, out
}

func testConfig(in, out *text.Vocabulary) Config {
	return Config{Hidden: 4, MaxLength: 6, InputVocab: in.Size(), OutputVocab: out.Size()}
}

func question(in *text.Vocabulary) []int {
	return in.Encode([]string{text.SOSToken, "What", "is", text.EOSToken})
}

func checkTranslation(t *testing.T, tr *Translation, maxLen int) {
	t.Helper()
	if tr.Steps() < 1 || tr.Steps() > maxLen {
		t.Fatalf("decoded %d tokens, want between 1 and %d", tr.Steps(), maxLen)
	}
	rows, cols := tr.Attention.Dims()
	if rows != tr.Steps() || cols != maxLen {
		t.Fatalf("attention is %dx%d, want %dx%d", rows, cols, tr.Steps(), maxLen)
	}
	for i := 0; i < rows; i++ {
		row := tr.Attention.RawRowView(i)
		if floats.Min(row) < 0 {
			t.Errorf("attention row %d has a negative weight: %v", i, row)
		}
		if sum := floats.Sum(row); math.Abs(sum-1) > 1e-6 {
			t.Errorf("attention row %d sums to %v", i, sum)
		}
	}
}

func TestTranslateStopsAtEOS(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	w := NewWeights(cfg, gorgonia.Zeroes())
	if err := w.Decoder.Out.B.SetAt(10.0, 0, text.EOSIndex); err != nil {
		t.Fatal(err)
	}
	m, err := NewModel(cfg, w, out)
	if err != nil {
		t.Fatal(err)
	}

	tr, err := m.Translate(question(in))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tr.Tokens, []string{text.EOSToken}) {
		t.Fatalf("Tokens = %q, want only EOS", tr.Tokens)
	}
	if tr.Truncated {
		t.Error("translation marked truncated despite EOS")
	}
	checkTranslation(t, tr, cfg.MaxLength)
	for _, a := range tr.Attention.RawRowView(0) {
		if math.Abs(a-1.0/float64(cfg.MaxLength)) > tol {
			t.Fatalf("zero weights should attend uniformly, got %v", tr.Attention.RawRowView(0))
		}
	}
}

func TestTranslateTruncatesAtMaxLength(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	w := NewWeights(cfg, gorgonia.Zeroes())
	if err := w.Decoder.Out.B.SetAt(10.0, 0, out.Index("capital")); err != nil {
		t.Fatal(err)
	}
	m, err := NewModel(cfg, w, out)
	if err != nil {
		t.Fatal(err)
	}

	tr, err := m.Translate(question(in))
	if err != nil {
		t.Fatal(err)
	}
	if tr.Steps() != cfg.MaxLength || !tr.Truncated {
		t.Fatalf("Steps() = %d truncated=%v, want %d and truncated", tr.Steps(), tr.Truncated, cfg.MaxLength)
	}
	for _, tok := range tr.Tokens {
		if tok != "capital" {
			t.Fatalf("Tokens = %q", tr.Tokens)
		}
	}
	checkTranslation(t, tr, cfg.MaxLength)
}

func TestTranslateRandomWeights(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	m, err := NewModel(cfg, RandomWeights(cfg), out)
	if err != nil {
		t.Fatal(err)
	}
	for _, input := range [][]int{
		question(in),
		{text.SOSIndex, text.EOSIndex},
		{text.SOSIndex, text.UNKIndex, text.UNKIndex, text.UNKIndex, text.UNKIndex, text.EOSIndex},
	} {
		tr, err := m.Translate(input)
		if err != nil {
			t.Fatal(err)
		}
		checkTranslation(t, tr, cfg.MaxLength)

		again, err := m.Translate(input)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(tr.Tokens, again.Tokens) {
			t.Errorf("greedy decoding is not deterministic: %q vs %q", tr.Tokens, again.Tokens)
		}
	}
}

func TestTranslateRejectsBadInput(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	m, err := NewModel(cfg, RandomWeights(cfg), out)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Translate(nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty input: err = %v", err)
	}
	long := make([]int, cfg.MaxLength+1)
	if _, err := m.Translate(long); !errors.Is(err, ErrInputTooLong) {
		t.Errorf("long input: err = %v", err)
	}
	if _, err := m.Translate([]int{text.SOSIndex, in.Size()}); !errors.Is(err, ErrTokenOutOfRange) {
		t.Errorf("out of range token: err = %v", err)
	}
}

func TestTranslateConcurrent(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	m, err := NewModel(cfg, RandomWeights(cfg), out)
	if err != nil {
		t.Fatal(err)
	}
	want, err := m.Translate(question(in))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]*Translation, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Translate(question(in))
		}(i)
	}
	wg.Wait()

	for i, tr := range results {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		if !reflect.DeepEqual(tr.Tokens, want.Tokens) {
			t.Errorf("goroutine %d decoded %q, want %q", i, tr.Tokens, want.Tokens)
		}
	}
}

func TestNewModelChecks(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)

	wrongVocab := cfg
	wrongVocab.OutputVocab++
	if _, err := NewModel(wrongVocab, NewWeights(wrongVocab, gorgonia.Zeroes()), out); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("vocabulary mismatch: err = %v", err)
	}

	wider := cfg
	wider.Hidden = 8
	if _, err := NewModel(cfg, NewWeights(wider, gorgonia.Zeroes()), out); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("shape mismatch: err = %v", err)
	}
}

func TestArgMax(t *testing.T) {
	tests := []struct {
		in   []float64
		want int
	}{
		{[]float64{0.1, 0.7, 0.2}, 1},
		{[]float64{-3, -1, -1, -2}, 1},
		{[]float64{5}, 0},
		{[]float64{2, 2, 2}, 0},
	}
	for _, tt := range tests {
		if got := ArgMax(tt.in); got != tt.want {
			t.Errorf("ArgMax(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParamCount(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	h, l := cfg.Hidden, cfg.MaxLength
	lstm := 4 * (h*h + h*h + h)
	want := cfg.InputVocab*h + lstm +
		cfg.OutputVocab*h + (2*h*l + l) + (2*h*h + h) + lstm + (h*cfg.OutputVocab + cfg.OutputVocab)
	if got := NewWeights(cfg, gorgonia.Zeroes()).ParamCount(); got != want {
		t.Errorf("ParamCount() = %d, want %d", got, want)
	}
}
