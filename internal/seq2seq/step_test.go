package seq2seq

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gorgonia.org/gorgonia"

	"qdmrseq/internal/text"
)

func TestEncoderStepZeroWeights(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	m, err := NewModel(cfg, NewWeights(cfg, gorgonia.Zeroes()), out)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := m.NewEncoder()
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()

	h0 := enc.InitHidden()
	output, h1, err := enc.Step(in.Index("What"), h0)
	if err != nil {
		t.Fatal(err)
	}
	// All gates sit at sigmoid(0) and the candidate at tanh(0), so nothing moves.
	zero := make([]float64, cfg.Hidden)
	if !reflect.DeepEqual(output, zero) || !reflect.DeepEqual(h1.H, zero) || !reflect.DeepEqual(h1.C, zero) {
		t.Errorf("zero weights produced output %v state %+v", output, h1)
	}
}

func TestEncoderStepKeepsInputState(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	m, err := NewModel(cfg, RandomWeights(cfg), out)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := m.NewEncoder()
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()

	s := State{H: []float64{0.1, -0.2, 0.3, 0}, C: []float64{0, 0.5, -0.5, 1}}
	snapshot := State{H: append([]float64(nil), s.H...), C: append([]float64(nil), s.C...)}

	output, next, err := enc.Step(in.Index("is"), s)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s, snapshot) {
		t.Errorf("Step modified its input state: %+v", s)
	}
	if !reflect.DeepEqual(output, next.H) {
		t.Errorf("LSTM output %v differs from new hidden state %v", output, next.H)
	}
	for _, v := range next.H {
		if math.Abs(v) >= 1 {
			t.Errorf("hidden value %v outside (-1, 1)", v)
		}
	}

	if _, _, err := enc.Step(-1, s); !errors.Is(err, ErrTokenOutOfRange) {
		t.Errorf("Step(-1) err = %v", err)
	}
	if _, _, err := enc.Step(0, ZeroState(cfg.Hidden+1)); !errors.Is(err, ErrStateSize) {
		t.Errorf("wrong state size err = %v", err)
	}
}

func TestEncodeZeroFillsTable(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	m, err := NewModel(cfg, RandomWeights(cfg), out)
	if err != nil {
		t.Fatal(err)
	}
	table, _, err := m.Encode(question(in))
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 4 || table.Cap() != cfg.MaxLength {
		t.Fatalf("table Len=%d Cap=%d", table.Len(), table.Cap())
	}
	for i := table.Len(); i < table.Cap(); i++ {
		for _, v := range table.Row(i) {
			if v != 0 {
				t.Fatalf("row %d past the input is not zero: %v", i, table.Row(i))
			}
		}
	}
}

func TestDecoderStep(t *testing.T) {
	in, out := testVocabs()
	cfg := testConfig(in, out)
	m, err := NewModel(cfg, RandomWeights(cfg), out)
	if err != nil {
		t.Fatal(err)
	}
	table, state, err := m.Encode(question(in))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := m.NewDecoder()
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	step, err := dec.Step(text.SOSIndex, state, table)
	if err != nil {
		t.Fatal(err)
	}
	if len(step.LogProbs) != cfg.OutputVocab || len(step.Attention) != cfg.MaxLength {
		t.Fatalf("got %d log-probs and %d attention weights", len(step.LogProbs), len(step.Attention))
	}
	var mass float64
	for _, lp := range step.LogProbs {
		if lp > 0 {
			t.Errorf("log-probability %v is positive", lp)
		}
		mass += math.Exp(lp)
	}
	if math.Abs(mass-1) > 1e-6 {
		t.Errorf("probabilities sum to %v", mass)
	}
	if sum := floats.Sum(step.Attention); math.Abs(sum-1) > 1e-6 {
		t.Errorf("attention sums to %v", sum)
	}
	if len(step.State.H) != cfg.Hidden || len(step.State.C) != cfg.Hidden {
		t.Errorf("state has sizes (%d, %d)", len(step.State.H), len(step.State.C))
	}

	if _, err := dec.Step(text.SOSIndex, state, NewOutputTable(cfg.MaxLength+1, cfg.Hidden)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("wrong table err = %v", err)
	}
	if _, err := dec.Step(cfg.OutputVocab, state, table); !errors.Is(err, ErrTokenOutOfRange) {
		t.Errorf("out of range token err = %v", err)
	}
}

func TestOutputTableAppend(t *testing.T) {
	table := NewOutputTable(2, 3)
	if err := table.Append([]float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := table.Append([]float64{1, 2}); !errors.Is(err, ErrStateSize) {
		t.Errorf("short row err = %v", err)
	}
	if err := table.Append([]float64{4, 5, 6}); err != nil {
		t.Fatal(err)
	}
	if err := table.Append([]float64{7, 8, 9}); !errors.Is(err, ErrInputTooLong) {
		t.Errorf("overflow err = %v", err)
	}
	if !reflect.DeepEqual(table.Row(1), []float64{4, 5, 6}) {
		t.Errorf("Row(1) = %v", table.Row(1))
	}
}
