package seq2seq

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// LSTM gate order.
const (
	gateInput = iota
	gateForget
	gateCell
	gateOutput
	numGates
)

// Linear holds y = xW + B for row vectors x.
type Linear struct {
	W *tensor.Dense // [in x out]
	B *tensor.Dense // [1 x out]
}

// LSTM holds one weight set per gate.
type LSTM struct {
	W [numGates]*tensor.Dense // [in x hidden]
	U [numGates]*tensor.Dense // [hidden x hidden]
	B [numGates]*tensor.Dense // [1 x hidden]
}

type EncoderWeights struct {
	Embed *tensor.Dense // [inputVocab x hidden]
	Cell  LSTM
}

type DecoderWeights struct {
	Embed   *tensor.Dense // [outputVocab x hidden]
	Attn    Linear        // [2*hidden x maxLength]
	Combine Linear        // [2*hidden x hidden]
	Cell    LSTM
	Out     Linear // [hidden x outputVocab]
}

// Weights are never written during inference, so one set can back any
// number of concurrent translations.
type Weights struct {
	Encoder EncoderWeights
	Decoder DecoderWeights
}

func newMat(init gorgonia.InitWFn, rows, cols int) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(rows, cols),
		tensor.WithBacking(init(tensor.Float64, rows, cols)),
	)
}

func newLinear(init gorgonia.InitWFn, in, out int) Linear {
	return Linear{
		W: newMat(init, in, out),
		B: newMat(gorgonia.Zeroes(), 1, out),
	}
}

func newLSTM(init gorgonia.InitWFn, in, hidden int) LSTM {
	var l LSTM
	for k := 0; k < numGates; k++ {
		l.W[k] = newMat(init, in, hidden)
		l.U[k] = newMat(init, hidden, hidden)
		l.B[k] = newMat(gorgonia.Zeroes(), 1, hidden)
	}
	return l
}

// NewWeights allocates every parameter with init. Biases start at zero.
func NewWeights(cfg Config, init gorgonia.InitWFn) *Weights {
	h := cfg.Hidden
	return &Weights{
		Encoder: EncoderWeights{
			Embed: newMat(init, cfg.InputVocab, h),
			Cell:  newLSTM(init, h, h),
		},
		Decoder: DecoderWeights{
			Embed:   newMat(init, cfg.OutputVocab, h),
			Attn:    newLinear(init, 2*h, cfg.MaxLength),
			Combine: newLinear(init, 2*h, h),
			Cell:    newLSTM(init, h, h),
			Out:     newLinear(init, h, cfg.OutputVocab),
		},
	}
}

// RandomWeights uses Glorot uniform initialization.
func RandomWeights(cfg Config) *Weights {
	return NewWeights(cfg, gorgonia.GlorotU(1.0))
}

func checkShape(name string, t *tensor.Dense, rows, cols int) error {
	if t == nil {
		return fmt.Errorf("%w: %s is nil", ErrShapeMismatch, name)
	}
	s := t.Shape()
	if len(s) != 2 || s[0] != rows || s[1] != cols {
		return fmt.Errorf("%w: %s is %v, want (%d, %d)", ErrShapeMismatch, name, s, rows, cols)
	}
	if t.Dtype() != tensor.Float64 {
		return fmt.Errorf("%w: %s has dtype %v", ErrShapeMismatch, name, t.Dtype())
	}
	return nil
}

func (l Linear) check(name string, in, out int) error {
	if err := checkShape(name+".W", l.W, in, out); err != nil {
		return err
	}
	return checkShape(name+".B", l.B, 1, out)
}

func (l LSTM) check(name string, in, hidden int) error {
	for k := 0; k < numGates; k++ {
		if err := checkShape(fmt.Sprintf("%s.W[%d]", name, k), l.W[k], in, hidden); err != nil {
			return err
		}
		if err := checkShape(fmt.Sprintf("%s.U[%d]", name, k), l.U[k], hidden, hidden); err != nil {
			return err
		}
		if err := checkShape(fmt.Sprintf("%s.B[%d]", name, k), l.B[k], 1, hidden); err != nil {
			return err
		}
	}
	return nil
}

// Check verifies every parameter against cfg.
func (w *Weights) Check(cfg Config) error {
	h := cfg.Hidden
	if err := checkShape("encoder.embed", w.Encoder.Embed, cfg.InputVocab, h); err != nil {
		return err
	}
	if err := w.Encoder.Cell.check("encoder.lstm", h, h); err != nil {
		return err
	}
	if err := checkShape("decoder.embed", w.Decoder.Embed, cfg.OutputVocab, h); err != nil {
		return err
	}
	if err := w.Decoder.Attn.check("decoder.attn", 2*h, cfg.MaxLength); err != nil {
		return err
	}
	if err := w.Decoder.Combine.check("decoder.combine", 2*h, h); err != nil {
		return err
	}
	if err := w.Decoder.Cell.check("decoder.lstm", h, h); err != nil {
		return err
	}
	return w.Decoder.Out.check("decoder.out", h, cfg.OutputVocab)
}

// ParamCount returns the number of scalar parameters.
func (w *Weights) ParamCount() int {
	var n int
	add := func(ts ...*tensor.Dense) {
		for _, t := range ts {
			n += t.Shape().TotalSize()
		}
	}
	addLSTM := func(l LSTM) {
		for k := 0; k < numGates; k++ {
			add(l.W[k], l.U[k], l.B[k])
		}
	}
	add(w.Encoder.Embed)
	addLSTM(w.Encoder.Cell)
	add(w.Decoder.Embed, w.Decoder.Attn.W, w.Decoder.Attn.B, w.Decoder.Combine.W, w.Decoder.Combine.B)
	addLSTM(w.Decoder.Cell)
	add(w.Decoder.Out.W, w.Decoder.Out.B)
	return n
}
