package seq2seq

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DecoderStep is the result of one attention decoder step.
type DecoderStep struct {
	LogProbs  []float64 // [outputVocab], log-softmax
	State     State
	Attention []float64 // [maxLength], sums to one
}

// Decoder is the attention LSTM decoder. Like Encoder, each instance holds
// its own compiled graph and serves a single translation at a time.
type Decoder struct {
	hidden, maxLen int
	embed          embedding

	x, h, c, enc *gorgonia.Node
	logProbs     *gorgonia.Node
	attn         *gorgonia.Node
	hOut, cOut   *gorgonia.Node
	vm           gorgonia.VM
}

func newDecoder(cfg Config, w *DecoderWeights) (*Decoder, error) {
	b := &builder{g: gorgonia.NewGraph()}
	d := &Decoder{hidden: cfg.Hidden, maxLen: cfg.MaxLength}

	d.embed = b.embedding("dec_embed", w.Embed)
	attnProj := b.linear("dec_attn", w.Attn)
	combine := b.linear("dec_combine", w.Combine)
	cell := b.lstm("dec_lstm", w.Cell)
	out := b.linear("dec_out", w.Out)

	d.x = b.input("dec_x", 1, d.embed.vocab)
	d.h = b.input("dec_h", 1, cfg.Hidden)
	d.c = b.input("dec_c", 1, cfg.Hidden)
	d.enc = b.input("dec_enc", cfg.MaxLength, cfg.Hidden)

	emb := d.embed.lookup(b, d.x)

	// Attention over every table slot, padding included.
	d.attn = b.softmax(attnProj.fwd(b, b.concat(emb, d.h)))
	context := b.mul(d.attn, d.enc)

	in := b.relu(combine.fwd(b, b.concat(emb, context)))
	d.hOut, d.cOut = cell.step(b, in, d.h, d.c)
	d.logProbs = b.log(b.softmax(out.fwd(b, d.hOut)))
	if b.err != nil {
		return nil, fmt.Errorf("build decoder graph: %w", b.err)
	}

	d.vm = gorgonia.NewTapeMachine(b.g)
	return d, nil
}

// Step feeds the previous output token and returns the next distribution.
func (d *Decoder) Step(prev int, s State, table *OutputTable) (DecoderStep, error) {
	if prev < 0 || prev >= d.embed.vocab {
		return DecoderStep{}, fmt.Errorf("%w: output token %d, vocabulary %d", ErrTokenOutOfRange, prev, d.embed.vocab)
	}
	if err := s.check(d.hidden); err != nil {
		return DecoderStep{}, err
	}
	if table.rows != d.maxLen || table.width != d.hidden {
		return DecoderStep{}, fmt.Errorf("%w: output table is (%d, %d), want (%d, %d)",
			ErrShapeMismatch, table.rows, table.width, d.maxLen, d.hidden)
	}

	if err := letRow(d.x, oneHot(d.embed.vocab, prev)); err != nil {
		return DecoderStep{}, fmt.Errorf("setting input failed: %w", err)
	}
	if err := letRow(d.h, s.H); err != nil {
		return DecoderStep{}, fmt.Errorf("setting hidden failed: %w", err)
	}
	if err := letRow(d.c, s.C); err != nil {
		return DecoderStep{}, fmt.Errorf("setting cell failed: %w", err)
	}
	encT := tensor.New(tensor.WithShape(table.rows, table.width), tensor.WithBacking(table.data))
	if err := gorgonia.Let(d.enc, encT); err != nil {
		return DecoderStep{}, fmt.Errorf("setting encoder outputs failed: %w", err)
	}

	d.vm.Reset()
	if err := d.vm.RunAll(); err != nil {
		return DecoderStep{}, fmt.Errorf("decoder step failed: %w", err)
	}

	var (
		step DecoderStep
		err  error
	)
	if step.LogProbs, err = valueOf(d.logProbs); err != nil {
		return DecoderStep{}, err
	}
	if step.Attention, err = valueOf(d.attn); err != nil {
		return DecoderStep{}, err
	}
	if step.State.H, err = valueOf(d.hOut); err != nil {
		return DecoderStep{}, err
	}
	if step.State.C, err = valueOf(d.cOut); err != nil {
		return DecoderStep{}, err
	}
	return step, nil
}

func (d *Decoder) Close() error {
	return d.vm.Close()
}
