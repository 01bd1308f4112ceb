package seq2seq

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

// Encoder runs the input-side LSTM one token at a time. It owns a compiled
// graph and is not safe for concurrent use; create one per translation.
type Encoder struct {
	hidden int
	embed  embedding

	x, h, c    *gorgonia.Node
	hOut, cOut *gorgonia.Node
	vm         gorgonia.VM
}

func newEncoder(cfg Config, w *EncoderWeights) (*Encoder, error) {
	b := &builder{g: gorgonia.NewGraph()}
	e := &Encoder{hidden: cfg.Hidden}

	e.embed = b.embedding("enc_embed", w.Embed)
	cell := b.lstm("enc_lstm", w.Cell)

	e.x = b.input("enc_x", 1, e.embed.vocab)
	e.h = b.input("enc_h", 1, cfg.Hidden)
	e.c = b.input("enc_c", 1, cfg.Hidden)

	emb := e.embed.lookup(b, e.x)
	e.hOut, e.cOut = cell.step(b, emb, e.h, e.c)
	if b.err != nil {
		return nil, fmt.Errorf("build encoder graph: %w", b.err)
	}

	e.vm = gorgonia.NewTapeMachine(b.g)
	return e, nil
}

func (e *Encoder) InitHidden() State {
	return ZeroState(e.hidden)
}

// Step embeds token, advances the LSTM and returns the cell output together
// with the next state.
func (e *Encoder) Step(token int, s State) ([]float64, State, error) {
	if token < 0 || token >= e.embed.vocab {
		return nil, State{}, fmt.Errorf("%w: input token %d, vocabulary %d", ErrTokenOutOfRange, token, e.embed.vocab)
	}
	if err := s.check(e.hidden); err != nil {
		return nil, State{}, err
	}

	if err := letRow(e.x, oneHot(e.embed.vocab, token)); err != nil {
		return nil, State{}, fmt.Errorf("setting input failed: %w", err)
	}
	if err := letRow(e.h, s.H); err != nil {
		return nil, State{}, fmt.Errorf("setting hidden failed: %w", err)
	}
	if err := letRow(e.c, s.C); err != nil {
		return nil, State{}, fmt.Errorf("setting cell failed: %w", err)
	}

	e.vm.Reset()
	if err := e.vm.RunAll(); err != nil {
		return nil, State{}, fmt.Errorf("encoder step failed: %w", err)
	}

	h, err := valueOf(e.hOut)
	if err != nil {
		return nil, State{}, err
	}
	c, err := valueOf(e.cOut)
	if err != nil {
		return nil, State{}, err
	}
	out := make([]float64, len(h))
	copy(out, h)
	return out, State{H: h, C: c}, nil
}

func (e *Encoder) Close() error {
	return e.vm.Close()
}
