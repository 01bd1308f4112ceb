package seq2seq

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"qdmrseq/internal/text"
)

// ArgMax returns the index of the largest value, the lowest index on ties.
// v must not be empty.
func ArgMax(v []float64) int {
	return floats.MaxIdx(v)
}

// Translation is a decoded output sequence.
type Translation struct {
	Tokens []string
	// Attention has one row per emitted token and MaxLength columns.
	Attention *mat.Dense
	// Truncated is set when decoding hit MaxLength without emitting EOS.
	Truncated bool
}

// Steps returns the number of decoder steps taken.
func (t *Translation) Steps() int { return len(t.Tokens) }

// Model is the encoder/decoder pair with its output vocabulary. It is
// read-only after construction and can be shared between goroutines.
type Model struct {
	cfg Config
	w   *Weights
	out *text.Vocabulary
}

func NewModel(cfg Config, w *Weights, out *text.Vocabulary) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if out.Size() != cfg.OutputVocab {
		return nil, fmt.Errorf("%w: output vocabulary has %d words, config says %d", ErrInvalidConfig, out.Size(), cfg.OutputVocab)
	}
	if err := w.Check(cfg); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg, w: w, out: out}, nil
}

func (m *Model) Config() Config { return m.cfg }

func (m *Model) ParamCount() int { return m.w.ParamCount() }

func (m *Model) NewEncoder() (*Encoder, error) { return newEncoder(m.cfg, &m.w.Encoder) }

func (m *Model) NewDecoder() (*Decoder, error) { return newDecoder(m.cfg, &m.w.Decoder) }

// Encode runs the encoder over input and returns the filled output table
// and the final state.
func (m *Model) Encode(input []int) (*OutputTable, State, error) {
	if len(input) == 0 {
		return nil, State{}, ErrEmptyInput
	}
	if len(input) > m.cfg.MaxLength {
		return nil, State{}, fmt.Errorf("%w: %d > %d", ErrInputTooLong, len(input), m.cfg.MaxLength)
	}

	enc, err := m.NewEncoder()
	if err != nil {
		return nil, State{}, err
	}
	defer enc.Close()

	table := NewOutputTable(m.cfg.MaxLength, m.cfg.Hidden)
	state := enc.InitHidden()
	for i, tok := range input {
		var out []float64
		out, state, err = enc.Step(tok, state)
		if err != nil {
			return nil, State{}, fmt.Errorf("position %d: %w", i, err)
		}
		if err := table.Append(out); err != nil {
			return nil, State{}, err
		}
	}
	return table, state, nil
}

// Translate greedily decodes input, a sequence of input vocabulary indices.
// Decoding starts from SOS and stops after EOS or MaxLength steps.
func (m *Model) Translate(input []int) (*Translation, error) {
	table, state, err := m.Encode(input)
	if err != nil {
		return nil, err
	}

	dec, err := m.NewDecoder()
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	maxLen := m.cfg.MaxLength
	tokens := make([]string, 0, maxLen)
	attention := make([]float64, 0, maxLen*maxLen)
	current := text.SOSIndex
	finished := false

	for step := 0; step < maxLen; step++ {
		ds, err := dec.Step(current, state, table)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		state = ds.State
		attention = append(attention, ds.Attention...)

		next := ArgMax(ds.LogProbs)
		if next == text.EOSIndex {
			tokens = append(tokens, text.EOSToken)
			finished = true
			break
		}
		word, ok := m.out.Word(next)
		if !ok {
			return nil, fmt.Errorf("%w: decoded index %d", ErrTokenOutOfRange, next)
		}
		tokens = append(tokens, word)
		current = next
	}

	return &Translation{
		Tokens:    tokens,
		Attention: mat.NewDense(len(tokens), maxLen, attention),
		Truncated: !finished,
	}, nil
}
