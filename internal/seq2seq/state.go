package seq2seq

import "fmt"

// State is the LSTM hidden and cell vectors carried between steps.
// Steps return a fresh State; the one passed in is never modified.
type State struct {
	H []float64
	C []float64
}

func ZeroState(hidden int) State {
	return State{H: make([]float64, hidden), C: make([]float64, hidden)}
}

func (s State) check(hidden int) error {
	if len(s.H) != hidden || len(s.C) != hidden {
		return fmt.Errorf("%w: got (%d, %d), want %d", ErrStateSize, len(s.H), len(s.C), hidden)
	}
	return nil
}

// OutputTable stores one encoder output per input position. Rows past the
// input length stay zero.
type OutputTable struct {
	rows, width int
	filled      int
	data        []float64
}

func NewOutputTable(rows, width int) *OutputTable {
	return &OutputTable{rows: rows, width: width, data: make([]float64, rows*width)}
}

// Append writes the next position.
func (t *OutputTable) Append(v []float64) error {
	if t.filled >= t.rows {
		return fmt.Errorf("%w: table holds %d positions", ErrInputTooLong, t.rows)
	}
	if len(v) != t.width {
		return fmt.Errorf("%w: output has %d values, want %d", ErrStateSize, len(v), t.width)
	}
	copy(t.data[t.filled*t.width:], v)
	t.filled++
	return nil
}

func (t *OutputTable) Row(i int) []float64 {
	return t.data[i*t.width : (i+1)*t.width]
}

// Len returns the number of positions written.
func (t *OutputTable) Len() int { return t.filled }

func (t *OutputTable) Cap() int { return t.rows }
