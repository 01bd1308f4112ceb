package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"math/rand"
	"os"
	"time"

	"qdmrseq/internal/text"
)

var (
	ErrUnknownMode      = errors.New("unknown dataset mode")
	ErrMissingSource    = errors.New("missing dataset source")
	ErrMissingColumn    = errors.New("missing dataset column")
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidBatchSize = errors.New("invalid batch size")
)

// Column names every source file must carry.
const (
	QuestionColumn      = "question_text"
	DecompositionColumn = "decomposition"
)

// Row is one raw line of a source file.
type Row struct {
	QuestionText  string
	Decomposition string
}

// Record is a tokenized (question, decomposition) pair.
type Record struct {
	Question      []string
	Decomposition []string
}

func MakeRecord(r Row) Record {
	return Record{
		Question:      text.WrapSentence(r.QuestionText),
		Decomposition: text.WrapSentence(text.ProcessTarget(r.Decomposition)),
	}
}

// Batch groups inputs and targets position by position.
type Batch struct {
	Inputs  [][]string
	Targets [][]string
}

func (b Batch) Len() int { return len(b.Inputs) }

// Reader holds every row of one split in memory.
type Reader struct {
	mode Mode
	rows []Row
	rng  *rand.Rand
}

type Option func(*Reader)

// WithRand makes sampling reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(r *Reader) { r.rng = rng }
}

// NewReader loads and concatenates all files of mode. Row order is kept
// within a file and files are appended in the order Sources lists them.
func NewReader(src Sources, mode Mode, opts ...Option) (*Reader, error) {
	paths, err := src.Paths(mode)
	if err != nil {
		return nil, err
	}

	r := &Reader{mode: mode}
	for _, p := range paths {
		rows, err := readFile(p)
		if err != nil {
			return nil, err
		}
		r.rows = append(r.rows, rows...)
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r, nil
}

// NewReaderFromRows wraps rows that were loaded elsewhere.
func NewReaderFromRows(mode Mode, rows []Row, opts ...Option) *Reader {
	r := &Reader{mode: mode, rows: rows}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

func readFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSource, path)
		}
		return nil, err
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// ReadRows parses a CSV stream with a header line. Columns other than
// question_text and decomposition are ignored.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, err
	}

	qi, di := -1, -1
	for i, name := range header {
		switch name {
		case QuestionColumn:
			qi = i
		case DecompositionColumn:
			di = i
		}
	}
	if qi < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, QuestionColumn)
	}
	if di < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, DecompositionColumn)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{QuestionText: rec[qi], Decomposition: rec[di]})
	}
	return rows, nil
}

func (r *Reader) Mode() Mode { return r.mode }

func (r *Reader) Len() int { return len(r.rows) }

func (r *Reader) Rows() []Row { return r.rows }

// GetAll yields every row tokenized, in table order.
func (r *Reader) GetAll() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, row := range r.rows {
			if !yield(MakeRecord(row)) {
				return
			}
		}
	}
}

// Read draws batchSize random rows and returns them as a single batch.
func (r *Reader) Read(batchSize int) ([]Batch, error) {
	return r.Sample(batchSize, batchSize)
}

// Sample draws n distinct rows at random and splits them into contiguous
// batches of batchSize. The last batch is short when batchSize does not
// divide n.
func (r *Reader) Sample(n, batchSize int) ([]Batch, error) {
	if n <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("%w: n=%d batch=%d", ErrInvalidBatchSize, n, batchSize)
	}
	if n > len(r.rows) {
		return nil, fmt.Errorf("%w: want %d rows, have %d", ErrInsufficientData, n, len(r.rows))
	}

	perm := r.rng.Perm(len(r.rows))[:n]
	records := make([]Record, n)
	for i, idx := range perm {
		records[i] = MakeRecord(r.rows[idx])
	}
	return MakeBatches(records, batchSize), nil
}

// MakeBatches chunks records in order. Every record lands in exactly one batch.
func MakeBatches(records []Record, batchSize int) []Batch {
	var batches []Batch
	for i := 0; i < len(records); i += batchSize {
		j := min(i+batchSize, len(records))
		b := Batch{
			Inputs:  make([][]string, j-i),
			Targets: make([][]string, j-i),
		}
		for k := i; k < j; k++ {
			b.Inputs[k-i] = records[k].Question
			b.Targets[k-i] = records[k].Decomposition
		}
		batches = append(batches, b)
	}
	return batches
}

// BuildVocabularies collects the question and decomposition vocabularies.
func BuildVocabularies(records iter.Seq[Record]) (in, out *text.Vocabulary) {
	in, out = text.NewVocabulary(), text.NewVocabulary()
	for rec := range records {
		in.AddSentence(rec.Question)
		out.AddSentence(rec.Decomposition)
	}
	return in, out
}
