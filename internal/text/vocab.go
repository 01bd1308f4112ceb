package text

import (
	"encoding/json"
	"fmt"
	"os"
)

// Reserved vocabulary indices.
const (
	SOSIndex = 0
	EOSIndex = 1
	UNKIndex = 2
)

// Vocabulary maps word-level tokens to dense indices and back.
type Vocabulary struct {
	toID   map[string]int
	toWord map[int]string
	counts map[string]int
}

// NewVocabulary returns a vocabulary holding only the reserved tokens.
func NewVocabulary() *Vocabulary {
	v := &Vocabulary{
		toID:   make(map[string]int),
		toWord: make(map[int]string),
		counts: make(map[string]int),
	}
	for i, w := range []string{SOSToken, EOSToken, UNKToken} {
		v.toID[w] = i
		v.toWord[i] = w
	}
	return v
}

// Add registers word and returns its index.
func (v *Vocabulary) Add(word string) int {
	v.counts[word]++
	if id, ok := v.toID[word]; ok {
		return id
	}
	id := len(v.toWord)
	v.toID[word] = id
	v.toWord[id] = word
	return id
}

// AddSentence registers every token of a wrapped sentence.
func (v *Vocabulary) AddSentence(tokens []string) {
	for _, t := range tokens {
		v.Add(t)
	}
}

// Index returns the index of word, or UNKIndex when the word is unknown.
func (v *Vocabulary) Index(word string) int {
	if id, ok := v.toID[word]; ok {
		return id
	}
	return UNKIndex
}

// Encode maps tokens to indices with the UNK fallback.
func (v *Vocabulary) Encode(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		ids[i] = v.Index(t)
	}
	return ids
}

func (v *Vocabulary) Word(id int) (string, bool) {
	w, ok := v.toWord[id]
	return w, ok
}

// Count returns how many times word was added.
func (v *Vocabulary) Count(word string) int {
	return v.counts[word]
}

// Size returns the number of indices, reserved tokens included.
func (v *Vocabulary) Size() int {
	return len(v.toWord)
}

// VocabData is the JSON form of a Vocabulary.
type VocabData struct {
	ToID   map[string]int `json:"to_id"`
	ToWord map[int]string `json:"to_word"`
	Size   int            `json:"size"`
}

// Data exports the vocabulary for serialization.
func (v *Vocabulary) Data() VocabData {
	return VocabData{ToID: v.toID, ToWord: v.toWord, Size: v.Size()}
}

// FromData rebuilds a vocabulary, checking that both maps agree.
func FromData(d VocabData) (*Vocabulary, error) {
	if len(d.ToID) != len(d.ToWord) || len(d.ToWord) != d.Size {
		return nil, fmt.Errorf("vocabulary size mismatch: %d ids, %d words, size %d", len(d.ToID), len(d.ToWord), d.Size)
	}
	for w, id := range d.ToID {
		if d.ToWord[id] != w {
			return nil, fmt.Errorf("vocabulary entry %q -> %d is not invertible", w, id)
		}
	}
	if d.ToWord[SOSIndex] != SOSToken || d.ToWord[EOSIndex] != EOSToken || d.ToWord[UNKIndex] != UNKToken {
		return nil, fmt.Errorf("vocabulary is missing reserved tokens")
	}
	return &Vocabulary{toID: d.ToID, toWord: d.ToWord, counts: make(map[string]int)}, nil
}

// Vocabularies pairs the question and decomposition vocabularies on disk.
type Vocabularies struct {
	Input  VocabData `json:"input"`
	Output VocabData `json:"output"`
}

func SaveVocabularies(path string, in, out *Vocabulary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Vocabularies{Input: in.Data(), Output: out.Data()})
}

func LoadVocabularies(path string) (*Vocabulary, *Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var vs Vocabularies
	if err := json.NewDecoder(f).Decode(&vs); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", path, err)
	}
	in, err := FromData(vs.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("input vocabulary: %w", err)
	}
	out, err := FromData(vs.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("output vocabulary: %w", err)
	}
	return in, out, nil
}
