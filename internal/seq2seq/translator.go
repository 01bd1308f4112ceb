package seq2seq

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"gonum.org/v1/gonum/mat"

	"qdmrseq/internal/text"
)

// clone copies tr so callers never share a cached entry.
func (tr *Translation) clone() *Translation {
	return &Translation{
		Tokens:    append([]string(nil), tr.Tokens...),
		Attention: mat.DenseCopyOf(tr.Attention),
		Truncated: tr.Truncated,
	}
}

// Translator turns raw questions into decompositions, memoizing results by
// encoded input. Decoding is deterministic for fixed weights, so a cached
// Translation is identical to a fresh one.
type Translator struct {
	model *Model
	in    *text.Vocabulary
	cache *lru.Cache

	hits, misses int
}

// NewTranslator wraps model. A cacheSize of zero disables caching.
func NewTranslator(model *Model, in *text.Vocabulary, cacheSize int) (*Translator, error) {
	t := &Translator{model: model, in: in}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, err
		}
		t.cache = cache
	}
	return t, nil
}

func cacheKey(ids []int) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

// Encode tokenizes question and maps it onto the input vocabulary.
func (t *Translator) Encode(question string) []int {
	return t.in.Encode(text.WrapSentence(question))
}

func (t *Translator) Translate(question string) (*Translation, error) {
	return t.TranslateTokens(text.WrapSentence(question))
}

// TranslateTokens decodes an already wrapped sentence.
func (t *Translator) TranslateTokens(tokens []string) (*Translation, error) {
	ids := t.in.Encode(tokens)
	if t.cache == nil {
		return t.model.Translate(ids)
	}

	key := cacheKey(ids)
	if v, ok := t.cache.Get(key); ok {
		t.hits++
		return v.(*Translation).clone(), nil
	}
	t.misses++
	tr, err := t.model.Translate(ids)
	if err != nil {
		return nil, err
	}
	t.cache.Add(key, tr.clone())
	return tr, nil
}

// CacheStats reports hits and misses since construction.
func (t *Translator) CacheStats() (hits, misses int) {
	return t.hits, t.misses
}
