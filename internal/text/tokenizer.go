package text

import (
	"regexp"
	"strings"
	"unicode"
)

// Special tokens shared by the dataset reader and the model.
const (
	SOSToken = "@@SOS@@"
	EOSToken = "@@EOS@@"
	SepToken = "@@SEP@@"
	UNKToken = "@@UNK@@"
)

// returnKeyword is stripped from every decomposition clause.
const returnKeyword = "return"

// referencePattern takes the whole digit run so a third digit can veto the
// rewrite in FixReferences.
var referencePattern = regexp.MustCompile(`#[1-9][0-9]*`)

// digitLike holds the non-decimal digits (superscripts, subscripts, circled
// and dingbat digits) that keep a word alongside unicode.IsDigit.
var digitLike = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00b2, Hi: 0x00b3, Stride: 1},
		{Lo: 0x00b9, Hi: 0x00b9, Stride: 1},
		{Lo: 0x1369, Hi: 0x1371, Stride: 1},
		{Lo: 0x19da, Hi: 0x19da, Stride: 1},
		{Lo: 0x2070, Hi: 0x2070, Stride: 1},
		{Lo: 0x2074, Hi: 0x2079, Stride: 1},
		{Lo: 0x2080, Hi: 0x2089, Stride: 1},
		{Lo: 0x2460, Hi: 0x2468, Stride: 1},
		{Lo: 0x2474, Hi: 0x247c, Stride: 1},
		{Lo: 0x2488, Hi: 0x2490, Stride: 1},
		{Lo: 0x24ea, Hi: 0x24ea, Stride: 1},
		{Lo: 0x24f5, Hi: 0x24fd, Stride: 1},
		{Lo: 0x24ff, Hi: 0x24ff, Stride: 1},
		{Lo: 0x2776, Hi: 0x277e, Stride: 1},
		{Lo: 0x2780, Hi: 0x2788, Stride: 1},
		{Lo: 0x278a, Hi: 0x2792, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x10a40, Hi: 0x10a43, Stride: 1},
		{Lo: 0x1f100, Hi: 0x1f10a, Stride: 1},
	},
	LatinOffset: 2,
}

func isSplit(r rune) bool {
	return unicode.IsSpace(r) || r == '-'
}

func keepRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(digitLike, r) || unicode.IsUpper(r) || r == '#' || r == '@'
}

// removeTokens drops every rune that is not part of a word or a marker.
func removeTokens(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WrapSentence splits a sentence into cleaned words and wraps them with the
// start and end markers. An input with no surviving words yields just the
// two markers.
func WrapSentence(sentence string) []string {
	fields := strings.FieldsFunc(sentence, isSplit)
	words := make([]string, 0, len(fields)+2)
	words = append(words, SOSToken)
	for _, f := range fields {
		if w := removeTokens(f); w != "" {
			words = append(words, w)
		}
	}
	return append(words, EOSToken)
}

// FixReferences rewrites step references such as #2 into @@2@@.
// Only one and two digit references are rewritten; #0 and #100 are left
// alone, while a trailing letter does not block the rewrite (#3rd).
func FixReferences(s string) string {
	return referencePattern.ReplaceAllStringFunc(s, func(ref string) string {
		if len(ref) > 3 {
			return ref
		}
		return "@@" + ref[1:] + "@@"
	})
}

// ProcessTarget normalizes a QDMR decomposition into the form the decoder
// is trained on: one clause per step joined by SepToken, with "return"
// removed and references rewritten.
func ProcessTarget(target string) string {
	collapsed := strings.Join(strings.Fields(target), " ")

	parts := strings.Split(collapsed, ";")
	clauses := make([]string, len(parts))
	for i, part := range parts {
		clause := strings.ReplaceAll(strings.TrimSpace(part), returnKeyword, "")
		clauses[i] = strings.TrimSpace(clause)
	}

	joined := strings.Join(clauses, " "+SepToken+" ")
	return strings.TrimSpace(FixReferences(joined))
}
