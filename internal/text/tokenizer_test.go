package text

import (
	"reflect"
	"strings"
	"testing"
)

func TestWrapSentence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{SOSToken, EOSToken}},
		{"only punctuation", "?! ,.", []string{SOSToken, EOSToken}},
		{"plain", "What is the capital?", []string{SOSToken, "What", "is", "the", "capital", EOSToken}},
		{"hyphen", "left-most city", []string{SOSToken, "left", "most", "city", EOSToken}},
		{"double spaces", "a  b\tc", []string{SOSToken, "a", "b", "c", EOSToken}},
		{"markers kept", "return #1 @@2@@", []string{SOSToken, "return", "#1", "@@2@@", EOSToken}},
		{"apostrophe", "Obama's wife", []string{SOSToken, "Obamas", "wife", EOSToken}},
		{"superscript digit", "x² area", []string{SOSToken, "x²", "area", EOSToken}},
		{"circled digit", "step ③", []string{SOSToken, "step", "③", EOSToken}},
		{"fraction dropped", "½ cup", []string{SOSToken, "cup", EOSToken}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapSentence(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("WrapSentence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWrapSentenceInvariants(t *testing.T) {
	inputs := []string{
		"",
		"How many yards was the longest touchdown pass?",
		"return flights ;return #1 that are non-stop",
		"--- ___ \n\n",
		"Ünïcödé wörds—dash",
	}
	for _, in := range inputs {
		got := WrapSentence(in)
		if got[0] != SOSToken || got[len(got)-1] != EOSToken {
			t.Fatalf("WrapSentence(%q) = %q: missing markers", in, got)
		}
		for _, tok := range got[1 : len(got)-1] {
			if tok == "" {
				t.Fatalf("WrapSentence(%q) produced an empty token", in)
			}
			for _, r := range tok {
				if !keepRune(r) {
					t.Fatalf("WrapSentence(%q) token %q contains %q", in, tok, r)
				}
			}
		}
	}
}

func TestProcessTarget(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"return flights ;return #1 from denver", "flights @@SEP@@ @@1@@ from denver"},
		{"a;b", "a @@SEP@@ b"},
		{"x #3 y", "x @@3@@ y"},
		{"#99", "@@99@@"},
		{"#100", "#100"},
		{"#0", "#0"},
		{"#3rd item", "@@3@@rd item"},
		{"#1_x", "@@1@@_x"},
		{"#1#2", "@@1@@@@2@@"},
		{"return   cars\n ;  return  number of  #1", "cars @@SEP@@ number of @@1@@"},
		{"Return Cars", "Return Cars"},
	}
	for _, tt := range tests {
		if got := ProcessTarget(tt.in); got != tt.want {
			t.Errorf("ProcessTarget(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessTargetIdempotent(t *testing.T) {
	inputs := []string{
		"return  papers ;return #1 by  author ; return number of #2",
		"a;b;c",
		"   spaced   out   ",
	}
	for _, in := range inputs {
		once := ProcessTarget(in)
		twice := ProcessTarget(once)
		if strings.Join(strings.Fields(once), " ") != strings.Join(strings.Fields(twice), " ") {
			t.Errorf("ProcessTarget not idempotent on %q: %q then %q", in, once, twice)
		}
	}
}

func TestFixReferences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"#1, #12 and #123", "@@1@@, @@12@@ and #123"},
		{"#3rd", "@@3@@rd"},
		{"#07", "#07"},
		{"#45.", "@@45@@."},
	}
	for _, tt := range tests {
		if got := FixReferences(tt.in); got != tt.want {
			t.Errorf("FixReferences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
