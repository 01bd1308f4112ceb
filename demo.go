package main

import (
	"fmt"
	"log"
	"strings"

	"qdmrseq/internal/dataset"
	"qdmrseq/internal/seq2seq"
	"qdmrseq/internal/text"
)

// demoRows is a handful of Break-style examples used when no dataset is at hand.
var demoRows = []dataset.Row{
	{QuestionText: "What is the capital of France?", Decomposition: "return France ;return capital of #1"},
	{QuestionText: "How many rivers are in Spain?", Decomposition: "return Spain ;return rivers in #1 ;return number of #2"},
	{QuestionText: "Who wrote Hamlet?", Decomposition: "return Hamlet ;return author of #1"},
	{QuestionText: "Is Paris north-west of Rome?", Decomposition: "return Paris ;return Rome ;return if #1 is north-west of #2"},
	{QuestionText: "What color is the largest cube?", Decomposition: "return cubes ;return #1 that is the largest ;return color of #2"},
}

func runDemo() {
	fmt.Println("🤖 qdmrseq - Question Decomposition Demo")
	fmt.Println("========================================")

	r := dataset.NewReaderFromRows(dataset.Train, demoRows)
	fmt.Printf("Demo corpus: %d rows\n", r.Len())

	fmt.Println("\n📝 Tokenized examples:")
	for rec := range r.GetAll() {
		fmt.Printf("  %s\n    → %s\n", strings.Join(rec.Question, " "), strings.Join(rec.Decomposition, " "))
	}

	in, out := dataset.BuildVocabularies(r.GetAll())
	fmt.Printf("\nVocabulary: %d question tokens, %d decomposition tokens\n", in.Size(), out.Size())

	cfg := seq2seq.DefaultConfig()
	cfg.Hidden = 32
	cfg.MaxLength = 24
	cfg.InputVocab = in.Size()
	cfg.OutputVocab = out.Size()

	fmt.Println("\n🧠 Initializing model...")
	model, err := seq2seq.NewModel(cfg, seq2seq.RandomWeights(cfg), out)
	if err != nil {
		log.Fatalf("Model setup failed: %v", err)
	}
	fmt.Printf("Model parameters: %d\n", model.ParamCount())
	fmt.Printf("Architecture: LSTM encoder %d -> %d, attention LSTM decoder %d -> %d\n",
		cfg.InputVocab, cfg.Hidden, cfg.Hidden, cfg.OutputVocab)
	fmt.Println("Weights are untrained; outputs show the decoding loop, not real decompositions.")

	tr, err := seq2seq.NewTranslator(model, in, cfg.CacheSize)
	if err != nil {
		log.Fatalf("Model setup failed: %v", err)
	}

	fmt.Println("\n🎯 Decoding:")
	for _, q := range []string{"What is the capital of Spain?", "Who wrote Hamlet?", "How many cubes are there?"} {
		res, err := tr.Translate(q)
		if err != nil {
			fmt.Printf("Decoding failed: %v\n", err)
			continue
		}
		fmt.Printf("\nQuestion: %q\n", q)
		fmt.Printf("Output (%d steps, truncated=%v): %s\n", res.Steps(), res.Truncated, strings.Join(res.Tokens, " "))

		// Most attended encoder position per step.
		nIn := len(text.WrapSentence(q))
		var focus []string
		for i := 0; i < res.Steps(); i++ {
			row := res.Attention.RawRowView(i)
			focus = append(focus, fmt.Sprint(seq2seq.ArgMax(row[:nIn])))
		}
		fmt.Printf("Attention focus: %s\n", strings.Join(focus, " "))
	}

	fmt.Println("\n✅ Demo complete!")
}
