package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "stats":
		runStats(os.Args[2:])
	case "vocab":
		runVocab(os.Args[2:])
	case "translate":
		runTranslate(os.Args[2:])
	case "eval":
		runEval(os.Args[2:])
	case "runs":
		runRuns(os.Args[2:])
	case "demo":
		runDemo()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("qdmrseq - question decomposition with an attention seq2seq model")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  qdmrseq stats --data DIR --mode MODE")
	fmt.Println("  qdmrseq vocab --data DIR --out DIR")
	fmt.Println("  qdmrseq translate --data DIR [--vocab FILE] [--config FILE]")
	fmt.Println("  qdmrseq eval --data DIR --mode MODE [--limit N] [--db FILE] [--out DIR]")
	fmt.Println("  qdmrseq runs --db FILE [--limit N]")
	fmt.Println("  qdmrseq demo")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  stats      Load a split and report row and vocabulary counts")
	fmt.Println("  vocab      Build question/decomposition vocabularies from a split")
	fmt.Println("  translate  Decompose questions read from stdin")
	fmt.Println("  eval       Decode a split and score exact matches")
	fmt.Println("  runs       Summarize evaluation runs logged with eval --db")
	fmt.Println("  demo       Run the built-in examples")
}
