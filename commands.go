package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"qdmrseq/internal/dataset"
	"qdmrseq/internal/seq2seq"
	"qdmrseq/internal/store"
	"qdmrseq/internal/text"
)

// EvalConfig collects the eval subcommand flags.
type EvalConfig struct {
	Data    dataFlags
	Model   modelFlags
	Limit   int
	Batch   int
	Seed    int64
	DB      string
	Out     string
	Verbose bool
}

// Manifest describes an evaluation run.
type Manifest struct {
	DataDir      string    `json:"data_dir"`
	Mode         string    `json:"mode"`
	Rows         int       `json:"rows"`
	DataHash     string    `json:"data_hash"`
	Hidden       int       `json:"hidden"`
	MaxLength    int       `json:"max_length"`
	InputVocab   int       `json:"input_vocab"`
	OutputVocab  int       `json:"output_vocab"`
	Params       int       `json:"params"`
	Limit        int       `json:"limit"`
	Seed         int64     `json:"seed"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
	BuildVersion string    `json:"build_version"`
}

type EvalMetrics struct {
	Run            string  `json:"run"`
	Mode           string  `json:"mode"`
	Total          int     `json:"total"`
	Skipped        int     `json:"skipped"`
	Exact          int     `json:"exact"`
	Truncated      int     `json:"truncated"`
	ExactMatch     float64 `json:"exact_match"`
	TruncationRate float64 `json:"truncation_rate"`
	MeanLength     float64 `json:"mean_length"`
	CacheHits      int     `json:"cache_hits"`
	CacheMisses    int     `json:"cache_misses"`
}

type dataFlags struct {
	Dir     string
	Sources string
	Mode    string
}

func (d *dataFlags) register(fs *flag.FlagSet, defaultMode string) {
	fs.StringVar(&d.Dir, "data", "", "Directory holding the split CSV files (required)")
	fs.StringVar(&d.Sources, "sources", "", "JSON file mapping modes to CSV files")
	fs.StringVar(&d.Mode, "mode", defaultMode, "Dataset split: train, test or dev")
}

func (d *dataFlags) sources() (dataset.Sources, error) {
	if d.Sources == "" {
		return dataset.DefaultSources(d.Dir), nil
	}
	src, err := dataset.LoadSources(d.Sources)
	if err != nil {
		return src, err
	}
	if src.Dir == "" {
		src.Dir = d.Dir
	}
	return src, nil
}

func (d *dataFlags) open(opts ...dataset.Option) (*dataset.Reader, error) {
	mode, err := dataset.ParseMode(d.Mode)
	if err != nil {
		return nil, err
	}
	src, err := d.sources()
	if err != nil {
		return nil, err
	}
	return dataset.NewReader(src, mode, opts...)
}

type modelFlags struct {
	Config string
	Vocab  string
}

func (m *modelFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&m.Config, "config", "", "Model config JSON (defaults apply when empty)")
	fs.StringVar(&m.Vocab, "vocab", "", "vocab.json from the vocab command (built from the train split when empty)")
}

// load builds the vocabularies and a model around them. Weights are
// freshly initialized; there is no checkpoint format.
func (m *modelFlags) load(data dataFlags) (*seq2seq.Translator, *seq2seq.Model, error) {
	var in, out *text.Vocabulary
	if m.Vocab != "" {
		var err error
		if in, out, err = text.LoadVocabularies(m.Vocab); err != nil {
			return nil, nil, fmt.Errorf("load vocabulary: %w", err)
		}
	} else {
		trainData := data
		trainData.Mode = string(dataset.Train)
		r, err := trainData.open()
		if err != nil {
			return nil, nil, fmt.Errorf("load train split for vocabulary: %w", err)
		}
		in, out = dataset.BuildVocabularies(r.GetAll())
	}

	cfg := seq2seq.DefaultConfig()
	if m.Config != "" {
		var err error
		if cfg, err = seq2seq.LoadConfig(m.Config); err != nil {
			return nil, nil, err
		}
	}
	cfg.InputVocab = in.Size()
	cfg.OutputVocab = out.Size()

	model, err := seq2seq.NewModel(cfg, seq2seq.RandomWeights(cfg), out)
	if err != nil {
		return nil, nil, err
	}
	tr, err := seq2seq.NewTranslator(model, in, cfg.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	return tr, model, nil
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var data dataFlags
	data.register(fs, string(dataset.Train))
	fs.Parse(args)

	if data.Dir == "" && data.Sources == "" {
		fmt.Println("Error: --data or --sources is required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	fmt.Printf("📚 Loading %s split from %s...\n", data.Mode, data.Dir)
	r, err := data.open()
	if err != nil {
		log.Fatalf("Error loading dataset: %v", err)
	}
	fmt.Printf("   Rows: %d\n", r.Len())

	in, out := dataset.BuildVocabularies(r.GetAll())
	var qLens, dLens []float64
	for rec := range r.GetAll() {
		qLens = append(qLens, float64(len(rec.Question)))
		dLens = append(dLens, float64(len(rec.Decomposition)))
	}
	fmt.Printf("   Question vocabulary: %d\n", in.Size())
	fmt.Printf("   Decomposition vocabulary: %d\n", out.Size())
	if r.Len() > 0 {
		fmt.Printf("   Mean question length: %.1f tokens (max %.0f)\n", stat.Mean(qLens, nil), floats.Max(qLens))
		fmt.Printf("   Mean decomposition length: %.1f tokens (max %.0f)\n", stat.Mean(dLens, nil), floats.Max(dLens))
	}
}

func runVocab(args []string) {
	fs := flag.NewFlagSet("vocab", flag.ExitOnError)
	var data dataFlags
	data.register(fs, string(dataset.Train))
	var out string
	fs.StringVar(&out, "out", "", "Output directory (required)")
	fs.Parse(args)

	if out == "" || (data.Dir == "" && data.Sources == "") {
		fmt.Println("Error: --data and --out are required")
		fs.PrintDefaults()
		os.Exit(1)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		log.Fatalf("Error creating output directory: %v", err)
	}

	r, err := data.open()
	if err != nil {
		log.Fatalf("Error loading dataset: %v", err)
	}
	in, outVocab := dataset.BuildVocabularies(r.GetAll())

	vocabPath := filepath.Join(out, "vocab.json")
	if err := text.SaveVocabularies(vocabPath, in, outVocab); err != nil {
		log.Fatalf("Error saving vocabulary: %v", err)
	}
	fmt.Printf("📝 Vocabulary saved to: %s (%d question tokens, %d decomposition tokens)\n",
		vocabPath, in.Size(), outVocab.Size())
}

func runTranslate(args []string) {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	var (
		data  dataFlags
		model modelFlags
	)
	data.register(fs, string(dataset.Train))
	model.register(fs)
	fs.Parse(args)

	if model.Vocab == "" && data.Dir == "" && data.Sources == "" {
		fmt.Println("Error: --vocab or --data is required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	tr, _, err := model.load(data)
	if err != nil {
		log.Fatalf("Error building model: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if len(q) == 0 {
			continue
		}
		res, err := tr.Translate(q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error translating %q: %v\n", q, err)
			continue
		}
		line := strings.Join(stripMarkers(res.Tokens), " ")
		if res.Truncated {
			line += " [truncated]"
		}
		fmt.Println(line)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Error reading stdin: %v", err)
	}
}

func runEval(args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	var cfg EvalConfig
	cfg.Data.register(fs, string(dataset.Dev))
	cfg.Model.register(fs)
	fs.IntVar(&cfg.Limit, "limit", 0, "Evaluate a random sample of this many rows (0 for all)")
	fs.IntVar(&cfg.Batch, "batch", 64, "Rows per progress batch when sampling")
	fs.Int64Var(&cfg.Seed, "seed", 0, "Sampling seed (0 for random)")
	fs.StringVar(&cfg.DB, "db", "", "SQLite file to log predictions to")
	fs.StringVar(&cfg.Out, "out", "", "Directory for metrics.json and manifest.json")
	fs.BoolVar(&cfg.Verbose, "v", false, "Print every prediction")
	fs.Parse(args)

	if cfg.Data.Dir == "" && cfg.Data.Sources == "" {
		fmt.Println("Error: --data or --sources is required")
		fs.PrintDefaults()
		os.Exit(1)
	}
	if err := evaluate(context.Background(), cfg); err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}
}

func runRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	var dbPath string
	var limit int
	fs.StringVar(&dbPath, "db", "", "SQLite file written by eval --db (required)")
	fs.IntVar(&limit, "limit", 0, "Show only the newest N runs (0 for all)")
	fs.Parse(args)

	if dbPath == "" {
		fmt.Println("Error: --db is required")
		fs.PrintDefaults()
		os.Exit(1)
	}
	if err := listRuns(context.Background(), os.Stdout, dbPath, limit); err != nil {
		log.Fatalf("Error reading evaluation log: %v", err)
	}
}

// listRuns prints one summary line per logged run, newest first.
func listRuns(ctx context.Context, w io.Writer, dbPath string, limit int) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	fmt.Fprintf(w, "📒 %d runs in %s\n", len(runs), dbPath)
	for _, run := range runs {
		sum, err := db.Summary(ctx, run)
		if err != nil {
			return err
		}
		exact := 0.0
		if sum.Total > 0 {
			exact = float64(sum.Exact) / float64(sum.Total) * 100
		}
		fmt.Fprintf(w, "   %s: %d decoded, exact %.2f%%, truncated %d, mean steps %.1f\n",
			run, sum.Total, exact, sum.Truncated, sum.MeanSteps)
	}
	return nil
}

func evaluate(ctx context.Context, cfg EvalConfig) error {
	fmt.Printf("🧪 Evaluating %s split\n", cfg.Data.Mode)
	fmt.Printf("==================\n\n")

	var opts []dataset.Option
	if cfg.Seed != 0 {
		opts = append(opts, dataset.WithRand(rand.New(rand.NewSource(cfg.Seed))))
	}
	r, err := cfg.Data.open(opts...)
	if err != nil {
		return err
	}
	fmt.Printf("   Rows: %d\n", r.Len())

	tr, model, err := cfg.Model.load(cfg.Data)
	if err != nil {
		return err
	}
	mcfg := model.Config()
	fmt.Printf("\n🧠 Model configuration:\n")
	fmt.Printf("   Hidden: %d, max length: %d\n", mcfg.Hidden, mcfg.MaxLength)
	fmt.Printf("   Vocabulary: %d in, %d out\n", mcfg.InputVocab, mcfg.OutputVocab)

	var records []dataset.Record
	if cfg.Limit > 0 {
		batches, err := r.Sample(cfg.Limit, cfg.Batch)
		if err != nil {
			return err
		}
		for _, b := range batches {
			for i := range b.Inputs {
				records = append(records, dataset.Record{Question: b.Inputs[i], Decomposition: b.Targets[i]})
			}
		}
	} else {
		for rec := range r.GetAll() {
			records = append(records, rec)
		}
	}

	var db *store.Store
	if cfg.DB != "" {
		if db, err = store.Open(cfg.DB); err != nil {
			return err
		}
		defer db.Close()
	}

	run := fmt.Sprintf("%s-%d", cfg.Data.Mode, time.Now().Unix())
	metrics := EvalMetrics{Run: run, Mode: cfg.Data.Mode}
	var lengths []float64

	fmt.Printf("\n🔎 Decoding %d questions...\n", len(records))
	for i, rec := range records {
		res, err := tr.TranslateTokens(rec.Question)
		if errors.Is(err, seq2seq.ErrInputTooLong) {
			metrics.Skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}

		predicted := strings.Join(stripMarkers(res.Tokens), " ")
		gold := strings.Join(stripMarkers(rec.Decomposition), " ")
		exact := predicted == gold

		metrics.Total++
		lengths = append(lengths, float64(res.Steps()))
		if exact {
			metrics.Exact++
		}
		if res.Truncated {
			metrics.Truncated++
		}
		if cfg.Verbose {
			fmt.Printf("   %q\n     → %s\n", strings.Join(stripMarkers(rec.Question), " "), predicted)
		}

		if db != nil {
			err := db.Record(ctx, store.Prediction{
				Run:       run,
				Mode:      cfg.Data.Mode,
				Question:  strings.Join(stripMarkers(rec.Question), " "),
				Gold:      gold,
				Predicted: predicted,
				Steps:     res.Steps(),
				Truncated: res.Truncated,
				Exact:     exact,
			})
			if err != nil {
				return err
			}
		}
		if (i+1)%100 == 0 {
			fmt.Printf("   %d/%d decoded\n", i+1, len(records))
		}
	}

	if metrics.Total > 0 {
		metrics.ExactMatch = float64(metrics.Exact) / float64(metrics.Total)
		metrics.TruncationRate = float64(metrics.Truncated) / float64(metrics.Total)
		metrics.MeanLength = stat.Mean(lengths, nil)
	}
	metrics.CacheHits, metrics.CacheMisses = tr.CacheStats()

	fmt.Printf("\n✅ Evaluation complete!\n")
	fmt.Printf("   Decoded: %d (skipped %d over max length)\n", metrics.Total, metrics.Skipped)
	fmt.Printf("   Exact match: %.2f%%\n", metrics.ExactMatch*100)
	fmt.Printf("   Truncated: %.2f%%\n", metrics.TruncationRate*100)
	fmt.Printf("   Mean output length: %.1f\n", metrics.MeanLength)
	fmt.Printf("   Cache: %d hits, %d misses\n", metrics.CacheHits, metrics.CacheMisses)

	if db != nil {
		sum, err := db.Summary(ctx, run)
		if err != nil {
			return err
		}
		fmt.Printf("💾 Logged %d predictions to %s (run %s)\n", sum.Total, cfg.DB, run)
	}

	if cfg.Out == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Out, 0755); err != nil {
		return err
	}
	metricsPath := filepath.Join(cfg.Out, "metrics.json")
	if err := saveJSON(metricsPath, metrics); err != nil {
		return err
	}
	fmt.Printf("📊 Metrics saved to: %s\n", metricsPath)

	manifestPath := filepath.Join(cfg.Out, "manifest.json")
	manifest := Manifest{
		DataDir:      cfg.Data.Dir,
		Mode:         cfg.Data.Mode,
		Rows:         r.Len(),
		DataHash:     hashRows(r.Rows()),
		Hidden:       mcfg.Hidden,
		MaxLength:    mcfg.MaxLength,
		InputVocab:   mcfg.InputVocab,
		OutputVocab:  mcfg.OutputVocab,
		Params:       model.ParamCount(),
		Limit:        cfg.Limit,
		Seed:         cfg.Seed,
		EvaluatedAt:  time.Now(),
		BuildVersion: "dev",
	}
	if err := saveJSON(manifestPath, manifest); err != nil {
		return err
	}
	fmt.Printf("📋 Manifest saved to: %s\n", manifestPath)
	return nil
}

// stripMarkers drops SOS and EOS wherever they appear.
func stripMarkers(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != text.SOSToken && t != text.EOSToken {
			out = append(out, t)
		}
	}
	return out
}

func hashRows(rows []dataset.Row) string {
	h := sha256.New()
	for _, r := range rows {
		fmt.Fprintf(h, "%s\x00%s\n", r.QuestionText, r.Decomposition)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

func saveJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
