package seq2seq

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config fixes the model dimensions. MaxLength bounds both the encoder
// output table and the number of decoding steps.
type Config struct {
	Hidden      int `json:"hidden"`
	MaxLength   int `json:"max_length"`
	InputVocab  int `json:"input_vocab"`
	OutputVocab int `json:"output_vocab"`
	CacheSize   int `json:"cache_size"`
}

func DefaultConfig() Config {
	return Config{
		Hidden:    128,
		MaxLength: 100,
		CacheSize: 1024,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Hidden <= 0:
		return fmt.Errorf("%w: hidden size %d", ErrInvalidConfig, c.Hidden)
	case c.MaxLength <= 0:
		return fmt.Errorf("%w: max length %d", ErrInvalidConfig, c.MaxLength)
	case c.InputVocab <= 0:
		return fmt.Errorf("%w: input vocabulary %d", ErrInvalidConfig, c.InputVocab)
	case c.OutputVocab <= 2:
		// SOS, EOS and UNK are always present.
		return fmt.Errorf("%w: output vocabulary %d", ErrInvalidConfig, c.OutputVocab)
	case c.CacheSize < 0:
		return fmt.Errorf("%w: cache size %d", ErrInvalidConfig, c.CacheSize)
	}
	return nil
}

// LoadConfig overlays a JSON file on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

func SaveConfig(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
