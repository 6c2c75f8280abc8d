package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of config.yaml
type YAMLConfig struct {
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// PipelineConfig holds the orchestration limits
type PipelineConfig struct {
	TopK               int `yaml:"top_k" validate:"min=1"`
	MaxAttempts        int `yaml:"max_attempts" validate:"min=1"`
	MaxSynthesisPasses int `yaml:"max_synthesis_passes" validate:"min=1"`
	SnippetChars       int `yaml:"snippet_chars" validate:"min=1"`
	MaxResultRows      int `yaml:"max_result_rows" validate:"min=1"`
	MaxRunSteps        int `yaml:"max_run_steps" validate:"min=8"`
}

// RetrievalConfig controls how the document corpus is chunked
type RetrievalConfig struct {
	MinChunkChars int      `yaml:"min_chunk_chars" validate:"min=0"`
	Documents     []string `yaml:"documents"` // empty means every *.md in the docs dir
}

// DefaultYAMLConfig returns the built-in settings used when no config file exists
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Pipeline: PipelineConfig{
			TopK:               4,
			MaxAttempts:        2,
			MaxSynthesisPasses: 3,
			SnippetChars:       200,
			MaxResultRows:      5,
			MaxRunSteps:        64,
		},
		Retrieval: RetrievalConfig{
			MinChunkChars: 20,
		},
	}
}

// LoadConfig loads configuration from config.yaml. A missing file yields the
// defaults; keys absent from the file keep their default values.
func LoadConfig(filepath string) (*YAMLConfig, error) {
	config := DefaultYAMLConfig()

	data, err := os.ReadFile(filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filepath, err)
	}

	return config, nil
}
