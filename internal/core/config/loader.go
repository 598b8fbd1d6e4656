package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Pipeline.StageTimeout == 0 {
		cfg.Pipeline.StageTimeout = 10 * time.Minute
	}
	if cfg.Pipeline.WorkersPerStage == 0 {
		cfg.Pipeline.WorkersPerStage = 2
	}
	if cfg.Extraction.MaxSourceChars == 0 && cfg.Extraction.MaxTotalChars == 0 {
		cfg.Extraction.TreatUnknownAsExternal = true
		cfg.Extraction.MaxSourceChars = 40000
		cfg.Extraction.MaxTotalChars = 200000
	}
	if cfg.Generation.MaxChunkChars == 0 {
		cfg.Generation.MaxChunkChars = 4000
	}
	if cfg.Generation.QuestionsPerCall == 0 {
		cfg.Generation.QuestionsPerCall = 5
	}

	return &cfg, nil
}
