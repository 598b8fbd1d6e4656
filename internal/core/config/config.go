package config

import (
	"time"

	"github.com/courseforge/quizgen/internal/infra/canvas"
	"github.com/courseforge/quizgen/internal/infra/llm"
	redisclient "github.com/courseforge/quizgen/internal/infra/redis"
	"github.com/courseforge/quizgen/internal/infra/storage/postgres"
	"github.com/courseforge/quizgen/internal/pipeline/extraction"
	"github.com/courseforge/quizgen/internal/pipeline/generation"
	"github.com/courseforge/quizgen/internal/pipeline/recovery"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig           `yaml:"server"`
	Database   postgres.Config        `yaml:"database"`
	Redis      redisclient.Config     `yaml:"redis"`
	Canvas     canvas.Config          `yaml:"canvas"`
	OpenAI     llm.Config             `yaml:"openai"`
	Extraction extraction.Config      `yaml:"extraction"`
	Generation generation.Config      `yaml:"generation"`
	Sweeper    recovery.SweeperConfig `yaml:"sweeper"`
	Pipeline   PipelineConfig         `yaml:"pipeline"`
	Logging    LoggingConfig          `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// PipelineConfig holds stage worker settings.
type PipelineConfig struct {
	StageTimeout    time.Duration `yaml:"stage_timeout"`
	WorkersPerStage int           `yaml:"workers_per_stage"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
