package extraction

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/courseforge/quizgen/internal/core/domain"
)

// Config holds content extraction settings.
type Config struct {
	// MaxSourceChars caps a single manual source's content; excess is truncated.
	MaxSourceChars int `yaml:"max_source_chars"`
	// MaxTotalChars caps aggregate manual content; sources past the ceiling
	// are dropped.
	MaxTotalChars int `yaml:"max_total_chars"`
	// TreatUnknownAsExternal preserves the legacy fallback of routing unknown
	// source types through external retrieval.
	TreatUnknownAsExternal bool `yaml:"treat_unknown_as_external"`
}

// DefaultConfig provides sensible extraction defaults.
func DefaultConfig() Config {
	return Config{
		MaxSourceChars:         40000,
		MaxTotalChars:          200000,
		TreatUnknownAsExternal: true,
	}
}

// Categorized is the result of partitioning a quiz's configured sources.
type Categorized struct {
	// ExternalIDs are numeric module identifiers needing batched retrieval.
	ExternalIDs []int
	// ManualFragments wraps manual sources into the fragment shape, no
	// retrieval call involved.
	ManualFragments map[string][]domain.Fragment
	// Cleaned is the source mapping stripped of transient fields (raw
	// content, processing metadata), ready to be persisted back so the next
	// run doesn't re-process literal content.
	Cleaned map[string]domain.Source
}

// Categorize partitions sources into externally-fetched and locally-supplied
// under the configured size ceilings. It is pure: no retrieval happens here.
func Categorize(sources map[string]domain.Source, cfg Config, log *slog.Logger) Categorized {
	out := Categorized{
		ManualFragments: make(map[string][]domain.Fragment),
		Cleaned:         make(map[string]domain.Source, len(sources)),
	}

	// Iterate in key order so truncation under the aggregate ceiling is
	// deterministic.
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	totalChars := 0
	for _, id := range keys {
		src := sources[id]

		isManual := src.SourceType == domain.SourceTypeManual
		if !isManual && src.SourceType != domain.SourceTypeExternal {
			if !cfg.TreatUnknownAsExternal {
				log.Warn("Dropping source with unknown type", "source", id, "type", src.SourceType)
				continue
			}
			log.Debug("Treating unknown source type as external", "source", id, "type", src.SourceType)
		}

		if isManual {
			content := src.Content
			if cfg.MaxSourceChars > 0 && len(content) > cfg.MaxSourceChars {
				log.Warn("Truncating oversized manual source",
					"source", id, "chars", len(content), "limit", cfg.MaxSourceChars)
				content = content[:cfg.MaxSourceChars]
			}
			if strings.TrimSpace(content) == "" {
				log.Warn("Dropping manual source with empty content", "source", id)
				continue
			}
			if cfg.MaxTotalChars > 0 && totalChars+len(content) > cfg.MaxTotalChars {
				log.Warn("Dropping manual source over aggregate content ceiling",
					"source", id, "total", totalChars, "limit", cfg.MaxTotalChars)
				continue
			}
			totalChars += len(content)

			out.ManualFragments[id] = []domain.Fragment{{
				Title:      src.Name,
				Content:    content,
				WordCount:  len(strings.Fields(content)),
				SourceType: string(domain.SourceTypeManual),
			}}
			out.Cleaned[id] = cleanSource(src)
			continue
		}

		// External (or unknown falling back to external): the source id must
		// parse as a numeric module identifier. An unparsable id is dropped,
		// never fabricated.
		moduleID, err := strconv.Atoi(id)
		if err != nil {
			log.Warn("Dropping external source with unparsable identifier", "source", id)
			continue
		}
		out.ExternalIDs = append(out.ExternalIDs, moduleID)
		out.Cleaned[id] = cleanSource(src)
	}

	return out
}

// cleanSource strips transient fields before the source list is persisted
// back, preventing re-processing on the next run.
func cleanSource(src domain.Source) domain.Source {
	return domain.Source{
		Name:       src.Name,
		SourceType: src.SourceType,
		Batches:    src.Batches,
	}
}
