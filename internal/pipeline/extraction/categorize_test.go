package extraction

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/courseforge/quizgen/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestCategorize_MixedSources(t *testing.T) {
	sources := map[string]domain.Source{
		"101": {Name: "Week 1", SourceType: domain.SourceTypeExternal},
		"202": {Name: "Week 2", SourceType: domain.SourceTypeExternal},
		"man": {Name: "Syllabus", SourceType: domain.SourceTypeManual, Content: "intro text here",
			Meta: map[string]string{"upload": "tmp/abc"}},
	}

	got := Categorize(sources, DefaultConfig(), testLogger())

	if len(got.ExternalIDs) != 2 || got.ExternalIDs[0] != 101 || got.ExternalIDs[1] != 202 {
		t.Errorf("ExternalIDs = %v, want [101 202]", got.ExternalIDs)
	}

	frags, ok := got.ManualFragments["man"]
	if !ok || len(frags) != 1 {
		t.Fatalf("manual source missing from fragments: %v", got.ManualFragments)
	}
	if frags[0].WordCount != 3 {
		t.Errorf("manual fragment word count = %d, want 3", frags[0].WordCount)
	}
	if frags[0].SourceType != string(domain.SourceTypeManual) {
		t.Errorf("manual fragment source type = %s", frags[0].SourceType)
	}

	// Cleaned sources must not carry content or transient metadata.
	cleaned := got.Cleaned["man"]
	if cleaned.Content != "" || cleaned.Meta != nil {
		t.Errorf("cleaned source still carries transient fields: %+v", cleaned)
	}
	if cleaned.Name != "Syllabus" || cleaned.SourceType != domain.SourceTypeManual {
		t.Errorf("cleaned source lost identity fields: %+v", cleaned)
	}
}

func TestCategorize_Purity(t *testing.T) {
	sources := map[string]domain.Source{
		"man": {Name: "Notes", SourceType: domain.SourceTypeManual, Content: "original content",
			Meta: map[string]string{"k": "v"}},
	}

	Categorize(sources, DefaultConfig(), testLogger())

	if sources["man"].Content != "original content" {
		t.Error("input source content mutated")
	}
	if sources["man"].Meta["k"] != "v" {
		t.Error("input source metadata mutated")
	}
}

func TestCategorize_TruncatesOversizedManualSource(t *testing.T) {
	cfg := Config{MaxSourceChars: 10, MaxTotalChars: 100, TreatUnknownAsExternal: true}
	sources := map[string]domain.Source{
		"man": {SourceType: domain.SourceTypeManual, Content: strings.Repeat("a", 50)},
	}

	got := Categorize(sources, cfg, testLogger())
	if len(got.ManualFragments["man"][0].Content) != 10 {
		t.Errorf("content length = %d, want 10", len(got.ManualFragments["man"][0].Content))
	}
}

func TestCategorize_DropsOverAggregateCeiling(t *testing.T) {
	cfg := Config{MaxSourceChars: 100, MaxTotalChars: 15, TreatUnknownAsExternal: true}
	sources := map[string]domain.Source{
		"a": {SourceType: domain.SourceTypeManual, Content: strings.Repeat("x", 10)},
		"b": {SourceType: domain.SourceTypeManual, Content: strings.Repeat("y", 10)},
	}

	got := Categorize(sources, cfg, testLogger())

	// Key order is deterministic: "a" fits, "b" would exceed the ceiling.
	if _, ok := got.ManualFragments["a"]; !ok {
		t.Error("source a should have been kept")
	}
	if _, ok := got.ManualFragments["b"]; ok {
		t.Error("source b should have been dropped over the aggregate ceiling")
	}
	if _, ok := got.Cleaned["b"]; ok {
		t.Error("dropped source must not appear in the cleaned list")
	}
}

func TestCategorize_DropsEmptyManualSource(t *testing.T) {
	sources := map[string]domain.Source{
		"man": {SourceType: domain.SourceTypeManual, Content: "   \n\t "},
	}

	got := Categorize(sources, DefaultConfig(), testLogger())
	if len(got.ManualFragments) != 0 {
		t.Errorf("whitespace-only manual source should be dropped, got %v", got.ManualFragments)
	}
}

func TestCategorize_UnparsableExternalID(t *testing.T) {
	sources := map[string]domain.Source{
		"not-a-number": {SourceType: domain.SourceTypeExternal},
		"303":          {SourceType: domain.SourceTypeExternal},
	}

	got := Categorize(sources, DefaultConfig(), testLogger())
	if len(got.ExternalIDs) != 1 || got.ExternalIDs[0] != 303 {
		t.Errorf("ExternalIDs = %v, want [303]", got.ExternalIDs)
	}
	if _, ok := got.Cleaned["not-a-number"]; ok {
		t.Error("unparsable external source must be dropped entirely")
	}
}

func TestCategorize_UnknownSourceType(t *testing.T) {
	sources := map[string]domain.Source{
		"404": {SourceType: "mystery"},
	}

	fallback := Categorize(sources, Config{TreatUnknownAsExternal: true}, testLogger())
	if len(fallback.ExternalIDs) != 1 || fallback.ExternalIDs[0] != 404 {
		t.Errorf("unknown type should fall back to external, got %v", fallback.ExternalIDs)
	}

	strict := Categorize(sources, Config{TreatUnknownAsExternal: false}, testLogger())
	if len(strict.ExternalIDs) != 0 {
		t.Errorf("unknown type should be dropped in strict mode, got %v", strict.ExternalIDs)
	}
}
