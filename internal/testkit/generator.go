package testkit

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"ruleminer/domain/dataset"
)

// Column names produced by DirtyDataGenerator
const (
	ColumnID       = "id"
	ColumnAmount   = "amount"
	ColumnCategory = "category"
	ColumnSegment  = "segment"
	ColumnNote     = "note"
	ColumnJoined   = "joined"
)

// Categories are the canonical spellings of the category column
var Categories = []string{"Alpha", "Beta", "Gamma"}

// Segments are the clean label values used for stratified sampling
var Segments = []string{"A", "B", "C"}

// Notes are the free-text values of the note column
var Notes = []string{"ok", "follow up", "pending review", "closed"}

// DirtyDataConfig configures the synthetic dataset generator
type DirtyDataConfig struct {
	Rows            int       `json:"rows"`
	Seed            int64     `json:"seed"`
	MissingRate     float64   `json:"missing_rate"`      // exact share of amount cells left null
	OutlierRate     float64   `json:"outlier_rate"`      // exact share of amount cells set far out
	CaseVariantRate float64   `json:"case_variant_rate"` // chance a category is re-cased
	WhitespaceRate  float64   `json:"whitespace_rate"`   // chance a note is padded
	StartDate       time.Time `json:"start_date"`
}

// DefaultDirtyDataConfig returns the standard discovery fixture: 1000 rows,
// 20% missing and 5% outlier amounts, case-variant categories, clean notes
func DefaultDirtyDataConfig() DirtyDataConfig {
	return DirtyDataConfig{
		Rows:            1000,
		Seed:            42,
		MissingRate:     0.20,
		OutlierRate:     0.05,
		CaseVariantRate: 0.30,
		WhitespaceRate:  0,
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// CleanDataConfig returns a fixture with no injected problems
func CleanDataConfig(rows int) DirtyDataConfig {
	cfg := DefaultDirtyDataConfig()
	cfg.Rows = rows
	cfg.MissingRate = 0
	cfg.OutlierRate = 0
	cfg.CaseVariantRate = 0
	return cfg
}

// DirtyDataGenerator builds deterministic frames with injected quality problems
type DirtyDataGenerator struct {
	config DirtyDataConfig
	rng    *rand.Rand
}

// NewDirtyDataGenerator creates a generator
func NewDirtyDataGenerator(config DirtyDataConfig) *DirtyDataGenerator {
	return &DirtyDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds the frame
func (g *DirtyDataGenerator) Generate() *dataset.Frame {
	n := g.config.Rows
	ids := make([]float64, n)
	amounts := make([]interface{}, n)
	categories := make([]string, n)
	segments := make([]string, n)
	notes := make([]string, n)
	joined := make([]string, n)

	for i := 0; i < n; i++ {
		ids[i] = float64(i + 1)
		amounts[i] = g.normalAmount()
		categories[i] = g.category(i)
		segments[i] = Segments[i%len(Segments)]
		notes[i] = g.note(i)
		joined[i] = g.config.StartDate.AddDate(0, 0, i%365).Format("2006-01-02")
	}

	perm := g.rng.Perm(n)
	missing := int(math.Round(float64(n) * g.config.MissingRate))
	outliers := int(math.Round(float64(n) * g.config.OutlierRate))
	for k, row := range perm {
		switch {
		case k < missing:
			amounts[row] = nil
		case k < missing+outliers:
			amounts[row] = 500 + g.rng.Float64()*100
		}
	}

	return dataset.MustFrame(
		dataset.NewFloatColumn(ColumnID, ids),
		dataset.NewColumn(ColumnAmount, dataset.KindFloat, amounts),
		dataset.NewStringColumn(ColumnCategory, categories),
		dataset.NewStringColumn(ColumnSegment, segments),
		dataset.NewStringColumn(ColumnNote, notes),
		dataset.NewStringColumn(ColumnJoined, joined),
	)
}

// normalAmount draws from N(50, 5) clipped to [35, 65] so clean data has no outliers
func (g *DirtyDataGenerator) normalAmount() float64 {
	v := 50 + g.rng.NormFloat64()*5
	return math.Max(35, math.Min(65, v))
}

func (g *DirtyDataGenerator) category(i int) string {
	base := Categories[i%len(Categories)]
	if g.rng.Float64() >= g.config.CaseVariantRate {
		return base
	}
	if g.rng.Intn(2) == 0 {
		return strings.ToLower(base)
	}
	return strings.ToUpper(base)
}

func (g *DirtyDataGenerator) note(i int) string {
	s := Notes[(i/len(Segments))%len(Notes)]
	if g.rng.Float64() < g.config.WhitespaceRate {
		return "  " + s + " "
	}
	return s
}
