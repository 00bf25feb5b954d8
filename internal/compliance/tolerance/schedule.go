// Package tolerance holds the versioned regulatory configuration behind
// every classification: the category-to-bucket table, the fee-name override
// table, and the holiday calendar for business-day counting.
//
// The schedule is data, not logic. It is loaded once at startup from a
// reviewed static resource, validated for completeness, and never mutated
// or hot-reloaded: classification rules are regulatorily sensitive and a
// rule change must arrive as a reviewed deploy with a new version string.
package tolerance

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"tridcheck/internal/compliance/models"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

//go:embed schedule_default.json
var defaultScheduleJSON []byte

// Document is the wire form of a schedule, as reviewed and versioned.
type Document struct {
	Version       string            `json:"version"`
	Categories    map[string]string `json:"categories"`
	NameOverrides map[string]string `json:"name_overrides"`
	Holidays      []string          `json:"holidays"`
}

// Schedule is the parsed, validated, immutable form.
type Schedule struct {
	version       string
	categories    map[models.FeeCategory]models.ToleranceBucket
	nameOverrides map[string]models.ToleranceBucket
	holidays      map[string]struct{}
}

// LoadDefault parses the schedule compiled into the binary.
func LoadDefault() (*Schedule, error) {
	return parse(defaultScheduleJSON)
}

// LoadFromFile parses a schedule from an operator-supplied path. The file
// must satisfy the same completeness rules as the embedded default.
func LoadFromFile(path string) (*Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("read tolerance schedule %s", path))
	}
	return parse(raw)
}

func parse(raw []byte) (*Schedule, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "tolerance schedule is not valid JSON")
	}
	return NewSchedule(doc)
}

// NewSchedule validates a schedule document. Rules:
//   - version is required (reports cite it)
//   - every category key and bucket value must be a known enum member
//   - every known category must be mapped (classification is a total
//     function; a stranded category would surface as a runtime error on
//     live traffic instead of a deploy-time rejection)
//   - override names are stored normalized; duplicate normalized names are
//     rejected rather than silently last-write-wins
//   - holidays must parse as calendar dates
func NewSchedule(doc Document) (*Schedule, error) {
	if doc.Version == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tolerance schedule requires a version")
	}

	categories := make(map[models.FeeCategory]models.ToleranceBucket, len(doc.Categories))
	for rawCategory, rawBucket := range doc.Categories {
		category, err := models.ParseFeeCategory(rawCategory)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("schedule %s: bad category key", doc.Version))
		}
		bucket, err := models.ParseToleranceBucket(rawBucket)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("schedule %s: bad bucket for category %q", doc.Version, rawCategory))
		}
		categories[category] = bucket
	}
	for _, category := range models.AllFeeCategories {
		if _, ok := categories[category]; !ok {
			return nil, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("schedule %s does not map category %q", doc.Version, category))
		}
	}

	overrides := make(map[string]models.ToleranceBucket, len(doc.NameOverrides))
	for rawName, rawBucket := range doc.NameOverrides {
		name := models.NormalizeFeeName(rawName)
		if name == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("schedule %s: empty override name", doc.Version))
		}
		if _, dup := overrides[name]; dup {
			return nil, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("schedule %s: override %q appears more than once after normalization", doc.Version, name))
		}
		bucket, err := models.ParseToleranceBucket(rawBucket)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("schedule %s: bad bucket for override %q", doc.Version, rawName))
		}
		overrides[name] = bucket
	}

	holidays := make(map[string]struct{}, len(doc.Holidays))
	for _, rawDate := range doc.Holidays {
		d, err := id.ParseDate(rawDate)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("schedule %s: bad holiday date %q", doc.Version, rawDate))
		}
		holidays[d.String()] = struct{}{}
	}

	return &Schedule{
		version:       doc.Version,
		categories:    categories,
		nameOverrides: overrides,
		holidays:      holidays,
	}, nil
}

// Version returns the schedule version string cited in every report.
func (s *Schedule) Version() string {
	return s.version
}

// BucketForCategory looks up the category table.
func (s *Schedule) BucketForCategory(category models.FeeCategory) (models.ToleranceBucket, bool) {
	b, ok := s.categories[category]
	return b, ok
}

// OverrideFor looks up the fee-name override table by normalized name.
func (s *Schedule) OverrideFor(normalizedName string) (models.ToleranceBucket, bool) {
	b, ok := s.nameOverrides[normalizedName]
	return b, ok
}

// IsHoliday reports whether the date is in the schedule's holiday calendar.
func (s *Schedule) IsHoliday(d id.Date) bool {
	_, ok := s.holidays[d.String()]
	return ok
}

// Document returns the schedule in its auditable wire form with
// deterministic ordering, for the schedule endpoint and the MCP resource.
func (s *Schedule) Document() Document {
	doc := Document{
		Version:       s.version,
		Categories:    make(map[string]string, len(s.categories)),
		NameOverrides: make(map[string]string, len(s.nameOverrides)),
		Holidays:      make([]string, 0, len(s.holidays)),
	}
	for category, bucket := range s.categories {
		doc.Categories[category.String()] = bucket.String()
	}
	for name, bucket := range s.nameOverrides {
		doc.NameOverrides[name] = bucket.String()
	}
	for day := range s.holidays {
		doc.Holidays = append(doc.Holidays, day)
	}
	sort.Strings(doc.Holidays)
	return doc
}
