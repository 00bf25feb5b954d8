package tolerance

import (
	"fmt"

	"tridcheck/internal/compliance/models"
	dErrors "tridcheck/pkg/domain-errors"
)

// Classifier maps a fee to its tolerance bucket. Pure data lookup against
// the injected schedule; deterministic and total over the closed category
// enumeration. The override table wins over the category table: an
// override exists precisely because the category label alone would place
// the fee in the wrong bucket.
type Classifier struct {
	schedule *Schedule
}

// NewClassifier creates a classifier over a validated schedule.
func NewClassifier(schedule *Schedule) (*Classifier, error) {
	if schedule == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "classifier requires a schedule")
	}
	return &Classifier{schedule: schedule}, nil
}

// Classify returns the tolerance bucket for a fee. A fee the schedule
// cannot place fails with unknown_fee_category; defaulting silently would
// hide a misclassified legal boundary.
func (c *Classifier) Classify(fee models.FeeRecord) (models.ToleranceBucket, error) {
	return c.ClassifyNamed(fee.Category, fee.Name)
}

// ClassifyNamed resolves the bucket for a category and raw fee name without
// a full fee record. Same precedence as Classify: the override table is
// consulted before the category table.
func (c *Classifier) ClassifyNamed(category models.FeeCategory, name string) (models.ToleranceBucket, error) {
	if bucket, ok := c.schedule.OverrideFor(models.NormalizeFeeName(name)); ok {
		return bucket, nil
	}
	if bucket, ok := c.schedule.BucketForCategory(category); ok {
		return bucket, nil
	}
	return "", dErrors.New(dErrors.CodeUnknownFeeCategory,
		fmt.Sprintf("schedule %s has no bucket for fee %q with category %q", c.schedule.Version(), name, category))
}

// Schedule exposes the underlying configuration for business-day lookups
// and the auditable schedule surface.
func (c *Classifier) Schedule() *Schedule {
	return c.schedule
}

// Version returns the schedule version classifications are made under.
func (c *Classifier) Version() string {
	return c.schedule.Version()
}
