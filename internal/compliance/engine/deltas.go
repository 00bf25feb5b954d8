package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/tolerance"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// tenPercentMultiplier is exactly 1.1 and nearLimitFraction exactly 0.8.
// Both stay in exact decimal form: the cumulative limit is a legal boundary
// and is never rounded before comparison.
var (
	tenPercentMultiplier = decimal.New(11, -1)
	nearLimitFraction    = decimal.New(8, -1)
)

// tenPercentLimit is the highest closing total the cumulative bucket may
// reach without breaching: 110% of the estimate total.
func tenPercentLimit(leTotal id.Money) id.Money {
	return id.MoneyFromDecimal(leTotal.Decimal().Mul(tenPercentMultiplier))
}

// lineItem is one logical disclosed charge. Duplicate raw rows with the
// same match key are summed per document before any comparison, so a
// charge split across pages compares as a single line.
type lineItem struct {
	name     string
	category models.FeeCategory
	amount   id.Money
}

// collapseLineItems folds raw fee rows into logical line items keyed by
// match key (category plus normalized name).
func collapseLineItems(fees []models.FeeRecord) map[string]lineItem {
	items := make(map[string]lineItem, len(fees))
	for _, fee := range fees {
		key := fee.MatchKey()
		item, ok := items[key]
		if !ok {
			item = lineItem{name: fee.NormalizedName(), category: fee.Category}
		}
		item.amount = item.amount.Add(fee.Amount)
		items[key] = item
	}
	return items
}

// EvaluateFeeDeltas applies bucket-specific comparison rules and returns
// violation candidates: per-fee zero tolerance breaches sorted by fee name,
// then the cumulative ten percent breach if the bucket as a whole exceeded
// its limit. Violations carry normalized fee names so output never depends
// on the casing or spacing of any particular input row.
func EvaluateFeeDeltas(leFees, cdFees []models.FeeRecord, classifier *tolerance.Classifier) ([]models.Violation, error) {
	if classifier == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "delta evaluation requires a classifier")
	}

	leItems := collapseLineItems(leFees)
	cdItems := collapseLineItems(cdFees)

	// Zero tolerance is evaluated per line item, and only closing
	// disclosure items can breach: an estimate-only item means the charge
	// went away, and a charge that went away did not increase.
	keys := make([]string, 0, len(cdItems))
	for key := range cdItems {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := cdItems[keys[i]], cdItems[keys[j]]
		if a.name != b.name {
			return a.name < b.name
		}
		return a.category < b.category
	})

	var violations []models.Violation
	for _, key := range keys {
		cd := cdItems[key]
		bucket, err := classifier.ClassifyNamed(cd.category, cd.name)
		if err != nil {
			return nil, err
		}
		if bucket != models.BucketZeroTolerance {
			continue
		}
		le := leItems[key].amount // zero when the estimate never listed it
		if !cd.amount.GreaterThan(le) {
			continue
		}
		v, err := models.NewZeroToleranceViolation(cd.name, le, cd.amount)
		if err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}

	// The ten percent rule binds the bucket total, never individual fees.
	combined := make([]models.FeeRecord, 0, len(leFees)+len(cdFees))
	combined = append(combined, leFees...)
	combined = append(combined, cdFees...)
	totals, err := AggregateBuckets(combined, classifier)
	if err != nil {
		return nil, err
	}
	if t, ok := totalsFor(totals, models.BucketTenPercentCumulative); ok {
		limit := tenPercentLimit(t.LETotal)
		if t.CDTotal.GreaterThan(limit) {
			v, err := models.NewCumulativeViolation(t.LETotal, t.CDTotal, limit)
			if err != nil {
				return nil, err
			}
			violations = append(violations, v)
		}
	}

	return violations, nil
}
