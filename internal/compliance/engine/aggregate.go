package engine

import (
	"fmt"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/tolerance"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// AggregateBuckets groups fees from both documents by tolerance bucket and
// sums each document side. A fee present on one side only contributes to
// that side; the missing side stays zero. Buckets with no fees at all are
// omitted. The result is in fixed bucket order regardless of input order.
func AggregateBuckets(fees []models.FeeRecord, classifier *tolerance.Classifier) ([]models.BucketTotals, error) {
	if classifier == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "aggregation requires a classifier")
	}

	type sums struct {
		le id.Money
		cd id.Money
	}
	perBucket := make(map[models.ToleranceBucket]*sums, len(models.AllToleranceBuckets))

	for _, fee := range fees {
		bucket, err := classifier.Classify(fee)
		if err != nil {
			return nil, err
		}
		s, ok := perBucket[bucket]
		if !ok {
			s = &sums{}
			perBucket[bucket] = s
		}
		switch fee.Document {
		case models.DocumentLoanEstimate:
			s.le = s.le.Add(fee.Amount)
		case models.DocumentClosingDisclosure:
			s.cd = s.cd.Add(fee.Amount)
		default:
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("fee %q has invalid document kind %q", fee.Name, fee.Document))
		}
	}

	totals := make([]models.BucketTotals, 0, len(perBucket))
	for _, bucket := range models.AllToleranceBuckets {
		if s, ok := perBucket[bucket]; ok {
			totals = append(totals, models.BucketTotals{Bucket: bucket, LETotal: s.le, CDTotal: s.cd})
		}
	}
	return totals, nil
}

// totalsFor picks one bucket's entry out of an aggregated totals list.
func totalsFor(totals []models.BucketTotals, bucket models.ToleranceBucket) (models.BucketTotals, bool) {
	for _, t := range totals {
		if t.Bucket == bucket {
			return t, true
		}
	}
	return models.BucketTotals{}, false
}
