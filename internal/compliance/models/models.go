// Package models defines the value objects of a compliance check: fee
// records, tolerance buckets, violations, and the report. Everything is
// created fresh per comparison and immutable once constructed.
package models

import (
	"fmt"
	"strings"

	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// FeeCategory is the closed enumeration of disclosed cost line-item
// categories. Unrecognized category strings are rejected at the input
// boundary; they never propagate into the pipeline.
type FeeCategory string

const (
	CategoryOrigination         FeeCategory = "origination"
	CategoryAppraisal           FeeCategory = "appraisal"
	CategoryCreditReport        FeeCategory = "credit_report"
	CategoryFloodCertification  FeeCategory = "flood_certification"
	CategoryTaxMonitoring       FeeCategory = "tax_monitoring"
	CategoryRecording           FeeCategory = "recording"
	CategoryTransferTax         FeeCategory = "transfer_tax"
	CategoryTitleServices       FeeCategory = "title_services"
	CategorySurvey              FeeCategory = "survey"
	CategoryPestInspection      FeeCategory = "pest_inspection"
	CategoryPrepaids            FeeCategory = "prepaids"
	CategoryEscrow              FeeCategory = "escrow"
	CategoryHomeownersInsurance FeeCategory = "homeowners_insurance"
	CategoryOther               FeeCategory = "other"
)

// AllFeeCategories lists every category in declaration order. The tolerance
// schedule is validated against this list at load time so a schedule that
// strands a category is rejected before it can serve traffic.
var AllFeeCategories = []FeeCategory{
	CategoryOrigination,
	CategoryAppraisal,
	CategoryCreditReport,
	CategoryFloodCertification,
	CategoryTaxMonitoring,
	CategoryRecording,
	CategoryTransferTax,
	CategoryTitleServices,
	CategorySurvey,
	CategoryPestInspection,
	CategoryPrepaids,
	CategoryEscrow,
	CategoryHomeownersInsurance,
	CategoryOther,
}

// IsValid checks if the category is one of the supported enum values.
func (c FeeCategory) IsValid() bool {
	for _, known := range AllFeeCategories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (c FeeCategory) String() string {
	return string(c)
}

// ParseFeeCategory creates a FeeCategory from a string, validating it.
// Unknown categories carry the unknown_fee_category code: silently
// defaulting a category would misclassify the fee's tolerance bucket.
func ParseFeeCategory(s string) (FeeCategory, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeUnknownFeeCategory, "fee category cannot be empty")
	}
	c := FeeCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeUnknownFeeCategory, fmt.Sprintf("unknown fee category %q", s))
	}
	return c, nil
}

// DocumentKind identifies which disclosure a fee was extracted from.
type DocumentKind string

const (
	DocumentLoanEstimate      DocumentKind = "loan_estimate"
	DocumentClosingDisclosure DocumentKind = "closing_disclosure"
)

// IsValid checks if the document kind is one of the supported values.
func (d DocumentKind) IsValid() bool {
	return d == DocumentLoanEstimate || d == DocumentClosingDisclosure
}

// String returns the string representation.
func (d DocumentKind) String() string {
	return string(d)
}

// ParseDocumentKind creates a DocumentKind from a string, validating it.
func ParseDocumentKind(s string) (DocumentKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "document kind cannot be empty")
	}
	d := DocumentKind(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid document kind: must be 'loan_estimate' or 'closing_disclosure'")
	}
	return d, nil
}

// ToleranceBucket is the regulatory tolerance class a fee belongs to.
type ToleranceBucket string

const (
	BucketZeroTolerance        ToleranceBucket = "zero_tolerance"
	BucketTenPercentCumulative ToleranceBucket = "ten_percent_cumulative"
	BucketUnlimited            ToleranceBucket = "unlimited"
)

// bucketOrder fixes the report ordering of buckets. Do not reorder: report
// output must be stable across runs and releases.
var bucketOrder = map[ToleranceBucket]int{
	BucketZeroTolerance:        0,
	BucketTenPercentCumulative: 1,
	BucketUnlimited:            2,
}

// AllToleranceBuckets lists every bucket in fixed report order.
var AllToleranceBuckets = []ToleranceBucket{
	BucketZeroTolerance,
	BucketTenPercentCumulative,
	BucketUnlimited,
}

// IsValid checks if the bucket is one of the supported enum values.
func (b ToleranceBucket) IsValid() bool {
	_, ok := bucketOrder[b]
	return ok
}

// Order returns the bucket's fixed position in report output.
func (b ToleranceBucket) Order() int {
	if o, ok := bucketOrder[b]; ok {
		return o
	}
	return len(bucketOrder)
}

// String returns the string representation.
func (b ToleranceBucket) String() string {
	return string(b)
}

// ParseToleranceBucket creates a ToleranceBucket from a string, validating it.
func ParseToleranceBucket(s string) (ToleranceBucket, error) {
	b := ToleranceBucket(strings.ToLower(strings.TrimSpace(s)))
	if !b.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown tolerance bucket %q", s))
	}
	return b, nil
}

// NormalizeFeeName canonicalizes a fee name for matching and override
// lookup: lowercase, trimmed, inner whitespace collapsed.
func NormalizeFeeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// FeeRecord is one disclosed cost line item from the LE or CD.
type FeeRecord struct {
	Name           string       `json:"name"`
	Category       FeeCategory  `json:"category"`
	Amount         id.Money     `json:"amount"`
	Document       DocumentKind `json:"document"`
	SourceLocation string       `json:"source_location,omitempty"`
}

// NewFeeRecord constructs a validated fee record. The amount must already
// have passed boundary parsing; the sign check here is a final invariant
// guard, not the input boundary.
func NewFeeRecord(name string, category FeeCategory, amount id.Money, document DocumentKind, sourceLocation string) (FeeRecord, error) {
	if strings.TrimSpace(name) == "" {
		return FeeRecord{}, dErrors.New(dErrors.CodeValidation, "fee name cannot be empty")
	}
	if !category.IsValid() {
		return FeeRecord{}, dErrors.New(dErrors.CodeUnknownFeeCategory, fmt.Sprintf("unknown fee category %q", category))
	}
	if !document.IsValid() {
		return FeeRecord{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid document kind %q", document))
	}
	if amount.IsNegative() {
		return FeeRecord{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("fee %q has negative amount %s", name, amount))
	}
	return FeeRecord{
		Name:           strings.TrimSpace(name),
		Category:       category,
		Amount:         amount,
		Document:       document,
		SourceLocation: strings.TrimSpace(sourceLocation),
	}, nil
}

// NormalizedName returns the canonical matching form of the fee name.
func (f FeeRecord) NormalizedName() string {
	return NormalizeFeeName(f.Name)
}

// MatchKey identifies the logical line item for LE/CD pairing: same
// category plus same normalized name.
func (f FeeRecord) MatchKey() string {
	return string(f.Category) + "|" + f.NormalizedName()
}

// BucketTotals holds per-bucket sums for one comparison. Derived, never
// persisted.
type BucketTotals struct {
	Bucket  ToleranceBucket `json:"bucket"`
	LETotal id.Money        `json:"le_total"`
	CDTotal id.Money        `json:"cd_total"`
}

// ClassifiedFee is one row of a classify-only operation: the resolved
// bucket for a named fee, with no comparison performed.
type ClassifiedFee struct {
	Name     string          `json:"name"`
	Category FeeCategory     `json:"category"`
	Bucket   ToleranceBucket `json:"bucket"`
}

// CheckInput is everything one comparison consumes: both fee sequences and
// the document-level figures, already parsed and boundary-validated.
type CheckInput struct {
	LEFees         []FeeRecord
	CDFees         []FeeRecord
	LEAPR          id.Percent
	CDAPR          id.Percent
	IsVariableRate bool
	CDReceivedDate id.Date
	ClosingDate    id.Date

	// LoanReference is an opaque caller-supplied identifier used only for
	// audit correlation (hashed before it leaves the process). Optional.
	LoanReference string
}
