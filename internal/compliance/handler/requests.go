package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/service"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// maxLoanReferenceLen bounds the opaque caller-supplied loan reference.
const maxLoanReferenceLen = 128

// maxFeeNameLen bounds fee names. Disclosure line labels are short;
// anything longer is a malformed payload.
const maxFeeNameLen = 256

// FeePayload is one fee line as submitted over the wire.
type FeePayload struct {
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	Amount         json.Number `json:"amount"`
	SourceLocation string      `json:"source_location,omitempty"`
}

// DocumentPayload is one disclosure document: its APR and fee lines.
type DocumentPayload struct {
	APR  json.Number  `json:"apr"`
	Fees []FeePayload `json:"fees"`
}

// CheckRequest is the HTTP request body for POST /v1/compliance/check.
type CheckRequest struct {
	LoanEstimate      DocumentPayload `json:"loan_estimate"`
	ClosingDisclosure DocumentPayload `json:"closing_disclosure"`
	IsVariableRate    bool            `json:"is_variable_rate"`
	CDReceivedDate    string          `json:"cd_received_date"`
	ClosingDate       string          `json:"closing_date"`
	LoanReference     string          `json:"loan_reference,omitempty"`

	// Parsed values (populated by Validate)
	parsed models.CheckInput
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.LoanReference) > maxLoanReferenceLen {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("loan_reference must be at most %d characters", maxLoanReferenceLen))
	}

	leAPR, err := parseAPR(r.LoanEstimate.APR, "loan_estimate.apr")
	if err != nil {
		return err
	}
	cdAPR, err := parseAPR(r.ClosingDisclosure.APR, "closing_disclosure.apr")
	if err != nil {
		return err
	}

	leFees, err := parseFees(r.LoanEstimate.Fees, models.DocumentLoanEstimate, "loan_estimate")
	if err != nil {
		return err
	}
	cdFees, err := parseFees(r.ClosingDisclosure.Fees, models.DocumentClosingDisclosure, "closing_disclosure")
	if err != nil {
		return err
	}

	r.CDReceivedDate = strings.TrimSpace(r.CDReceivedDate)
	if r.CDReceivedDate == "" {
		return dErrors.New(dErrors.CodeValidation, "cd_received_date is required")
	}
	received, err := id.ParseDate(r.CDReceivedDate)
	if err != nil {
		return err
	}

	r.ClosingDate = strings.TrimSpace(r.ClosingDate)
	if r.ClosingDate == "" {
		return dErrors.New(dErrors.CodeValidation, "closing_date is required")
	}
	closing, err := id.ParseDate(r.ClosingDate)
	if err != nil {
		return err
	}

	r.parsed = models.CheckInput{
		LEFees:         leFees,
		CDFees:         cdFees,
		LEAPR:          leAPR,
		CDAPR:          cdAPR,
		IsVariableRate: r.IsVariableRate,
		CDReceivedDate: received,
		ClosingDate:    closing,
		LoanReference:  strings.TrimSpace(r.LoanReference),
	}
	return nil
}

// ParsedInput returns the validated check input.
func (r *CheckRequest) ParsedInput() models.CheckInput {
	return r.parsed
}

func parseAPR(raw json.Number, field string) (id.Percent, error) {
	if raw == "" {
		return id.Percent{}, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	p, err := id.ParsePercent(raw.String())
	if err != nil {
		return id.Percent{}, fieldError(err, field)
	}
	return p, nil
}

// fieldError re-wraps a parse error so the surfaced message names the request
// field it came from. The code and cause chain are preserved.
func fieldError(err error, field string) error {
	var d *dErrors.Error
	if errors.As(err, &d) {
		return dErrors.Wrap(err, d.Code(), field+": "+d.Message())
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, field+": "+err.Error())
}

func parseFees(payloads []FeePayload, doc models.DocumentKind, field string) ([]models.FeeRecord, error) {
	fees := make([]models.FeeRecord, 0, len(payloads))
	for i, payload := range payloads {
		fee, err := parseFee(payload, doc)
		if err != nil {
			return nil, fieldError(err, fmt.Sprintf("%s.fees[%d]", field, i))
		}
		fees = append(fees, fee)
	}
	return fees, nil
}

func parseFee(payload FeePayload, doc models.DocumentKind) (models.FeeRecord, error) {
	if len(payload.Name) > maxFeeNameLen {
		return models.FeeRecord{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("fee name must be at most %d characters", maxFeeNameLen))
	}
	category, err := models.ParseFeeCategory(payload.Category)
	if err != nil {
		return models.FeeRecord{}, err
	}
	amount, err := id.ParseMoney(payload.Amount.String())
	if err != nil {
		return models.FeeRecord{}, err
	}
	return models.NewFeeRecord(payload.Name, category, amount, doc, strings.TrimSpace(payload.SourceLocation))
}

// ClassifyFeePayload names one fee line for classification.
type ClassifyFeePayload struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ClassifyRequest is the HTTP request body for POST /v1/compliance/classify.
type ClassifyRequest struct {
	Fees []ClassifyFeePayload `json:"fees"`

	// Parsed values (populated by Validate)
	parsedFees []service.FeeToClassify
}

// Validate validates and parses the request.
func (r *ClassifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Fees) == 0 {
		return dErrors.New(dErrors.CodeValidation, "fees is required and must not be empty")
	}

	parsed := make([]service.FeeToClassify, 0, len(r.Fees))
	for i, payload := range r.Fees {
		if len(payload.Name) > maxFeeNameLen {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("fees[%d].name must be at most %d characters", i, maxFeeNameLen))
		}
		if strings.TrimSpace(payload.Name) == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("fees[%d].name is required", i))
		}
		category, err := models.ParseFeeCategory(payload.Category)
		if err != nil {
			return fieldError(err, fmt.Sprintf("fees[%d]", i))
		}
		parsed = append(parsed, service.FeeToClassify{
			Name:     strings.TrimSpace(payload.Name),
			Category: category,
		})
	}

	r.parsedFees = parsed
	return nil
}

// ParsedFees returns the validated fee identities.
func (r *ClassifyRequest) ParsedFees() []service.FeeToClassify {
	return r.parsedFees
}
