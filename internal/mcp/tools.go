package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/service"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// Wire limits shared with the HTTP surface.
const (
	maxLoanReferenceLen = 128
	maxFeeNameLen       = 256
)

// FeeArg is one fee line in a tool call. Amounts are decimal strings so no
// precision is lost in transit.
type FeeArg struct {
	Name           string `json:"name" jsonschema:"fee line name as printed on the disclosure"`
	Category       string `json:"category" jsonschema:"fee taxonomy category, e.g. origination or recording"`
	Amount         string `json:"amount" jsonschema:"decimal amount string, e.g. 1500.00"`
	SourceLocation string `json:"source_location,omitempty" jsonschema:"optional disclosure section reference, e.g. A.01"`
}

// DocumentArg is one disclosure document: its APR and fee lines.
type DocumentArg struct {
	APR  string   `json:"apr" jsonschema:"annual percentage rate as a decimal string, e.g. 6.625"`
	Fees []FeeArg `json:"fees" jsonschema:"itemized fee lines"`
}

// CheckComplianceInput mirrors the HTTP check request body.
type CheckComplianceInput struct {
	LoanEstimate      DocumentArg `json:"loan_estimate" jsonschema:"the loan estimate document"`
	ClosingDisclosure DocumentArg `json:"closing_disclosure" jsonschema:"the closing disclosure document"`
	IsVariableRate    bool        `json:"is_variable_rate,omitempty" jsonschema:"true when the loan rate is adjustable"`
	CDReceivedDate    string      `json:"cd_received_date" jsonschema:"date the borrower received the closing disclosure, YYYY-MM-DD"`
	ClosingDate       string      `json:"closing_date" jsonschema:"scheduled closing date, YYYY-MM-DD"`
	LoanReference     string      `json:"loan_reference,omitempty" jsonschema:"optional loan file reference; hashed before it reaches the audit trail"`
}

// ViolationOut is one violation row with amounts rendered as decimal strings.
type ViolationOut struct {
	Type        string `json:"type"`
	Fee         string `json:"fee,omitempty"`
	LEAmount    string `json:"le_amount,omitempty"`
	CDAmount    string `json:"cd_amount,omitempty"`
	AmountOver  string `json:"amount_over,omitempty"`
	Description string `json:"description"`
}

// BucketTotalOut is the per-bucket sum comparison.
type BucketTotalOut struct {
	Bucket  string `json:"bucket"`
	LETotal string `json:"le_total"`
	CDTotal string `json:"cd_total"`
}

// APROut is the APR drift comparison.
type APROut struct {
	LE        string `json:"le"`
	CD        string `json:"cd"`
	Delta     string `json:"delta"`
	Threshold string `json:"threshold"`
}

// TimingOut is the delivery timing verdict.
type TimingOut struct {
	BusinessDays int `json:"business_days"`
	RequiredDays int `json:"required_days"`
}

// CheckComplianceResult carries the full report, same fields as the HTTP
// response.
type CheckComplianceResult struct {
	CheckID         string           `json:"check_id"`
	IsCompliant     bool             `json:"is_compliant"`
	Violations      []ViolationOut   `json:"violations"`
	Summary         string           `json:"summary"`
	Totals          []BucketTotalOut `json:"totals"`
	Warnings        []string         `json:"warnings"`
	APR             APROut           `json:"apr"`
	Timing          TimingOut        `json:"timing"`
	ScheduleVersion string           `json:"schedule_version"`
}

// ClassifyFeeArg names one fee line for bucket resolution.
type ClassifyFeeArg struct {
	Name     string `json:"name" jsonschema:"fee line name"`
	Category string `json:"category" jsonschema:"fee taxonomy category"`
}

// ClassifyFeesInput mirrors the HTTP classify request body.
type ClassifyFeesInput struct {
	Fees []ClassifyFeeArg `json:"fees" jsonschema:"fee lines to classify"`
}

// ClassifiedFeeOut is one resolved bucket row.
type ClassifiedFeeOut struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Bucket   string `json:"bucket"`
}

// ClassifyFeesResult carries resolved buckets and the schedule that produced
// them.
type ClassifyFeesResult struct {
	ScheduleVersion string             `json:"schedule_version"`
	Classified      []ClassifiedFeeOut `json:"classified"`
}

func checkComplianceTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "check_compliance",
		Description: "Compares a Loan Estimate against a Closing Disclosure under TRID " +
			"tolerance rules and returns a deterministic compliance report: per-fee and " +
			"cumulative tolerance violations, APR drift, and delivery timing.",
	}
}

func classifyFeesTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "classify_fees",
		Description: "Resolves the TRID tolerance bucket (zero_tolerance, " +
			"ten_percent_cumulative, or unlimited) for each fee without running a comparison.",
	}
}

func (s *Server) checkComplianceHandler() mcp.ToolHandlerFor[CheckComplianceInput, CheckComplianceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CheckComplianceInput) (*mcp.CallToolResult, CheckComplianceResult, error) {
		parsed, err := input.parse()
		if err != nil {
			return nil, CheckComplianceResult{}, err
		}

		result, err := s.service.Check(callContext(ctx), parsed)
		if err != nil {
			return nil, CheckComplianceResult{}, err
		}

		return nil, checkResultFrom(result), nil
	}
}

func (s *Server) classifyFeesHandler() mcp.ToolHandlerFor[ClassifyFeesInput, ClassifyFeesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ClassifyFeesInput) (*mcp.CallToolResult, ClassifyFeesResult, error) {
		fees, err := input.parse()
		if err != nil {
			return nil, ClassifyFeesResult{}, err
		}

		result, err := s.service.Classify(callContext(ctx), fees)
		if err != nil {
			return nil, ClassifyFeesResult{}, err
		}

		out := ClassifyFeesResult{
			ScheduleVersion: result.ScheduleVersion,
			Classified:      make([]ClassifiedFeeOut, 0, len(result.Classified)),
		}
		for _, fee := range result.Classified {
			out.Classified = append(out.Classified, ClassifiedFeeOut{
				Name:     fee.Name,
				Category: string(fee.Category),
				Bucket:   string(fee.Bucket),
			})
		}
		return nil, out, nil
	}
}

// parse applies the same validation the HTTP layer does, so both surfaces
// reject the same payloads with the same messages.
func (in CheckComplianceInput) parse() (models.CheckInput, error) {
	if len(in.LoanReference) > maxLoanReferenceLen {
		return models.CheckInput{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("loan_reference must be at most %d characters", maxLoanReferenceLen))
	}

	leAPR, err := parseAPRArg(in.LoanEstimate.APR, "loan_estimate.apr")
	if err != nil {
		return models.CheckInput{}, err
	}
	cdAPR, err := parseAPRArg(in.ClosingDisclosure.APR, "closing_disclosure.apr")
	if err != nil {
		return models.CheckInput{}, err
	}

	leFees, err := parseFeeArgs(in.LoanEstimate.Fees, models.DocumentLoanEstimate, "loan_estimate")
	if err != nil {
		return models.CheckInput{}, err
	}
	cdFees, err := parseFeeArgs(in.ClosingDisclosure.Fees, models.DocumentClosingDisclosure, "closing_disclosure")
	if err != nil {
		return models.CheckInput{}, err
	}

	receivedRaw := strings.TrimSpace(in.CDReceivedDate)
	if receivedRaw == "" {
		return models.CheckInput{}, dErrors.New(dErrors.CodeValidation, "cd_received_date is required")
	}
	received, err := id.ParseDate(receivedRaw)
	if err != nil {
		return models.CheckInput{}, err
	}

	closingRaw := strings.TrimSpace(in.ClosingDate)
	if closingRaw == "" {
		return models.CheckInput{}, dErrors.New(dErrors.CodeValidation, "closing_date is required")
	}
	closing, err := id.ParseDate(closingRaw)
	if err != nil {
		return models.CheckInput{}, err
	}

	return models.CheckInput{
		LEFees:         leFees,
		CDFees:         cdFees,
		LEAPR:          leAPR,
		CDAPR:          cdAPR,
		IsVariableRate: in.IsVariableRate,
		CDReceivedDate: received,
		ClosingDate:    closing,
		LoanReference:  strings.TrimSpace(in.LoanReference),
	}, nil
}

func (in ClassifyFeesInput) parse() ([]service.FeeToClassify, error) {
	if len(in.Fees) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "fees is required and must not be empty")
	}
	fees := make([]service.FeeToClassify, 0, len(in.Fees))
	for i, arg := range in.Fees {
		if len(arg.Name) > maxFeeNameLen {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("fees[%d].name must be at most %d characters", i, maxFeeNameLen))
		}
		if strings.TrimSpace(arg.Name) == "" {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("fees[%d].name is required", i))
		}
		category, err := models.ParseFeeCategory(arg.Category)
		if err != nil {
			return nil, fieldError(err, fmt.Sprintf("fees[%d]", i))
		}
		fees = append(fees, service.FeeToClassify{
			Name:     strings.TrimSpace(arg.Name),
			Category: category,
		})
	}
	return fees, nil
}

func parseAPRArg(raw, field string) (id.Percent, error) {
	if strings.TrimSpace(raw) == "" {
		return id.Percent{}, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	p, err := id.ParsePercent(raw)
	if err != nil {
		return id.Percent{}, fieldError(err, field)
	}
	return p, nil
}

func parseFeeArgs(args []FeeArg, doc models.DocumentKind, field string) ([]models.FeeRecord, error) {
	fees := make([]models.FeeRecord, 0, len(args))
	for i, arg := range args {
		fee, err := parseFeeArg(arg, doc)
		if err != nil {
			return nil, fieldError(err, fmt.Sprintf("%s.fees[%d]", field, i))
		}
		fees = append(fees, fee)
	}
	return fees, nil
}

func parseFeeArg(arg FeeArg, doc models.DocumentKind) (models.FeeRecord, error) {
	if len(arg.Name) > maxFeeNameLen {
		return models.FeeRecord{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("fee name must be at most %d characters", maxFeeNameLen))
	}
	category, err := models.ParseFeeCategory(arg.Category)
	if err != nil {
		return models.FeeRecord{}, err
	}
	amount, err := id.ParseMoney(arg.Amount)
	if err != nil {
		return models.FeeRecord{}, err
	}
	return models.NewFeeRecord(arg.Name, category, amount, doc, strings.TrimSpace(arg.SourceLocation))
}

// fieldError mirrors the HTTP layer: the surfaced message names the argument
// the parse failure came from.
func fieldError(err error, field string) error {
	var d *dErrors.Error
	if errors.As(err, &d) {
		return dErrors.Wrap(err, d.Code(), field+": "+d.Message())
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, field+": "+err.Error())
}

func checkResultFrom(result *service.CheckResult) CheckComplianceResult {
	report := result.Report

	out := CheckComplianceResult{
		CheckID:         result.CheckID.String(),
		IsCompliant:     report.IsCompliant,
		Violations:      make([]ViolationOut, 0, len(report.Violations)),
		Summary:         report.Summary,
		Totals:          make([]BucketTotalOut, 0, len(report.Totals)),
		Warnings:        report.Warnings,
		ScheduleVersion: report.ScheduleVersion,
		APR: APROut{
			LE:        report.APR.LE.String(),
			CD:        report.APR.CD.String(),
			Delta:     report.APR.Delta.String(),
			Threshold: report.APR.Threshold.String(),
		},
		Timing: TimingOut{
			BusinessDays: report.Timing.BusinessDays,
			RequiredDays: report.Timing.RequiredDays,
		},
	}

	for _, v := range report.Violations {
		row := ViolationOut{
			Type:        string(v.Type),
			Description: v.Description,
		}
		if v.Fee != nil {
			row.Fee = *v.Fee
		}
		if v.LEAmount != nil {
			row.LEAmount = v.LEAmount.String()
		}
		if v.CDAmount != nil {
			row.CDAmount = v.CDAmount.String()
		}
		if v.AmountOver.IsPositive() {
			row.AmountOver = v.AmountOver.String()
		}
		out.Violations = append(out.Violations, row)
	}

	for _, total := range report.Totals {
		out.Totals = append(out.Totals, BucketTotalOut{
			Bucket:  string(total.Bucket),
			LETotal: total.LETotal.String(),
			CDTotal: total.CDTotal.String(),
		})
	}

	return out
}
