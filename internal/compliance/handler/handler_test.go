package handler

//go:generate mockgen -source=handler.go -destination=mocks/compliance-mocks.go -package=mocks Service

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tridcheck/internal/compliance/handler/mocks"
	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/service"
	"tridcheck/internal/compliance/tolerance"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// =============================================================================
// Compliance Handler Test Suite
// =============================================================================
// Justification for unit tests: The handler owns the wire contract: JSON
// shapes, the error-code-to-status mapping, and the rule that amounts must
// arrive as JSON numbers. Tests verify that structurally bad payloads never
// reach the service and that every input-taxonomy code maps to 422.

type ComplianceHandlerSuite struct {
	suite.Suite
}

func TestComplianceHandlerSuite(t *testing.T) {
	suite.Run(t, new(ComplianceHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService, chi.Router) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger)
	r := chi.NewRouter()
	handler.Register(r)
	return handler, mockService, r
}

const validCheckBody = `{
	"loan_estimate": {
		"apr": 6.500,
		"fees": [
			{"name": "Origination Fee", "category": "origination", "amount": 1500.00, "source_location": "A.01"}
		]
	},
	"closing_disclosure": {
		"apr": 6.625,
		"fees": [
			{"name": "Origination Fee", "category": "origination", "amount": 1500.00, "source_location": "A.01"}
		]
	},
	"is_variable_rate": false,
	"cd_received_date": "2026-03-09",
	"closing_date": "2026-03-12",
	"loan_reference": "LOAN-2026-0147"
}`

func compliantReport(s *ComplianceHandlerSuite) *models.ComplianceReport {
	report, err := models.NewComplianceReport(nil, nil, nil,
		models.APRComparison{
			LE:        id.MustPercent("6.500"),
			CD:        id.MustPercent("6.625"),
			Delta:     id.MustPercent("0.125"),
			Threshold: id.MustPercent("0.125"),
		},
		models.TimingResult{BusinessDays: 3, RequiredDays: 3},
		"2026.01",
	)
	s.Require().NoError(err)
	return report
}

func (s *ComplianceHandlerSuite) decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (s *ComplianceHandlerSuite) TestHandleCheckServesReport() {
	handler, mockService, _ := newTestHandler(s.T())
	checkID := id.NewCheckID()
	mockService.EXPECT().Check(gomock.Any(), gomock.Any()).Return(&service.CheckResult{
		CheckID: checkID,
		Report:  compliantReport(s),
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(validCheckBody))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	resp := s.decodeBody(w)
	s.Equal(checkID.String(), resp["check_id"])
	s.Equal(true, resp["is_compliant"])
	s.Equal("COMPLIANT: no violations", resp["summary"])
	s.Equal("2026.01", resp["schedule_version"])

	// Empty sequences must serialize as [], never null.
	violations, ok := resp["violations"].([]any)
	s.Require().True(ok, w.Body.String())
	s.Empty(violations)
}

func (s *ComplianceHandlerSuite) TestHandleCheckParsesWirePayload() {
	handler, mockService, _ := newTestHandler(s.T())
	var captured models.CheckInput
	mockService.EXPECT().Check(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, input models.CheckInput) (*service.CheckResult, error) {
			captured = input
			return &service.CheckResult{CheckID: id.NewCheckID(), Report: compliantReport(s)}, nil
		})

	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(validCheckBody))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.True(captured.LEAPR.Equal(id.MustPercent("6.500")))
	s.True(captured.CDAPR.Equal(id.MustPercent("6.625")))
	s.False(captured.IsVariableRate)
	s.Equal("2026-03-09", captured.CDReceivedDate.String())
	s.Equal("2026-03-12", captured.ClosingDate.String())
	s.Equal("LOAN-2026-0147", captured.LoanReference)

	s.Require().Len(captured.LEFees, 1)
	s.Equal("Origination Fee", captured.LEFees[0].Name)
	s.Equal(models.CategoryOrigination, captured.LEFees[0].Category)
	s.Equal("1500.00", captured.LEFees[0].Amount.String())
	s.Equal(models.DocumentLoanEstimate, captured.LEFees[0].Document)
	s.Require().Len(captured.CDFees, 1)
	s.Equal(models.DocumentClosingDisclosure, captured.CDFees[0].Document)
}

func (s *ComplianceHandlerSuite) TestHandleCheckRejectsMalformedJSON() {
	handler, _, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(`{"loan_estimate": `))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
	resp := s.decodeBody(w)
	s.Equal("bad_request", resp["error"])
}

func (s *ComplianceHandlerSuite) TestHandleCheckRejectsNonNumericAmount() {
	handler, _, _ := newTestHandler(s.T())

	// Amounts must be number literals; arbitrary strings fail at decode time.
	body := strings.Replace(validCheckBody, `"amount": 1500.00`, `"amount": "12,500"`, 1)
	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
	resp := s.decodeBody(w)
	s.Equal("bad_request", resp["error"])
}

func (s *ComplianceHandlerSuite) TestHandleCheckRejectsUnknownCategory() {
	handler, _, _ := newTestHandler(s.T())

	body := strings.Replace(validCheckBody, `"category": "origination"`, `"category": "misc"`, 1)
	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Equal(http.StatusUnprocessableEntity, w.Code, w.Body.String())
	resp := s.decodeBody(w)
	s.Equal("unknown_fee_category", resp["error"])
	s.Contains(resp["error_description"], "loan_estimate.fees[0]")
}

func (s *ComplianceHandlerSuite) TestHandleCheckRejectsNegativeAmount() {
	handler, _, _ := newTestHandler(s.T())

	body := strings.Replace(validCheckBody, `"amount": 1500.00`, `"amount": -1500.00`, 1)
	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Equal(http.StatusUnprocessableEntity, w.Code, w.Body.String())
	resp := s.decodeBody(w)
	s.Equal("invalid_amount", resp["error"])
}

func (s *ComplianceHandlerSuite) TestHandleCheckRequiresDates() {
	handler, _, _ := newTestHandler(s.T())

	body := strings.Replace(validCheckBody, `"cd_received_date": "2026-03-09",`, "", 1)
	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Equal(http.StatusBadRequest, w.Code, w.Body.String())
	resp := s.decodeBody(w)
	s.Equal("validation_failed", resp["error"])
	s.Contains(resp["error_description"], "cd_received_date")
}

func (s *ComplianceHandlerSuite) TestHandleCheckMapsDateOrderingError() {
	handler, mockService, _ := newTestHandler(s.T())
	mockService.EXPECT().Check(gomock.Any(), gomock.Any()).Return(nil,
		dErrors.New(dErrors.CodeInvalidDateOrdering, "cd_received_date falls after closing_date"))

	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(validCheckBody))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	resp := s.decodeBody(w)
	s.Equal("invalid_date_ordering", resp["error"])
}

func (s *ComplianceHandlerSuite) TestHandleCheckMapsAuditUnavailable() {
	handler, mockService, _ := newTestHandler(s.T())
	mockService.EXPECT().Check(gomock.Any(), gomock.Any()).Return(nil,
		dErrors.New(dErrors.CodeUnavailable, "audit trail unavailable, check not recorded"))

	req := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(validCheckBody))
	w := httptest.NewRecorder()
	handler.HandleCheck(w, req)

	s.Equal(http.StatusServiceUnavailable, w.Code)
	resp := s.decodeBody(w)
	s.Equal("service_unavailable", resp["error"])
	// 5xx bodies never carry internal detail.
	s.NotContains(w.Body.String(), "audit trail")
}

func (s *ComplianceHandlerSuite) TestHandleClassifyServesBuckets() {
	handler, mockService, _ := newTestHandler(s.T())
	mockService.EXPECT().Classify(gomock.Any(), []service.FeeToClassify{
		{Name: "Origination Fee", Category: models.CategoryOrigination},
		{Name: "Owner's Title Insurance", Category: models.CategoryTitleServices},
	}).Return(&service.ClassifyResult{
		ScheduleVersion: "2026.01",
		Classified: []models.ClassifiedFee{
			{Name: "Origination Fee", Category: models.CategoryOrigination, Bucket: models.BucketZeroTolerance},
			{Name: "Owner's Title Insurance", Category: models.CategoryTitleServices, Bucket: models.BucketUnlimited},
		},
	}, nil)

	body := `{"fees": [
		{"name": "Origination Fee", "category": "origination"},
		{"name": "Owner's Title Insurance", "category": "title_services"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/compliance/classify", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleClassify(w, req)

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	resp := s.decodeBody(w)
	s.Equal("2026.01", resp["schedule_version"])
	classified, ok := resp["classified"].([]any)
	s.Require().True(ok, w.Body.String())
	s.Require().Len(classified, 2)
	first := classified[0].(map[string]any)
	s.Equal("zero_tolerance", first["bucket"])
	second := classified[1].(map[string]any)
	s.Equal("unlimited", second["bucket"])
}

func (s *ComplianceHandlerSuite) TestHandleClassifyRejectsEmptyFees() {
	handler, _, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodPost, "/compliance/classify", strings.NewReader(`{"fees": []}`))
	w := httptest.NewRecorder()
	handler.HandleClassify(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
	resp := s.decodeBody(w)
	s.Equal("validation_failed", resp["error"])
}

func (s *ComplianceHandlerSuite) TestHandleScheduleServesDocument() {
	handler, mockService, _ := newTestHandler(s.T())
	mockService.EXPECT().ScheduleDocument(gomock.Any()).Return(tolerance.Document{
		Version:       "2026.01",
		Categories:    map[string]string{"origination": "zero_tolerance"},
		NameOverrides: map[string]string{"appraisal management fee": "zero_tolerance"},
		Holidays:      []string{"2026-01-01"},
	})

	req := httptest.NewRequest(http.MethodGet, "/compliance/schedule", nil)
	w := httptest.NewRecorder()
	handler.HandleSchedule(w, req)

	s.Equal(http.StatusOK, w.Code)
	resp := s.decodeBody(w)
	s.Equal("2026.01", resp["version"])
	categories, ok := resp["categories"].(map[string]any)
	s.Require().True(ok, w.Body.String())
	s.Equal("zero_tolerance", categories["origination"])
	s.Contains(resp, "name_overrides")
	s.Contains(resp, "holidays")
}

func (s *ComplianceHandlerSuite) TestRoutesRegistered() {
	_, mockService, router := newTestHandler(s.T())
	mockService.EXPECT().Check(gomock.Any(), gomock.Any()).Return(&service.CheckResult{
		CheckID: id.NewCheckID(),
		Report:  compliantReport(s),
	}, nil)
	mockService.EXPECT().ScheduleDocument(gomock.Any()).Return(tolerance.Document{Version: "2026.01"})

	checkReq := httptest.NewRequest(http.MethodPost, "/compliance/check", strings.NewReader(validCheckBody))
	checkW := httptest.NewRecorder()
	router.ServeHTTP(checkW, checkReq)
	s.Equal(http.StatusOK, checkW.Code, checkW.Body.String())

	schedReq := httptest.NewRequest(http.MethodGet, "/compliance/schedule", nil)
	schedW := httptest.NewRecorder()
	router.ServeHTTP(schedW, schedReq)
	s.Equal(http.StatusOK, schedW.Code)
}
