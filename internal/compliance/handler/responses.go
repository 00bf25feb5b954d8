package handler

import (
	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/service"
)

// CheckResponse is the HTTP response for POST /compliance/check: the check
// identifier plus the full report fields inline.
type CheckResponse struct {
	CheckID string `json:"check_id"`
	*models.ComplianceReport
}

// FromCheckResult converts a service check result to an HTTP response.
func FromCheckResult(result *service.CheckResult) *CheckResponse {
	return &CheckResponse{
		CheckID:          result.CheckID.String(),
		ComplianceReport: result.Report,
	}
}

// ClassifyResponse is the HTTP response for POST /compliance/classify.
type ClassifyResponse struct {
	ScheduleVersion string                 `json:"schedule_version"`
	Classified      []models.ClassifiedFee `json:"classified"`
}

// FromClassifyResult converts a service classify result to an HTTP response.
func FromClassifyResult(result *service.ClassifyResult) *ClassifyResponse {
	return &ClassifyResponse{
		ScheduleVersion: result.ScheduleVersion,
		Classified:      result.Classified,
	}
}
