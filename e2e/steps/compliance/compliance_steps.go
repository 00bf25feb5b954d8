// Package compliance provides step definitions asserting on compliance
// reports and fee classifications.
package compliance

import (
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GetLastResponseBody() []byte
}

// RegisterSteps registers compliance report assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &complianceSteps{tc: tc}

	ctx.Step(`^the check should be compliant$`, steps.checkShouldBeCompliant)
	ctx.Step(`^the check should not be compliant$`, steps.checkShouldNotBeCompliant)
	ctx.Step(`^the report should list (\d+) violations?$`, steps.reportShouldListViolations)
	ctx.Step(`^violation (\d+) should have type "([^"]*)"$`, steps.violationShouldHaveType)
	ctx.Step(`^the fee "([^"]*)" should be classified as "([^"]*)"$`, steps.feeShouldBeClassified)
}

type complianceSteps struct {
	tc TestContext
}

// checkReport mirrors the check response fields these steps assert on.
type checkReport struct {
	CheckID     string `json:"check_id"`
	IsCompliant bool   `json:"is_compliant"`
	Violations  []struct {
		Type string `json:"type"`
	} `json:"violations"`
}

func (s *complianceSteps) report() (*checkReport, error) {
	var report checkReport
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &report); err != nil {
		return nil, fmt.Errorf("decode check response: %w", err)
	}
	return &report, nil
}

func (s *complianceSteps) checkShouldBeCompliant() error {
	report, err := s.report()
	if err != nil {
		return err
	}
	if !report.IsCompliant {
		return fmt.Errorf("expected a compliant report, got: %s", s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *complianceSteps) checkShouldNotBeCompliant() error {
	report, err := s.report()
	if err != nil {
		return err
	}
	if report.IsCompliant {
		return fmt.Errorf("expected a non-compliant report")
	}
	return nil
}

func (s *complianceSteps) reportShouldListViolations(n int) error {
	report, err := s.report()
	if err != nil {
		return err
	}
	if len(report.Violations) != n {
		return fmt.Errorf("expected %d violations, got %d: %s",
			n, len(report.Violations), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *complianceSteps) violationShouldHaveType(index int, violationType string) error {
	report, err := s.report()
	if err != nil {
		return err
	}
	if index < 1 || index > len(report.Violations) {
		return fmt.Errorf("violation %d out of range, report lists %d", index, len(report.Violations))
	}
	if got := report.Violations[index-1].Type; got != violationType {
		return fmt.Errorf("violation %d: expected type %q, got %q", index, violationType, got)
	}
	return nil
}

func (s *complianceSteps) feeShouldBeClassified(name, bucket string) error {
	var resp struct {
		Classified []struct {
			Name   string `json:"name"`
			Bucket string `json:"bucket"`
		} `json:"classified"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &resp); err != nil {
		return fmt.Errorf("decode classify response: %w", err)
	}
	for _, fee := range resp.Classified {
		if fee.Name == name {
			if fee.Bucket != bucket {
				return fmt.Errorf("fee %q: expected bucket %q, got %q", name, bucket, fee.Bucket)
			}
			return nil
		}
	}
	return fmt.Errorf("fee %q not present in classify response", name)
}
