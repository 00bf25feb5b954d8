// Package common provides the generic HTTP request and assertion steps
// every feature builds on.
package common

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	PostRaw(path string, body []byte) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
}

// RegisterSteps registers request and assertion step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I POST "([^"]*)" with body:$`, steps.postWithBody)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBeString)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.responseFieldShouldBeInt)
	ctx.Step(`^the response error should be "([^"]*)"$`, steps.responseErrorShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) get(path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) postWithBody(path string, body *godog.DocString) error {
	return s.tc.PostRaw(path, []byte(body.Content))
}

func (s *commonSteps) responseStatusShouldBe(expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d", expected, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeString(field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	got, ok := value.(string)
	if !ok {
		return fmt.Errorf("field %q is %T, not a string", field, value)
	}
	if got != expected {
		return fmt.Errorf("field %q: expected %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeInt(field string, expected int) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	// encoding/json decodes every JSON number into float64.
	got, ok := value.(float64)
	if !ok {
		return fmt.Errorf("field %q is %T, not a number", field, value)
	}
	if int(got) != expected {
		return fmt.Errorf("field %q: expected %d, got %v", field, expected, got)
	}
	return nil
}

func (s *commonSteps) responseErrorShouldBe(expected string) error {
	return s.responseFieldShouldBeString("error", expected)
}
