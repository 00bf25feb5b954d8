package e2e

import (
	"github.com/cucumber/godog"

	"tridcheck/e2e/steps/common"
	"tridcheck/e2e/steps/compliance"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic requests, status and field assertions)
	common.RegisterSteps(ctx, tc)

	// Register compliance-specific steps (report and classification assertions)
	compliance.RegisterSteps(ctx, tc)
}
