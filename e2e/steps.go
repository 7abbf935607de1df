package e2e

import (
	"github.com/cucumber/godog"

	"warden/e2e/steps/common"
	"warden/e2e/steps/punishment"
	"warden/e2e/steps/verification"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	verification.RegisterSteps(ctx, tc)
	punishment.RegisterSteps(ctx, tc)
}
