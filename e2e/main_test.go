package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the scenarios against a live server at WARDEN_E2E_URL.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("WARDEN_E2E_URL")
	if baseURL == "" {
		t.Skip("WARDEN_E2E_URL not set")
	}
	tc := NewTestContext(baseURL, os.Getenv("WARDEN_E2E_TOKEN"))

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
