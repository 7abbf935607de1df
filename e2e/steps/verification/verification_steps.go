package verification

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers player verification steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^player "([^"]*)" with uuid "([^"]*)" connects from "([^"]*)"$`, steps.playerConnects)
	ctx.Step(`^the connection should be admitted$`, steps.connectionAdmitted)
	ctx.Step(`^the connection should be rejected with a reason containing "([^"]*)"$`, steps.connectionRejected)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) playerConnects(ctx context.Context, name, uuid, address string) error {
	body := map[string]interface{}{
		"name":    name,
		"uuid":    uuid,
		"usid":    "e2e-" + name,
		"address": address,
	}
	return s.tc.POST("/v1/verifications", body)
}

func (s *verificationSteps) connectionAdmitted(ctx context.Context) error {
	status, err := s.verdict()
	if err != nil {
		return err
	}
	if status != "success" {
		return fmt.Errorf("expected connection to be admitted: %s", s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *verificationSteps) connectionRejected(ctx context.Context, fragment string) error {
	status, err := s.verdict()
	if err != nil {
		return err
	}
	if status != "failure" {
		return fmt.Errorf("expected connection to be rejected: %s", s.tc.GetLastResponseBody())
	}
	reason, err := s.tc.GetResponseField("reason")
	if err != nil {
		return err
	}
	if !strings.Contains(fmt.Sprint(reason), fragment) {
		return fmt.Errorf("expected reason to contain %q, got %q", fragment, reason)
	}
	return nil
}

func (s *verificationSteps) verdict() (string, error) {
	if code := s.tc.GetLastResponseStatus(); code != 200 {
		return "", fmt.Errorf("verification returned status %d: %s", code, s.tc.GetLastResponseBody())
	}
	status, err := s.tc.GetResponseField("status")
	if err != nil {
		return "", err
	}
	return fmt.Sprint(status), nil
}
