package punishment

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(key, value string)
	Recall(key string) (string, error)
}

const lastPunishmentKey = "punishment_id"

// RegisterSteps registers punishment management steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &punishmentSteps{tc: tc}

	ctx.Step(`^I ban address "([^"]*)" for "([^"]*)" with reason "([^"]*)"$`, steps.banAddress)
	ctx.Step(`^I pardon the last punishment with reason "([^"]*)"$`, steps.pardonLast)
}

type punishmentSteps struct {
	tc TestContext
}

func (s *punishmentSteps) banAddress(ctx context.Context, address, duration, reason string) error {
	body := map[string]interface{}{
		"address":  address,
		"reason":   reason,
		"type":     "ban",
		"duration": duration,
	}
	if err := s.tc.POST("/v1/punishments", body); err != nil {
		return err
	}
	if code := s.tc.GetLastResponseStatus(); code != 201 {
		return fmt.Errorf("expected 201 issuing punishment, got %d: %s", code, s.tc.GetLastResponseBody())
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save(lastPunishmentKey, fmt.Sprint(id))
	return nil
}

func (s *punishmentSteps) pardonLast(ctx context.Context, reason string) error {
	id, err := s.tc.Recall(lastPunishmentKey)
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/punishments/"+id+"/pardon", map[string]interface{}{"reason": reason})
}
