package otp

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers one-time code steps. The server never returns the
// code, so scenarios only drive the rejection paths.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &otpSteps{tc: tc}
	ctx.Step(`^I request a code for "([^"]*)"$`, steps.requestCode)
	ctx.Step(`^I submit code "([^"]*)" for "([^"]*)"$`, steps.submitCode)
	ctx.Step(`^I submit code "([^"]*)" for "([^"]*)" (\d+) times$`, steps.submitCodeTimes)
	ctx.Step(`^the remaining attempts should be (\d+)$`, steps.remainingAttemptsShouldBe)
}

type otpSteps struct {
	tc TestContext
}

func (s *otpSteps) requestCode(ctx context.Context, email string) error {
	return s.tc.POST("/otp/send", map[string]string{"email": email})
}

func (s *otpSteps) submitCode(ctx context.Context, code, email string) error {
	return s.tc.POST("/otp/verify", map[string]string{"email": email, "code": code})
}

func (s *otpSteps) submitCodeTimes(ctx context.Context, code, email string, n int) error {
	for i := 0; i < n; i++ {
		if err := s.submitCode(ctx, code, email); err != nil {
			return err
		}
	}
	return nil
}

func (s *otpSteps) remainingAttemptsShouldBe(ctx context.Context, want int) error {
	v, err := s.tc.GetResponseField("remaining_attempts")
	if err != nil {
		return err
	}
	got, ok := v.(float64)
	if !ok || int(got) != want {
		return fmt.Errorf("expected %d remaining attempts, got %v", want, v)
	}
	return nil
}
