package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
}

// RegisterSteps registers rate limiting steps for the code request endpoint.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}
	ctx.Step(`^I request a code for "([^"]*)" (\d+) times$`, steps.requestCodeTimes)
	ctx.Step(`^I request one more code for the same email$`, steps.requestOneMore)
	ctx.Step(`^every request should have succeeded$`, steps.everyRequestSucceeded)
	ctx.Step(`^the request should be rate limited$`, steps.shouldBeRateLimited)
	ctx.Step(`^the response should carry a Retry-After header$`, steps.shouldCarryRetryAfter)
}

type ratelimitSteps struct {
	tc       TestContext
	email    string
	statuses []int
}

// requestCodeTimes expands "{run}" in the address so repeated runs inside one
// window do not share a bucket.
func (s *ratelimitSteps) requestCodeTimes(ctx context.Context, email string, n int) error {
	s.email = strings.ReplaceAll(email, "{run}", strconv.FormatInt(time.Now().UnixNano(), 36))
	s.statuses = s.statuses[:0]
	for i := 0; i < n; i++ {
		if err := s.send(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ratelimitSteps) requestOneMore(ctx context.Context) error {
	if s.email == "" {
		return fmt.Errorf("no email requested yet")
	}
	return s.send()
}

func (s *ratelimitSteps) send() error {
	if err := s.tc.POST("/otp/send", map[string]string{"email": s.email}); err != nil {
		return err
	}
	s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	return nil
}

func (s *ratelimitSteps) everyRequestSucceeded(ctx context.Context) error {
	for i, status := range s.statuses {
		if status != 200 {
			return fmt.Errorf("request %d returned %d", i+1, status)
		}
	}
	return nil
}

func (s *ratelimitSteps) shouldBeRateLimited(ctx context.Context) error {
	if got := s.tc.GetLastResponseStatus(); got != 429 {
		return fmt.Errorf("expected 429, got %d: %s", got, s.tc.GetLastResponseBody())
	}
	v, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if v != "rate_limit_exceeded" {
		return fmt.Errorf("expected rate_limit_exceeded, got %v", v)
	}
	return nil
}

func (s *ratelimitSteps) shouldCarryRetryAfter(ctx context.Context) error {
	raw := s.tc.GetLastResponseHeader("Retry-After")
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return fmt.Errorf("invalid Retry-After %q", raw)
	}
	return nil
}
