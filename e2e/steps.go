package e2e

import (
	"github.com/cucumber/godog"

	"credify/e2e/steps/common"
	"credify/e2e/steps/credential"
	"credify/e2e/steps/issuer"
	"credify/e2e/steps/otp"
	"credify/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	issuer.RegisterSteps(ctx, tc)
	credential.RegisterSteps(ctx, tc)
	otp.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
