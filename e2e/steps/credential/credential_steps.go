package credential

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

type TestContext interface {
	AdminPOST(path string, body any) error
	AdminGET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(key, value string)
	Saved(key string) string
}

// RegisterSteps registers credential enrollment and QR steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &credentialSteps{tc: tc}
	ctx.Step(`^I enroll "([^"]*)" with role "([^"]*)"$`, steps.enroll)
	ctx.Step(`^I enroll claims without an email$`, steps.enrollWithoutEmail)
	ctx.Step(`^I download the credential QR code$`, steps.downloadQR)
	ctx.Step(`^the response should be a PNG image$`, steps.responseShouldBePNG)
}

type credentialSteps struct {
	tc TestContext
}

func (s *credentialSteps) issuePath() string {
	return "/issuers/" + s.tc.Saved("issuer_id") + "/credentials"
}

func (s *credentialSteps) enroll(ctx context.Context, email, role string) error {
	claims := map[string]any{"email": email, "role": role}
	if err := s.tc.AdminPOST(s.issuePath(), map[string]any{"claims": claims}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 201 {
		v, err := s.tc.GetResponseField("credential_id")
		if err != nil {
			return err
		}
		s.tc.Save("credential_id", fmt.Sprint(v))
	}
	return nil
}

func (s *credentialSteps) enrollWithoutEmail(ctx context.Context) error {
	claims := map[string]any{"role": "holder"}
	return s.tc.AdminPOST(s.issuePath(), map[string]any{"claims": claims})
}

func (s *credentialSteps) downloadQR(ctx context.Context) error {
	return s.tc.AdminGET(s.issuePath() + "/" + s.tc.Saved("credential_id") + "/qr")
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (s *credentialSteps) responseShouldBePNG(ctx context.Context) error {
	body := s.tc.GetLastResponseBody()
	if len(body) < len(pngMagic) || string(body[:len(pngMagic)]) != string(pngMagic) {
		return fmt.Errorf("response is not a PNG (%d bytes)", len(body))
	}
	return nil
}
