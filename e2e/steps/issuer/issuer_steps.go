package issuer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

type TestContext interface {
	GET(path string, headers map[string]string) error
	AdminPOST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(key, value string)
	Saved(key string) string
}

// RegisterSteps registers issuer administration and discovery steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &issuerSteps{tc: tc}
	ctx.Step(`^I create an issuer named "([^"]*)"$`, steps.createIssuer)
	ctx.Step(`^an issuer named "([^"]*)" exists$`, steps.issuerExists)
	ctx.Step(`^I list issuers$`, steps.listIssuers)
	ctx.Step(`^the issuer list should include the issuer$`, steps.listShouldIncludeIssuer)
	ctx.Step(`^I fetch the issuer's public key$`, steps.fetchPublicKey)
	ctx.Step(`^I fetch the public key of issuer "([^"]*)"$`, steps.fetchPublicKeyOf)
	ctx.Step(`^the public key should be a PEM block$`, steps.publicKeyShouldBePEM)
}

type issuerSteps struct {
	tc TestContext
}

// Issuer names are unique server-side, so scenarios suffix them to stay
// independent across runs against the same database.
func uniqueName(name string) string {
	return fmt.Sprintf("%s %d", name, time.Now().UnixNano())
}

func (s *issuerSteps) createIssuer(ctx context.Context, name string) error {
	name = uniqueName(name)
	if err := s.tc.AdminPOST("/issuers", map[string]any{"name": name}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 201 {
		v, err := s.tc.GetResponseField("issuer_id")
		if err != nil {
			return err
		}
		s.tc.Save("issuer_id", fmt.Sprint(v))
		s.tc.Save("issuer_name", name)
	}
	return nil
}

func (s *issuerSteps) issuerExists(ctx context.Context, name string) error {
	if err := s.createIssuer(ctx, name); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("create issuer: %d %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *issuerSteps) listIssuers(ctx context.Context) error {
	return s.tc.GET("/issuers", nil)
}

func (s *issuerSteps) listShouldIncludeIssuer(ctx context.Context) error {
	var body struct {
		Issuers []struct {
			IssuerID string `json:"issuer_id"`
			Name     string `json:"name"`
		} `json:"issuers"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return err
	}
	want := s.tc.Saved("issuer_id")
	for _, iss := range body.Issuers {
		if iss.IssuerID == want {
			if iss.Name != s.tc.Saved("issuer_name") {
				return fmt.Errorf("issuer %s listed as %q", want, iss.Name)
			}
			return nil
		}
	}
	return fmt.Errorf("issuer %s not listed", want)
}

func (s *issuerSteps) fetchPublicKey(ctx context.Context) error {
	return s.fetchPublicKeyOf(ctx, s.tc.Saved("issuer_id"))
}

func (s *issuerSteps) fetchPublicKeyOf(ctx context.Context, issuerID string) error {
	return s.tc.GET("/issuers/"+issuerID+"/public-key", nil)
}

func (s *issuerSteps) publicKeyShouldBePEM(ctx context.Context) error {
	v, err := s.tc.GetResponseField("public_key")
	if err != nil {
		return err
	}
	key := fmt.Sprint(v)
	if !strings.HasPrefix(key, "-----BEGIN PUBLIC KEY-----") {
		return fmt.Errorf("public key is not PEM: %q", key)
	}
	return nil
}
