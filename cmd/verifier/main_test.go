package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	credentialservice "credify/internal/credential/service"
	credentialstore "credify/internal/credential/store"
	"credify/internal/credential/token"
	issuerhandler "credify/internal/issuer/handler"
	"credify/internal/issuer/keys"
	issuerservice "credify/internal/issuer/service"
	issuerstore "credify/internal/issuer/store"
	otpcode "credify/internal/otp/code"
	otphandler "credify/internal/otp/handler"
	otpservice "credify/internal/otp/service"
	otpstore "credify/internal/otp/store"
	httptransport "credify/internal/transport/http"
	"credify/internal/verification"
)

const fixedCode = "424242"

// codeFeed is stdin for the CLI. Lines arrive over a channel so the mailer
// can hand the code over while the CLI is waiting for it.
type codeFeed struct {
	lines chan string
	buf   []byte
}

func (f *codeFeed) Read(p []byte) (int, error) {
	if len(f.buf) == 0 {
		line, ok := <-f.lines
		if !ok {
			return 0, io.EOF
		}
		f.buf = []byte(line + "\n")
	}
	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	return n, nil
}

type feedMailer struct{ feed *codeFeed }

func (m feedMailer) SendOTP(_ context.Context, _, code string, _ time.Duration) error {
	m.feed.lines <- code
	return nil
}

type fixture struct {
	server   *httptest.Server
	issuerID string
	feed     *codeFeed
	images   map[string]string
	dbPath   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	masterKey, err := keys.NewMasterKey(bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)
	keyStore := issuerstore.NewInMemory()
	issuers, err := issuerservice.New(keyStore, keyStore, masterKey)
	require.NoError(t, err)
	creds, err := credentialservice.New(issuers, credentialstore.NewInMemory())
	require.NoError(t, err)

	feed := &codeFeed{lines: make(chan string, 8)}
	hasher, err := otpcode.NewHasher(masterKey.Bytes())
	require.NoError(t, err)
	otps, err := otpservice.New(otpstore.NewInMemory(), feedMailer{feed: feed}, hasher,
		otpservice.WithCodeGenerator(func() (string, error) { return fixedCode, nil }),
	)
	require.NoError(t, err)

	issuerH := issuerhandler.New(issuers, log)
	srv := httptest.NewServer(httptransport.NewRouter(httptransport.Deps{
		Logger: log,
		Public: []httptransport.Mountable{issuerH, otphandler.New(otps, log)},
	}))
	t.Cleanup(srv.Close)

	college, _, err := issuers.CreateIssuer(ctx, "State University")
	require.NoError(t, err)
	other, _, err := issuers.CreateIssuer(ctx, "Other College")
	require.NoError(t, err)

	dir := t.TempDir()
	images := map[string]string{}
	ada, err := creds.Enroll(ctx, college.ID, token.Claims{"name": "Ada Lovelace", "email": "ada@x.edu"})
	require.NoError(t, err)
	forged, err := creds.Enroll(ctx, other.ID, token.Claims{"name": "Mallory", "email": "mallory@x.edu"})
	require.NoError(t, err)
	for name, png := range map[string]func() ([]byte, error){
		"ada":    func() ([]byte, error) { return creds.QRCode(ctx, college.ID, ada.ID) },
		"forged": func() ([]byte, error) { return creds.QRCode(ctx, other.ID, forged.ID) },
	} {
		data, err := png()
		require.NoError(t, err)
		path := filepath.Join(dir, name+".png")
		require.NoError(t, os.WriteFile(path, data, 0o600))
		images[name] = path
	}

	return &fixture{
		server:   srv,
		issuerID: college.ID.String(),
		feed:     feed,
		images:   images,
		dbPath:   filepath.Join(dir, "verified.db"),
	}
}

func (f *fixture) options(role string, images ...string) options {
	return options{
		server:  f.server.URL,
		issuer:  f.issuerID,
		role:    role,
		dbPath:  f.dbPath,
		timeout: 5 * time.Second,
		images:  images,
	}
}

func (f *fixture) run(t *testing.T, opts options) (string, string, error) {
	t.Helper()
	var out, prompt bytes.Buffer
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := run(context.Background(), opts, log, f.feed, &out, &prompt)
	return out.String(), prompt.String(), err
}

func TestHolderVerifiesWithCode(t *testing.T) {
	f := newFixture(t)
	f.feed.lines <- "111111"

	out, prompt, err := f.run(t, f.options("holder", f.images["ada"]))
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &claims))
	assert.Equal(t, "Ada Lovelace", claims["name"])
	assert.Contains(t, prompt, "Incorrect code, 2 attempt(s) left.")

	history, _, err := f.run(t, options{dbPath: f.dbPath, history: "ada@x.edu"})
	require.NoError(t, err)
	assert.Contains(t, history, f.issuerID)
	assert.Contains(t, history, "holder")
}

func TestMistypedCodeIsAskedAgain(t *testing.T) {
	f := newFixture(t)
	f.feed.lines <- "42424"

	out, prompt, err := f.run(t, f.options("holder", f.images["ada"]))
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, prompt, "Codes are 6 digits.")
	assert.NotContains(t, prompt, "attempt(s) left", "a mistyped code spends no attempt")
}

func TestThirdWrongCodeEndsVerification(t *testing.T) {
	f := newFixture(t)
	for _, wrong := range []string{"111111", "222222", "333333"} {
		f.feed.lines <- wrong
	}

	out, prompt, err := f.run(t, f.options("holder", f.images["ada"]))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 credentials not verified")
	assert.Empty(t, out)
	assert.Contains(t, prompt, "Incorrect code, 1 attempt(s) left.")
	assert.NotContains(t, prompt, "0 attempt(s) left")
	assert.Equal(t, 3, strings.Count(prompt, "Enter code: "))
	assert.Contains(t, prompt, verification.MsgTooManyTries)
}

func TestAuthorityIsNotAskedForCode(t *testing.T) {
	f := newFixture(t)

	out, prompt, err := f.run(t, f.options("authority", f.images["ada"]))
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace")
	assert.NotContains(t, prompt, "Enter code")
}

func TestCredentialFromAnotherIssuerIsRejected(t *testing.T) {
	f := newFixture(t)

	out, prompt, err := f.run(t, f.options("authority", f.images["forged"], f.images["ada"]))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 credentials not verified")
	assert.Contains(t, prompt, "forged.png")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestIssuerResolvedByName(t *testing.T) {
	f := newFixture(t)

	opts := f.options("authority", f.images["ada"])
	opts.issuer = "state university"
	out, _, err := f.run(t, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace")

	listing, _, err := f.run(t, options{server: f.server.URL, list: true, timeout: time.Second})
	require.NoError(t, err)
	assert.Contains(t, listing, "State University")
	assert.Contains(t, listing, "Other College")
}
