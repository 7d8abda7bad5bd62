// Command verifier checks credential QR codes against a credify server.
//
//	verifier -server http://localhost:8080 -issuer "State University" -image card.png
//
// Each -image is verified as its own session. Unless -role authority is given,
// a one-time code is mailed to the holder and read from stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"credify/internal/platform/logger"
	"credify/internal/verification"
	"credify/internal/verification/records"
	"credify/pkg/client"
	id "credify/pkg/domain"
)

type imageList []string

func (l *imageList) String() string { return strings.Join(*l, ",") }

func (l *imageList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	server   string
	issuer   string
	role     string
	dbPath   string
	history  string
	list     bool
	logLevel string
	timeout  time.Duration
	images   imageList
}

func main() {
	var opts options
	flag.StringVar(&opts.server, "server", "http://localhost:8080", "credify server URL")
	flag.StringVar(&opts.issuer, "issuer", "", "issuer ID or name")
	flag.StringVar(&opts.role, "role", "holder", "verifier role: holder, issuer or authority")
	flag.StringVar(&opts.dbPath, "db", "verified.db", "SQLite file for revealed credentials")
	flag.StringVar(&opts.history, "history", "", "print stored records for this holder email (\"*\" for all) and exit")
	flag.BoolVar(&opts.list, "list", false, "list issuers and exit")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	flag.Var(&opts.images, "image", "QR image file (repeatable)")
	flag.Parse()

	log := logger.NewWithWriter(os.Stderr, opts.logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *slog.Logger, in io.Reader, out, prompt io.Writer) error {
	if opts.history != "" {
		return printHistory(ctx, opts, out)
	}

	c, err := client.New(opts.server, client.WithHTTPClient(&http.Client{Timeout: opts.timeout}))
	if err != nil {
		return err
	}
	if opts.list {
		issuers, err := c.ListIssuers(ctx)
		if err != nil {
			return err
		}
		for _, iss := range issuers {
			fmt.Fprintf(out, "%s\t%s\n", iss.IssuerID, iss.Name)
		}
		return nil
	}

	role, err := verification.ParseRole(opts.role)
	if err != nil {
		return err
	}
	if len(opts.images) == 0 {
		return errors.New("at least one -image is required")
	}
	if role.OTPExempt() {
		log.WarnContext(ctx, "otp check skipped for exempt role", "role", opts.role)
	}
	issuerID, err := resolveIssuer(ctx, c, opts.issuer)
	if err != nil {
		return err
	}

	store, err := records.Open(ctx, opts.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	keys := client.NewCachedKeys(c, nil, log)
	codes := bufio.NewScanner(in)
	var failed int
	for _, path := range opts.images {
		var gateway verification.OTPGateway
		if !role.OTPExempt() {
			gateway = c
		}
		flow, err := verification.NewFlow(role, keys,
			verification.FileScanner{Paths: []string{path}, Logger: log},
			gateway,
			verification.WithLogger(log),
			verification.WithRecordStore(store),
		)
		if err != nil {
			return err
		}
		claims, err := verifyOne(ctx, flow, issuerID, codes, prompt)
		if err != nil {
			failed++
			fmt.Fprintf(prompt, "%s: %v\n", path, err)
			continue
		}
		if err := json.NewEncoder(out).Encode(claims); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d credentials not verified", failed, len(opts.images))
	}
	return nil
}

// verifyOne drives one session to REVEALED or ERROR.
func verifyOne(ctx context.Context, flow *verification.Flow, issuerID string, codes *bufio.Scanner, prompt io.Writer) (map[string]any, error) {
	if err := flow.Start(ctx, issuerID); err != nil {
		return nil, err
	}
	if v := flow.View(); v.State == verification.StateError {
		return nil, errors.New(v.Failure)
	}
	if err := flow.Scan(ctx); err != nil {
		return nil, err
	}

	v := flow.View()
	if v.State == verification.StateOTPRequired {
		if err := flow.SendOTP(ctx); err != nil {
			return nil, fmt.Errorf("send code: %w", err)
		}
		v = flow.View()
		if v.State == verification.StateOTPPending {
			fmt.Fprintf(prompt, "A code was sent to the email on this credential.\n")
		}
	}
	for v.State == verification.StateOTPPending {
		if v.RemainingAttempts != nil {
			fmt.Fprintf(prompt, "Incorrect code, %d attempt(s) left.\n", *v.RemainingAttempts)
		}
		fmt.Fprint(prompt, "Enter code: ")
		if !codes.Scan() {
			return nil, errors.New("no code entered")
		}
		err := flow.SubmitOTP(ctx, strings.TrimSpace(codes.Text()))
		if errors.Is(err, verification.ErrMalformedCode) {
			fmt.Fprintln(prompt, "Codes are 6 digits.")
			continue
		}
		if err != nil {
			return nil, err
		}
		v = flow.View()
	}

	switch v.State {
	case verification.StateRevealed:
		return v.Claims, nil
	case verification.StateError:
		return nil, errors.New(v.Failure)
	default:
		return nil, fmt.Errorf("verification stopped in %s", v.State)
	}
}

// resolveIssuer accepts an issuer ID or an exact issuer name.
func resolveIssuer(ctx context.Context, c *client.Client, issuer string) (string, error) {
	if issuer == "" {
		return "", errors.New("-issuer is required (see -list)")
	}
	if _, err := id.ParseIssuerID(issuer); err == nil {
		return issuer, nil
	}
	issuers, err := c.ListIssuers(ctx)
	if err != nil {
		return "", err
	}
	for _, iss := range issuers {
		if strings.EqualFold(iss.Name, issuer) {
			return iss.IssuerID, nil
		}
	}
	return "", fmt.Errorf("no issuer named %q", issuer)
}

func printHistory(ctx context.Context, opts options, out io.Writer) error {
	store, err := records.Open(ctx, opts.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	holder := opts.history
	if holder == "*" {
		holder = ""
	}
	recs, err := store.List(ctx, holder)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.VerifiedAt.Format(time.RFC3339), r.IssuerID, r.HolderEmail, r.Role)
	}
	return nil
}
