package verification

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"credify/internal/credential/token"
	otpcode "credify/internal/otp/code"
	"credify/internal/qr"
	"credify/internal/verification/records"
	"credify/pkg/email"
)

// KeySource fetches an issuer's SPKI public key PEM.
type KeySource interface {
	PublicKey(ctx context.Context, issuerID string) (string, error)
}

// FrameSource yields frames until exhausted or closed. The channel is closed
// when no more frames will arrive.
type FrameSource interface {
	Frames(ctx context.Context) <-chan image.Image
	Close() error
}

// Scanner opens a frame source, e.g. a camera or a set of image files.
type Scanner interface {
	Open(ctx context.Context) (FrameSource, error)
}

// OTPGateway sends and checks one-time codes. Verify returns nil on a match,
// ErrOTPExpired, ErrOTPExhausted, *OTPRejectedError, or a transient error.
type OTPGateway interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

// RecordStore keeps revealed credentials on the verifier's side.
type RecordStore interface {
	Save(ctx context.Context, r *records.Record) error
}

var (
	ErrOTPExpired   = errors.New("otp expired")
	ErrOTPExhausted = errors.New("otp attempts exhausted")
)

// ErrMalformedCode is returned for input that is not a 6-digit code. The
// session is left untouched and no attempt is spent.
var ErrMalformedCode = errors.New("code must be 6 digits")

type OTPRejectedError struct {
	Remaining int
}

func (e *OTPRejectedError) Error() string {
	return fmt.Sprintf("otp rejected, %d attempts remaining", e.Remaining)
}

// View is a point-in-time copy of the session for display.
type View struct {
	State             State
	Generation        uint64
	IssuerID          string
	HolderEmail       string
	Failure           string
	RemainingAttempts *int
	Claims            token.Claims
}

// Flow runs a Session against its ports. Calls into ports happen outside the
// lock; their results are applied only if no Reset happened meanwhile.
type Flow struct {
	mu      sync.Mutex
	session *Session
	role    Role
	source  FrameSource
	cancel  context.CancelFunc

	keys    KeySource
	scanner Scanner
	otp     OTPGateway
	records RecordStore
	logger  *slog.Logger
	now     func() time.Time
}

type FlowOption func(*Flow)

func WithLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) { f.logger = logger }
}

func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) { f.now = now }
}

// WithRecordStore persists revealed claims. Without it nothing is stored.
func WithRecordStore(rs RecordStore) FlowOption {
	return func(f *Flow) { f.records = rs }
}

// NewFlow builds a flow for role. The role's OTP exemption is fixed here.
func NewFlow(role Role, keys KeySource, scanner Scanner, otp OTPGateway, opts ...FlowOption) (*Flow, error) {
	if keys == nil || scanner == nil {
		return nil, errors.New("key source and scanner are required")
	}
	if otp == nil && !role.OTPExempt() {
		return nil, errors.New("otp gateway is required for role " + string(role))
	}
	f := &Flow{
		session: NewSession(role),
		role:    role,
		keys:    keys,
		scanner: scanner,
		otp:     otp,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.session
	v := View{
		State:       s.State(),
		Generation:  s.Generation(),
		IssuerID:    s.IssuerID(),
		HolderEmail: s.HolderEmail(),
		Failure:     s.Failure(),
		Claims:      s.Claims(),
	}
	if n, ok := s.RemainingAttempts(); ok {
		v.RemainingAttempts = &n
	}
	return v
}

// Start selects the issuer and fetches its public key.
func (f *Flow) Start(ctx context.Context, issuerID string) error {
	f.mu.Lock()
	if err := f.session.Transition(Start{IssuerID: issuerID}); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.session.State() != StateFetchingKey {
		f.mu.Unlock()
		return nil
	}
	ctx, gen := f.begin(ctx)
	issuer := f.session.IssuerID()
	f.mu.Unlock()

	pem, err := f.keys.PublicKey(ctx, issuer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.WarnContext(ctx, "public key fetch failed", "issuer_id", issuer, "error", err)
		return f.session.Deliver(gen, KeyFetchFailed{Err: err})
	}
	return f.session.Deliver(gen, KeyFetched{PEM: pem})
}

// Scan reads frames until the first credential token, releases the scanner,
// and checks the signature. Frames without a credential are skipped. An
// exempt role is revealed immediately; otherwise the session waits for OTP.
func (f *Flow) Scan(ctx context.Context) error {
	f.mu.Lock()
	if f.session.State() != StateScanning {
		st := f.session.State()
		f.mu.Unlock()
		return fmt.Errorf("%w: scan in %s", ErrInvalidTransition, st)
	}
	ctx, gen := f.begin(ctx)
	f.mu.Unlock()

	src, err := f.scanner.Open(ctx)
	if err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.session.Deliver(gen, ScanFailed{Err: fmt.Errorf("open scanner: %w", err)})
	}

	f.mu.Lock()
	if gen != f.session.Generation() {
		f.mu.Unlock()
		_ = src.Close()
		return ErrStale
	}
	f.source = src
	f.mu.Unlock()

	tok, scanErr := firstToken(ctx, src)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen == f.session.Generation() {
		f.releaseScanner()
	}
	if scanErr != nil {
		return f.session.Deliver(gen, ScanFailed{Err: scanErr})
	}
	if err := f.session.Deliver(gen, TokenCaptured{Token: tok}); err != nil {
		return err
	}

	claims, err := token.Verify(tok, f.session.PublicKey(), f.session.IssuerID())
	if err != nil {
		f.logger.WarnContext(ctx, "credential signature rejected",
			"issuer_id", f.session.IssuerID(),
			"error", token.Cause(err),
		)
		return f.session.Transition(SignatureRejected{Err: err})
	}
	if err := f.session.Transition(SignatureChecked{Claims: claims}); err != nil {
		return err
	}

	if f.session.Exempt() {
		return f.reveal(ctx)
	}
	return f.session.Transition(RequireOTP{})
}

// SendOTP mails a code to the credential's email. A send failure keeps the
// session where it is; the caller decides whether to try again.
func (f *Flow) SendOTP(ctx context.Context) error {
	f.mu.Lock()
	if err := f.session.Transition(OTPRequested{}); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.session.State() != StateOTPPending {
		f.mu.Unlock()
		return nil
	}
	ctx, gen := f.begin(ctx)
	holder := f.session.HolderEmail()
	f.mu.Unlock()

	err := f.otp.Send(ctx, holder)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.WarnContext(ctx, "otp send failed", "holder", email.Mask(holder), "error", err)
		if derr := f.session.Deliver(gen, OTPSendFailed{Err: err}); derr != nil {
			return derr
		}
		return err
	}
	return nil
}

// SubmitOTP checks code. A match reveals the claims.
func (f *Flow) SubmitOTP(ctx context.Context, code string) error {
	f.mu.Lock()
	if f.session.State() != StateOTPPending {
		st := f.session.State()
		f.mu.Unlock()
		return fmt.Errorf("%w: submit code in %s", ErrInvalidTransition, st)
	}
	if !otpcode.Valid(code) {
		f.mu.Unlock()
		return ErrMalformedCode
	}
	ctx, gen := f.begin(ctx)
	holder := f.session.HolderEmail()
	f.mu.Unlock()

	err := f.otp.Verify(ctx, holder, code)

	f.mu.Lock()
	defer f.mu.Unlock()

	var rejected *OTPRejectedError
	switch {
	case err == nil:
		if derr := f.session.Deliver(gen, OTPAccepted{}); derr != nil {
			return derr
		}
		return f.reveal(ctx)
	case errors.As(err, &rejected):
		return f.session.Deliver(gen, OTPRejected{Remaining: rejected.Remaining})
	case errors.Is(err, ErrOTPExhausted):
		return f.session.Deliver(gen, OTPExhausted{})
	case errors.Is(err, ErrOTPExpired):
		return f.session.Deliver(gen, OTPExpired{})
	default:
		if derr := f.session.Deliver(gen, OTPCheckFailed{Err: err}); derr != nil {
			return derr
		}
		return err
	}
}

// Reset abandons the session from any state, releasing the scanner and
// cancelling in-flight work.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.releaseScanner()
	_ = f.session.Transition(Reset{})
}

// begin derives a cancellable context for port calls. Caller holds mu.
func (f *Flow) begin(ctx context.Context) (context.Context, uint64) {
	if f.cancel != nil {
		f.cancel()
	}
	ctx, f.cancel = context.WithCancel(ctx)
	return ctx, f.session.Generation()
}

// releaseScanner closes the open frame source. Caller holds mu.
func (f *Flow) releaseScanner() {
	if f.source == nil {
		return
	}
	if err := f.source.Close(); err != nil {
		f.logger.Warn("closing frame source failed", "error", err)
	}
	f.source = nil
}

// reveal moves to REVEALED and stores the claims. Caller holds mu.
func (f *Flow) reveal(ctx context.Context) error {
	if err := f.session.Transition(Revealed{}); err != nil {
		return err
	}
	if f.records == nil {
		return nil
	}
	claims := f.session.Claims()
	holder := f.session.HolderEmail()
	if holder == "" {
		if raw, ok := claims.Email(); ok {
			holder = email.Normalize(raw)
		}
	}
	rec := &records.Record{
		IssuerID:    f.session.IssuerID(),
		HolderEmail: holder,
		Claims:      claims.Holder(),
		Token:       f.session.Token(),
		Role:        string(f.role),
		VerifiedAt:  f.now().UTC(),
	}
	if err := f.records.Save(ctx, rec); err != nil {
		f.logger.ErrorContext(ctx, "saving revealed credential failed", "issuer_id", rec.IssuerID, "error", err)
		return fmt.Errorf("claims revealed but not saved: %w", err)
	}
	return nil
}

func firstToken(ctx context.Context, src FrameSource) (string, error) {
	frames := src.Frames(ctx)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case img, ok := <-frames:
			if !ok {
				return "", qr.ErrNoCode
			}
			tok, err := qr.DecodeToken(img)
			if err == nil {
				return tok, nil
			}
		}
	}
}
