// Package verification drives a verifier through key fetch, QR capture,
// signature check and the OTP gate before claims are revealed.
package verification

import (
	"errors"
	"fmt"
	"strings"

	"credify/internal/credential/token"
	"credify/pkg/email"
)

type State int

const (
	StateIdle State = iota
	StateFetchingKey
	StateScanning
	StateTokenCaptured
	StateSignatureVerified
	StateOTPRequired
	StateOTPPending
	StateOTPVerified
	StateRevealed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetchingKey:
		return "FETCHING_KEY"
	case StateScanning:
		return "SCANNING"
	case StateTokenCaptured:
		return "TOKEN_CAPTURED"
	case StateSignatureVerified:
		return "SIGNATURE_VERIFIED"
	case StateOTPRequired:
		return "OTP_REQUIRED"
	case StateOTPPending:
		return "OTP_PENDING"
	case StateOTPVerified:
		return "OTP_VERIFIED"
	case StateRevealed:
		return "REVEALED"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Role is the local verifier role. It is chosen by whoever runs the flow and
// is never read from a token.
type Role string

const (
	RoleHolder    Role = "holder"
	RoleIssuer    Role = "issuer"
	RoleAuthority Role = "authority"
)

// OTPExempt reports whether the role skips the OTP gate.
func (r Role) OTPExempt() bool { return r == RoleAuthority }

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleHolder, RoleIssuer, RoleAuthority:
		return r, nil
	case "":
		return RoleHolder, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Error messages surfaced in the ERROR state.
const (
	MsgNoIssuer       = "no issuer selected"
	MsgKeyFetchFailed = "could not fetch issuer public key"
	MsgNoCredential   = "no credential QR found"
	MsgInvalidToken   = "invalid or tampered token"
	MsgNoEmail        = "credential has no valid email"
	MsgTooManyTries   = "too many failed attempts"
	MsgCodeExpired    = "code expired, start again"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrStale             = errors.New("stale response discarded")
)

// Event is a transition input.
type Event interface{ eventName() string }

type (
	Start             struct{ IssuerID string }
	KeyFetched        struct{ PEM string }
	KeyFetchFailed    struct{ Err error }
	TokenCaptured     struct{ Token string }
	ScanFailed        struct{ Err error }
	SignatureChecked  struct{ Claims token.Claims }
	SignatureRejected struct{ Err error }
	RequireOTP        struct{}
	OTPRequested      struct{}
	OTPSendFailed     struct{ Err error }
	OTPAccepted       struct{}
	OTPRejected       struct{ Remaining int }
	OTPExhausted      struct{}
	OTPExpired        struct{}
	OTPCheckFailed    struct{ Err error }
	Revealed          struct{}
	Reset             struct{}
)

func (Start) eventName() string             { return "Start" }
func (KeyFetched) eventName() string        { return "KeyFetched" }
func (KeyFetchFailed) eventName() string    { return "KeyFetchFailed" }
func (TokenCaptured) eventName() string     { return "TokenCaptured" }
func (ScanFailed) eventName() string        { return "ScanFailed" }
func (SignatureChecked) eventName() string  { return "SignatureChecked" }
func (SignatureRejected) eventName() string { return "SignatureRejected" }
func (RequireOTP) eventName() string        { return "RequireOTP" }
func (OTPRequested) eventName() string      { return "OTPRequested" }
func (OTPSendFailed) eventName() string     { return "OTPSendFailed" }
func (OTPAccepted) eventName() string       { return "OTPAccepted" }
func (OTPRejected) eventName() string       { return "OTPRejected" }
func (OTPExhausted) eventName() string      { return "OTPExhausted" }
func (OTPExpired) eventName() string        { return "OTPExpired" }
func (OTPCheckFailed) eventName() string    { return "OTPCheckFailed" }
func (Revealed) eventName() string          { return "Revealed" }
func (Reset) eventName() string             { return "Reset" }

// Session is the verification state machine. It is not safe for concurrent
// use; Flow serializes access.
type Session struct {
	exempt bool

	state      State
	generation uint64
	issuerID   string
	publicKey  string
	token      string
	claims     token.Claims
	holder     string
	remaining  int
	hasRemain  bool
	failure    string
	lastErr    error
}

// NewSession fixes the OTP exemption for the session's lifetime.
func NewSession(role Role) *Session {
	return &Session{exempt: role.OTPExempt()}
}

func (s *Session) State() State        { return s.state }
func (s *Session) Generation() uint64  { return s.generation }
func (s *Session) IssuerID() string    { return s.issuerID }
func (s *Session) PublicKey() string   { return s.publicKey }
func (s *Session) Token() string       { return s.token }
func (s *Session) HolderEmail() string { return s.holder }
func (s *Session) Exempt() bool        { return s.exempt }

// Failure is the user-facing message while in ERROR.
func (s *Session) Failure() string { return s.failure }

// LastError is the cause behind the current ERROR or the last retryable
// failure. It is for logs, not for display.
func (s *Session) LastError() error { return s.lastErr }

// RemainingAttempts is set after a rejected code.
func (s *Session) RemainingAttempts() (int, bool) { return s.remaining, s.hasRemain }

// Claims are only available once revealed.
func (s *Session) Claims() token.Claims {
	if s.state != StateRevealed {
		return nil
	}
	return s.claims
}

// Deliver applies ev only if it belongs to the current generation.
func (s *Session) Deliver(generation uint64, ev Event) error {
	if generation != s.generation {
		return ErrStale
	}
	return s.Transition(ev)
}

// Transition applies ev. Reset is accepted in every state; anything else not
// listed for the current state is rejected and leaves the session unchanged.
func (s *Session) Transition(ev Event) error {
	if _, ok := ev.(Reset); ok {
		s.reset()
		return nil
	}

	switch s.state {
	case StateIdle:
		if e, ok := ev.(Start); ok {
			if strings.TrimSpace(e.IssuerID) == "" {
				s.fail(MsgNoIssuer, nil)
				return nil
			}
			s.issuerID = strings.TrimSpace(e.IssuerID)
			s.state = StateFetchingKey
			return nil
		}

	case StateFetchingKey:
		switch e := ev.(type) {
		case KeyFetched:
			if strings.TrimSpace(e.PEM) == "" {
				s.fail(MsgKeyFetchFailed, errors.New("empty public key"))
				return nil
			}
			s.publicKey = e.PEM
			s.state = StateScanning
			return nil
		case KeyFetchFailed:
			s.fail(MsgKeyFetchFailed, e.Err)
			return nil
		}

	case StateScanning:
		switch e := ev.(type) {
		case TokenCaptured:
			s.token = e.Token
			s.state = StateTokenCaptured
			return nil
		case ScanFailed:
			s.fail(MsgNoCredential, e.Err)
			return nil
		}

	case StateTokenCaptured:
		switch e := ev.(type) {
		case SignatureChecked:
			s.claims = e.Claims
			s.state = StateSignatureVerified
			return nil
		case SignatureRejected:
			s.fail(MsgInvalidToken, e.Err)
			return nil
		}

	case StateSignatureVerified:
		switch ev.(type) {
		case RequireOTP:
			if s.exempt {
				break
			}
			s.state = StateOTPRequired
			return nil
		case Revealed:
			if !s.exempt {
				break
			}
			s.state = StateRevealed
			return nil
		}

	case StateOTPRequired, StateOTPPending:
		switch e := ev.(type) {
		case OTPRequested:
			raw, ok := s.claims.Email()
			if !ok {
				s.fail(MsgNoEmail, errors.New("email claim missing"))
				return nil
			}
			addr, err := email.Parse(raw)
			if err != nil {
				s.fail(MsgNoEmail, err)
				return nil
			}
			s.holder = addr
			s.lastErr = nil
			s.state = StateOTPPending
			return nil
		case OTPSendFailed:
			s.lastErr = e.Err
			return nil
		}
		if s.state == StateOTPPending {
			switch e := ev.(type) {
			case OTPAccepted:
				s.state = StateOTPVerified
				return nil
			case OTPRejected:
				if e.Remaining <= 0 {
					s.fail(MsgTooManyTries, nil)
					return nil
				}
				s.remaining, s.hasRemain = e.Remaining, true
				return nil
			case OTPExhausted:
				s.fail(MsgTooManyTries, nil)
				return nil
			case OTPExpired:
				s.fail(MsgCodeExpired, nil)
				return nil
			case OTPCheckFailed:
				s.lastErr = e.Err
				return nil
			}
		}

	case StateOTPVerified:
		if _, ok := ev.(Revealed); ok {
			s.state = StateRevealed
			return nil
		}

	case StateRevealed, StateError:
		// Terminal until Reset.

	default:
		return fmt.Errorf("%w: unknown state %d", ErrInvalidTransition, int(s.state))
	}

	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.eventName(), s.state)
}

func (s *Session) fail(msg string, cause error) {
	s.state = StateError
	s.failure = msg
	s.lastErr = cause
}

func (s *Session) reset() {
	*s = Session{exempt: s.exempt, generation: s.generation + 1}
}
