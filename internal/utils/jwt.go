package utils // package utils provides the credential and token primitives used by auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes short-lived access tokens from long-lived
// refresh tokens. The kind is carried in the "typ" claim so one kind can
// never be replayed as the other.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Default lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Sentinel errors for the three AuthError kinds. Use errors.Is against the
// error returned by Verify.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

// AuthError reports why a token was rejected. Kind is one of the sentinel
// errors above; Cause keeps the jwt library error for logging.
type AuthError struct {
	Kind  error
	Cause error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
	}
	return e.Kind.Error()
}

func (e *AuthError) Is(target error) bool { return e.Kind == target }
func (e *AuthError) Unwrap() error        { return e.Cause }

// Claims are the JWT claims issued by TokenService. Subject holds the user id.
type Claims struct {
	Kind TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// Token is a signed JWT along with its expiry.
type Token struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Pair is the result of a successful authentication.
type Pair struct {
	Access  Token
	Refresh Token
}

// TokenService issues and verifies HS256 tokens bound to a user id. It
// keeps no server-side state: a token stays valid until it expires.
type TokenService struct {
	secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService builds a service. Zero TTLs fall back to the defaults.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		secret:     []byte(secret),
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for issuing and validating.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a token of the given kind for userID that expires after ttl.
func (s *TokenService) Issue(userID string, kind TokenKind, ttl time.Duration) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("empty subject")
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: signed, Exp: exp}, nil
}

// IssuePair issues an access and a refresh token using the configured TTLs.
func (s *TokenService) IssuePair(userID string) (Pair, error) {
	access, err := s.Issue(userID, KindAccess, s.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.Issue(userID, KindRefresh, s.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// Verify parses raw, checks the HMAC signature and expiry and returns the
// claims. Failures are *AuthError.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, &AuthError{Kind: ErrTokenMalformed}
	}
	return claims, nil
}

// VerifyKind verifies raw and requires it to be of the given kind. It
// returns the subject (user id).
func (s *TokenService) VerifyKind(raw string, kind TokenKind) (string, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return "", err
	}
	if claims.Kind != kind {
		return "", &AuthError{Kind: ErrTokenMalformed, Cause: fmt.Errorf("want %s token, got %q", kind, claims.Kind)}
	}
	return claims.Subject, nil
}

// Refresh exchanges a valid refresh token for a new access token without
// rotating the refresh token.
func (s *TokenService) Refresh(rawRefresh string) (string, Token, error) {
	userID, err := s.VerifyKind(rawRefresh, KindRefresh)
	if err != nil {
		return "", Token{}, err
	}
	access, err := s.Issue(userID, KindAccess, s.AccessTTL)
	if err != nil {
		return "", Token{}, err
	}
	return userID, access, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &AuthError{Kind: ErrTokenExpired, Cause: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &AuthError{Kind: ErrTokenSignatureInvalid, Cause: err}
	default:
		return &AuthError{Kind: ErrTokenMalformed, Cause: err}
	}
}
