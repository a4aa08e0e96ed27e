package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"conference/internal/clock"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
}

// Claims represents JWT payload. The registered subject is the account id.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 tokens for staff and subjects.
type Tokens struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

// NewTokens creates a token issuer. A nil clock means the system clock.
func NewTokens(key, issuer string, accessTTL, refreshTTL time.Duration, c clock.Clock) *Tokens {
	if c == nil {
		c = clock.Real{}
	}
	return &Tokens{key: []byte(key), issuer: issuer, accessTTL: accessTTL, refreshTTL: refreshTTL, clock: c}
}

// Issue issues signed access and refresh tokens for acc.
func (t *Tokens) Issue(acc Account) (TokenPair, error) {
	now := t.clock.Now()
	accessExp := now.Add(t.accessTTL)
	refreshExp := now.Add(t.refreshTTL)

	access, err := t.sign(acc, tokenAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(acc, tokenRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (t *Tokens) sign(acc Account, typ string, now, exp time.Time) (string, error) {
	claims := Claims{
		Email: acc.Email,
		Role:  acc.Role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   acc.ID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// Parse validates an access token and returns its claims.
func (t *Tokens) Parse(tokenStr string) (Claims, error) {
	return t.parse(tokenStr, tokenAccess)
}

// ParseRefresh validates a refresh token and returns its claims.
func (t *Tokens) ParseRefresh(tokenStr string) (Claims, error) {
	return t.parse(tokenStr, tokenRefresh)
}

func (t *Tokens) parse(tokenStr, typ string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Type != typ {
		return Claims{}, ErrInvalidToken
	}
	if !validTokenRole(claims.Role) {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
