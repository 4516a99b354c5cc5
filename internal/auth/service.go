package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookinventory/internal/httpx"
	"bookinventory/internal/platform/crypto"
)

var ErrUnauthorized = errors.New("unauthorized")

// Token is the response of a successful token exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Service checks credentials against a CredentialStore and issues JWTs.
// It satisfies httpx.Authenticator.
type Service struct {
	creds  *CredentialStore
	secret string
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(creds *CredentialStore, secret string, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		creds:  creds,
		secret: secret,
		ttl:    ttl,
		logger: logger.Named("auth"),
	}
}

// dummyHash keeps the cost of a failed lookup close to a failed password check.
var dummyHash = sync.OnceValue(func() string {
	h, _ := crypto.HashPassword("not-a-real-password")
	return h
})

func (s *Service) Authenticate(_ context.Context, username, password string) (httpx.Principal, error) {
	u, ok := s.creds.Lookup(username)
	if !ok {
		crypto.VerifyPassword(dummyHash(), password)
		s.logger.Warn("authentication failed", zap.String("user", username), zap.String("reason", "unknown user"))
		return httpx.Principal{}, ErrUnauthorized
	}
	if !crypto.VerifyPassword(u.PasswordHash, password) {
		s.logger.Warn("authentication failed", zap.String("user", username), zap.String("reason", "bad password"))
		return httpx.Principal{}, ErrUnauthorized
	}
	return principalOf(u), nil
}

func (s *Service) AuthenticateBasic(ctx context.Context, username, password string) (httpx.Principal, error) {
	return s.Authenticate(ctx, username, password)
}

// AuthenticateToken accepts a token issued by IssueToken. Roles come from the
// current credential store, so removing a user revokes their tokens.
func (s *Service) AuthenticateToken(_ context.Context, token string) (httpx.Principal, error) {
	claims, err := crypto.ParseToken(s.secret, token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return httpx.Principal{}, ErrUnauthorized
	}
	u, ok := s.creds.Lookup(claims.Sub)
	if !ok {
		return httpx.Principal{}, ErrUnauthorized
	}
	return principalOf(u), nil
}

// IssueToken exchanges username and password for a signed access token.
func (s *Service) IssueToken(ctx context.Context, username, password string) (Token, error) {
	p, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, err
	}
	signed, jti, err := crypto.GenerateToken(s.secret, p.Subject, p.Roles, s.ttl)
	if err != nil {
		return Token{}, err
	}
	s.logger.Info("token issued", zap.String("user", p.Subject), zap.String("jti", jti))
	return Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.ttl.Seconds()),
	}, nil
}

func principalOf(u User) httpx.Principal {
	return httpx.Principal{Subject: u.Username, Roles: append([]string(nil), u.Roles...)}
}
