// Package identity authenticates callers and yields the participant they act as.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"peerline/backend/internal/models"
	"peerline/backend/internal/storage"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("identity: invalid or expired token")
	ErrUnknownParticipant = errors.New("identity: unknown participant")
)

// Provider authenticates a bearer token. The returned participant is always
// loaded from the registry, so its role cannot be forged by the client.
type Provider interface {
	Authenticate(ctx context.Context, token string) (*models.Participant, error)
}

// ParticipantLookup is the part of storage the provider reads from.
type ParticipantLookup interface {
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
}

// JWTProvider issues and verifies HS256 tokens whose subject is a
// participant id.
type JWTProvider struct {
	secret       []byte
	issuer       string
	ttl          time.Duration
	participants ParticipantLookup
	now          func() time.Time
}

func NewJWTProvider(secret, issuer string, ttl time.Duration, participants ParticipantLookup) *JWTProvider {
	return &JWTProvider{
		secret:       []byte(secret),
		issuer:       issuer,
		ttl:          ttl,
		participants: participants,
		now:          time.Now,
	}
}

// Issue signs a token for participantID.
func (p *JWTProvider) Issue(participantID string) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   participantID,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

func (p *JWTProvider) Authenticate(ctx context.Context, raw string) (*models.Participant, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	participant, err := p.participants.GetParticipant(ctx, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("identity: load participant: %w", err)
	}
	return participant, nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
