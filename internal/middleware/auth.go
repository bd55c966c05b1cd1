package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ContextKey string

const ActorKey ContextKey = "actor"

const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the caller. Subject is the player id for players.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token for an admin (playerID is ignored) or a player.
func (a *Authenticator) IssueToken(role string, playerID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	if role == RolePlayer {
		claims.Subject = playerID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseActor validates a token and resolves the actor it names.
func (a *Authenticator) ParseActor(token string) (bracket.Actor, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return bracket.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return bracket.Actor{}, ErrInvalidToken
	}

	switch claims.Role {
	case RoleAdmin:
		return bracket.Admin(), nil
	case RolePlayer:
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return bracket.Actor{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
		}
		return bracket.CompetitorActor(id), nil
	}
	return bracket.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
}

// LoadActor puts the actor of a bearer token into the request context.
// Requests without a token continue anonymously; a bad token is rejected.
func (a *Authenticator) LoadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		actor, err := a.ParseActor(token)
		if err != nil {
			slog.Warn("rejected token", "error", err, "path", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetActor(r.Context()).IsAuthenticated() {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithActor(ctx context.Context, actor bracket.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor returns the zero, unauthenticated actor when none is set.
func GetActor(ctx context.Context) bracket.Actor {
	actor, _ := ctx.Value(ActorKey).(bracket.Actor)
	return actor
}
