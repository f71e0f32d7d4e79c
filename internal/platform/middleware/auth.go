package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "convoca/pkg/domain"
	"convoca/pkg/requestcontext"
)

// ActorClaims is the token payload the service cares about: who is
// acting. Role checks belong to the gateway in front of this service.
type ActorClaims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
}

// TokenValidator validates a bearer token and extracts the actor.
type TokenValidator interface {
	ValidateToken(token string) (*ActorClaims, error)
}

// HMACValidator validates HS256 tokens with a shared signing key.
type HMACValidator struct {
	key []byte
}

func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{key: []byte(signingKey)}
}

func (v *HMACValidator) ValidateToken(token string) (*ActorClaims, error) {
	claims := &ActorClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// RequireActor authenticates the request and puts the actor id on the
// context for attribution. The actor_id claim falls back to the subject.
func RequireActor(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized request",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			subject := claims.ActorID
			if subject == "" {
				subject = claims.Subject
			}
			actorID, err := id.ParseActorID(subject)
			if err != nil {
				unauthorized(w, "Token carries no usable actor identity")
				return
			}

			ctx := requestcontext.WithActorID(r.Context(), actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
