package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// requireAccessToken rejects requests without a valid bearer access token
// and stores its claims in the request context.
func (s *Server) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(header, common.BearerPrefix) {
			s.writeError(w, r, common.ErrorUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
		if token == "" {
			s.writeError(w, r, common.ErrorUnauthorized)
			return
		}

		claims, err := s.tokens.ParseAccessToken(token)
		if err != nil {
			s.logger.Debug(r.Context(), "access token rejected", "error", err)
			if !errors.Is(err, common.ErrTokenExpired) {
				err = common.ErrorUnauthorized
			}
			s.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// actorID is the subject of the verified access token, or "" when absent.
func actorID(ctx context.Context) string {
	if c := claimsFrom(ctx); c != nil {
		return c.Subject
	}
	return ""
}
