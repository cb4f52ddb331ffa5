package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"labbook/pkg/auth"
	apperrors "labbook/pkg/errors"
	httputil "labbook/pkg/http"
	"labbook/pkg/logger"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type TokenParser interface {
	Parse(raw string) (auth.Principal, error)
}

// Authenticate resolves the bearer token into a Principal on the request
// context. Requests without a valid token are rejected with 401.
func Authenticate(parser TokenParser, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
				return
			}

			principal, err := parser.Parse(raw)
			if err != nil {
				log.Warn("Rejected bearer token",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				msg := "Invalid or expired token"
				if errors.Is(err, auth.ErrInvalidClaim) {
					msg = "Token is missing required claims"
				}
				_ = httputil.WriteError(w, apperrors.Unauthorized(msg))
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole wraps a route so only principals holding one of roles reach it.
func RequireRole(roles ...model.Role) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
				return
			}
			if !slices.Contains(roles, p.Role) {
				_ = httputil.WriteError(w, apperrors.Forbidden("You do not have permission to perform this action"))
				return
			}
			next(w, r, ps)
		}
	}
}

// AdminOnly is RequireRole(model.RoleAdmin).
func AdminOnly(next httprouter.Handle) httprouter.Handle {
	return RequireRole(model.RoleAdmin)(next)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
