package syndicated

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"tokensyndicate/observability/logging"
)

// Authenticator validates bearer tokens on protected routes.
type Authenticator struct {
	bearerToken string
	disabled    bool
	logger      *slog.Logger
}

// NewAuthenticator constructs an Authenticator from configuration.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		bearerToken: strings.TrimSpace(cfg.BearerToken),
		disabled:    cfg.Disabled,
		logger:      logger,
	}
}

// Middleware enforces authentication for protected handlers.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			writeError(w, http.StatusInternalServerError, "internal", "authentication unavailable")
			return
		}
		if a.disabled || a.authenticate(r) {
			next.ServeHTTP(w, r)
			return
		}
		a.logger.Warn("request rejected",
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestIDFrom(r.Context())),
			logging.MaskField("authorization", r.Header.Get("Authorization")))
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	})
}

func (a *Authenticator) authenticate(r *http.Request) bool {
	if a.bearerToken == "" {
		return false
	}
	token := parseBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.bearerToken)) == 1
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
