package fluid

import (
	"context"
	"log/slog"
	"net/http"
)

// Middleware wraps an http.Handler to handle fluid-specific concerns:
// - Retrieving flashed data from session and adding it to context
// - Issuing the CSRF cookie and rejecting unsafe requests without a matching header
// - Asset versioning (409 Conflict on version mismatch for fluid GET requests)
func (f *Fluid) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if flashed, _ := f.session.Get(w, r, flashSessionKey); flashed != nil {
			if flashed, ok := flashed.(map[string]any); ok {
				ctx = context.WithValue(ctx, flashKey{}, flashed)
			}
		}

		if f.csrfEnabled {
			if needsNewCSRFToken(r) {
				token := generateCSRFToken()
				setCSRFCookie(w, token, f.csrfConfig)
				ctx = context.WithValue(ctx, csrfTokenKey{}, token)
			}

			if !IsSafeMethod(r.Method) && !validateCSRF(r) {
				f.logger.LogAttrs(ctx, slog.LevelWarn, "csrf validation failed",
					slog.String("method", r.Method),
					slog.String("url", r.URL.Path),
				)
				http.Error(w, "CSRF token mismatch", http.StatusForbidden)
				return
			}
		}

		r = r.WithContext(ctx)

		// Handle version mismatch on fluid GET requests
		headers := parseFluidHeaders(r)
		if r.Method == http.MethodGet &&
			headers.IsFluid &&
			f.version != "" {
			if headers.Version != "" && headers.Version != f.version {
				w.Header().Set(XFluidLocation, r.URL.String())
				w.WriteHeader(http.StatusConflict)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
