package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/halcyonlabs/stepauth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity a guard injected for the
// current request.
func AuthResultFromContext(ctx context.Context) (*stepauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*stepauth.AuthResult)
	return res, ok
}

// Require returns middleware that rejects any request lacking a valid
// access token.
func Require(engine *stepauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := attributeRequest(r)
			res, err := engine.Validate(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// attributeRequest threads the caller's IP and user agent into the
// context so engine audit events carry them.
func attributeRequest(r *http.Request) context.Context {
	ctx := r.Context()

	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		// First hop of the proxy chain.
		if i := strings.IndexByte(ip, ','); i >= 0 {
			ip = strings.TrimSpace(ip[:i])
		}
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	if ip != "" {
		ctx = stepauth.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = stepauth.WithUserAgent(ctx, ua)
	}
	return ctx
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
