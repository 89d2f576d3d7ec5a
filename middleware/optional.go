package middleware

import (
	"context"
	"net/http"

	"github.com/halcyonlabs/stepauth"
)

// Optional returns middleware that validates the access token when one
// is presented but lets anonymous requests through. Handlers distinguish
// the two with [AuthResultFromContext].
func Optional(engine *stepauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := attributeRequest(r)

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || engine == nil {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			res, err := engine.Validate(ctx, token)
			if err != nil {
				// A presented but invalid token is still rejected; only
				// the absence of a token is anonymous.
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
