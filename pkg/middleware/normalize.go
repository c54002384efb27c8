package middleware

import (
	"net/http"
	"strings"
)

// Normalize cleans up requests arriving through serverless proxies.
// It trims stray whitespace and trailing slashes from the path and
// restores scheme and host from the forwarding headers so absolute
// redirect URLs come out right.
func Normalize() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := strings.TrimSpace(r.URL.Path); p != r.URL.Path {
				r.URL.Path = p
			}
			if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
				r.URL.Path = strings.TrimRight(r.URL.Path, "/")
				if r.URL.Path == "" {
					r.URL.Path = "/"
				}
				r.URL.RawPath = ""
			}

			if xfproto := r.Header.Get("X-Forwarded-Proto"); xfproto != "" {
				r.URL.Scheme = strings.TrimSpace(strings.Split(xfproto, ",")[0])
			} else if r.URL.Scheme == "" {
				if r.TLS != nil {
					r.URL.Scheme = "https"
				} else {
					r.URL.Scheme = "http"
				}
			}
			if xfhost := r.Header.Get("X-Forwarded-Host"); xfhost != "" {
				r.Host = strings.TrimSpace(strings.Split(xfhost, ",")[0])
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestOrigin is the scheme://host the client used, after Normalize.
func RequestOrigin(r *http.Request) string {
	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}
