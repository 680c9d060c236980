package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CORS provides allowlist-based CORS for the widget and dashboard endpoints.
// Entries are matched exactly against the Origin header, except entries
// starting with "." which match any subdomain — the same rule merchants use
// for their widget domains. If allowedOrigins contains "*", any Origin is
// echoed back.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := false
	exact := map[string]struct{}{}
	var suffixes []string
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "":
		case origin == "*":
			allowAny = true
		case strings.HasPrefix(origin, "."):
			suffixes = append(suffixes, strings.ToLower(origin))
		default:
			exact[origin] = struct{}{}
		}
	}

	originAllowed := func(origin string) bool {
		if _, ok := exact[origin]; ok {
			return true
		}
		if len(suffixes) == 0 {
			return false
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		host := strings.ToLower(u.Hostname())
		for _, suffix := range suffixes {
			if host == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(host, suffix) {
				return true
			}
		}
		return false
	}

	allowedHeaders := "Authorization, Content-Type"
	allowedMethods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && (allowAny || originAllowed(origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
