package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
)

// forbiddenBody matches the error envelope the rest of the API emits.
var forbiddenBody = []byte(`{"error":{"code":"FORBIDDEN","message":"access restricted by IP allowlist"}}` + "\n")

// RegisterPprof mounts the net/http/pprof handlers under /debug/pprof,
// restricted to callers inside the given CIDR ranges.
func RegisterPprof(r chi.Router, allowedCIDRs []string, logger *slog.Logger) {
	r.Group(func(g chi.Router) {
		g.Use(IPAllowlist(allowedCIDRs, logger))
		g.HandleFunc("/debug/pprof/*", pprof.Index)
		g.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		g.HandleFunc("/debug/pprof/profile", pprof.Profile)
		g.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		g.HandleFunc("/debug/pprof/trace", pprof.Trace)
	})
}

// IPAllowlist rejects requests whose source IP falls outside every configured
// CIDR with 403. Unparseable CIDR entries are logged and dropped rather than
// failing startup.
func IPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, raw := range cidrs {
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			logger.Warn("invalid allowlist CIDR, skipping",
				slog.String("cidr", raw),
				slog.String("error", err.Error()),
			)
			continue
		}
		nets = append(nets, ipNet)
	}

	inAllowlist := func(remoteAddr string) (string, bool) {
		host, _, err := net.SplitHostPort(remoteAddr)
		if err != nil {
			host = remoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return host, false
		}
		for _, n := range nets {
			if n.Contains(ip) {
				return host, true
			}
		}
		return host, false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, ok := inAllowlist(r.RemoteAddr)
			if !ok {
				logger.Warn("access denied by IP allowlist",
					slog.String("ip", host),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write(forbiddenBody)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
