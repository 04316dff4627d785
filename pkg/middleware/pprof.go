package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/shopcore/catalog/pkg/httputil"
)

// MountProfiler exposes the runtime profiler under /debug/pprof. Only
// clients whose address falls inside one of allowed may reach it; with no
// usable prefix nothing is mounted.
func MountProfiler(r chi.Router, allowed []string, logger *slog.Logger) {
	prefixes := parsePrefixes(allowed, logger)
	if len(prefixes) == 0 {
		return
	}

	r.Route("/debug/pprof", func(r chi.Router) {
		r.Use(AllowClients(prefixes, logger))
		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", pprof.Profile)
		r.Get("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		r.Get("/*", pprof.Index)
	})
}

func parsePrefixes(cidrs []string, logger *slog.Logger) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			logger.Warn("ignoring profiler allowlist entry",
				slog.String("cidr", cidr),
				slog.String("error", err.Error()),
			)
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes
}

// AllowClients rejects requests whose remote address is outside prefixes
// with 403.
func AllowClients(prefixes []netip.Prefix, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !clientAllowed(r.RemoteAddr, prefixes) {
				logger.WarnContext(r.Context(), "profiler access denied",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "client address not allowed"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAllowed(remoteAddr string, prefixes []netip.Prefix) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
