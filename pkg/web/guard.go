package web

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// launchHeader must be present on state-changing requests. A cross-site form
// cannot set it, and a cross-site fetch that does triggers a preflight this
// server never answers.
const launchHeader = "X-SSH-Launcher"

// sameOrigin rejects requests that did not come from the tile page itself.
func (s *Server) sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := crossSiteReason(r); reason != "" {
			s.log.Warn("rejected cross-site request",
				zap.String("path", r.URL.Path), zap.String("reason", reason))
			writeJSON(w, s.log, http.StatusForbidden, errResponse{Error: "forbidden: " + reason})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func crossSiteReason(r *http.Request) string {
	if !trustedHost(r.Host) {
		return "unexpected host"
	}
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
	default:
		return "cross-site fetch"
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		if err != nil || !strings.EqualFold(u.Host, r.Host) {
			return "origin mismatch"
		}
	}
	if r.Header.Get(launchHeader) == "" {
		return "missing " + launchHeader + " header"
	}
	return ""
}

// trustedHost accepts IP literals and localhost. Any other name could be a
// rebinding domain pointed at this listener.
func trustedHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	return net.ParseIP(host) != nil
}
