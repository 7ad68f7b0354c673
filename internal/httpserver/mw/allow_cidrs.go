package mw

import (
	"net/http"
	"net/netip"

	"github.com/MrSnakeDoc/watchlist/internal/logger"
	"github.com/MrSnakeDoc/watchlist/internal/utils"
)

// ClientNetwork restricts a route group to clients inside a set of networks.
type ClientNetwork struct {
	Allowed    *utils.IPMatcher // nil or empty lets every client through
	TrustProxy bool             // resolve the client from proxy headers
}

func (n ClientNetwork) open() bool {
	return n.Allowed == nil || n.Allowed.IsEmpty()
}

// Require answers 403 to clients outside the allowed networks.
func (n ClientNetwork) Require(log logger.Logger) func(http.Handler) http.Handler {
	if n.open() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, n.TrustProxy)
			if n.Allowed.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}

			reason := "outside allowed networks"
			if _, err := netip.ParseAddr(ip); err != nil {
				reason = "unparseable client address"
			}
			log.Debug("client rejected",
				logger.String("ip", ip),
				logger.String("reason", reason),
				logger.String("path", r.URL.Path))
			reject(w, http.StatusForbidden, "forbidden")
		})
	}
}
