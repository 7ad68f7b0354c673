package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/identity"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Count     *int   `json:"count,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Impact    string `json:"impact,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookmarkCount := len(d.Bookmarks.ActiveSet())
		current := d.Search.Current()
		resultCount := len(current.Movies)

		bookmarkStatus := componentStatus{
			OK:    d.Bookmarks.Ready(),
			Count: &bookmarkCount,
			Mode:  d.Bookmarks.Identity().Kind.String(),
		}
		if d.Bookmarks.Dirty() {
			bookmarkStatus.Impact = "writes-pending"
		}

		components := map[string]componentStatus{
			"redis":     checkRedis(r.Context(), d),
			"bookmarks": bookmarkStatus,
			"identity": {
				OK:   d.Identity.State() != identity.StateUnresolved,
				Mode: d.Identity.State().String(),
			},
			"search": {
				OK:        true,
				Count:     &resultCount,
				SessionID: current.ID,
			},
		}

		if d.Records != nil {
			components["accounts"] = countAccounts(r.Context(), d)
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if id, ok := components["identity"]; ok && !id.OK {
		return "starting"
	}
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "degraded" // guest-only, accounts cannot sync
	}
	if bm, ok := components["bookmarks"]; ok && bm.Impact != "" {
		return "degraded"
	}
	return "optimal"
}

// countAccounts reports how many accounts hold a durable bookmark record.
func countAccounts(ctx context.Context, d deps.Deps) componentStatus {
	accounts, err := d.Records.ListAccounts(ctx)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	n := len(accounts)
	return componentStatus{OK: true, Count: &n}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "account-sync-disabled",
			Error:  "client not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "account-sync-disabled",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "account-sync-enabled",
	}
}
