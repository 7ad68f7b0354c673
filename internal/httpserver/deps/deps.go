package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/watchlist/internal/bookmarks"
	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/mw"
	"github.com/MrSnakeDoc/watchlist/internal/identity"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
	"github.com/MrSnakeDoc/watchlist/internal/search"
	"github.com/MrSnakeDoc/watchlist/internal/utils"
)

// MovieCatalog serves lazily fetched title details.
type MovieCatalog interface {
	Detail(ctx context.Context, key string) (domain.MovieDetail, error)
}

// RecordStore exposes maintenance reads and writes of the durable store.
type RecordStore interface {
	ListAccounts(ctx context.Context) ([]string, error)
	FlushCache(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts    []string         // Host headers allowed to access the API
	AllowedNetworks *utils.IPMatcher // clients allowed on health checks and the API, nil allows all
	AllowedOrigins  []string         // CORS origins of the UI
	TrustProxy      bool             // true if running behind a trusted reverse proxy

	RedisClient *redis.Client // nil disables the redis check
	Records     RecordStore

	Catalog   MovieCatalog
	Search    *search.Pipeline
	Bookmarks *bookmarks.Store
	Identity  *identity.Gate

	PosterPlaceholder string        // rendered for titles without a poster
	FlushTrigger      chan struct{} // manual retry of failed bookmark writes

	PageBurst        int // pagination rate limit per client IP
	PageRefillPerMin int
}

// ClientNetwork is the network restriction shared by every guarded route group.
func (d Deps) ClientNetwork() mw.ClientNetwork {
	return mw.ClientNetwork{Allowed: d.AllowedNetworks, TrustProxy: d.TrustProxy}
}
