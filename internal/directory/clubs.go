package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/clubs-council/members-service/internal/shared"
)

// ClubClient resolves clubs through the gateway's club directory. Lookups
// are cached in redis with a TTL and deduped with singleflight so a burst
// of writes against one club costs a single gateway round trip.
type ClubClient struct {
	endpoint string
	client   *http.Client
	cache    *redis.Client
	ttl      time.Duration
	group    singleflight.Group
	logger   *slog.Logger
}

// NewClubClient constructs a ClubClient. cache may be nil to disable caching.
func NewClubClient(gatewayURL string, timeout time.Duration, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *ClubClient {
	return &ClubClient{
		endpoint: gatewayURL + "/graphql",
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
	}
}

const clubQuery = `query Club($clubInput: SimpleClubInput!) {
  club(clubInput: $clubInput) { cid name category }
}`

// ResolveClub returns the club record for cid.
func (c *ClubClient) ResolveClub(ctx context.Context, cid string) (*Club, error) {
	if club := c.cached(ctx, cid); club != nil {
		return club, nil
	}

	v, err, _ := c.group.Do(cid, func() (any, error) {
		var data struct {
			Club *Club `json:"club"`
		}
		req := gqlRequest{
			Query:     clubQuery,
			Variables: map[string]any{"clubInput": map[string]any{"cid": cid}},
		}
		if err := postQuery(ctx, c.client, c.endpoint, req, &data); err != nil {
			return nil, err
		}
		if data.Club == nil {
			return nil, shared.ErrNotFound("no such club")
		}
		c.store(ctx, cid, data.Club)
		return data.Club, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Club), nil
}

const allClubsQuery = `query AllClubs {
  allClubs { cid name category }
}`

// ListAllClubs returns every club known to the directory.
func (c *ClubClient) ListAllClubs(ctx context.Context) ([]Club, error) {
	var data struct {
		AllClubs []Club `json:"allClubs"`
	}
	if err := postQuery(ctx, c.client, c.endpoint, gqlRequest{Query: allClubsQuery}, &data); err != nil {
		return nil, err
	}
	return data.AllClubs, nil
}

func clubCacheKey(cid string) string { return "club:" + cid }

func (c *ClubClient) cached(ctx context.Context, cid string) *Club {
	if c.cache == nil {
		return nil
	}
	raw, err := c.cache.Get(ctx, clubCacheKey(cid)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Warn("club cache read", slog.String("cid", cid), slog.Any("error", err))
		}
		return nil
	}
	var club Club
	if err := json.Unmarshal(raw, &club); err != nil {
		return nil
	}
	return &club
}

// store is best effort: a cold cache only costs an extra gateway call.
func (c *ClubClient) store(ctx context.Context, cid string, club *Club) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(club)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, clubCacheKey(cid), raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("club cache write", slog.String("cid", cid), slog.Any("error", err))
	}
}
