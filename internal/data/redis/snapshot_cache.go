package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/spend"
)

const keyPrefix = "snapshot:"

// SnapshotCache keeps rendered snapshot pages. Every page key of a view is
// tracked in a set so a refresh can drop them together. Each view also carries
// the stats_as_of of its latest refresh, and pages built from an older snapshot
// are not written. All keys of a view share a hash slot.
type SnapshotCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewSnapshotCache(logger *slog.Logger, client goredis.UniversalClient, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

var _ spend.PageCache = (*SnapshotCache)(nil)

// KEYS: page, view set, watermark. ARGV: payload, ttl ms, page stats_as_of ms.
var setPageScript = goredis.NewScript(`
local mark = redis.call('GET', KEYS[3])
if mark and tonumber(mark) > tonumber(ARGV[3]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SADD', KEYS[2], KEYS[1])
redis.call('PEXPIRE', KEYS[2], ARGV[2])
return 1
`)

// KEYS: view set, watermark. ARGV: refresh stats_as_of ms, ttl ms.
var invalidateScript = goredis.NewScript(`
local mark = redis.call('GET', KEYS[2])
if not mark or tonumber(mark) < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
local pages = redis.call('SMEMBERS', KEYS[1])
for _, key in ipairs(pages) do
	redis.call('DEL', key)
end
redis.call('DEL', KEYS[1])
return #pages
`)

func viewTag(scope shared.Scope, signature string) string {
	return "{" + scope.Key() + ":" + signature + "}"
}

func pageKey(scope shared.Scope, signature string, page, perPage int) string {
	return keyPrefix + "page:" + viewTag(scope, signature) + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(perPage)
}

func viewKey(scope shared.Scope, signature string) string {
	return keyPrefix + "pages:" + viewTag(scope, signature)
}

func watermarkKey(scope shared.Scope, signature string) string {
	return keyPrefix + "asof:" + viewTag(scope, signature)
}

// GetPage returns nil, nil on a miss
func (c *SnapshotCache) GetPage(ctx context.Context, scope shared.Scope, signature string, page, perPage int) (*snapshot.Page, error) {
	data, err := c.client.Get(ctx, pageKey(scope, signature, page, perPage)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot page: %w", err)
	}

	var p snapshot.Page
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("Dropping undecodable snapshot page", "scope", scope.Key(), "signature", signature, "error", err)
		return nil, nil
	}

	return &p, nil
}

// SetPage skips pages older than the view's last refresh
func (c *SnapshotCache) SetPage(ctx context.Context, scope shared.Scope, signature string, p *snapshot.Page) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot page: %w", err)
	}

	keys := []string{
		pageKey(scope, signature, p.Page, p.PerPage),
		viewKey(scope, signature),
		watermarkKey(scope, signature),
	}
	written, err := setPageScript.Run(ctx, c.client, keys, data, c.ttl.Milliseconds(), p.StatsAsOf.UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("failed to write snapshot page: %w", err)
	}
	if written == 0 {
		c.logger.Debug("Skipped caching page from a superseded snapshot",
			"scope", scope.Key(), "signature", signature, "stats_as_of", p.StatsAsOf)
	}

	return nil
}

// Invalidate drops every cached page of the view and records asOf as its
// newest snapshot
func (c *SnapshotCache) Invalidate(ctx context.Context, scope shared.Scope, signature string, asOf time.Time) error {
	keys := []string{viewKey(scope, signature), watermarkKey(scope, signature)}

	dropped, err := invalidateScript.Run(ctx, c.client, keys, asOf.UnixMilli(), c.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to invalidate snapshot pages: %w", err)
	}

	c.logger.Debug("Snapshot pages invalidated", "scope", scope.Key(), "signature", signature, "pages", dropped)
	return nil
}
