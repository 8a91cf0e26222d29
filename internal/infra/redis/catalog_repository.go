package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/infra/memory"
)

const currentAlias = "current"

// CatalogRepository caches catalogs in Redis as JSON and falls back to a loader on miss.
// Catalogs are stored as: SET llnd:catalog:{version} {json}
// The current catalog is also stored under llnd:catalog:current.
type CatalogRepository struct {
	client  *redis.Client
	loader  memory.CatalogLoader
	current string
	ttl     time.Duration
	sf      singleflight.Group
	rndMu   sync.Mutex
	rnd     *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader memory.CatalogLoader, current string, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client:  client,
		loader:  loader,
		current: current,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) Catalog(ctx context.Context, version string) (domain.Catalog, error) {
	if version == "" {
		version = r.current
	}
	alias := version
	if alias == "" {
		alias = currentAlias
	}

	if c, ok := r.cached(ctx, alias); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(alias, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if c, ok := r.cached(ctx, alias); ok {
			return c, nil
		}

		catalog, err := r.loader.LoadCatalog(ctx, version)
		if err != nil {
			return domain.Catalog{}, err
		}

		data, err := json.Marshal(catalog)
		if err != nil {
			return domain.Catalog{}, err
		}
		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		pipe.Set(ctx, r.key(alias), data, ttl)
		if alias == currentAlias {
			pipe.Set(ctx, r.key(catalog.Version), data, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			glog.Warningf("cache catalog %s: %v", catalog.Version, err)
		}
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (r *CatalogRepository) cached(ctx context.Context, alias string) (domain.Catalog, bool) {
	data, err := r.client.Get(ctx, r.key(alias)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			glog.Warningf("read cached catalog %s: %v", alias, err)
		}
		return domain.Catalog{}, false
	}
	var c domain.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		glog.Warningf("decode cached catalog %s: %v", alias, err)
		return domain.Catalog{}, false
	}
	return c, true
}

func (r *CatalogRepository) key(version string) string {
	return "llnd:catalog:" + version
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
