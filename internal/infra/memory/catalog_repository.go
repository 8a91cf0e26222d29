package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"llnd-portal/internal/domain"
)

// CatalogLoader fetches quiz content from a backing store. version "" asks for the current catalog.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, version string) (domain.Catalog, error)
}

// CatalogRepository caches catalogs with TTL to avoid repeated store hits.
type CatalogRepository struct {
	loader  CatalogLoader
	current string
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedCatalog
}

type cachedCatalog struct {
	catalog   domain.Catalog
	expiresAt time.Time
}

// NewCatalogRepository caches loader results. current pins the version served
// for "" lookups; leave it empty to follow the loader's current catalog.
func NewCatalogRepository(loader CatalogLoader, current string, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader:  loader,
		current: current,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedCatalog),
	}
}

func (r *CatalogRepository) Catalog(ctx context.Context, version string) (domain.Catalog, error) {
	if version == "" {
		version = r.current
	}
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[version]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.catalog, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(version, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[version]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.catalog, nil
		}
		r.mu.RUnlock()

		catalog, err := r.loader.LoadCatalog(ctx, version)
		if err != nil {
			return domain.Catalog{}, err
		}

		expires := now.Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[version] = cachedCatalog{catalog: catalog, expiresAt: expires}
		if version == "" {
			// the current catalog also answers lookups by its own version
			r.cache[catalog.Version] = cachedCatalog{catalog: catalog, expiresAt: expires}
		}
		r.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

// StaticCatalogLoader serves fixed catalogs; the first one is current.
type StaticCatalogLoader struct {
	current  string
	catalogs map[string]domain.Catalog
}

func NewStaticCatalogLoader(catalogs ...domain.Catalog) *StaticCatalogLoader {
	l := &StaticCatalogLoader{catalogs: make(map[string]domain.Catalog, len(catalogs))}
	for i, c := range catalogs {
		if i == 0 {
			l.current = c.Version
		}
		l.catalogs[c.Version] = c
	}
	return l
}

func (l *StaticCatalogLoader) LoadCatalog(_ context.Context, version string) (domain.Catalog, error) {
	if version == "" {
		version = l.current
	}
	if c, ok := l.catalogs[version]; ok {
		return c, nil
	}
	return domain.Catalog{}, domain.ErrCatalogNotFound
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
