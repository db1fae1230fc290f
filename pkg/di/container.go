// Package di wires the repository layer together: one shared table
// store, one shared cache, and a lazily built repository per entity
// table. Handing the container around replaces global singletons.
package di

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fundwise/fundsheet/cache"
	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/repository"
	"github.com/fundwise/fundsheet/store"
)

// Container builds and owns the entity repositories. Repositories are
// created on first use and reused; every repository shares the same
// store, cache service and key serializer.
type Container struct {
	store      store.TableStore
	tableID    string
	cacheSvc   cache.CacheService
	serializer cache.KeySerializer
	log        *zap.Logger

	mu            sync.Mutex
	funders       *repository.FunderRepository
	contributions *repository.ContributionRepository
	targets       *repository.StateTargetRepository
	prospects     *repository.ProspectRepository
	states        *repository.StateRepository
	schools       *repository.SchoolRepository
}

// NewContainer builds a container over the given store and cache
// configuration.
func NewContainer(ts store.TableStore, tableID string, cacheCfg cache.Config, log *zap.Logger) (*Container, error) {
	cacheSvc, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Container{
		store:      ts,
		tableID:    tableID,
		cacheSvc:   cacheSvc,
		serializer: cache.NewDefaultKeySerializer(),
		log:        log,
	}, nil
}

// NewContainerWithDefaults builds a container with the default cache
// configuration.
func NewContainerWithDefaults(ts store.TableStore, tableID string, log *zap.Logger) (*Container, error) {
	return NewContainer(ts, tableID, cache.DefaultConfig(), log)
}

// CacheService returns the shared cache service.
func (c *Container) CacheService() cache.CacheService { return c.cacheSvc }

// KeySerializer returns the shared key serializer.
func (c *Container) KeySerializer() cache.KeySerializer { return c.serializer }

// newCachedTable builds the standard stack for one table: base table
// repository wrapped by the caching decorator. A package-level function
// because methods cannot carry type parameters.
func newCachedTable[T entity.Entity](c *Container, codec repository.RowCodec[T]) repository.Repository[T] {
	base := repository.NewTable[T](c.store, c.tableID, codec, c.log)
	return repository.NewCached[T](base, c.cacheSvc, c.serializer)
}

// Funders returns the funder repository.
func (c *Container) Funders() *repository.FunderRepository {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.funders == nil {
		c.funders = repository.NewFunderRepository(newCachedTable(c, repository.NewFunderCodec()))
	}
	return c.funders
}

// Contributions returns the contribution repository.
func (c *Container) Contributions() *repository.ContributionRepository {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contributions == nil {
		c.contributions = repository.NewContributionRepository(newCachedTable(c, repository.NewContributionCodec()))
	}
	return c.contributions
}

// StateTargets returns the state target repository.
func (c *Container) StateTargets() *repository.StateTargetRepository {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.targets == nil {
		c.targets = repository.NewStateTargetRepository(newCachedTable(c, repository.NewStateTargetCodec()))
	}
	return c.targets
}

// Prospects returns the prospect repository.
func (c *Container) Prospects() *repository.ProspectRepository {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prospects == nil {
		c.prospects = repository.NewProspectRepository(newCachedTable(c, repository.NewProspectCodec()))
	}
	return c.prospects
}

// States returns the state reference repository.
func (c *Container) States() *repository.StateRepository {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states == nil {
		c.states = repository.NewStateRepository(newCachedTable(c, repository.NewStateCodec()))
	}
	return c.states
}

// Schools returns the school reference repository.
func (c *Container) Schools() *repository.SchoolRepository {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schools == nil {
		c.schools = repository.NewSchoolRepository(newCachedTable(c, repository.NewSchoolCodec()))
	}
	return c.schools
}

// RepositoryByName resolves a repository from a loosely formatted name:
// "Funder", "funders" and "FUNDER" all resolve the funder repository.
func (c *Container) RepositoryByName(name string) (any, bool) {
	switch singular(toSnake(name)) {
	case "funder":
		return c.Funders(), true
	case "contribution":
		return c.Contributions(), true
	case "state_target", "target":
		return c.StateTargets(), true
	case "prospect":
		return c.Prospects(), true
	case "state":
		return c.States(), true
	case "school":
		return c.Schools(), true
	}
	return nil, false
}

// TableNames lists every table the container serves.
func (c *Container) TableNames() []string {
	return []string{"funders", "contributions", "state_targets", "prospects", "states", "schools"}
}

// ClearAllCaches drops every cached entry for every table.
func (c *Container) ClearAllCaches(ctx context.Context) error {
	for _, table := range c.TableNames() {
		if err := c.cacheSvc.DeleteByPrefix(ctx, cache.TablePrefix(table)); err != nil {
			return err
		}
	}
	c.log.Info("cleared repository caches")
	return nil
}

// HealthCheckAll probes every repository plus the shared store. The
// "overall" entry is true only when every individual check passed.
func (c *Container) HealthCheckAll(ctx context.Context) map[string]bool {
	results := map[string]bool{
		"funders":       c.Funders().HealthCheck(ctx),
		"contributions": c.Contributions().HealthCheck(ctx),
		"state_targets": c.StateTargets().HealthCheck(ctx),
		"prospects":     c.Prospects().HealthCheck(ctx),
		"states":        c.States().HealthCheck(ctx),
		"schools":       c.Schools().HealthCheck(ctx),
	}
	overall := true
	for _, ok := range results {
		overall = overall && ok
	}
	results["overall"] = overall
	return results
}
