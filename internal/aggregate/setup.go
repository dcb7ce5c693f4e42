package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/area-fans/internal/command"
	"github.com/nerrad567/area-fans/internal/registry"
	"github.com/nerrad567/area-fans/internal/resolver"
)

// Directory is the entity directory as used by Setup.
type Directory interface {
	Snapshot(ctx context.Context) (registry.Snapshot, error)
	RegisterEntity(ctx context.Context, entity *registry.Entity) error
	RemoveEntity(ctx context.Context, id string) error
}

// Deps are the collaborators shared by every aggregate.
type Deps struct {
	Directory  Directory
	States     StateSource
	Dispatcher command.Dispatcher
	// DomainPrefix selects fan entities; empty means "fan.".
	DomainPrefix string
	Logger       Logger
}

func (d Deps) logger() Logger {
	if d.Logger == nil {
		return noopLogger{}
	}
	return d.Logger
}

// Setup resolves the current fans and builds the aggregate set for the
// given exclusion list. It returns detached entities: a sensor and a
// switch per active area, in area order, followed by the whole-home pair
// when any fan is included.
//
// Every created aggregate is registered with the directory. Aggregates of
// areas that have fans but none included are removed from the directory.
func Setup(ctx context.Context, deps Deps, excluded []string, notify Observer) ([]Entity, error) {
	if deps.Directory == nil || deps.States == nil || deps.Dispatcher == nil {
		return nil, errors.New("aggregate: setup requires directory, states and dispatcher")
	}
	logger := deps.logger()

	snap, err := deps.Directory.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading entity directory: %w", err)
	}

	buckets := resolver.ResolveWithLogger(snap, excluded, resolver.Options{DomainPrefix: deps.DomainPrefix}, logger)
	active := resolver.Active(buckets)
	slugs := assignSlugs(buckets, logger)

	var entities []Entity
	for _, b := range active {
		members, skipped := b.IncludedIDs(), b.ExcludedIDs()
		slug := slugs[b.Area]
		entities = append(entities,
			NewSensor(areaDefinition(KindSensor, b.Area, slug, members, skipped), deps.States, notify, logger),
			NewSwitch(areaDefinition(KindSwitch, b.Area, slug, members, skipped), deps.States, deps.Dispatcher, notify, logger),
		)
	}

	if union := resolver.IncludedUnion(active); len(union) > 0 {
		entities = append(entities,
			NewSensor(AllDefinition(KindSensor, union, excluded), deps.States, notify, logger),
			NewSwitch(AllDefinition(KindSwitch, union, excluded), deps.States, deps.Dispatcher, notify, logger),
		)
	}

	for _, e := range entities {
		def := e.Definition()
		if err := deps.Directory.RegisterEntity(ctx, registryEntry(def)); err != nil {
			return nil, fmt.Errorf("registering %s: %w", def.EntityID, err)
		}
	}

	for _, b := range resolver.Populated(resolver.Inactive(buckets)) {
		for _, kind := range []Kind{KindSensor, KindSwitch} {
			id := areaEntityID(kind, slugs[b.Area])
			if err := removeStale(ctx, deps.Directory, id); err != nil {
				return nil, err
			}
			logger.Debug("area has no included fans", "area", b.Area, "entity_id", id)
		}
	}

	logger.Info("aggregates set up",
		"areas", len(active),
		"entities", len(entities),
		"excluded", len(excluded),
	)
	return entities, nil
}

// assignSlugs gives every area a distinct slug. Slugs are assigned over
// all areas, not only active ones, so excluding fans never renames another
// area's aggregates.
func assignSlugs(buckets []resolver.AreaFans, logger Logger) map[string]string {
	names := make([]string, len(buckets))
	for i, b := range buckets {
		names[i] = b.Area
	}
	slugs := AreaSlugs(names)
	for _, name := range names {
		if slugs[name] != Slug(name) {
			logger.Warn("area slug already in use, adding suffix",
				"area", name,
				"slug", slugs[name],
			)
		}
	}
	return slugs
}

func registryEntry(def Definition) *registry.Entity {
	uniqueID := def.UniqueID
	name := def.Name
	return &registry.Entity{
		ID:           def.EntityID,
		UniqueID:     &uniqueID,
		Platform:     Platform,
		OriginalName: &name,
	}
}

// removeStale drops a directory entry; a missing entry is not an error.
func removeStale(ctx context.Context, dir Directory, entityID string) error {
	err := dir.RemoveEntity(ctx, entityID)
	if err == nil || errors.Is(err, registry.ErrEntityNotFound) {
		return nil
	}
	return fmt.Errorf("removing %s: %w", entityID, err)
}
