// Package registry holds the area, device and entity directories the fan
// aggregation reads from.
//
// Areas are physical places ("Kitchen"). Devices optionally belong to an
// area. Entities are the addressable things ("fan.k1", "switch.fans_kitchen")
// and may carry their own area or inherit one through their device.
//
// The Registry caches all three directories in memory and hands out
// immutable Snapshots so resolution never observes a half-applied change:
//
//	reg := registry.NewRegistry(registry.NewSQLiteRepository(db.DB))
//	if err := reg.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	snap, err := reg.Snapshot(ctx)
package registry
