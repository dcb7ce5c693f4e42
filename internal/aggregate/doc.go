// Package aggregate builds the per-area and whole-home fan summaries.
//
// Every area with at least one included fan gets two entities: a read-only
// sensor ("sensor.fans_<area>") and a switch ("switch.fans_<area>") that
// turns all member fans on or off. A third pair ("sensor.all_area_fans",
// "switch.all_area_fans") covers every included fan in the home.
//
// Both kinds share the same summary logic: a member counts as on only when
// its live state is exactly "on", and the aggregate is on while at least one
// member is. Aggregates subscribe to their members on Attach and recompute
// on every change; Detach releases every subscription.
//
// The Manager owns the current set and rebuilds it when the exclusion list
// changes:
//
//	mgr := aggregate.NewManager(deps)
//	pub := aggregate.NewStatePublisher(mqttClient, mqttClient.Topics(), log)
//	go pub.Run(ctx)
//	mgr.AddObserver(pub.Observe)
//	if err := mgr.Reload(ctx, entry.Data.ExcludedEntities); err != nil {
//	    return err
//	}
//	defer mgr.Close()
package aggregate
