// Package influxdb records fan aggregate telemetry in InfluxDB v2.
//
// Every recomputed aggregate becomes a point in the fan_aggregates
// measurement (tags entity_id, area, kind; fields count, total, on), and
// member state reports go to fan_members. Writes are non-blocking and
// batched per the influxdb section of the configuration; failures surface
// through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
package influxdb
