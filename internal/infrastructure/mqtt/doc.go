// Package mqtt is the service's MQTT transport.
//
// Member fans report their state on <prefix>/state/<entity_id>; aggregate
// switches send commands on <prefix>/command/<entity_id>; aggregate
// snapshots are published retained on <prefix>/aggregate/<entity_id>/state.
// The service announces itself on <prefix>/system/status, with a Last Will
// so subscribers see it go offline after a crash.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllStates(), client.QoS(), handler)
//
// Subscriptions survive reconnects. Handlers are wrapped with panic
// recovery. Use TLS (broker.tls) outside a trusted LAN.
package mqtt
