// Package mqtt provides the MQTT connection gridswitch receives commands on
// and publishes replies to.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Subscriptions that survive reconnects
//   - Last Will and Testament plus retained online/offline status on
//     gridswitch/system/status
//   - Panic recovery around message handlers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.CommandFilter(cfg.Grid.ShortTopic), 0,
//	    func(topic string, payload []byte) error {
//	        return svc.HandleMessage(ctx, topic, payload)
//	    })
//
// The mqtttest subpackage starts an in-process broker for tests.
package mqtt
