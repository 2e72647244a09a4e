// Package smartplug speaks the local TCP protocol of the grid's smartplugs.
//
// Each exchange is one request and one response on a fresh TCP connection
// (default port 9999). Both directions use the same framing: a 4-byte
// big-endian plaintext length followed by the JSON command passed through
// an XOR autokey stream that starts at key 171. The cipher only obfuscates;
// it gives no confidentiality.
//
//	client := smartplug.NewClient(cfg.Device)
//	resp, err := client.SetStatus(ctx, true, "10.0.0.12")
//	if errors.Is(err, smartplug.ErrDeviceUnreachable) {
//	    // plug is offline
//	}
package smartplug
