// Package etcd wraps the etcd v3 client for the address directory.
//
// The directory only needs a prefix read, plus Put and Delete for
// provisioning tools and tests. Every request is bounded by the configured
// request timeout so a stalled cluster cannot hang a refresh cycle.
//
// Usage:
//
//	client, err := etcd.Connect(ctx, cfg.Directory.Etcd)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	kvs, err := client.GetPrefix(ctx, "/smartplugs/ips/")
package etcd
