// Package directory maps logical smartplug identifiers (w.r{row}.c{col}) to
// network addresses.
//
// A Directory owns one immutable Snapshot at a time. Refresh reads every
// entry under the configured key prefix from a Store, builds a brand new
// Snapshot and swaps it in under a write lock, so a plug removed from the
// store disappears on the next cycle and readers never observe a partly
// built table. A failed refresh keeps the previous Snapshot.
//
// Two stores are provided: EtcdStore reads an etcd v3 key prefix and
// SQLiteStore reads the directory_entries table.
//
// Usage:
//
//	dir := directory.New(store, cfg.Directory.KeyPrefix)
//	if _, err := dir.Refresh(ctx); err != nil {
//	    return err
//	}
//	go dir.Run(ctx, cfg.Directory.RefreshInterval)
//
//	addr, ok := dir.Snapshot().Lookup("w.r3.c4")
package directory
