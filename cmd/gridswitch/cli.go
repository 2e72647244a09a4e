package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nerrad567/gridswitch/internal/auth"
	"github.com/nerrad567/gridswitch/internal/directory"
	"github.com/nerrad567/gridswitch/internal/grid"
	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
	"github.com/nerrad567/gridswitch/internal/smartplug"
)

const probeTimeout = 5 * time.Second

var errUnknownDevice = errors.New("no directory entry for device")

// runToken mints an API access token signed with the configured secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "", "token subject (operator name)")
	role := fs.String("role", string(auth.RoleViewer), "viewer, operator or admin")
	ttl := fs.Duration("ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	}
	if lifetime <= 0 {
		lifetime = auth.DefaultTokenTTL
	}

	token, err := auth.GenerateToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}

// runDirectory lists or edits entries in the directory backend.
//
//	directory list
//	directory set <id> <address>
//	directory rm <id>
func runDirectory(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: directory list|set|rm", errUsage)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close() //nolint:errcheck // best effort on exit

	prefix := cfg.Directory.KeyPrefix

	switch args[0] {
	case "list":
		entries, err := b.store.List(ctx, prefix)
		if err != nil {
			return fmt.Errorf("listing %s: %w", prefix, err)
		}
		ids := make([]string, 0, len(entries))
		for id := range entries {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		x := table.NewWriter()
		x.SetOutputMirror(out)
		x.AppendHeader(table.Row{"id", "address"})
		for _, id := range ids {
			x.AppendRow(table.Row{id, entries[id]})
		}
		x.AppendSeparator()
		x.AppendFooter(table.Row{"total", len(ids)})
		x.Render()
		return nil

	case "set":
		if len(args) != 3 {
			return fmt.Errorf("%w: directory set <id> <address>", errUsage)
		}
		if err := b.writer.Put(ctx, directory.EntryKey(prefix, args[1]), args[2]); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s -> %s\n", args[1], args[2])
		return nil

	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("%w: directory rm <id>", errUsage)
		}
		if err := b.writer.Delete(ctx, directory.EntryKey(prefix, args[1])); err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("%w: unknown directory command %q", errUsage, args[0])
	}
}

// runGrid prints the grid with the address of every position, or "-" where
// the directory has no entry.
func runGrid(ctx context.Context, _ []string, out io.Writer) error {
	cfg, snap, err := loadSnapshot(ctx)
	if err != nil {
		return err
	}

	header := table.Row{""}
	for col := range cfg.Grid.Columns {
		header = append(header, fmt.Sprintf("c%d", col))
	}

	x := table.NewWriter()
	x.SetOutputMirror(out)
	x.AppendHeader(header)
	for row := range cfg.Grid.Rows {
		cells := table.Row{fmt.Sprintf("r%d", row)}
		for col := range cfg.Grid.Columns {
			addr, ok := snap.Lookup(grid.ID(row, col))
			if !ok {
				addr = "-"
			}
			cells = append(cells, addr)
		}
		x.AppendRow(cells)
	}
	x.AppendSeparator()
	x.Render()
	return nil
}

// runProbe asks one plug for its system information.
func runProbe(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: probe <id>", errUsage)
	}

	cfg, snap, err := loadSnapshot(ctx)
	if err != nil {
		return err
	}
	addr, ok := snap.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownDevice, args[0])
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := smartplug.NewClient(cfg.Device).SysInfo(probeCtx, addr)
	if err != nil {
		return fmt.Errorf("probing %s at %s: %w", args[0], addr, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// loadSnapshot reads the current directory contents once.
func loadSnapshot(ctx context.Context) (*config.Config, directory.Snapshot, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, directory.Snapshot{}, fmt.Errorf("loading config: %w", err)
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, directory.Snapshot{}, err
	}
	defer b.Close() //nolint:errcheck // best effort on exit

	snap, err := directory.New(b.store, cfg.Directory.KeyPrefix).Refresh(ctx)
	if err != nil {
		return nil, directory.Snapshot{}, fmt.Errorf("loading address directory: %w", err)
	}
	return cfg, snap, nil
}

// isUsage reports whether err is a command line mistake.
func isUsage(err error) bool {
	return errors.Is(err, errUsage)
}
