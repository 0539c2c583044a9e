package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/kriansa/fstabctl/internal/config"
	"github.com/kriansa/fstabctl/internal/log"
	"github.com/kriansa/fstabctl/internal/service"
	"github.com/kriansa/fstabctl/internal/systemd"
	"github.com/kriansa/fstabctl/internal/version"
	"github.com/kriansa/fstabctl/internal/watch"
	"github.com/kriansa/fstabctl/pkg/fstab"
)

func main() {
	cmd := &cli.Command{
		Name:  "fstabctl",
		Usage: "Inspect and edit the filesystem table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "fstab",
				Aliases: []string{"f"},
				Usage:   "Path of the fstab file to operate on",
			},
			&cli.StringFlag{
				Name:    "socket",
				Aliases: []string{"s"},
				Usage:   "Unix socket path for serve mode",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path",
				Value:   config.DefaultConfigPath,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"V"},
				Usage:   "Print version information",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print all entries of the table",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print entries as JSON",
					},
				},
				Action: runList,
			},
			{
				Name:  "add",
				Usage: "Add an entry, replacing an identical existing one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "device",
						Aliases: []string{"d"},
						Usage:   "Device path, UUID= or LABEL= reference",
					},
					&cli.StringFlag{
						Name:    "mount-point",
						Aliases: []string{"m"},
						Usage:   "Mount point path, or \"none\"",
					},
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Filesystem type",
					},
					&cli.StringFlag{
						Name:    "options",
						Aliases: []string{"o"},
						Usage:   "Comma-separated mount options",
						Value:   "defaults",
					},
					&cli.BoolFlag{
						Name:  "dump",
						Usage: "Mark the filesystem for dump(8) backups",
					},
					&cli.StringFlag{
						Name:  "check-order",
						Usage: "fsck(8) pass number (0 disables checking)",
						Value: "0",
					},
				},
				Action: runAdd,
			},
			{
				Name:      "apply",
				Usage:     "Add every entry from an fstab-formatted file",
				ArgsUsage: "<file>",
				Action:    runApply,
			},
			{
				Name:      "remove",
				Usage:     "Remove the first entry for a device",
				ArgsUsage: "<device>",
				Action:    runRemove,
			},
			{
				Name:   "watch",
				Usage:  "Print the table again whenever the file changes",
				Action: runWatch,
			},
			{
				Name:   "serve",
				Usage:  "Serve table operations over a Unix socket",
				Action: runServe,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				fmt.Println(version.String())
				return nil
			}
			return cli.ShowAppHelp(cmd)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup initializes logging and resolves the effective configuration from
// the config file and global flags.
func setup(cmd *cli.Command) (*config.Config, error) {
	log.Setup(cmd.Bool("verbose"))

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Merge CLI flags (CLI takes precedence)
	cfg.Merge(cmd.String("fstab"), cmd.String("socket"))
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// openTable resolves the table handle, local or remote, plus a cleanup
// function for any connection it opened.
func openTable(cfg *config.Config) (*fstab.File, func(), error) {
	if cfg.Remote == nil {
		return fstab.New(cfg.Fstab), func() {}, nil
	}

	store, err := fstab.Dial(fstab.SSHConfig{
		Host:       cfg.Remote.Host,
		Port:       cfg.Remote.Port,
		User:       cfg.Remote.User,
		Password:   cfg.Remote.Password,
		KeyFile:    cfg.Remote.KeyFile,
		KnownHosts: cfg.Remote.KnownHosts,
	}, cfg.Fstab)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Remote.Host, err)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close sftp connection", "error", err)
		}
	}
	return fstab.NewWithStore(store), cleanup, nil
}

// maybeReload asks systemd to reload when configured to. Reload problems
// are logged, never fatal: the table rewrite already succeeded.
func maybeReload(cfg *config.Config) {
	if !cfg.Reload {
		return
	}
	if cfg.Remote != nil {
		log.Debug("skipping systemd reload for a remote fstab")
		return
	}
	reloadSystemd()
}

func reloadSystemd() {
	r, err := systemd.NewReloader()
	if err != nil {
		log.Warn("failed to connect to systemd", "error", err)
		return
	}
	defer r.Close()

	if err := r.DaemonReload(); err != nil {
		log.Warn("systemd reload failed", "error", err)
		return
	}
	log.Debug("systemd units reloaded")
}

func runList(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	table, cleanup, err := openTable(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := table.Entries()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return printJSON(os.Stdout, entries)
	}
	return printTable(os.Stdout, entries)
}

func runAdd(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	entry, err := entryFromFlags(cmd)
	if err != nil {
		return err
	}

	table, cleanup, err := openTable(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	created, err := table.AddEntry(entry)
	if err != nil {
		return err
	}

	if created {
		log.Info("entry added", "device", entry.Device, "mount_point", entry.MountPoint)
	} else {
		log.Info("entry replaced", "device", entry.Device, "mount_point", entry.MountPoint)
	}

	maybeReload(cfg)
	return nil
}

func runApply(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: fstabctl apply <file>")
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	entries, err := fstab.Parse(r)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no entries found in %s", path)
	}

	table, cleanup, err := openTable(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := table.AddEntries(entries); err != nil {
		return err
	}

	log.Info("entries applied", "count", len(entries), "source", path)
	maybeReload(cfg)
	return nil
}

func runRemove(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	device := cmd.Args().First()
	if device == "" {
		return fmt.Errorf("usage: fstabctl remove <device>")
	}

	table, cleanup, err := openTable(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	removed, err := table.RemoveEntry(device)
	if err != nil {
		return err
	}
	if !removed {
		log.Info("no entry found", "device", device)
		return nil
	}

	log.Info("entry removed", "device", device)
	maybeReload(cfg)
	return nil
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.Remote != nil {
		return fmt.Errorf("watch only works on a local fstab")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	table := fstab.New(cfg.Fstab)
	entries, err := table.Entries()
	if err != nil {
		return err
	}
	if err := printTable(os.Stdout, entries); err != nil {
		return err
	}

	changes, err := watch.File(ctx, cfg.Fstab)
	if err != nil {
		return err
	}

	log.Info("watching for changes", "path", cfg.Fstab)
	for range changes {
		entries, err := table.Entries()
		if err != nil {
			log.Warn("failed to reread fstab", "error", err)
			continue
		}
		fmt.Println()
		if err := printTable(os.Stdout, entries); err != nil {
			return err
		}
	}

	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	log.Info("starting fstab service",
		"fstab", cfg.Fstab,
		"socket", cfg.Socket,
		"remote", cfg.Remote != nil,
	)

	table, cleanup, err := openTable(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var opts []service.Option
	if cfg.Reload && cfg.Remote == nil {
		opts = append(opts, service.WithAfterWrite(reloadSystemd))
	}
	h := service.New(table, opts...).Handler()

	// Ensure socket directory exists
	socketDir := filepath.Dir(cfg.Socket)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	// Remove existing socket if present (stale from previous run)
	if err := os.Remove(cfg.Socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	// Clean up socket on exit
	defer func() {
		if err := os.Remove(cfg.Socket); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove socket on shutdown", "path", cfg.Socket, "error", err)
		}
	}()

	log.Info("listening on socket", "path", cfg.Socket)
	return h.ServeUnix(cfg.Socket, 0)
}

// entryFromFlags builds a table entry from the add command's flags.
func entryFromFlags(cmd *cli.Command) (fstab.Entry, error) {
	device := cmd.String("device")
	mountPoint := cmd.String("mount-point")
	fsType := cmd.String("type")
	if device == "" || mountPoint == "" || fsType == "" {
		return fstab.Entry{}, fmt.Errorf("--device, --mount-point and --type are required")
	}

	checkOrder, err := strconv.ParseUint(cmd.String("check-order"), 10, 16)
	if err != nil {
		return fstab.Entry{}, fmt.Errorf("invalid check order %q", cmd.String("check-order"))
	}

	return fstab.Entry{
		Device:     device,
		MountPoint: mountPoint,
		FSType:     fsType,
		Options:    strings.Split(cmd.String("options"), ","),
		Dump:       cmd.Bool("dump"),
		CheckOrder: uint16(checkOrder),
	}, nil
}

func printTable(w io.Writer, entries []fstab.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tMOUNT POINT\tTYPE\tOPTIONS\tDUMP\tPASS")
	for _, e := range entries {
		dump := "0"
		if e.Dump {
			dump = "1"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			e.Device, e.MountPoint, e.FSType, strings.Join(e.Options, ","), dump, e.CheckOrder)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, entries []fstab.Entry) error {
	payload := make([]service.EntryPayload, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, service.FromEntry(e))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
