package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/mmcdole/marquee/internal/cache"
	"github.com/mmcdole/marquee/internal/collections"
	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/logging"
	"github.com/mmcdole/marquee/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

var errUsage = errors.New("usage")

const usage = `usage: marquee [flags] <command> [args]

commands:
  list                                  list collections
  show <collection-id>                  list items in a collection
  create <title>                        create a collection
  rename <collection-id> <title>        rename a collection
  delete <collection-id>                delete a collection
  add <collection-id> <item-id> <movie|series> <title>
                                        save an item into a collection
  remove <collection-id> <item-id>      remove an item from a collection
  saved <item-id>                       report whether an item is saved anywhere
  search <query>                        fuzzy search saved items
  cache-clear                           drop all cached catalog responses
`

func main() {
	var showVersion bool
	var configDir string
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configDir, "config", "", "directory containing config.yaml")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("marquee %s\n", Version)
		return
	}

	if err := run(configDir, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	var dirs []string
	if configDir != "" {
		dirs = []string{configDir}
	}
	cfg, err := config.LoadConfig(dirs...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logFile, err := logging.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = logging.NullLogger()
	} else {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting marquee", "version", Version, "command", args[0])

	ctx := context.Background()

	storage, err := store.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer storage.Close()

	a := newApp(storage, logger)
	a.collections.Hydrate(ctx)
	defer a.close()
	if a.collections.LoadFailed() {
		fmt.Fprintln(os.Stderr, "Warning: saved collections could not be loaded; changes will not be saved")
	}

	return a.exec(ctx, args, os.Stdout)
}

// app wires the cache and collections store for one process lifetime
type app struct {
	cache       *cache.ResponseCache
	collections *collections.Store
	logger      *slog.Logger
}

func newApp(storage domain.Storage, logger *slog.Logger) *app {
	return &app{
		cache:       cache.New(storage, cache.WithLogger(logger)),
		collections: collections.New(storage, collections.WithLogger(logger)),
		logger:      logger,
	}
}

// close flushes pending writes before storage is closed
func (a *app) close() {
	if err := a.collections.Close(); err != nil {
		a.logger.Error("failed to flush collections on shutdown", "error", err)
	}
	a.cache.Wait()
}

func (a *app) exec(ctx context.Context, args []string, w io.Writer) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "list":
		return a.list(w)

	case "show":
		if len(rest) != 1 {
			return errUsage
		}
		return a.show(w, rest[0])

	case "create":
		if len(rest) == 0 {
			return errUsage
		}
		c := a.collections.CreateCollection(strings.Join(rest, " "))
		fmt.Fprintf(w, "created %s %q\n", c.ID, c.Title)
		return nil

	case "rename":
		if len(rest) < 2 {
			return errUsage
		}
		if !a.collections.RenameCollection(rest[0], strings.Join(rest[1:], " ")) {
			return fmt.Errorf("no collection with id %q", rest[0])
		}
		return nil

	case "delete":
		if len(rest) != 1 {
			return errUsage
		}
		if _, ok := a.collections.Collection(rest[0]); !ok {
			return fmt.Errorf("no collection with id %q", rest[0])
		}
		if !a.collections.DeleteCollection(rest[0]) {
			return fmt.Errorf("collection %q cannot be deleted", rest[0])
		}
		return nil

	case "add":
		if len(rest) < 4 {
			return errUsage
		}
		itemID, err := parseItemID(rest[1])
		if err != nil {
			return err
		}
		item, err := newItem(itemID, rest[2], strings.Join(rest[3:], " "))
		if err != nil {
			return err
		}
		if _, ok := a.collections.Collection(rest[0]); !ok {
			return fmt.Errorf("no collection with id %q", rest[0])
		}
		if !a.collections.AddItem(rest[0], item) {
			fmt.Fprintf(w, "item %d already in collection\n", itemID)
		}
		return nil

	case "remove":
		if len(rest) != 2 {
			return errUsage
		}
		itemID, err := parseItemID(rest[1])
		if err != nil {
			return err
		}
		if !a.collections.RemoveItem(rest[0], itemID) {
			return fmt.Errorf("item %d not found in collection %q", itemID, rest[0])
		}
		return nil

	case "saved":
		if len(rest) != 1 {
			return errUsage
		}
		itemID, err := parseItemID(rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, a.collections.IsItemInAnyCollection(itemID))
		return nil

	case "search":
		if len(rest) == 0 {
			return errUsage
		}
		for _, item := range a.collections.SearchSaved(strings.Join(rest, " ")) {
			fmt.Fprintf(w, "%d\t%s\t%s\n", item.ID, item.Kind, item.Title)
		}
		return nil

	case "cache-clear":
		n := a.cache.ClearAll(ctx)
		fmt.Fprintf(w, "removed %d cached responses\n", n)
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) list(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tITEMS\tDEFAULT")
	for _, c := range a.collections.Collections() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", c.ID, c.Title, len(c.Items), c.IsDefault)
	}
	return tw.Flush()
}

func (a *app) show(w io.Writer, id string) error {
	c, ok := a.collections.Collection(id)
	if !ok {
		return fmt.Errorf("no collection with id %q", id)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTITLE\tINFO")
	for _, item := range c.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", item.ID, item.Kind, item.Title, item.Description())
	}
	return tw.Flush()
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q: %w", s, err)
	}
	return id, nil
}

func newItem(id int64, kind, title string) (domain.MediaItem, error) {
	switch domain.MediaKind(strings.ToLower(kind)) {
	case domain.MediaKindMovie:
		return domain.NewMovieItem(id, title, domain.MovieDetail{}), nil
	case domain.MediaKindSeries:
		return domain.NewSeriesItem(id, title, domain.SeriesDetail{}), nil
	default:
		return domain.MediaItem{}, fmt.Errorf("unknown media kind %q (want movie or series)", kind)
	}
}
