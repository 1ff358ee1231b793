package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/csheth/feedscout/internal/config"
	"github.com/csheth/feedscout/internal/feed"
	"github.com/csheth/feedscout/internal/infinite"
	"github.com/csheth/feedscout/internal/invalidate"
	"github.com/csheth/feedscout/internal/position"
	"github.com/csheth/feedscout/internal/tui"
)

type options struct {
	configPath  string
	keyword     string
	at          string
	start       int
	cursor      string
	limit       int
	noAltScreen bool
	noPrefetch  bool
	overscan    int
	overrides   config.Overrides
}

func main() {
	os.Exit(run(os.Args[1:], os.Environ(), os.Stderr))
}

func run(args, environ []string, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "feedscout:", err)
		return 2
	}
	defer glog.Flush()

	cfg, err := config.Load(config.Input{
		ConfigPath: opts.configPath,
		Env:        envMap(environ),
		Overrides:  opts.overrides,
	})
	if err != nil {
		fmt.Fprintln(stderr, "feedscout:", err)
		return 2
	}
	glog.V(1).Infof("[main] config from %v: endpoint=%s source=%s", cfg.Files, cfg.Endpoint, cfg.Source)

	client, err := feed.New(feed.Config{Endpoint: cfg.Endpoint, Token: cfg.Token, Timeout: cfg.Timeout})
	if err != nil {
		fmt.Fprintln(stderr, "feedscout:", err)
		return 2
	}
	store := position.NewStore(cfg.StateFile)

	pos, err := resolvePosition(fs, opts, cfg, store)
	if err != nil {
		fmt.Fprintln(stderr, "feedscout:", err)
		return 2
	}

	tuiConfig := tui.Config{
		Backend:    client,
		Bus:        invalidate.New(),
		Store:      store,
		Source:     cfg.Source,
		Keyword:    opts.keyword,
		PageSize:   cfg.PageSize,
		Overscan:   cfg.Overscan,
		ManualOnly: opts.noPrefetch,
		Position:   pos,
	}
	prefetchFirstPage(client, cfg, opts.keyword, &tuiConfig)

	programOpts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if !opts.noAltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(tui.New(tuiConfig), programOpts...).Run(); err != nil {
		fmt.Fprintln(stderr, "program error:", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, *pflag.FlagSet, error) {
	var opts options
	fs := pflag.NewFlagSet("feedscout", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to a JSONC config file")
	fs.StringVar(&opts.overrides.Endpoint, "endpoint", "", "feed API base URL")
	fs.StringVar(&opts.overrides.Source, "source", "", "list to open: users or threads")
	fs.StringVar(&opts.keyword, "keyword", "", "user search keyword")
	fs.StringVar(&opts.at, "at", "", "deep link query, e.g. ?start=50&cursor=c50&limit=30")
	fs.IntVar(&opts.start, "start", 0, "first visible row")
	fs.StringVar(&opts.cursor, "cursor", "", "cursor recorded with the position")
	fs.IntVar(&opts.limit, "limit", 0, "page size recorded with the position")
	fs.StringVar(&opts.overrides.StateFile, "state", "", "position state file")
	fs.IntVar(&opts.overrides.PageSize, "page-size", 0, "rows per page")
	fs.IntVar(&opts.overscan, "overscan", 0, "rows rendered beyond the viewport")
	fs.DurationVar(&opts.overrides.Timeout, "timeout", 0, "per-request timeout")
	fs.BoolVar(&opts.noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")
	fs.BoolVar(&opts.noPrefetch, "no-prefetch", false, "load pages only with the m key")

	// glog registers -v, -logtostderr and friends on the standard flag set.
	fs.AddGoFlagSet(flag.CommandLine)

	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	if fs.Changed("overscan") {
		opts.overrides.Overscan = &opts.overscan
	}
	if fs.NArg() > 0 {
		return opts, fs, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, fs, nil
}

// resolvePosition picks the starting position: explicit flags, then --at, then the state
// file. A nil result opens the list at the top.
func resolvePosition(fs *pflag.FlagSet, opts options, cfg config.Config, store *position.Store) (*infinite.Position, error) {
	if fs.Changed("start") || fs.Changed("cursor") || fs.Changed("limit") {
		if opts.start < 0 || opts.limit < 0 {
			return nil, fmt.Errorf("%w: start and limit must not be negative", position.ErrInvalid)
		}
		limit := opts.limit
		if limit == 0 {
			limit = cfg.PageSize
		}
		return &infinite.Position{Start: opts.start, Cursor: opts.cursor, Limit: limit}, nil
	}
	if opts.at != "" {
		pos, err := position.Parse(opts.at, cfg.PageSize)
		if err != nil {
			return nil, err
		}
		return &pos, nil
	}
	pos, err := store.Load(position.Key(cfg.Source, opts.keyword))
	switch {
	case errors.Is(err, position.ErrNoPosition):
		return nil, nil
	case err != nil:
		glog.Warningf("[main] ignoring saved position: %v", err)
		return nil, nil
	}
	return &pos, nil
}

// prefetchFirstPage loads the first page before the screen opens so it renders without a
// loading state. Failures are left for the list to retry.
func prefetchFirstPage(client *feed.Client, cfg config.Config, keyword string, tc *tui.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	switch cfg.Source {
	case config.SourceThreads:
		page, err := client.Threads(ctx, "", cfg.PageSize)
		if err != nil {
			glog.Warningf("[main] first page: %v", err)
			return
		}
		tc.InitialThreads = &page
	default:
		page, err := client.SearchUsers(ctx, keyword, "", cfg.PageSize)
		if err != nil {
			glog.Warningf("[main] first page: %v", err)
			return
		}
		tc.InitialUsers = &page
	}
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
