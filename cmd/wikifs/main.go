package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"wikifs/internal/config"
	"wikifs/internal/dirsync"
	"wikifs/internal/document"
	"wikifs/internal/fs"
	"wikifs/internal/gofusefs"
	"wikifs/internal/logging"
	"wikifs/internal/metrics"
	"wikifs/internal/rest"
	"wikifs/internal/state"
	"wikifs/internal/wikifs"
)

var (
	logger = logging.GetLogger()
)

// mountedFS is a running FUSE mount of either binding.
type mountedFS interface {
	Wait() error
	Unmount() error
}

type options struct {
	configPath string
	headers    []string
	resume     bool
	printTree  bool
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Error("%v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run() error {
	cfg, opts, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	if err := logger.Configure(logging.Config{Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	if cfg.LogLevel != "" {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	if cfg.Debug && logger.Level() < logging.LevelDebug {
		logger.SetLevel(logging.LevelDebug)
	}

	logger.Info("Starting wikifs...")
	logger.Debug("Wiki URL: %s", cfg.URL)
	logger.Debug("Mount point: %s", cfg.MountPath)
	logger.Debug("Sync path: %s", cfg.SyncPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	if cfg.User != "" && cfg.Pass == "" {
		pass, err := promptPassword(cfg.User)
		if err != nil {
			return err
		}
		cfg.Pass = pass
	}

	var client *rest.Client
	if cfg.URL != "" {
		client = rest.New(rest.Config{
			BaseURL: cfg.URL,
			User:    cfg.User,
			Pass:    cfg.Pass,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout,
			Debug:   cfg.Debug,
		})
	}
	store := buildStore(cfg, client)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	if cfg.MountPath != "" {
		mounted, err := mount(cfg, store, client)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mounted.Wait(); err != nil {
				errs <- fmt.Errorf("serve: %w", err)
			}
			logger.Debug("FUSE server stopped")
			stop()
		}()

		// Unmounting makes Wait return.
		go func() {
			<-ctx.Done()
			logger.Info("Unmounting %s", cfg.MountPath)
			if err := mounted.Unmount(); err != nil {
				logger.Error("Unmount error: %v", err)
			}
		}()
		logger.Info("Filesystem mounted and ready")
	}

	if cfg.SyncPath != "" {
		syncStore := store
		if syncStore == nil {
			syncStore = document.MavenStore{Dir: cfg.SyncDataSource}
			logger.Info("No wiki or xml output configured, pushing edits back into %s", cfg.SyncDataSource)
		}
		engine := dirsync.New(dirsync.Config{
			Source: cfg.SyncDataSource,
			Root:   cfg.SyncPath,
			Wiki:   cfg.Wiki,
			Store:  syncStore,
		})
		if err := prepareSync(ctx, cfg, engine, opts); err != nil {
			stop()
			wg.Wait()
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.Watch(ctx); err != nil {
				errs <- fmt.Errorf("watch: %w", err)
			}
			if cfg.MountPath == "" {
				stop()
			}
		}()
	}

	wg.Wait()
	close(errs)

	var result error
	for err := range errs {
		result = errors.Join(result, err)
	}
	if result == nil {
		logger.Info("Clean shutdown complete")
	}
	return result
}

// loadConfig layers the config file, the environment and flags, in that order.
func loadConfig(args []string) (*config.Config, options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("wikifs", pflag.ContinueOnError)

	flagSet.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flagSet.StringP("url", "u", "", "wiki webapp URL, e.g. http://localhost:8080/xwiki")
	flagSet.StringP("wiki", "w", "", "wiki that sync pushes go to (default xwiki)")
	flagSet.String("user", "", "user for HTTP basic authentication")
	flagSet.String("pass", "", "password for HTTP basic authentication (prompted when missing)")
	flagSet.StringArrayVarP(&opts.headers, "header", "H", nil, "extra request header \"Name: value\" (repeatable)")
	flagSet.Duration("timeout", 0, "REST request timeout")
	flagSet.String("mount", "", "mount point for the wiki filesystem")
	flagSet.String("fuse-binding", "", "FUSE library: bazil or gofuse")
	flagSet.Bool("allow-other", false, "allow other users to access the mount")
	flagSet.Bool("strict-writes", false, "fail rejected writes with EIO instead of dropping them")
	flagSet.String("sync", "", "directory to mirror pages into and watch")
	flagSet.String("sync-data-source", "", "maven project holding the page XML files")
	flagSet.String("xml-read-dir", "", "maven project used as an extra input store")
	flagSet.String("xml-write-dir", "", "maven project used as an extra output store")
	flagSet.String("state", "", "sync manifest path")
	flagSet.BoolVar(&opts.resume, "resume", false, "reuse the sync manifest instead of a full sync")
	flagSet.BoolVar(&opts.printTree, "print-tree", false, "print the mirrored layout after syncing")
	flagSet.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flagSet.Bool("debug", false, "debug logging and response bodies in errors")
	flagSet.String("log-level", "", "log level: error, warn, info, debug, trace")
	flagSet.String("log-format", "", "log format: console or json")

	if err := flagSet.Parse(args); err != nil {
		return nil, opts, err
	}
	if flagSet.NArg() > 0 {
		return nil, opts, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, opts, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	stringFlags := map[string]*string{
		"url":              &cfg.URL,
		"wiki":             &cfg.Wiki,
		"user":             &cfg.User,
		"pass":             &cfg.Pass,
		"mount":            &cfg.MountPath,
		"fuse-binding":     &cfg.FUSEBinding,
		"sync":             &cfg.SyncPath,
		"sync-data-source": &cfg.SyncDataSource,
		"xml-read-dir":     &cfg.XMLReadDir,
		"xml-write-dir":    &cfg.XMLWriteDir,
		"state":            &cfg.StateFile,
		"metrics-addr":     &cfg.MetricsAddr,
		"log-level":        &cfg.LogLevel,
		"log-format":       &cfg.LogFormat,
	}
	for name, dst := range stringFlags {
		if flagSet.Changed(name) {
			*dst, _ = flagSet.GetString(name)
		}
	}
	boolFlags := map[string]*bool{
		"allow-other":   &cfg.AllowOther,
		"strict-writes": &cfg.StrictWrites,
		"debug":         &cfg.Debug,
	}
	for name, dst := range boolFlags {
		if flagSet.Changed(name) {
			*dst, _ = flagSet.GetBool(name)
		}
	}
	if flagSet.Changed("timeout") {
		cfg.Timeout, _ = flagSet.GetDuration("timeout")
	}
	for _, h := range opts.headers {
		name, value, err := config.ParseHeader(h)
		if err != nil {
			return nil, opts, err
		}
		cfg.Headers[name] = value
	}

	if err := cfg.Validate(); err != nil {
		return nil, opts, err
	}
	return cfg, opts, nil
}

// buildStore assembles the document store from the wiki and the optional
// xml directories. It returns nil when nothing is configured.
func buildStore(cfg *config.Config, client *rest.Client) document.Store {
	var backends []document.Backend
	if client != nil {
		backends = append(backends, document.Backend{
			Name: "wiki", Store: rest.NewPageStore(client), Read: true, Write: true,
		})
	}
	if cfg.XMLReadDir != "" {
		backends = append(backends, document.Backend{
			Name: "xml-read", Store: document.MavenStore{Dir: cfg.XMLReadDir}, Read: true,
		})
	}
	if cfg.XMLWriteDir != "" {
		backends = append(backends, document.Backend{
			Name: "xml-write", Store: document.MavenStore{Dir: cfg.XMLWriteDir}, Write: true,
		})
	}

	switch {
	case len(backends) == 0:
		return nil
	case len(backends) == 1 && backends[0].Read && backends[0].Write:
		return backends[0].Store
	}
	return &document.Multi{Backends: backends, Resolver: newPromptResolver()}
}

func mount(cfg *config.Config, store document.Store, client *rest.Client) (mountedFS, error) {
	mountPoint := filepath.Clean(cfg.MountPath)
	ops := wikifs.New(wikifs.Options{
		Store:        store,
		Lister:       rest.NewLister(client),
		StrictWrites: cfg.StrictWrites,
	})

	logger.Info("Mounting filesystem with %s binding...", cfg.FUSEBinding)
	switch cfg.FUSEBinding {
	case config.BindingGoFuse:
		return gofusefs.Mount(mountPoint, ops, gofusefs.Options{
			AllowOther: cfg.AllowOther,
			Debug:      logger.Level() >= logging.LevelTrace,
		})
	default:
		wfs := fs.New(ops, fs.Options{AllowOther: cfg.AllowOther})
		if err := wfs.Mount(mountPoint); err != nil {
			return nil, fmt.Errorf("mount failed: %w", err)
		}
		return wfs, nil
	}
}

// prepareSync fills the managed set, either from the manifest (--resume) or
// with a full sync that is then recorded in the manifest.
func prepareSync(ctx context.Context, cfg *config.Config, engine *dirsync.Engine, opts options) error {
	logger.Info("Initializing state manager...")
	stateManager, err := state.NewManager(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("failed to initialize state manager: %w", err)
	}

	if opts.resume {
		st, err := stateManager.LoadState()
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		if !st.Empty() && st.Root == engine.Root() {
			engine.Restore(st.ManagedFiles)
			logger.Info("Resumed %d managed files from %s", engine.Managed().Len(), stateManager.Path())
			return nil
		}
		logger.Info("No usable manifest for %s, running a full sync", engine.Root())
	}

	logger.Info("Syncing %s into %s...", engine.ResourcesDir(), engine.Root())
	if err := engine.Sync(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if opts.printTree {
		fmt.Println(engine.RenderTree())
	}

	st := &state.SyncState{
		Root:         engine.Root(),
		Source:       engine.Source(),
		Wiki:         cfg.Wiki,
		ManagedFiles: engine.Managed().Paths(),
		SyncedAt:     time.Now(),
	}
	if err := stateManager.SaveState(st); err != nil {
		// The mirror is usable without a manifest; only --resume needs it.
		logger.Warn("Failed to save state: %v", err)
	}
	return nil
}

func promptPassword(user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", user)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pass), nil
}
