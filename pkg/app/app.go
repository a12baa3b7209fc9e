package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"mosspay/pkg/account"
	"mosspay/pkg/advisor"
	"mosspay/pkg/billing"
	"mosspay/pkg/catalog"
	"mosspay/pkg/httpapi"
	"mosspay/pkg/inventory"
	"mosspay/pkg/rewards"
	"mosspay/pkg/session"
	"mosspay/pkg/storage/memorydriver"
	"mosspay/pkg/version"
)

// Config captures CLI flags so the MossPay server can run with a single Run call.
type Config struct {
	showVersion bool
	port        int
	dbPath      string
	memory      bool
	catalogPath string
	envFile     string
	sessionTTL  time.Duration
}

// Run composes persistence, domain services, and the HTTP server, then serves until ctx ends.
func Run(ctx context.Context, args []string, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(os.Stdout, "[mosspay] ", log.LstdFlags)
	}

	cfg, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if cfg.showVersion {
		logger.Printf("mosspay version %s", version.Version())
		return nil
	}

	if err := loadEnv(cfg.envFile); err != nil {
		return err
	}

	stack, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	addr := cfg.address()
	server := &http.Server{
		Addr:         addr,
		Handler:      stack.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("MossPay is running on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Printf("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Stack is the wired application behind one handler.
type Stack struct {
	Handler http.Handler
	closers []func() error
}

// Close stops the services and flushes the database snapshot.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build opens the store, starts every service and returns the HTTP handler over them.
func Build(ctx context.Context, cfg Config, logger *log.Logger) (*Stack, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cat, err := loadCatalog(cfg.catalogPath)
	if err != nil {
		return nil, err
	}

	path := cfg.dbPath
	if cfg.memory {
		path = ""
	} else if path == "" {
		if path, err = memorydriver.DefaultPath(); err != nil {
			return nil, fmt.Errorf("unable to resolve database path: %w", err)
		}
	}
	db, cleanupDB, err := memorydriver.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	stack := &Stack{closers: []func() error{cleanupDB}}

	if err := memorydriver.EnsureSchema(ctx, db); err != nil {
		stack.Close()
		return nil, fmt.Errorf("unable to ensure schema: %w", err)
	}
	if path != "" {
		logger.Printf("database snapshot at %s", path)
	}

	accounts := account.NewService(account.NewRepository(db))
	stock := inventory.NewService(inventory.NewRepository(db), cat)
	bills := billing.NewService(billing.NewRepository(db), accounts, stock)
	offers := rewards.NewService(rewards.NewRepository(db), cat, accounts)
	for _, closer := range []func(){accounts.Close, stock.Close, bills.Close, offers.Close} {
		stack.closers = append(stack.closers, func() error { closer(); return nil })
	}

	srv, err := httpapi.New(httpapi.Services{
		Accounts:  accounts,
		Inventory: stock,
		Billing:   bills,
		Rewards:   offers,
		Catalog:   cat,
		Sessions:  session.NewStore(cfg.sessionTTL),
		Advisor:   advisor.NewHandler(logger),
	}, version.Version(), logger)
	if err != nil {
		stack.Close()
		return nil, fmt.Errorf("unable to build http server: %w", err)
	}
	stack.Handler = srv.Handler()
	return stack, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load catalog: %w", err)
	}
	return cat, nil
}

// loadEnv reads KEY=value pairs into the environment; a missing file is fine.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to load %s: %w", path, err)
	}
	return nil
}

// address converts CLI port configuration into a binding string.
func (c Config) address() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + strconv.Itoa(c.port)
}

// ParseConfig reads server flags without starting anything, for callers that use Build directly.
func ParseConfig(args []string) (Config, error) {
	return parseFlags(args)
}

// parseFlags uses a dedicated FlagSet so Run can be called from multiple entry points.
func parseFlags(args []string) (Config, error) {
	set := flag.NewFlagSet("mosspay", flag.ContinueOnError)
	set.SetOutput(io.Discard)

	var cfg Config
	set.BoolVar(&cfg.showVersion, "version", false, "Show the application version")
	set.IntVar(&cfg.port, "port", 5000, "Port for the HTTP server; PORT overrides it.")
	set.StringVar(&cfg.dbPath, "db-path", "", "Snapshot file for the database; defaults to mosspay.db.lz4 in the working directory.")
	set.BoolVar(&cfg.memory, "memory", false, "Keep the database in memory only.")
	set.StringVar(&cfg.catalogPath, "catalog", "", "YAML file replacing the built-in carbon table and reward schemes.")
	set.StringVar(&cfg.envFile, "env-file", ".env", "Environment file loaded before start.")
	set.DurationVar(&cfg.sessionTTL, "session-ttl", session.DefaultTTL, "How long a login stays valid.")

	if err := set.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
