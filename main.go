package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/skridlevsky/thoughtgraph/document"
	"github.com/skridlevsky/thoughtgraph/storage"
	"github.com/skridlevsky/thoughtgraph/vault"
)

var version = "dev"

// config is shared by the server and every subcommand. Flags win over
// environment variables.
type config struct {
	DataDir   string `validate:"required"`
	Vault     string `validate:"omitempty,dir"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	ReadOnly  bool
	Transport string `validate:"oneof=stdio http"`
	Port      string `validate:"required_if=Transport http,omitempty,numeric"`
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "thoughtgraph")
	}
	return "./data"
}

// bindConfig registers the shared flags on fs.
func bindConfig(fs *flag.FlagSet) *config {
	cfg := &config{Transport: "stdio"}
	fs.StringVar(&cfg.DataDir, "data-dir", envOr("THOUGHTGRAPH_DATA_DIR", defaultDataDir()), "Directory for the thought database")
	fs.StringVar(&cfg.Vault, "vault", envOr("THOUGHTGRAPH_VAULT", ""), "Markdown vault imported into an empty database")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("THOUGHTGRAPH_LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
	return cfg
}

func (c *config) validate() error {
	err := validator.New().Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s %q (%s)", strings.ToLower(e.Field()), e.Value(), e.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// newLogger writes JSON to stderr so stdout stays free for the stdio
// transport and command output.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

// openDocument loads the database, seeds it from the vault when it is empty
// and returns a document persisting every edit. The returned function
// closes the database.
func openDocument(ctx context.Context, cfg *config, log *zap.Logger) (*document.Document, func(), error) {
	st, err := storage.Open(filepath.Join(cfg.DataDir, storage.DefaultFile), log.Named("storage"))
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := st.Close(); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}

	snap, err := st.Load(ctx)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	doc := document.New(
		document.WithLogger(log.Named("document")),
		document.WithPersister(st),
		document.WithSnapshot(snap),
	)

	if cfg.Vault != "" && snap.LexemeCount() == 0 {
		blocks, err := vault.New(cfg.Vault, vault.WithLogger(log.Named("vault"))).Load()
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		if len(blocks) > 0 {
			if _, err := doc.Dispatch(ctx, document.Import{Blocks: blocks}); err != nil {
				closeStore()
				return nil, nil, fmt.Errorf("import vault: %w", err)
			}
			log.Info("imported vault", zap.String("dir", cfg.Vault), zap.Int("files", len(blocks)))
		}
	}
	return doc, closeStore, nil
}

func main() {
	if len(os.Args) > 1 {
		if run, ok := commands[os.Args[1]]; ok {
			os.Exit(run(os.Args[2:]))
		}
	}

	cfg := bindConfig(flag.CommandLine)
	flag.BoolVar(&cfg.ReadOnly, "read-only", false, "Disable all write operations")
	flag.StringVar(&cfg.Transport, "transport", "stdio", "Transport mode: stdio or http")
	flag.StringVar(&cfg.Port, "port", "8081", "HTTP port (only used with -transport http)")
	flag.Parse()

	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "thoughtgraph: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thoughtgraph: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	doc, closeDoc, err := openDocument(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thoughtgraph: %v\n", err)
		os.Exit(1)
	}
	defer closeDoc()

	srv, search := newServer(doc, cfg.ReadOnly)
	defer search.Close()

	switch cfg.Transport {
	case "stdio":
		log.Info("server starting", zap.String("transport", "stdio"), zap.String("version", version))
		err = srv.Run(ctx, &mcp.StdioTransport{})
	case "http":
		addr := ":" + cfg.Port
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil)
		log.Info("server listening", zap.String("addr", addr), zap.String("version", version))
		httpSrv := &http.Server{Addr: addr, Handler: handler}
		go func() {
			<-ctx.Done()
			httpSrv.Close()
		}()
		if err = httpSrv.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "thoughtgraph: %v\n", err)
		os.Exit(1)
	}
}
