package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/cardsync/internal/cards"
	"github.com/starford/cardsync/internal/companion"
	"github.com/starford/cardsync/internal/index"
	"github.com/starford/cardsync/internal/measure"
	"github.com/starford/cardsync/internal/navigation"
	"github.com/starford/cardsync/internal/refindex"
	"github.com/starford/cardsync/internal/sse"
	"github.com/starford/cardsync/internal/storage"
	"github.com/starford/cardsync/internal/vault"
	"github.com/starford/cardsync/internal/view"
)

var errConfigRequired = errors.New("config is required")

// NewLogger builds the JSON logger. With app.log_file set, output goes to a
// rotating file; otherwise to w.
func NewLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogRotate.MaxSizeMB,
			MaxBackups: cfg.LogRotate.MaxBackups,
			MaxAge:     cfg.LogRotate.MaxAgeDays,
			Compress:   cfg.LogRotate.Compress,
		}
	}
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

// Runtime is the wired application: storage, caches, indexes and the
// companion service over them.
type Runtime struct {
	Service *companion.Service
	Store   storage.Provider
	refs    *refindex.Index
	db      *index.DB
}

// Open wires every component from cfg. A nil broker leaves the service
// without events and without a canvas view host.
func Open(cfg *Config, logger *slog.Logger, broker *sse.Broker) (*Runtime, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	rt, err := wire(cfg, logger, store, db, broker)
	if err != nil {
		db.Close()
		return nil, err
	}
	return rt, nil
}

func wire(cfg *Config, logger *slog.Logger, store storage.Provider, db *index.DB, broker *sse.Broker) (*Runtime, error) {
	resolver, err := vault.NewResolver(store)
	if err != nil {
		return nil, fmt.Errorf("init resolver: %w", err)
	}
	notes := vault.NewMetadata(db, store, logger)

	renderer, err := measure.NewFontRenderer(cfg.Measure.Font())
	if err != nil {
		return nil, err
	}
	measurer, err := measure.NewService(renderer, cfg.Measure.Service(cfg.Cards.SizePolicy))
	if err != nil {
		return nil, err
	}
	engine := cards.NewEngine(measurer, cfg.Cards.Options())
	refs := refindex.New(store, resolver, logger,
		refindex.WithBatchSize(cfg.Index.BatchSize),
		refindex.WithBatchIdle(cfg.Index.BatchIdle))

	deps := companion.Deps{
		Store:    store,
		DB:       db,
		Resolver: resolver,
		Notes:    notes,
		Refs:     refs,
		Cards: cards.NewReconciler(engine, store, notes, logger,
			cards.WithFingerprintGuard(cfg.Cards.FingerprintGuard)),
		Nav:    navigation.New(notes, resolver, db),
		View:   cfg.View.Focus(),
		Logger: logger,
	}
	if broker != nil {
		deps.Events = broker
		deps.Opener = view.NewBroadcastOpener(broker, broker, store)
	}

	return &Runtime{Service: companion.New(deps), Store: store, refs: refs, db: db}, nil
}

// Close empties the reference index and releases the note cache.
func (rt *Runtime) Close() error {
	rt.refs.Clear()
	return rt.db.Close()
}
