package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/api"
	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/config"
	"github.com/gigboard/gigchat/internal/conversation"
	"github.com/gigboard/gigchat/internal/history"
	"github.com/gigboard/gigchat/internal/lock"
	"github.com/gigboard/gigchat/internal/logging"
	"github.com/gigboard/gigchat/internal/outbox"
	"github.com/gigboard/gigchat/internal/session"
	"github.com/gigboard/gigchat/internal/store"
	"github.com/gigboard/gigchat/internal/transport"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	Peer       string // conversation to open on start; empty opens none
	Console    bool   // also log to stderr
	ConfigPath string // optional override; empty = ~/.gigchat/config.toml
	SocketPath string // optional override for testing; empty = use default
}

// Module returns the fx module of a running client, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("gigchat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideSession,
			provideBus,
			provideLock,
			provideStore,
			provideHistory,
			provideConnector,
			provideHost,
			provideService,
			provideSweeper,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	return config.LoadOrDefault(path)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.Profile), p.Profile, p.Console)
}

func provideSession(p Params) (session.Session, error) {
	s, err := session.Load(p.Profile)
	if err != nil {
		return session.Session{}, fmt.Errorf("profile %q: %w", p.Profile, err)
	}
	return s, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(session.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore takes the lock so the journal is only opened by its owner.
func provideStore(p Params, logger *zap.Logger, _ *lock.Lock) (*store.DB, error) {
	dbPath := session.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	schema, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("journal ready",
		zap.String("path", dbPath),
		zap.Uint("schema", schema.Version),
		zap.Bool("migrated", schema.Applied))
	return db, nil
}

func provideHistory(cfg *config.Config, logger *zap.Logger) *history.Client {
	return history.NewClient(cfg.Server.APIURL, cfg.Chat.HistoryTimeout.Duration, logger)
}

func provideConnector(cfg *config.Config, b *bus.Bus, logger *zap.Logger) conversation.Connector {
	return NewConnector(cfg, b, logger)
}

// NewConnector opens one websocket connection per conversation.
func NewConnector(cfg *config.Config, b *bus.Bus, logger *zap.Logger) conversation.Connector {
	return func(ctx context.Context, peer, token string) (conversation.Channel, error) {
		m, err := transport.Open(ctx, transport.Options{
			URL:            cfg.Server.SocketURL,
			Peer:           peer,
			ConnectTimeout: cfg.Chat.ConnectTimeout.Duration,
			Reconnect: transport.ReconnectPolicy{
				BaseDelay:   cfg.Reconnect.BaseDelay.Duration,
				MaxDelay:    cfg.Reconnect.MaxDelay.Duration,
				MaxAttempts: cfg.Reconnect.MaxAttempts,
			},
			Bus:    b,
			Logger: logger,
		}, token)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func provideHost(
	s session.Session,
	cfg *config.Config,
	connect conversation.Connector,
	hist *history.Client,
	db *store.DB,
	b *bus.Bus,
	logger *zap.Logger,
) *conversation.Host {
	return conversation.NewHost(context.Background(), conversation.Deps{
		Session: s,
		Connect: connect,
		History: hist,
		Journal: db,
		Bus:     b,
		Logger:  logger,
		Settings: conversation.Settings{
			ReconcileWindow: cfg.Chat.ReconcileWindow.Duration,
			SendAckTimeout:  cfg.Chat.SendAckTimeout.Duration,
			TypingDebounce:  cfg.Chat.TypingDebounce.Duration,
		},
	})
}

func provideService(s session.Session, host *conversation.Host, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.ConversationService {
	return api.NewConversationService(s, host, db, b, logger)
}

// provideSweeper fails journaled sends left pending by unmounted views. Views
// fail their own sends after one ack timeout, so twice that is safely stale.
func provideSweeper(cfg *config.Config, db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Sweeper {
	ack := cfg.Chat.SendAckTimeout.Duration
	if ack <= 0 {
		ack = conversation.DefaultSendAckTimeout
	}
	return outbox.NewSweeper(db, 2*ack, ack, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *Server, lk *lock.Lock, db *store.DB, host *conversation.Host, sweeper *outbox.Sweeper, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			sweeper.Start(context.Background())

			// A failed initial open is reported as a notice; the client keeps running.
			if p.Peer != "" {
				if _, err := host.Open(ctx, p.Peer); err != nil {
					logger.Warn("initial conversation not opened", zap.String("peer", p.Peer), zap.Error(err))
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := host.Close(); err != nil {
				logger.Warn("error closing conversation", zap.Error(err))
			}
			sweeper.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("gigchat stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
