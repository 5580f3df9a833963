package daemon

import (
	"context"
	"errors"

	"github.com/matheus3301/jobboard/internal/api"
	"github.com/matheus3301/jobboard/internal/bus"
	"github.com/matheus3301/jobboard/internal/config"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/lock"
	"github.com/matheus3301/jobboard/internal/logging"
	"github.com/matheus3301/jobboard/internal/outbox"
	"github.com/matheus3301/jobboard/internal/profile"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/matheus3301/jobboard/internal/repository"
	"github.com/matheus3301/jobboard/internal/status"
	"github.com/matheus3301/jobboard/internal/store"
	intsync "github.com/matheus3301/jobboard/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
	// Offline keeps the connectivity gate closed regardless of the network.
	Offline bool
	// Config overrides config.toml when set.
	Config *config.Config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRemote,
			provideGate,
			provideJobs,
			provideUsers,
			provideMessages,
			intsync.NewSession,
			provideReconciler,
			providePoller,
			provideDispatcher,
			provideMonitor,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is only opened by its owner.
func provideStore(p Params, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	db.Attach(b)
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

// provideRemote opens the configured remote store. Without a DSN the
// profile runs against an in-process store behind a closed gate.
func provideRemote(cfg *config.Config, logger *zap.Logger) (remote.Store, error) {
	rs, err := remote.Open(context.Background(), cfg.RemoteDSN)
	if errors.Is(err, remote.ErrNoRemote) {
		logger.Warn("no remote configured, running offline")
		return remote.NewMemory(), nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("remote store opened")
	return rs, nil
}

func provideGate(p Params, cfg *config.Config) gate.Gate {
	if p.Offline || cfg.RemoteDSN == "" {
		return gate.NewStatic(false)
	}
	return gate.NewDial(cfg.ProbeAddress, cfg.ProbeTimeout)
}

func provideJobs(db *store.DB, rs remote.Store, g gate.Gate, b *bus.Bus, logger *zap.Logger) *repository.Jobs {
	return repository.NewJobs(db, rs, g, logger, repository.WithBus(b))
}

func provideUsers(db *store.DB, rs remote.Store, g gate.Gate, b *bus.Bus, logger *zap.Logger) *repository.Users {
	return repository.NewUsers(db, rs, g, logger, repository.WithBus(b))
}

func provideMessages(db *store.DB, rs remote.Store, g gate.Gate, users *repository.Users, b *bus.Bus, logger *zap.Logger) *repository.Messages {
	return repository.NewMessages(db, rs, g, users, logger, repository.WithBus(b))
}

func provideReconciler(db *store.DB, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, logger)
}

func providePoller(cfg *config.Config, msgs *repository.Messages, users *repository.Users, sess *intsync.Session, rec *intsync.Reconciler, m *status.Machine, b *bus.Bus, logger *zap.Logger) *intsync.Poller {
	return intsync.NewPoller(intsync.PollerConfig{
		Inbox:      msgs,
		Names:      users,
		Session:    sess,
		Reconciler: rec,
		Machine:    m,
		Bus:        b,
		Logger:     logger,
		Interval:   cfg.PollInterval,
	})
}

func provideDispatcher(cfg *config.Config, db *store.DB, rs remote.Store, g gate.Gate, b *bus.Bus, logger *zap.Logger) *outbox.Dispatcher {
	return outbox.NewDispatcher(db, rs, g, b, logger, cfg.OutboxInterval)
}

func provideMonitor(cfg *config.Config, g gate.Gate, m *status.Machine, logger *zap.Logger) *gate.Monitor {
	return gate.NewMonitor(g, m, cfg.ProbeInterval, logger)
}

type serviceIn struct {
	fx.In

	Params     Params
	Jobs       *repository.Jobs
	Users      *repository.Users
	Messages   *repository.Messages
	Session    *intsync.Session
	Machine    *status.Machine
	Gate       gate.Gate
	Bus        *bus.Bus
	Poller     *intsync.Poller
	Dispatcher *outbox.Dispatcher
	Logger     *zap.Logger
}

func provideService(in serviceIn) *api.Service {
	return api.NewService(api.Deps{
		Profile:  in.Params.ProfileName,
		Jobs:     in.Jobs,
		Users:    in.Users,
		Messages: in.Messages,
		Session:  in.Session,
		Machine:  in.Machine,
		Gate:     in.Gate,
		Bus:      in.Bus,
		Poller:   in.Poller,
		Outbox:   in.Dispatcher,
		Logger:   in.Logger,
	})
}

type lifecycleIn struct {
	fx.In

	Server     *Server
	Lock       *lock.Lock
	DB         *store.DB
	Remote     remote.Store
	Monitor    *gate.Monitor
	Poller     *intsync.Poller
	Dispatcher *outbox.Dispatcher
	Bus        *bus.Bus
	Logger     *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, in lifecycleIn) {
	logger := in.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// First probe runs synchronously so status is ONLINE or OFFLINE
			// before the first request.
			in.Monitor.Start(context.Background())

			go func() {
				if err := in.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			in.Dispatcher.Start(context.Background())
			in.Poller.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			in.Server.Stop(ctx)
			in.Poller.Stop()
			in.Dispatcher.Stop()
			in.Monitor.Stop()
			in.Bus.Close()
			if err := in.Remote.Close(); err != nil {
				logger.Warn("error closing remote store", zap.Error(err))
			}
			if err := in.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := in.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
