package snapshot

import (
	"context"
	"fmt"

	"github.com/canopy-network/stakedrop/pkg/cache"
	"github.com/canopy-network/stakedrop/pkg/db/chain"
	"github.com/canopy-network/stakedrop/pkg/db/clickhouse"
	"github.com/canopy-network/stakedrop/pkg/db/postgres"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/redis"
	"github.com/canopy-network/stakedrop/pkg/resolver"
	"github.com/canopy-network/stakedrop/pkg/rpc"
	"github.com/canopy-network/stakedrop/pkg/source"
	"go.uber.org/zap"
)

// ServiceOpts selects optional backends beyond what Config requires.
type ServiceOpts struct {
	// Component names the connection pools ("worker", "snapshot").
	Component string
	Store     bool
	Redis     bool
}

// Services bundles the long lived collaborators of a snapshot process.
type Services struct {
	Logger   *zap.Logger
	Config   Config
	RPC      rpc.Client
	Redis    *redis.Client
	Ledger   *chain.DB
	Store    *snapshots.DB
	Resolver *resolver.Resolver
	Runner   *Runner

	closers []func()
}

// NewServices connects only the backends cfg and opts call for.
func NewServices(ctx context.Context, logger *zap.Logger, cfg Config, opts ServiceOpts) (*Services, error) {
	s := &Services{Logger: logger, Config: cfg}
	if err := s.init(ctx, opts); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Services) init(ctx context.Context, opts ServiceOpts) error {
	cfg := s.Config
	rpcOpts := rpc.OptsFromEnv()
	s.RPC = rpc.NewHTTPWithOpts(rpcOpts)

	if opts.Redis || cfg.BlockTimeCache == CacheRedis {
		client, err := redis.NewClient(ctx, s.Logger)
		if err != nil {
			return err
		}
		s.Redis = client
		s.closers = append(s.closers, func() { _ = client.Close() })
	}

	if opts.Store || cfg.BlockTimeCache == CachePostgres {
		store, err := snapshots.New(ctx, s.Logger, postgres.PoolConfigForComponent(opts.Component))
		if err != nil {
			return err
		}
		s.Store = store
		s.closers = append(s.closers, store.Close)
	}

	if cfg.Source == SourceClickHouse || cfg.Mirror || cfg.LedgerSyncCron != "" {
		ledger, err := chain.New(ctx, s.Logger, cfg.ChainID, clickhouse.PoolConfigForComponent(opts.Component))
		if err != nil {
			return err
		}
		s.Ledger = ledger
		s.closers = append(s.closers, func() { _ = ledger.Close() })
	}

	tiers := []cache.BlockTimes{cache.NewMemory()}
	switch cfg.BlockTimeCache {
	case CacheRedis:
		tiers = append(tiers, cache.NewRedis(s.Redis, cfg.ChainID))
	case CachePostgres:
		tiers = append(tiers, s.Store.BlockTimes(cfg.ChainID))
	}
	s.Resolver = resolver.New(s.Logger, s.RPC, cache.NewTiered(s.Logger, tiers...), resolver.Opts{
		MaxConcurrency: cfg.MaxConcurrency,
	})
	s.closers = append(s.closers, s.Resolver.Close)

	s.Runner = NewRunner(s.Logger, s.Resolver, nil, cfg.Workers).ForChain(cfg.ChainID)
	for _, subject := range []source.Subject{source.Stake, source.Balance} {
		var src source.Source
		switch cfg.Source {
		case SourceClickHouse:
			src = source.NewClickHouse(s.Ledger, subject)
		case SourceRPC:
			ro := source.RPCOpts{MaxConcurrency: cfg.MaxConcurrency, Step: cfg.SampleStep}
			if cfg.Mirror {
				ro.Mirror = s.Ledger
			}
			rpcSrc := source.NewRPC(s.Logger, s.RPC, subject, ro)
			s.closers = append(s.closers, rpcSrc.Close)
			src = rpcSrc
		case SourceFile:
			// a file holds a single balance history whatever the subject
			src = source.NewFile(cfg.EventsFile)
		default:
			return fmt.Errorf("unknown source %q", cfg.Source)
		}
		s.Runner.ForSubject(subject, src)
	}

	s.Logger.Info("Snapshot services ready",
		zap.Uint64("chainID", cfg.ChainID),
		zap.String("source", cfg.Source),
		zap.String("subject", string(cfg.Subject)),
		zap.String("blocktime_cache", cfg.BlockTimeCache),
		zap.Strings("rpc_endpoints", rpcOpts.Endpoints))
	return nil
}

// Close releases backends in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
