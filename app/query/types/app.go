package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/canopy-network/stakedrop/pkg/airdrop"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/redis"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Store is the read side of the snapshot store.
type Store interface {
	ListSnapshots(ctx context.Context, chainID uint64, limit int) ([]snapshots.Snapshot, error)
	GetSnapshot(ctx context.Context, chainID uint64, root string) (*snapshots.Snapshot, error)
	GetManifest(ctx context.Context, chainID uint64, root string) (*airdrop.Manifest, error)
	Health(ctx context.Context) error
}

type App struct {
	Store Store
	// Manifests caches decoded manifests by "<chain>:<root>". Manifests are immutable once stored.
	Manifests *xsync.Map[string, *airdrop.Manifest]
	// Latest holds the newest published root per chain, fed by the snapshot stream.
	Latest *xsync.Map[uint64, string]

	// RedisClient is nil when real-time events are disabled.
	RedisClient *redis.Client
	Consumer    *redis.StreamConsumer

	Logger *zap.Logger
	Server *http.Server

	closers []func()
}

func NewApp(store Store, logger *zap.Logger) *App {
	return &App{
		Store:     store,
		Manifests: xsync.NewMap[string, *airdrop.Manifest](),
		Latest:    xsync.NewMap[uint64, string](),
		Logger:    logger,
	}
}

func (a *App) OnStop(fn func()) {
	a.closers = append(a.closers, fn)
}

func manifestKey(chainID uint64, root string) string {
	return fmt.Sprintf("%d:%s", chainID, root)
}

// Manifest returns the manifest of root, loading it from the store on first use.
func (a *App) Manifest(ctx context.Context, chainID uint64, root string) (*airdrop.Manifest, error) {
	key := manifestKey(chainID, root)
	if m, ok := a.Manifests.Load(key); ok {
		return m, nil
	}
	m, err := a.Store.GetManifest(ctx, chainID, root)
	if err != nil {
		return nil, err
	}
	a.Manifests.Store(key, m)
	return m, nil
}

// LatestRoot returns the newest root of chainID, asking the store when no publication was seen.
func (a *App) LatestRoot(ctx context.Context, chainID uint64) (string, error) {
	if root, ok := a.Latest.Load(chainID); ok {
		return root, nil
	}
	list, err := a.Store.ListSnapshots(ctx, chainID, 1)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", snapshots.ErrNotFound
	}
	a.Latest.Store(chainID, list[0].ID)
	return list[0].ID, nil
}

// HandlePublished consumes one snapshot stream entry: it records the root as the chain's latest
// and warms the manifest cache.
func (a *App) HandlePublished(ctx context.Context, msg redis.Message) error {
	chainID := msg.Uint64("chain_id")
	root := msg.String("root")
	if chainID == 0 || root == "" {
		return errors.New("stream entry without chain_id or root")
	}
	a.Latest.Store(chainID, root)
	if _, err := a.Manifest(ctx, chainID, root); err != nil {
		return fmt.Errorf("warm manifest %s: %w", root, err)
	}
	a.Logger.Info("Snapshot published",
		zap.Uint64("chainID", chainID),
		zap.String("root", root),
		zap.String("payload", msg.String("payload")))
	return nil
}

// Start serves HTTP and follows the snapshot stream until ctx is done.
func (a *App) Start(ctx context.Context) {
	if a.Consumer != nil {
		go func() {
			if err := a.Consumer.Run(ctx, a.HandlePublished); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("Snapshot stream consumer stopped", zap.Error(err))
			}
		}()
	}
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.Logger.Info("さようなら!")
	_ = a.Logger.Sync()
}

