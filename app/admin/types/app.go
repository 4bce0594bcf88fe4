package types

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/temporal"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// SnapshotStore is the read side of the snapshot store used by the admin API.
type SnapshotStore interface {
	ListSnapshots(ctx context.Context, chainID uint64, limit int) ([]snapshots.Snapshot, error)
	GetSnapshot(ctx context.Context, chainID uint64, root string) (*snapshots.Snapshot, error)
	Health(ctx context.Context) error
}

// Workflows starts and schedules snapshot workflows. Satisfied by *temporal.Client.
type Workflows interface {
	StartWorkflow(ctx context.Context, id, workflow string, args ...interface{}) (string, error)
	EnsureSchedule(ctx context.Context, opts client.ScheduleOptions) error
	Health(ctx context.Context) (temporal.Health, error)
}

type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"hash"`
	Role     string `json:"role"`
}

type App struct {
	Store     SnapshotStore
	Workflows Workflows
	// Queue is the task queue snapshot workflows are started on.
	Queue string

	Logger *zap.Logger
	Server *http.Server

	closers []func()
}

// OnStop registers fn to run when the app stops, last registered first.
func (a *App) OnStop(fn func()) {
	a.closers = append(a.closers, fn)
}

// Start serves HTTP until ctx is done.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.Logger.Info("さようなら!")
	_ = a.Logger.Sync()
}
