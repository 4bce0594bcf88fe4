package activity

import (
	"context"
	"errors"

	"github.com/canopy-network/stakedrop/pkg/airdrop"
	"github.com/canopy-network/stakedrop/pkg/db/chain"
	"github.com/canopy-network/stakedrop/pkg/merkle"
	"github.com/canopy-network/stakedrop/pkg/resolver"
	"github.com/canopy-network/stakedrop/pkg/rpc"
	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"github.com/canopy-network/stakedrop/pkg/source"
	"github.com/canopy-network/stakedrop/pkg/twab"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// SnapshotStore persists computed manifests.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, subject string, m *airdrop.Manifest) error
}

// LedgerStore is the ClickHouse ledger the sync mirrors into.
type LedgerStore interface {
	source.Mirror
	SyncedHeight(ctx context.Context, table chain.Table) (uint64, error)
	SetSyncedHeight(ctx context.Context, table chain.Table, h uint64) error
}

// Publisher announces stored manifests.
type Publisher interface {
	Publish(ctx context.Context, msg snapshot.Published) (string, error)
}

type Context struct {
	Logger *zap.Logger
	Runner *snapshot.Runner
	Store  SnapshotStore
	// Publisher may be nil, in which case PublishSnapshot is a no-op.
	Publisher Publisher
	// OutputDir, when set, also receives every manifest as a JSON file.
	OutputDir string

	// RPC and Ledger back the ledger sync; both nil when it is disabled.
	RPC            rpc.Client
	Ledger         LedgerStore
	MaxConcurrency int
}

// nonRetryable marks validation failures that would fail the same way on every attempt.
func nonRetryable(err error) error {
	var malformed *twab.MalformedEventError
	kind := ""
	switch {
	case errors.As(err, &malformed):
		kind = "malformed_event"
	case errors.Is(err, airdrop.ErrNoParticipants):
		kind = "no_participants"
	case errors.Is(err, twab.ErrInvalidInterval):
		kind = "invalid_interval"
	case errors.Is(err, merkle.ErrLeafNotFound):
		kind = "leaf_not_found"
	case errors.Is(err, snapshot.ErrNoWindow), errors.Is(err, snapshot.ErrInvalidDropped), errors.Is(err, snapshot.ErrWrongChain),
		errors.Is(err, snapshot.ErrZeroStartHeight), errors.Is(err, source.ErrHeightZero):
		kind = "invalid_request"
	case errors.Is(err, resolver.ErrTimestampAfterHead):
		kind = "timestamp_after_head"
	case errors.Is(err, airdrop.ErrNegativeAmount), errors.Is(err, airdrop.ErrAmountOverflow):
		kind = "invalid_amount"
	default:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), kind, err)
}
