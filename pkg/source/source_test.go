package source

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/canopy-network/canopy/fsm"
	"github.com/canopy-network/stakedrop/pkg/db/chain"
	"github.com/canopy-network/stakedrop/pkg/rpc"
	"github.com/canopy-network/stakedrop/pkg/twab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	addrA = strings.Repeat("a", 40)
	addrB = strings.Repeat("b", 40)
)

type fakeChain struct {
	mu         sync.Mutex
	validators map[uint64]map[string]uint64
	accounts   map[uint64]map[string]uint64
	failAt     uint64
	calls      int
}

func (f *fakeChain) ChainHead(context.Context) (uint64, error) { return 100, nil }

func (f *fakeChain) BlockByHeight(_ context.Context, h uint64) (*rpc.Block, error) {
	return &rpc.Block{Height: h, Time: time.Unix(int64(h), 0)}, nil
}

func (f *fakeChain) BlockTime(_ context.Context, h uint64) (time.Time, error) {
	return time.Unix(int64(h), 0).UTC(), nil
}

func (f *fakeChain) ValidatorsByHeight(_ context.Context, h uint64) ([]*fsm.Validator, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failAt != 0 && h == f.failAt {
		return nil, errors.New("boom")
	}
	out := make([]*fsm.Validator, 0)
	for addr, amt := range f.validators[h] {
		b, _ := hex.DecodeString(addr)
		out = append(out, &fsm.Validator{Address: b, StakedAmount: amt})
	}
	return out, nil
}

func (f *fakeChain) AccountsByHeight(_ context.Context, h uint64) ([]*rpc.Account, error) {
	out := make([]*rpc.Account, 0)
	for addr, amt := range f.accounts[h] {
		out = append(out, &rpc.Account{Address: addr, Amount: amt})
	}
	return out, nil
}

type recordingMirror struct {
	mu   sync.Mutex
	rows []chain.Holding
}

func (m *recordingMirror) InsertHoldings(_ context.Context, table chain.Table, rows []chain.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if table != chain.Validators {
		return errors.New("wrong table")
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func sortEvents(evs []twab.ChangeEvent) {
	slices.SortFunc(evs, func(a, b twab.ChangeEvent) int {
		if a.Position != b.Position {
			if a.Position < b.Position {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Address, b.Address)
	})
}

func TestRPCSourceDiffsHeights(t *testing.T) {
	fc := &fakeChain{validators: map[uint64]map[string]uint64{
		10: {addrA: 100},
		11: {addrA: 100, addrB: 50},
		12: {addrA: 150, addrB: 50},
		13: {addrB: 50},
	}}
	mirror := &recordingMirror{}
	src := NewRPC(zaptest.NewLogger(t), fc, Stake, RPCOpts{MaxConcurrency: 2, ChunkSize: 2, Mirror: mirror})
	defer src.Close()

	events, err := src.Events(context.Background(), twab.Interval{Start: 10, End: 14})
	require.NoError(t, err)
	sortEvents(events)

	want := []struct {
		addr string
		pos  uint64
		val  int64
	}{
		{addrA, 10, 100},
		{addrB, 11, 50},
		{addrA, 12, 150},
		{addrA, 13, 0},
	}
	require.Len(t, events, len(want))
	for i, w := range want {
		assert.Equal(t, w.addr, events[i].Address)
		assert.Equal(t, w.pos, events[i].Position)
		assert.Equal(t, 0, events[i].Value.Cmp(big.NewInt(w.val)))
	}
	assert.Len(t, mirror.rows, len(want))
	assert.Equal(t, 4, fc.calls)
}

func TestRPCSourceSampling(t *testing.T) {
	fc := &fakeChain{validators: map[uint64]map[string]uint64{
		1: {addrA: 1}, 3: {addrA: 2}, 5: {addrA: 2},
	}}
	src := NewRPC(zaptest.NewLogger(t), fc, Stake, RPCOpts{Step: 2})
	defer src.Close()

	events, err := src.Events(context.Background(), twab.Interval{Start: 1, End: 6})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 3, fc.calls)
}

func TestRPCSourceAccounts(t *testing.T) {
	fc := &fakeChain{accounts: map[uint64]map[string]uint64{
		1: {addrA: 5, addrB: 0},
	}}
	src := NewRPC(zaptest.NewLogger(t), fc, Balance, RPCOpts{})
	defer src.Close()

	events, err := src.Events(context.Background(), twab.Interval{Start: 1, End: 2})
	require.NoError(t, err)
	require.Len(t, events, 1, "zero balances are not part of the baseline")
	assert.Equal(t, addrA, events[0].Address)
}

func TestRPCSourceFailure(t *testing.T) {
	fc := &fakeChain{validators: map[uint64]map[string]uint64{}, failAt: 3}
	src := NewRPC(zaptest.NewLogger(t), fc, Stake, RPCOpts{})
	defer src.Close()

	_, err := src.Events(context.Background(), twab.Interval{Start: 1, End: 6})
	require.Error(t, err)

	_, err = src.Events(context.Background(), twab.Interval{Start: 6, End: 6})
	assert.ErrorIs(t, err, twab.ErrInvalidInterval)
}

func TestRPCSourceRefusesHeightZero(t *testing.T) {
	// the node answers height 0 with the head state
	fc := &fakeChain{validators: map[uint64]map[string]uint64{
		0: {addrA: 1000},
		1: {addrB: 5},
		2: {addrB: 5},
	}}
	src := NewRPC(zaptest.NewLogger(t), fc, Stake, RPCOpts{})
	defer src.Close()

	_, err := src.Events(context.Background(), twab.Interval{Start: 0, End: 3})
	assert.ErrorIs(t, err, ErrHeightZero)
	assert.Zero(t, fc.calls)

	events, err := src.Events(context.Background(), twab.Interval{Start: 1, End: 3})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, addrB, events[0].Address)
}

type fakeLedger struct {
	base, changes []chain.Holding
	gotFrom       uint64
	gotTo         uint64
}

func (l *fakeLedger) Baseline(_ context.Context, table chain.Table, height uint64) ([]chain.Holding, error) {
	if table != chain.Accounts {
		return nil, errors.New("wrong table")
	}
	l.gotFrom = height
	return l.base, nil
}

func (l *fakeLedger) Changes(_ context.Context, _ chain.Table, from, to uint64) ([]chain.Holding, error) {
	l.gotTo = to
	return l.changes, nil
}

func TestClickHouseSource(t *testing.T) {
	l := &fakeLedger{
		base:    []chain.Holding{{Address: addrA, Amount: 7, Height: 3}},
		changes: []chain.Holding{{Address: addrA, Amount: 9, Height: 12}},
	}
	src := NewClickHouse(l, Balance)

	events, err := src.Events(context.Background(), twab.Interval{Start: 10, End: 20})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(10), l.gotFrom)
	assert.Equal(t, uint64(20), l.gotTo)
	assert.Equal(t, uint64(3), events[0].Position)
	assert.Equal(t, "9", events[1].Value.String())

	avg, err := twab.Average(events, twab.Interval{Start: 10, End: 20})
	require.NoError(t, err)
	assert.Equal(t, "8", avg.String())
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	body := `[
		{"address":"0x` + addrA + `","position":0,"value":"100"},
		{"address":"` + addrB + `","position":5,"value":"340282366920938463463374607431768211455"},
		{"address":"` + addrB + `","position":50,"value":"1"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	events, err := NewFile(path).Events(context.Background(), twab.Interval{Start: 0, End: 10})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "340282366920938463463374607431768211455", events[1].Value.String())

	_, err = NewFile(filepath.Join(t.TempDir(), "missing.json")).Events(context.Background(), twab.Interval{Start: 0, End: 1})
	assert.Error(t, err)
}

func TestParseSubject(t *testing.T) {
	s, err := ParseSubject("")
	require.NoError(t, err)
	assert.Equal(t, Stake, s)
	s, err = ParseSubject("Balance")
	require.NoError(t, err)
	assert.Equal(t, chain.Accounts, s.Table())
	_, err = ParseSubject("nope")
	assert.Error(t, err)
}
