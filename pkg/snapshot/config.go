package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/canopy-network/stakedrop/pkg/source"
	"github.com/canopy-network/stakedrop/pkg/utils"
)

// Source kinds.
const (
	SourceClickHouse = "clickhouse"
	SourceRPC        = "rpc"
	SourceFile       = "file"
)

// Block time cache tiers placed behind the in-memory cache.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

type Config struct {
	ChainID     uint64
	Subject     source.Subject
	Source      string
	EventsFile  string
	Dropped     string
	StartDate   *time.Time
	EndDate     *time.Time
	StartHeight uint64
	EndHeight   uint64
	Cron        string
	// MaxConcurrency bounds outstanding RPC requests.
	MaxConcurrency int
	// Workers bounds concurrent per-address averaging tasks.
	Workers int
	// SampleStep makes the RPC source read every n-th height.
	SampleStep uint64
	// Mirror writes RPC derived change rows into the ClickHouse ledger.
	Mirror bool
	// LedgerSyncCron, when set, schedules the ledger sync that keeps ClickHouse at the chain head.
	LedgerSyncCron string
	BlockTimeCache string
	Output         string
	Persist        bool
}

func ConfigFromEnv() (Config, error) {
	subject, err := source.ParseSubject(utils.Env("SNAPSHOT_BALANCE", string(source.Stake)))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		ChainID:        utils.EnvUint64("CHAIN_ID", 0),
		Subject:        subject,
		Source:         strings.ToLower(utils.Env("SNAPSHOT_SOURCE", SourceClickHouse)),
		EventsFile:     utils.Env("SNAPSHOT_EVENTS_FILE", ""),
		Dropped:        utils.Env("SNAPSHOT_DROPPED_AMOUNT", ""),
		StartHeight:    utils.EnvUint64("SNAPSHOT_START_HEIGHT", 1),
		EndHeight:      utils.EnvUint64("SNAPSHOT_END_HEIGHT", 0),
		Cron:           utils.Env("SNAPSHOT_CRON", ""),
		MaxConcurrency: utils.EnvInt("SNAPSHOT_MAX_CONCURRENCY", 8),
		Workers:        utils.EnvInt("SNAPSHOT_WORKERS", 16),
		SampleStep:     utils.EnvUint64("SNAPSHOT_SAMPLE_STEP", 1),
		Mirror:         utils.EnvBool("SNAPSHOT_MIRROR", false),
		LedgerSyncCron: utils.Env("LEDGER_SYNC_CRON", ""),
		BlockTimeCache: strings.ToLower(utils.Env("BLOCKTIME_CACHE", CacheMemory)),
		Output:         utils.Env("SNAPSHOT_OUTPUT", ""),
		Persist:        utils.EnvBool("SNAPSHOT_PERSIST", false),
	}

	if cfg.ChainID == 0 {
		return Config{}, fmt.Errorf("CHAIN_ID is required")
	}
	switch cfg.Source {
	case SourceClickHouse, SourceRPC:
	case SourceFile:
		if cfg.EventsFile == "" {
			return Config{}, fmt.Errorf("SNAPSHOT_EVENTS_FILE is required for the file source")
		}
	default:
		return Config{}, fmt.Errorf("unknown SNAPSHOT_SOURCE %q", cfg.Source)
	}
	switch cfg.BlockTimeCache {
	case CacheMemory, CacheRedis, CachePostgres:
	default:
		return Config{}, fmt.Errorf("unknown BLOCKTIME_CACHE %q", cfg.BlockTimeCache)
	}

	if cfg.StartDate, err = envTime("SNAPSHOT_START_DATE"); err != nil {
		return Config{}, err
	}
	if cfg.EndDate, err = envTime("SNAPSHOT_END_DATE"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envTime(key string) (*time.Time, error) {
	v := utils.Env(key, "")
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	t = t.UTC()
	return &t, nil
}

// Request turns the configured window into a Request. Explicit dates win over heights, and
// heights over the cron period ending at or before now.
func (c Config) Request(now time.Time) (Request, error) {
	req := Request{ChainID: c.ChainID, Subject: c.Subject, Dropped: c.Dropped}
	switch {
	case c.StartDate != nil && c.EndDate != nil:
		req.StartDate, req.EndDate = c.StartDate, c.EndDate
	case c.EndHeight > 0:
		req.StartHeight, req.EndHeight = c.StartHeight, c.EndHeight
	case c.Cron != "":
		start, end, err := Window(c.Cron, now)
		if err != nil {
			return Request{}, err
		}
		req.StartDate, req.EndDate = &start, &end
	}
	return req, req.Validate()
}
