package clickhouse

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/canopy-network/stakedrop/pkg/retry"
	"github.com/stretchr/testify/assert"
)

func TestExtractReplicas(t *testing.T) {
	tests := []struct {
		dsn  string
		want []string
	}{
		{"clickhouse://localhost:9000?sslmode=disable", []string{"localhost:9000"}},
		{"clickhouse://u:p@h1:9000,h2:9000/db", []string{"h1:9000", "h2:9000"}},
		{"tcp://h1:9000, h2:9000", []string{"h1:9000", "h2:9000"}},
		{"clickhouse://", []string{"localhost:9000"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractReplicas(tt.dsn), tt.dsn)
	}
}

func TestExtractCredentials(t *testing.T) {
	u, p := extractCredentials("clickhouse://reader:s3cret@h:9000/db")
	assert.Equal(t, "reader", u)
	assert.Equal(t, "s3cret", p)

	u, p = extractCredentials("clickhouse://reader@h:9000")
	assert.Equal(t, "reader", u)
	assert.Empty(t, p)

	u, p = extractCredentials("clickhouse://h:9000")
	assert.Equal(t, "default", u)
	assert.Empty(t, p)
}

func TestConnOpenStrategy(t *testing.T) {
	assert.Equal(t, clickhouse.ConnOpenRoundRobin, parseConnOpenStrategy(" Round_Robin "))
	assert.Equal(t, clickhouse.ConnOpenRandom, parseConnOpenStrategy("random"))
	assert.Equal(t, clickhouse.ConnOpenInOrder, parseConnOpenStrategy("bogus"))
	assert.Equal(t, "round_robin", formatConnOpenStrategy(clickhouse.ConnOpenRoundRobin))
}

func TestPoolConfigForComponent(t *testing.T) {
	t.Setenv("CLICKHOUSE_MAX_OPEN_CONNS", "3")
	t.Setenv("CLICKHOUSE_MAX_IDLE_CONNS", "9")

	worker := PoolConfigForComponent("worker")
	assert.Equal(t, 10, worker.MaxOpenConns, "known components ignore env")
	assert.Equal(t, 5*time.Minute, worker.ConnMaxLifetime)

	other := PoolConfigForComponent("other")
	assert.Equal(t, 3, other.MaxOpenConns)
	assert.Equal(t, 3, other.MaxIdleConns, "idle is capped at open")
	assert.Equal(t, "other", other.Component)
}

func TestEngine(t *testing.T) {
	c := Client{}
	assert.Equal(t, "ReplacingMergeTree(height)", c.Engine(ReplacingMergeTree, "height"))
	c.Cluster = "stakedrop"
	assert.Equal(t, "ReplicatedReplacingMergeTree(height)", c.Engine(ReplacingMergeTree, "height"))
	assert.Equal(t, "ON CLUSTER stakedrop", c.OnCluster())
	assert.Equal(t, "chain_1_a", SanitizeName("Chain-1.A"))
}

func TestDialError(t *testing.T) {
	auth := fmt.Errorf("failed to ping clickhouse: %w", &clickhouse.Exception{Code: 516, Name: "DB::Exception"})
	assert.True(t, retry.IsPermanent(dialError(auth)))
	assert.True(t, retry.IsPermanent(dialError(&clickhouse.Exception{Code: 81})))
	assert.False(t, retry.IsPermanent(dialError(&clickhouse.Exception{Code: 159})), "timeouts are retried")
	assert.False(t, retry.IsPermanent(dialError(errors.New("dial tcp: connection refused"))))
}
