package twab_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/canopy-network/stakedrop/pkg/twab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func ev(addr string, pos, tie uint64, value int64) twab.ChangeEvent {
	return twab.ChangeEvent{Address: addr, Position: pos, Tiebreak: tie, Value: big.NewInt(value)}
}

func totalWeight(segments []twab.StepSegment) uint64 {
	sum := new(big.Int)
	for _, s := range segments {
		sum.Add(sum, s.Weight)
	}
	return sum.Uint64()
}

func mustInterval(t *testing.T, start, end uint64) twab.Interval {
	t.Helper()
	iv, err := twab.NewInterval(start, end)
	require.NoError(t, err)
	return iv
}

func TestNormalizeGroupsSortsAndKeepsHighestTiebreak(t *testing.T) {
	grouped, err := twab.Normalize([]twab.ChangeEvent{
		ev("0x"+strings.ToUpper(addrA), 20, 0, 300),
		ev(addrB, 5, 0, 50),
		ev(addrA, 10, 2, 150),
		ev(addrA, 10, 1, 100),
		ev(addrA, 10, 7, 175),
	})
	require.NoError(t, err)
	require.Len(t, grouped, 2)

	a := grouped[addrA]
	require.Len(t, a, 2)
	assert.Equal(t, uint64(10), a[0].Position)
	assert.Equal(t, uint64(7), a[0].Tiebreak)
	assert.Equal(t, int64(175), a[0].Value.Int64())
	assert.Equal(t, uint64(20), a[1].Position)
	assert.Equal(t, addrA, a[1].Address, "addresses are canonicalised")

	require.Len(t, grouped[addrB], 1)
}

func TestNormalizeDoesNotReorderInput(t *testing.T) {
	in := []twab.ChangeEvent{ev(addrA, 30, 0, 1), ev(addrA, 10, 0, 2)}
	_, err := twab.Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), in[0].Position)
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := map[string]twab.ChangeEvent{
		"negative value": ev(addrA, 1, 0, -1),
		"nil value":      {Address: addrA, Position: 1},
		"short address":  ev("abcd", 1, 0, 1),
		"non hex":        ev(strings.Repeat("z", 40), 1, 0, 1),
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := twab.Normalize([]twab.ChangeEvent{ev(addrB, 1, 0, 1), e})
			var malformed *twab.MalformedEventError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, uint64(1), malformed.Position)
		})
	}
}

func TestNewIntervalRejectsEmpty(t *testing.T) {
	_, err := twab.NewInterval(10, 10)
	require.ErrorIs(t, err, twab.ErrInvalidInterval)
	_, err = twab.NewInterval(11, 10)
	require.ErrorIs(t, err, twab.ErrInvalidInterval)
}

func TestBuildStepsFirstEventInsideInterval(t *testing.T) {
	iv := mustInterval(t, 0, 30)
	segments, ok := twab.BuildSteps([]twab.ChangeEvent{ev(addrA, 10, 0, 100), ev(addrA, 20, 0, 300)}, iv)
	require.True(t, ok)
	require.Len(t, segments, 3)

	want := [][2]int64{{10, 0}, {10, 100}, {10, 300}}
	for i, w := range want {
		assert.Equal(t, w[0], segments[i].Weight.Int64(), "weight %d", i)
		assert.Equal(t, w[1], segments[i].Value.Int64(), "value %d", i)
	}

	avg, err := twab.WeightedAverage(segments)
	require.NoError(t, err)
	assert.Equal(t, int64(133), avg.Int64())
}

func TestBuildStepsSingleEventBeforeInterval(t *testing.T) {
	iv := mustInterval(t, 10, 20)
	segments, ok := twab.BuildSteps([]twab.ChangeEvent{ev(addrB, 5, 0, 50)}, iv)
	require.True(t, ok)
	require.Len(t, segments, 1)
	assert.Equal(t, int64(10), segments[0].Weight.Int64())

	avg, err := twab.Average([]twab.ChangeEvent{ev(addrB, 5, 0, 50)}, iv)
	require.NoError(t, err)
	assert.Equal(t, int64(50), avg.Int64())
}

// A lone event inside the window still counts for the whole width.
func TestBuildStepsSingleEventInsideIntervalSpansFullWidth(t *testing.T) {
	iv := mustInterval(t, 0, 100)
	avg, err := twab.Average([]twab.ChangeEvent{ev(addrA, 90, 0, 1000)}, iv)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), avg.Int64())
}

func TestBuildStepsNormalCase(t *testing.T) {
	iv := mustInterval(t, 100, 200)
	events := []twab.ChangeEvent{
		ev(addrA, 10, 0, 1000),
		ev(addrA, 50, 0, 400),
		ev(addrA, 150, 0, 800),
		ev(addrA, 180, 0, 0),
		ev(addrA, 250, 0, 99999),
	}
	segments, ok := twab.BuildSteps(events, iv)
	require.True(t, ok)
	assert.Equal(t, iv.Width(), totalWeight(segments))

	avg, err := twab.WeightedAverage(segments)
	require.NoError(t, err)
	// 400*50 + 800*30 + 0*20 = 44000 over 100
	assert.Equal(t, int64(440), avg.Int64())
}

func TestBuildStepsEventAtStartReplacesVirtualSeed(t *testing.T) {
	iv := mustInterval(t, 10, 20)
	segments, ok := twab.BuildSteps([]twab.ChangeEvent{ev(addrA, 10, 0, 70), ev(addrA, 15, 0, 30)}, iv)
	require.True(t, ok)
	require.Len(t, segments, 2)
	assert.Equal(t, int64(70), segments[0].Value.Int64())
	assert.Equal(t, uint64(10), totalWeight(segments))
}

func TestBuildStepsNoEventBeforeEnd(t *testing.T) {
	iv := mustInterval(t, 10, 20)
	_, ok := twab.BuildSteps([]twab.ChangeEvent{ev(addrA, 20, 0, 5), ev(addrA, 40, 0, 9)}, iv)
	assert.False(t, ok)

	avg, err := twab.Average([]twab.ChangeEvent{ev(addrA, 20, 0, 5)}, iv)
	require.NoError(t, err)
	assert.Zero(t, avg.Sign())
}

func TestStepWeightsAlwaysSumToWidth(t *testing.T) {
	events := []twab.ChangeEvent{
		ev(addrA, 3, 0, 10), ev(addrA, 7, 0, 20), ev(addrA, 8, 0, 30),
		ev(addrA, 15, 0, 40), ev(addrA, 21, 0, 50), ev(addrA, 34, 0, 60),
	}
	for start := uint64(0); start < 40; start++ {
		for end := start + 1; end <= 40; end++ {
			iv := mustInterval(t, start, end)
			segments, ok := twab.BuildSteps(events, iv)
			if end <= 3 {
				assert.False(t, ok, "[%d,%d)", start, end)
				continue
			}
			require.True(t, ok, "[%d,%d)", start, end)
			assert.Equal(t, end-start, totalWeight(segments), "[%d,%d)", start, end)
		}
	}
}

func TestWeightedAverageBeyond64Bits(t *testing.T) {
	huge, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	require.True(t, ok)
	segments := []twab.StepSegment{
		{Weight: big.NewInt(1), Value: huge},
		{Weight: big.NewInt(1), Value: new(big.Int)},
	}
	avg, err := twab.WeightedAverage(segments)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Rsh(huge, 1), avg)
}

func TestWeightedAverageZeroWeight(t *testing.T) {
	_, err := twab.WeightedAverage(nil)
	require.ErrorIs(t, err, twab.ErrDivisionByZero)
}

func TestComputeFromEvents(t *testing.T) {
	iv := mustInterval(t, 10, 20)
	results, err := twab.ComputeFromEvents(context.Background(), []twab.ChangeEvent{
		ev(addrB, 5, 0, 50),
		ev(addrA, 25, 0, 10),
	}, iv, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, addrA, results[0].Address)
	assert.Zero(t, results[0].Average.Sign())
	assert.Equal(t, addrB, results[1].Address)
	assert.Equal(t, int64(50), results[1].Average.Int64())
}

func TestComputeAveragesRejectsInvalidInterval(t *testing.T) {
	_, err := twab.ComputeAverages(context.Background(), nil, twab.Interval{Start: 5, End: 5}, 1)
	require.ErrorIs(t, err, twab.ErrInvalidInterval)
}

func TestComputeAveragesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	grouped := map[string][]twab.ChangeEvent{addrA: {ev(addrA, 1, 0, 1)}}
	_, err := twab.ComputeAverages(ctx, grouped, twab.Interval{Start: 0, End: 10}, 1)
	require.Error(t, err)
}
