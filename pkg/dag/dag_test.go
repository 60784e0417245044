package dag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/dag"
	"github.com/edo-build/edo/pkg/edoerr"
)

// linear: c depends on b depends on a.
func linearDepends(ctx context.Context, a addr.Addr) ([]addr.Addr, error) {
	switch a.String() {
	case "//c":
		return []addr.Addr{addr.New("//b")}, nil
	case "//b":
		return []addr.Addr{addr.New("//a")}, nil
	default:
		return nil, nil
	}
}

func TestAddBuildsLinearChainAndLeafIsRoot(t *testing.T) {
	g := dag.New()
	require.NoError(t, g.Add(context.Background(), addr.New("//c"), linearDepends))
	require.NoError(t, g.DetectCycle())

	leaves, err := g.Leaves(addr.New("//c"))
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "//a", leaves[0].String())
}

func TestDiamondLeavesAreSingleRoot(t *testing.T) {
	// d depends on b and c, both depend on a.
	depends := func(ctx context.Context, a addr.Addr) ([]addr.Addr, error) {
		switch a.String() {
		case "//d":
			return []addr.Addr{addr.New("//b"), addr.New("//c")}, nil
		case "//b", "//c":
			return []addr.Addr{addr.New("//a")}, nil
		default:
			return nil, nil
		}
	}
	g := dag.New()
	require.NoError(t, g.Add(context.Background(), addr.New("//d"), depends))

	leaves, err := g.Leaves(addr.New("//d"))
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "//a", leaves[0].String())
}

func TestDetectCycleReportsCycleKind(t *testing.T) {
	cyclic := func(ctx context.Context, a addr.Addr) ([]addr.Addr, error) {
		switch a.String() {
		case "//x":
			return []addr.Addr{addr.New("//y")}, nil
		case "//y":
			return []addr.Addr{addr.New("//x")}, nil
		default:
			return nil, nil
		}
	}
	g := dag.New()
	require.NoError(t, g.Add(context.Background(), addr.New("//x"), cyclic))

	err := g.DetectCycle()
	require.Error(t, err)
	assert.True(t, edoerr.IsCycle(err))
}

func TestStateMachineRejectsIllegalTransitions(t *testing.T) {
	g := dag.New()
	require.NoError(t, g.Add(context.Background(), addr.New("//a"), linearDepends))
	idx, ok := g.Index(addr.New("//a"))
	require.True(t, ok)

	assert.Error(t, g.Transition(idx, dag.StateRunning)) // Pending -> Running illegal
	require.NoError(t, g.Transition(idx, dag.StateQueued))
	require.NoError(t, g.Transition(idx, dag.StateRunning))
	require.NoError(t, g.Transition(idx, dag.StateSuccess))
	assert.Equal(t, dag.StateSuccess, g.State(idx))
}

func TestAllPredecessorsSucceededGatesChild(t *testing.T) {
	g := dag.New()
	require.NoError(t, g.Add(context.Background(), addr.New("//b"), linearDepends))

	bi, _ := g.Index(addr.New("//b"))
	ai, _ := g.Index(addr.New("//a"))

	assert.False(t, g.AllPredecessorsSucceeded(bi))

	require.NoError(t, g.Transition(ai, dag.StateQueued))
	require.NoError(t, g.Transition(ai, dag.StateRunning))
	require.NoError(t, g.Transition(ai, dag.StateSuccess))

	assert.True(t, g.AllPredecessorsSucceeded(bi))
}
