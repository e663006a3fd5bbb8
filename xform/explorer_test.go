package xform

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/memo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newExplorer(t *testing.T, m *memo.Memo, cfg Config) *Explorer {
	t.Helper()
	e, err := NewExplorer(m, cfg)
	require.NoError(t, err)
	return e
}

func TestExploreFixpoint(t *testing.T) {
	m := memo.New(testCatalog(t))
	root := m.Memorize(mustParse(t, "(Join (Scan 0) (Scan 1) (Eq (Col 1) (Col 3)))"))

	cfg := DefaultConfig()
	cfg.CheckInvariants = true
	e := newExplorer(t, m, cfg)
	core, logs := observer.New(zapcore.DebugLevel)
	e.SetLogger(zap.New(core))

	res, err := e.Explore(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{
		StopReason:   Fixpoint,
		Sweeps:       2,
		Applications: 2,
		Added:        1,
		Groups:       8,
	}, res)
	require.Equal(t, "fixpoint after 2 sweeps: 2 applications, 1 added, 0 rejected, 8 groups", res.String())

	exp := `
memo (8 groups)
 |- G1: (Scan 0)
 |- G2: (Scan 1)
 |- G3: (Col 1)
 |- G4: (Col 3)
 |- G5: (Eq G3 G4)
 |- G6: (Join G1 G2 G5) (Join commuted G2 G1 G8)
 |- G7: (Col 4)
 |- G8: (Eq G7 G3)
`
	require.Equal(t, strings.TrimLeft(exp, "\n"), m.String())
	require.Equal(t, 1, logs.FilterMessage("applied rule").Len())
	require.Equal(t, 2, logs.FilterMessage("finished sweep").Len())
	require.Equal(t, 1, logs.FilterMessage("exploration finished").Len())

	// The extracted plan is still the original one.
	require.Equal(t, "(Join (Scan 0) (Scan 1) (Eq (Col 1) (Col 3)))", m.Extract(root).Format())

	// Exploring again finds nothing new.
	res, err = e.Explore(context.Background())
	require.NoError(t, err)
	require.Equal(t, Fixpoint, res.StopReason)
	require.Equal(t, 1, res.Sweeps)
	require.Equal(t, 0, res.Applications)
}

func TestExploreBudget(t *testing.T) {
	t.Run("max-sweeps", func(t *testing.T) {
		m, root := twoJoins(t)
		cfg := DefaultConfig()
		cfg.MaxSweeps = 1
		res, err := newExplorer(t, m, cfg).Explore(context.Background())
		require.NoError(t, err)
		require.Equal(t, Result{
			StopReason:   MaxSweepsReached,
			Sweeps:       1,
			Applications: 3,
			Added:        3,
			Groups:       17,
		}, res)
		require.Equal(t,
			"G11 [cols=6]: (Join G6 G7 G10) (Join commuted G7 G6 G14) (Join G1 G17 G5)",
			m.FormatGroup(root))
		require.Equal(t, "G17 [cols=4]: (Join G2 G7 G16)", m.FormatGroup(17))
		requireEquivalent(t, m)
		require.NoError(t, m.CheckInvariants())
	})

	t.Run("max-applications", func(t *testing.T) {
		m, _ := twoJoins(t)
		cfg := DefaultConfig()
		cfg.MaxApplications = 2
		res, err := newExplorer(t, m, cfg).Explore(context.Background())
		require.NoError(t, err)
		require.Equal(t, MaxApplicationsReached, res.StopReason)
		require.Equal(t, 2, res.Applications)
		require.Equal(t, 1, res.Sweeps)
	})

	t.Run("max-groups", func(t *testing.T) {
		m, _ := twoJoins(t)
		cfg := DefaultConfig()
		cfg.MaxGroups = 12
		res, err := newExplorer(t, m, cfg).Explore(context.Background())
		require.NoError(t, err)
		require.Equal(t, MaxGroupsReached, res.StopReason)
		require.Equal(t, 1, res.Applications)
		require.Equal(t, 12, res.Groups)
	})

	t.Run("canceled", func(t *testing.T) {
		m, _ := twoJoins(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := newExplorer(t, m, DefaultConfig()).Explore(ctx)
		require.NoError(t, err)
		require.Equal(t, Canceled, res.StopReason)
		require.Equal(t, 0, res.Applications)
		require.Equal(t, 11, m.NumGroups())
	})

	t.Run("three-joins", func(t *testing.T) {
		m := memo.New(testCatalog(t))
		root := m.Memorize(mustParse(t, `
(Join
  (Join
    (Join (Scan 0) (Scan 1) (Eq (Col 1) (Col 3)))
    (Scan 2)
    (Eq (Col 4) (Col 5)))
  (Scan 3)
  (Eq (Col 5) (Col 6)))`))
		cfg := DefaultConfig()
		cfg.MaxApplications = 200
		cfg.CheckInvariants = true
		res, err := newExplorer(t, m, cfg).Explore(context.Background())
		require.NoError(t, err)
		require.NotEqual(t, Canceled, res.StopReason)
		require.Greater(t, res.Added, 0)
		require.Greater(t, len(m.Members(root)), 1)
		require.Equal(t, 0, res.Rejected)
	})
}

func TestExploreError(t *testing.T) {
	m, _ := twoJoins(t)
	e := newExplorer(t, m, DefaultConfig())
	// A broken rule that returns a bare group reference.
	e.rules = []Rule{{
		Name:    "Broken",
		Pattern: CommuteJoin.Pattern,
		Apply:   func(b *Binding) *Binding { return b.Child(0) },
	}}
	_, err := e.Explore(context.Background())
	require.Error(t, err)
	require.True(t, errors.IsAssertionFailure(err))
}

func TestExploreRuleSet(t *testing.T) {
	m, root := twoJoins(t)
	cfg := DefaultConfig()
	cfg.Rules = []string{"AssociateJoin"}
	res, err := newExplorer(t, m, cfg).Explore(context.Background())
	require.NoError(t, err)
	require.Equal(t, Fixpoint, res.StopReason)
	require.Equal(t,
		"G11 [cols=6]: (Join G6 G7 G10) (Join G1 G14 G5)",
		m.FormatGroup(root))

	cfg.Rules = []string{"PushFilter"}
	_, err = NewExplorer(m, cfg)
	require.Error(t, err)
}
