package xform

import (
	"context"
	"fmt"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/memo"
	"github.com/petermattis/memotoy/opt"
	"go.uber.org/zap"
)

// StopReason describes why an exploration pass ended.
type StopReason uint8

const (
	// Fixpoint means a full sweep over the memo changed nothing: every rule has
	// been applied to every member.
	Fixpoint StopReason = iota
	MaxSweepsReached
	MaxApplicationsReached
	MaxGroupsReached
	TimedOut
	Canceled
)

var stopReasonNames = [...]string{
	Fixpoint:               "fixpoint",
	MaxSweepsReached:       "max-sweeps",
	MaxApplicationsReached: "max-applications",
	MaxGroupsReached:       "max-groups",
	TimedOut:               "timeout",
	Canceled:               "canceled",
}

func (r StopReason) String() string {
	if int(r) < len(stopReasonNames) {
		return stopReasonNames[r]
	}
	return fmt.Sprintf("StopReason(%d)", r)
}

// Result summarizes an exploration pass.
type Result struct {
	StopReason StopReason
	// Sweeps is the number of sweeps started.
	Sweeps int
	// Applications counts rule applications that produced an expression.
	Applications int
	// Added counts applications that changed the memo.
	Added int
	// Rejected counts applications whose expression would have made the memo
	// cyclic.
	Rejected int
	// Groups is the number of groups in the memo when exploration stopped.
	Groups int
}

func (r Result) String() string {
	return fmt.Sprintf("%s after %d sweeps: %d applications, %d added, %d rejected, %d groups",
		r.StopReason, r.Sweeps, r.Applications, r.Added, r.Rejected, r.Groups)
}

// exploreKey identifies a member and a rule applied to it.
type exploreKey struct {
	expr memo.Expr
	rule int
}

// Explorer adds alternatives to the memo by applying exploration rules to its
// members until nothing changes or the budget runs out. Every sweep visits
// each group in ID order and each member in insertion order. A member is
// matched against a rule when it has not been before, or when a group its
// pattern reaches into has changed since.
//
// An Explorer is not safe for concurrent use, and the memo must not be
// modified by anything else while Explore runs.
type Explorer struct {
	memo   *memo.Memo
	cfg    Config
	rules  []Rule
	logger *zap.Logger

	// explored records the memo version at which each member was last matched
	// against each rule.
	explored map[exploreKey]uint64

	// dirty holds the groups that changed during the current sweep.
	dirty *bitset.BitSet
}

// NewExplorer returns an explorer for the memo. The configuration must be
// valid.
func NewExplorer(m *memo.Memo, cfg Config) (*Explorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Explorer{
		memo:     m,
		cfg:      cfg,
		rules:    cfg.rules(),
		logger:   zap.NewNop(),
		explored: make(map[exploreKey]uint64),
		dirty:    bitset.New(0),
	}, nil
}

// SetLogger sets the logger used to trace rule applications.
func (e *Explorer) SetLogger(logger *zap.Logger) {
	e.logger = logger
}

// Explore runs the rules until a sweep adds nothing or a budget is exhausted.
// Exhausting a budget, the timeout or the context is reported in the result
// and is not an error. An error is returned only if an internal invariant was
// violated, in which case the memo must be discarded. Explore may be called
// again to continue with a fresh budget.
func (e *Explorer) Explore(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
			e.logger.Error("exploration failed", zap.Error(err))
		}
	}()

	var deadline time.Time
	if e.cfg.Timeout > 0 {
		deadline = time.Now().Add(e.cfg.Timeout)
	}
	s := &sweepState{ctx: ctx, deadline: deadline}

	for {
		if e.cfg.MaxSweeps > 0 && res.Sweeps >= e.cfg.MaxSweeps {
			res.StopReason = MaxSweepsReached
			break
		}
		res.Sweeps++
		before := e.memo.Version()
		e.dirty.ClearAll()

		stop, ok := e.sweep(s, &res)
		if e.cfg.CheckInvariants {
			if err := e.memo.CheckInvariants(); err != nil {
				return res, errors.Wrapf(err, "after sweep %d", res.Sweeps)
			}
		}
		e.logger.Debug("finished sweep",
			zap.Int("sweep", res.Sweeps),
			zap.Int("applications", res.Applications),
			zap.Uint("changed-groups", e.dirty.Count()),
			zap.Int("groups", e.memo.NumGroups()))
		if ok {
			res.StopReason = stop
			break
		}
		if e.memo.Version() == before {
			res.StopReason = Fixpoint
			break
		}
	}

	res.Groups = e.memo.NumGroups()
	e.logger.Info("exploration finished", zap.Stringer("result", res))
	return res, nil
}

type sweepState struct {
	ctx      context.Context
	deadline time.Time
}

// checkBudget returns the reason to stop exploring, if any.
func (e *Explorer) checkBudget(s *sweepState, res *Result) (StopReason, bool) {
	if e.cfg.MaxApplications > 0 && res.Applications >= e.cfg.MaxApplications {
		return MaxApplicationsReached, true
	}
	if e.cfg.MaxGroups > 0 && e.memo.NumGroups() >= e.cfg.MaxGroups {
		return MaxGroupsReached, true
	}
	if s.ctx.Err() != nil {
		return Canceled, true
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return TimedOut, true
	}
	return 0, false
}

// sweep visits every group once. It returns true if a budget ran out.
func (e *Explorer) sweep(s *sweepState, res *Result) (StopReason, bool) {
	// Groups created during the sweep are visited by the next one.
	for _, group := range e.memo.Groups() {
		if e.memo.Find(group) != group {
			// Merged into a lower group earlier in this sweep.
			continue
		}
		for _, member := range e.memo.Members(group) {
			for ri := range e.rules {
				if stop, ok := e.checkBudget(s, res); ok {
					return stop, true
				}
				e.exploreMember(group, member, ri, res)
			}
		}
	}
	return 0, false
}

// exploreMember applies a rule to every binding of the member.
func (e *Explorer) exploreMember(group memo.GroupID, member memo.Expr, ri int, res *Result) {
	rule := &e.rules[ri]
	if member.Op() != rule.Pattern.Op {
		return
	}
	key := exploreKey{expr: member, rule: ri}
	if last, ok := e.explored[key]; ok && dependencyEpoch(e.memo, member, rule.Pattern) <= last {
		return
	}

	for _, b := range Bind(e.memo, group, member, rule.Pattern) {
		out := rule.Apply(b)
		if out == nil {
			continue
		}
		res.Applications++
		before := e.memo.Version()
		got, ok := e.memo.AddExprToGroup(e.memo.Find(group), bindingExpr(e.memo, out))
		if !ok {
			res.Rejected++
			continue
		}
		if e.memo.Version() == before {
			continue
		}
		res.Added++
		e.dirty.Set(uint(got))
		e.logger.Debug("applied rule",
			zap.String("rule", rule.Name),
			zap.Stringer("group", got),
			zap.Stringer("input", b),
			zap.Stringer("output", out))
	}
	e.explored[key] = e.memo.Version()
}
