package scp

import (
	"time"

	"golang.org/x/exp/slices"

	"github.com/kbacha/fbagreement/common/types"
	"github.com/kbacha/fbagreement/log"
	"github.com/kbacha/fbagreement/metrics"
)

// Validity is the outcome of ProcessEnvelope (spec.md §4.4 entry point).
type Validity uint8

const (
	// Valid means the envelope was accepted (possibly as a no-op, if it
	// was not newer than what's already recorded for its sender).
	Valid Validity = iota
	// Invalid means the envelope failed sanity checks and was discarded
	// without touching state (spec.md §7 InvalidStatement: the session
	// is not dropped for this).
	Invalid
)

// Option configures a Slot at construction time.
type Option func(*Slot)

// WithLogger attaches a component logger.
func WithLogger(l log.Log) Option {
	return func(s *Slot) { s.logger = l }
}

// WithBallotTimerBase overrides the flat ballot timer interval (default
// ballotTimerBase).
func WithBallotTimerBase(d time.Duration) Option {
	return func(s *Slot) { s.timerBase = d }
}

// WithQuorumSetHash attaches the hash of the local node's own quorum set,
// stamped onto statements this slot emits (spec.md §4.4
// getCompanionQuorumSetHashFromStatement). Hashing itself is an external
// collaborator (spec.md §1); the hash is computed elsewhere and handed
// in.
func WithQuorumSetHash(h types.Hash32) Option {
	return func(s *Slot) { s.selfQSetHash = h }
}

// Slot owns the ballot-protocol state machine for a single slot index
// (spec.md §2 "Slot coordinator", §4.4).
type Slot struct {
	index       uint64
	localNode   LocalNode
	scheduler   Scheduler
	broadcaster Broadcaster
	logger      log.Log

	state *State

	ballotTimer  Cancellable
	timerBase    time.Duration
	selfQSetHash types.Hash32
}

// NewSlot creates the zero-valued ballot state for slot index (spec.md
// §3 "Lifecycles": created on first envelope for that slot index).
func NewSlot(index uint64, localNode LocalNode, scheduler Scheduler, broadcaster Broadcaster, opts ...Option) *Slot {
	s := &Slot{
		index:       index,
		localNode:   localNode,
		scheduler:   scheduler,
		broadcaster: broadcaster,
		logger:      log.NewNop(),
		state:       NewState(),
		timerBase:   ballotTimerBase,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index returns the slot's index.
func (s *Slot) Index() uint64 { return s.index }

// Phase returns the slot's current phase.
func (s *Slot) Phase() Phase { return s.state.Phase }

// SlotSnapshot is a read-only view of a slot's ballot state, for
// diagnostics (SPEC_FULL.md "Slot.CurrentState").
type SlotSnapshot struct {
	Index uint64
	B, P, Pp, H, C types.OptBallot
	Phase          Phase
}

// CurrentState returns a snapshot of the slot's state.
func (s *Slot) CurrentState() SlotSnapshot {
	return SlotSnapshot{
		Index: s.index,
		B:     s.state.B,
		P:     s.state.P,
		Pp:    s.state.Pp,
		H:     s.state.H,
		C:     s.state.C,
		Phase: s.state.Phase,
	}
}

// ExternalizeStatement returns the envelope this node emitted when it
// reached Externalize, for late joiners that ask after the fact
// (SPEC_FULL.md; spec.md §3 "fixed and never change").
func (s *Slot) ExternalizeStatement() (*types.SCPEnvelope, bool) {
	if s.state.Phase != PhaseExternalize || s.state.LastEmitted == nil {
		return nil, false
	}
	return s.state.LastEmitted, true
}

// Close cancels the ballot timer, for slot teardown (spec.md §5
// Cancellation).
func (s *Slot) Close() { s.cancelBallotTimer() }

// ProcessEnvelope is the entry point of spec.md §4.4: validate, dedupe
// against the sender's latest known statement, install, and advance.
func (s *Slot) ProcessEnvelope(env *types.SCPEnvelope) Validity {
	st := &env.Statement
	if st.Slot != s.index {
		return Invalid
	}
	if err := isStatementSane(st); err != nil {
		s.logger.With().Debug("discarding statement that failed sanity check", log.Err(err))
		return Invalid
	}
	var curSt *types.SCPStatement
	if cur, ok := s.state.M[st.NodeID]; ok {
		curSt = &cur.Statement
	}
	if !isNewerStatement(curSt, st) {
		return Valid
	}
	s.state.M[st.NodeID] = env
	s.updateHeardFromQuorum()
	s.advanceSlot(st)
	return Valid
}

func (s *Slot) updateHeardFromQuorum() {
	if s.state.HeardFromQuorum {
		return
	}
	if isQuorum(s.localNode, func(id types.NodeID) bool {
		_, ok := s.state.M[id]
		return ok
	}) {
		s.state.HeardFromQuorum = true
		s.armBallotTimer()
	}
}

// advanceSlot runs attemptPreparedAccept .. attemptBump to a fixed point,
// then emits the resulting state if it changed (spec.md §4.4).
// messageLevel guards against pathological re-entrant chains (spec.md
// §3, §5).
func (s *Slot) advanceSlot(hint *types.SCPStatement) {
	s.state.messageLevel++
	defer func() { s.state.messageLevel-- }()
	if s.state.messageLevel > maxMessageLevel {
		s.logger.Warning("advanceSlot: message level %d exceeds cap, not re-emitting", s.state.messageLevel)
		return
	}

	anyChange := false
	for {
		progressed := false
		if s.attemptPreparedAccept(hint) {
			progressed = true
		}
		if s.attemptPreparedConfirmed(hint) {
			progressed = true
		}
		if s.attemptAcceptCommit(hint) {
			progressed = true
		}
		if s.attemptConfirmCommit(hint) {
			progressed = true
		}
		if s.attemptBump() {
			progressed = true
		}
		if !progressed {
			break
		}
		anyChange = true
	}
	if anyChange {
		s.emitCurrentStateStatement()
	}
}

// attemptPreparedAccept is spec.md §4.4 step 1.
func (s *Slot) attemptPreparedAccept(hint *types.SCPStatement) bool {
	changed := false
	for _, cand := range getPrepareCandidates(hint) {
		if p, ok := s.state.P.Get(); ok && cand.LessOrEqual(p) && cand.Compatible(p) {
			continue
		}
		accepted := federatedAccept(s.localNode, s.state.M,
			func(st *types.SCPStatement) bool { return votedPrepared(cand, st) },
			func(st *types.SCPStatement) bool { return votedPrepared(cand, st) || hasPreparedBallot(cand, st) },
		)
		if accepted && s.setPreparedAccept(cand) {
			changed = true
		}
	}
	return changed
}

// setPreparedAccept updates p/p' to maintain "p is the greatest
// accepted-prepared ballot; p' is the greatest accepted-prepared ballot
// strictly less than and incompatible with p" (spec.md §3, §4.4).
func (s *Slot) setPreparedAccept(b types.Ballot) bool {
	changed := false
	switch p, hasP := s.state.P.Get(); {
	case !hasP:
		s.state.P = types.Some(b)
		changed = true
	case b.Greater(p):
		if !b.Compatible(p) {
			if pp, hasPP := s.state.Pp.Get(); !hasPP || p.Greater(pp) {
				s.state.Pp = types.Some(p)
			}
		}
		s.state.P = types.Some(b)
		changed = true
	case !b.Equal(p) && !b.Compatible(p):
		if pp, hasPP := s.state.Pp.Get(); !hasPP || b.Greater(pp) {
			s.state.Pp = types.Some(b)
			changed = true
		}
	}
	if h, hasH := s.state.H.Get(); hasH && b.Greater(h) {
		if c, hasC := s.state.C.Get(); hasC && !c.Compatible(b) {
			s.state.C = types.None
			changed = true
		}
	}
	return changed
}

// attemptPreparedConfirmed is spec.md §4.4 step 2.
func (s *Slot) attemptPreparedConfirmed(hint *types.SCPStatement) bool {
	var best types.Ballot
	found := false
	for _, cand := range getPrepareCandidates(hint) {
		if federatedRatify(s.localNode, s.state.M, func(st *types.SCPStatement) bool {
			return hasPreparedBallot(cand, st)
		}) {
			best = cand
			found = true
			break // candidates are already in descending order
		}
	}
	if !found {
		return false
	}
	if s.state.Phase != PhasePrepare {
		if h, hasH := s.state.H.Get(); !hasH || !best.Greater(h) {
			return false
		}
	}
	newC := s.state.C
	if c, hasC := newC.Get(); hasC && (!c.Compatible(best) || c.Greater(best)) {
		newC = types.None
	}
	return s.setPreparedConfirmed(newC, types.Some(best))
}

// setPreparedConfirmed installs the confirmed-prepared high ballot and
// the accompanying commit floor (spec.md §4.4 step 2).
func (s *Slot) setPreparedConfirmed(newC, newH types.OptBallot) bool {
	changed := false
	if h, hasH := s.state.H.Get(); !hasH || !newH.Ballot.Equal(h) {
		s.state.H = newH
		changed = true
	}
	oldC, hadC := s.state.C.Get()
	newCb, hasNewC := newC.Get()
	if hadC != hasNewC || (hadC && hasNewC && !oldC.Equal(newCb)) {
		s.state.C = newC
		changed = true
	}
	b, hasB := s.state.B.Get()
	hb, hasH := newH.Get()
	if hasH && (!hasB || hb.Greater(b)) {
		s.state.B = newH
		changed = true
	}
	return changed
}

// attemptAcceptCommit is spec.md §4.4 step 3.
func (s *Slot) attemptAcceptCommit(hint *types.SCPStatement) bool {
	h, hasH := s.state.H.Get()
	if !hasH {
		return false
	}
	boundaries := getCommitBoundaries(h, s.state.M)
	if len(boundaries) == 0 {
		return false
	}
	hasCurrent := false
	var curLo, curHi uint32
	if c, hasC := s.state.C.Get(); hasC && c.Compatible(h) {
		curLo, curHi, hasCurrent = c.Counter, h.Counter, true
	}
	pred := func(lo, hi uint32) bool {
		return federatedAccept(s.localNode, s.state.M,
			func(st *types.SCPStatement) bool { return commitPredicate(h, lo, hi, st) },
			func(st *types.SCPStatement) bool { return commitPredicate(h, lo, hi, st) },
		)
	}
	lo, hi, ok := findExtendedInterval(hasCurrent, curLo, curHi, boundaries, pred)
	if !ok {
		return false
	}
	return s.setAcceptCommit(types.Ballot{Counter: lo, Value: h.Value}, types.Ballot{Counter: hi, Value: h.Value})
}

// setAcceptCommit transitions Φ to Confirm (if not already past it) and
// installs the accepted-commit interval (spec.md §4.4 step 3).
func (s *Slot) setAcceptCommit(c, h types.Ballot) bool {
	changed := false
	if s.state.Phase == PhasePrepare {
		s.state.Phase = PhaseConfirm
		changed = true
	}
	if cur, ok := s.state.C.Get(); !ok || !cur.Equal(c) {
		s.state.C = types.Some(c)
		changed = true
	}
	if cur, ok := s.state.H.Get(); !ok || !cur.Equal(h) {
		s.state.H = types.Some(h)
		changed = true
	}
	if b, ok := s.state.B.Get(); !ok || h.Greater(b) {
		s.state.B = types.Some(h)
		changed = true
	}
	return changed
}

// attemptConfirmCommit is spec.md §4.4 step 4.
func (s *Slot) attemptConfirmCommit(hint *types.SCPStatement) bool {
	if s.state.Phase != PhaseConfirm {
		return false
	}
	h, hasH := s.state.H.Get()
	c, hasC := s.state.C.Get()
	if !hasH || !hasC {
		return false
	}
	boundaries := getCommitBoundaries(h, s.state.M)
	pred := func(lo, hi uint32) bool {
		return federatedRatify(s.localNode, s.state.M, func(st *types.SCPStatement) bool {
			return commitPredicate(h, lo, hi, st)
		})
	}
	lo, hi, ok := findExtendedInterval(true, c.Counter, h.Counter, boundaries, pred)
	if !ok {
		return false
	}
	return s.setConfirmCommit(types.Ballot{Counter: lo, Value: h.Value}, types.Ballot{Counter: hi, Value: h.Value})
}

// setConfirmCommit transitions Φ to Externalize; c and h are fixed from
// here on (spec.md §3, §4.4 step 4).
func (s *Slot) setConfirmCommit(c, h types.Ballot) bool {
	s.state.Phase = PhaseExternalize
	s.state.C = types.Some(c)
	s.state.H = types.Some(h)
	s.state.B = types.Some(h)
	s.cancelBallotTimer()
	metrics.ReportSlotExternalized()
	return true
}

// attemptBump is spec.md §4.4 step 5.
func (s *Slot) attemptBump() bool {
	if !s.state.HeardFromQuorum {
		return false
	}
	b, hasB := s.state.B.Get()
	if !hasB {
		return false
	}
	var counters []uint32
	for _, env := range s.state.M {
		if wb := getWorkingBallot(&env.Statement); wb.Counter > b.Counter {
			counters = append(counters, wb.Counter)
		}
	}
	slices.Sort(counters)
	for _, n := range counters {
		if isQuorum(s.localNode, func(id types.NodeID) bool {
			env, ok := s.state.M[id]
			return ok && getWorkingBallot(&env.Statement).Counter >= n
		}) {
			value := b.Value
			if h, ok := s.state.H.Get(); ok {
				value = h.Value
			}
			if s.bumpToBallot(types.Ballot{Counter: n, Value: value}) {
				s.armBallotTimer()
				return true
			}
			return false
		}
	}
	return false
}

// bumpToBallot is the lowest-level monotone ballot update (spec.md §3
// "Ballots are monotone").
func (s *Slot) bumpToBallot(nb types.Ballot) bool {
	if b, ok := s.state.B.Get(); ok && nb.LessOrEqual(b) {
		return false
	}
	s.state.B = types.Some(nb)
	return true
}

// BumpState is spec.md §4.4 "bumpState(value, force|n)". A changed
// ballot is emitted through the slot's Broadcaster.
func (s *Slot) BumpState(value types.Value, force bool) bool {
	return s.bumpStateTo(value, force, 0)
}

func (s *Slot) bumpStateTo(value types.Value, force bool, n uint32) bool {
	if s.state.Phase != PhasePrepare {
		return false
	}
	if _, hasP := s.state.P.Get(); !force && hasP {
		return false
	}
	counter := n
	if counter == 0 {
		counter = 1
		if b, ok := s.state.B.Get(); ok {
			counter = b.Counter + 1
		}
	}
	changed := s.bumpToBallot(types.Ballot{Counter: counter, Value: value})
	if changed {
		s.armBallotTimer()
		s.emitCurrentStateStatement()
	}
	return changed
}

// AbandonBallot is spec.md §4.4 "Timer semantics":
// abandonBallot(0) increments the counter; abandonBallot(n>0) bumps to
// exactly n if n > b.counter.
func (s *Slot) AbandonBallot(n uint32) bool {
	var value types.Value
	if b, ok := s.state.B.Get(); ok {
		value = b.Value
	}
	if h, ok := s.state.H.Get(); ok {
		value = h.Value
	}
	if n == 0 {
		return s.bumpStateTo(value, true, 0)
	}
	if b, ok := s.state.B.Get(); ok && n <= b.Counter {
		return false
	}
	return s.bumpStateTo(value, true, n)
}

// ballotProtocolTimerExpired is spec.md §4.4 "Timer semantics".
func (s *Slot) ballotProtocolTimerExpired() {
	if !s.AbandonBallot(0) {
		return
	}
	st := s.createStatement()
	if st != nil {
		s.advanceSlot(st)
	}
}

func (s *Slot) armBallotTimer() {
	if s.scheduler == nil {
		return
	}
	if s.ballotTimer != nil {
		s.ballotTimer.Cancel()
	}
	s.ballotTimer = s.scheduler.ScheduleAfter(s.timerBase, s.ballotProtocolTimerExpired)
	metrics.ReportBallotTimerArmed()
}

func (s *Slot) cancelBallotTimer() {
	if s.ballotTimer != nil {
		s.ballotTimer.Cancel()
		s.ballotTimer = nil
	}
}

// createStatement builds a statement of the type matching Φ from the
// current local state (spec.md §4.4 step 6).
func (s *Slot) createStatement() *types.SCPStatement {
	self := s.localNode.ID()
	switch s.state.Phase {
	case PhasePrepare:
		b, hasB := s.state.B.Get()
		if !hasB {
			return nil
		}
		body := &types.PrepareBody{QuorumSetHash: s.selfQSetHash, B: b}
		if p, ok := s.state.P.Get(); ok {
			body.Prepared = types.Some(p)
		}
		if pp, ok := s.state.Pp.Get(); ok {
			body.PreparedPrime = types.Some(pp)
		}
		if c, ok := s.state.C.Get(); ok {
			body.NC = c.Counter
		}
		if h, ok := s.state.H.Get(); ok {
			body.NH = h.Counter
		}
		return &types.SCPStatement{NodeID: self, Slot: s.index, Type: types.StatementPrepare, Prepare: body}
	case PhaseConfirm:
		b, _ := s.state.B.Get()
		p, _ := s.state.P.Get()
		c, _ := s.state.C.Get()
		h, _ := s.state.H.Get()
		body := &types.ConfirmBody{
			B:             b,
			NPrepared:     p.Counter,
			NCommit:       c.Counter,
			NH:            h.Counter,
			QuorumSetHash: s.selfQSetHash,
		}
		return &types.SCPStatement{NodeID: self, Slot: s.index, Type: types.StatementConfirm, Confirm: body}
	case PhaseExternalize:
		c, hasC := s.state.C.Get()
		h, _ := s.state.H.Get()
		if !hasC {
			return nil
		}
		body := &types.ExternalizeBody{Commit: c, NH: h.Counter, CommitQuorumSetHash: s.selfQSetHash}
		return &types.SCPStatement{NodeID: self, Slot: s.index, Type: types.StatementExternalize, Externalize: body}
	default:
		return nil
	}
}

// emitCurrentStateStatement is spec.md §4.4 step 6: never emit two
// identical envelopes in succession.
func (s *Slot) emitCurrentStateStatement() bool {
	st := s.createStatement()
	if st == nil {
		return false
	}
	if s.state.LastEmitted != nil && statementsEqual(&s.state.LastEmitted.Statement, st) {
		return false
	}
	env := &types.SCPEnvelope{Statement: *st}
	s.state.LastEmitted = env
	s.state.M[st.NodeID] = env
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(env)
	}
	return true
}
