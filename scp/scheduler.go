package scp

import (
	"time"

	"github.com/kbacha/fbagreement/common/types"
	"github.com/kbacha/fbagreement/internal/scheduler"
)

// Cancellable is returned by Scheduler.ScheduleAfter; Cancel is
// idempotent (spec.md §6). Alias of scheduler.Cancellable so the overlay
// and the ballot protocol share one canonical definition of the
// collaborator (spec.md §5, §6).
type Cancellable = scheduler.Cancellable

// Scheduler is the single-threaded cooperative task executor every
// timer and posted continuation runs on (spec.md §5, §6). All slot
// mutation happens on callbacks this scheduler invokes.
type Scheduler = scheduler.Scheduler

// Broadcaster hands an outgoing envelope to the peer overlay for fan-out
// to every other connected session (spec.md §4.4 step 6, §6 PeerRegistry
// collaborator's broadcast role).
type Broadcaster interface {
	Broadcast(env *types.SCPEnvelope)
}

// ballotTimerBase is the default interval the ballot timer is armed
// with; real deployments scale this with the ballot counter, but a flat
// base is all the core itself needs to specify (bumping is driven
// externally via ballotProtocolTimerExpired, spec.md §4.4 "Timer
// semantics").
const ballotTimerBase = 1 * time.Second
