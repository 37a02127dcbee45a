package persist

import "time"

// Op identifies a store interaction.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpSync   Op = "sync"
)

// Outcome is the result of an Op.
type Outcome string

const (
	// OutcomeHit means a stored value was read and decoded.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss means no entry existed; the initial value was used.
	OutcomeMiss Outcome = "miss"
	// OutcomeOK means a write, removal or sync update succeeded.
	OutcomeOK Outcome = "ok"
	// OutcomeFailure means the store or codec failed.
	OutcomeFailure Outcome = "failure"
	// OutcomeUnsupported means there was no persistent store.
	OutcomeUnsupported Outcome = "unsupported"
	// OutcomeReverted means a sync removal reverted to the initial value.
	OutcomeReverted Outcome = "reverted"
)

// Observation describes one store interaction.
type Observation struct {
	Op       Op
	Key      string
	Outcome  Outcome
	Start    time.Time
	Duration time.Duration
	Err      error
}

// Observer receives an Observation for every store interaction. Calls are
// made synchronously on the goroutine performing the operation.
type Observer interface {
	Observe(Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Observation)

// Observe calls f(o).
func (f ObserverFunc) Observe(o Observation) { f(o) }

// Observers fans out to several observers.
type Observers []Observer

// Observe calls every observer in order.
func (os Observers) Observe(o Observation) {
	for _, obs := range os {
		if obs != nil {
			obs.Observe(o)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Observation) {}
