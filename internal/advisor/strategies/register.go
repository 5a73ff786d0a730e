package strategies

import (
	"keel/internal/fleet"
)

// Register wires the built-in advisors into a fleet registry under the
// names group config refers to them by.
func Register(r *fleet.Registry) {
	r.RegisterAdvisor("log_spread", NewLogSpread)
	r.RegisterAdvisor("momentum", NewMomentum)
}
