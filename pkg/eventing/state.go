package eventing

// State is the lifecycle state of a Subscription. Transitions are guarded:
// an operation whose starting state does not match is rejected without
// side effects.
type State uint8

const (
	// StateUnsubscribed means no subscription exists with the device.
	StateUnsubscribed State = iota
	// StateSubscribing means an initial SUBSCRIBE request is in flight.
	StateSubscribing
	// StateSubscribed means the device accepted the subscription and a
	// renewal is scheduled.
	StateSubscribed
	// StateRenewing means a renewal SUBSCRIBE request is in flight.
	StateRenewing
	// StateUnsubscribing means an UNSUBSCRIBE request is in flight.
	StateUnsubscribing
	// StateFailed means a subscribe or renewal failed. No requests are in
	// flight and no renewal is scheduled.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "UNSUBSCRIBED"
	case StateSubscribing:
		return "SUBSCRIBING"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateRenewing:
		return "RENEWING"
	case StateUnsubscribing:
		return "UNSUBSCRIBING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
