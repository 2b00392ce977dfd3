package offer

// State is the lifecycle position of the current offer.
type State int

const (
	StateIdle State = iota
	StatePresented
	StateNegotiating
	StateAccepted
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePresented:
		return "PRESENTED"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateAccepted:
		return "ACCEPTED"
	case StateRejected:
		return "REJECTED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// InFlight reports whether an offer is waiting on the driver or the customer.
func (s State) InFlight() bool { return s == StatePresented || s == StateNegotiating }

// Reasons attached to resolution events.
const (
	ReasonDriver          = "driver"
	ReasonTimeout         = "timeout"
	ReasonOffline         = "offline"
	ReasonNegotiated      = "negotiated"
	ReasonCounterRejected = "counter_rejected"
	ReasonNoResponse      = "no_response"
	ReasonLedgerRefused   = "ledger_refused"
	ReasonTripCancelled   = "trip_cancelled"
	ReasonTripCompleted   = "trip_completed"
)

// Next is what the driver does after finishing a job.
type Next int

const (
	GoAvailable Next = iota
	GoOffline
)
