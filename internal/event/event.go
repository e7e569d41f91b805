package event

// Kind discriminator for event payloads
type Kind int32

const (
	KindUnknown Kind = iota
	KindFill
	KindFundingPayment
	KindTransfer
)

// Event is the closed set of inputs the replay engine understands.
// Adding a new implementation requires a matching case in the
// replayer's dispatch switch; anything else is rejected at runtime.
type Event interface {
	// Kind returns the discriminator
	Kind() Kind

	// Time returns the exchange-assigned timestamp in epoch milliseconds
	// (NOT wall-clock)
	Time() int64

	// Seq returns the per-source ordering key used for tie-breaks
	Seq() int64
}

func (k Kind) String() string {
	switch k {
	case KindFill:
		return "Fill"
	case KindFundingPayment:
		return "FundingPayment"
	case KindTransfer:
		return "Transfer"
	default:
		return "Unknown"
	}
}
