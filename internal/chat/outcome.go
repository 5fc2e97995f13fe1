package chat

// SendOutcome classifies the result of a message submission.
type SendOutcome int

const (
	SendAccepted SendOutcome = iota
	SendInvalid
	SendRateLimited
)

func (o SendOutcome) String() string {
	switch o {
	case SendAccepted:
		return "accepted"
	case SendInvalid:
		return "invalid"
	case SendRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}
