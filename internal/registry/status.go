package registry

// Status is the lifecycle state of a token on a bridge.
type Status uint8

const (
	Unknown Status = iota
	Pending
	Active
	Deactivated
	Blocked
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Active:
		return "ACTIVE"
	case Deactivated:
		return "DEACTIVATED"
	case Blocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// Servicing reports whether deposits may flow for the status.
func (s Status) Servicing() bool {
	return s == Pending || s == Active
}
