package bootloader

// State is the position of a Session in the flashing sequence.
//
//	Disconnected -> Detected -> VersionKnown -> KeyExchanged -> Erased
//	    -> Written* -> Verified* -> Ended
type State int

const (
	StateDisconnected State = iota
	StateDetected
	StateVersionKnown
	StateKeyExchanged
	StateErased
	StateWritten
	StateVerified
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDetected:
		return "detected"
	case StateVersionKnown:
		return "version-known"
	case StateKeyExchanged:
		return "key-exchanged"
	case StateErased:
		return "erased"
	case StateWritten:
		return "written"
	case StateVerified:
		return "verified"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// require returns a StateError unless the session is in one of allowed.
func (s *Session) require(operation string, allowed ...State) error {
	for _, a := range allowed {
		if s.state == a {
			return nil
		}
	}
	return &StateError{Operation: operation, State: s.state}
}
