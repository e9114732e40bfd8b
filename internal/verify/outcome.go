package verify

// Outcome is the internal verdict of one verification attempt.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeMismatch
	OutcomeExpired
	OutcomeNotFound
	OutcomeAttemptsExceeded
	OutcomeAlreadyConsumed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeExpired:
		return "expired"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeAttemptsExceeded:
		return "attempts_exceeded"
	case OutcomeAlreadyConsumed:
		return "already_consumed"
	default:
		return "unknown"
	}
}

// Err collapses every non-success outcome into ErrCodeRejected.
func (o Outcome) Err() error {
	if o == OutcomeSuccess {
		return nil
	}
	return ErrCodeRejected
}
