package app

// State tracks one inbound delivery through the synchronous phase.
// FannedOut, Rejected and ChallengeAnswered are terminal.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateValidating        State = "VALIDATING"
	StateAuthorized        State = "AUTHORIZED"
	StateFannedOut         State = "FANNED_OUT"
	StateRejected          State = "REJECTED"
	StateChallengeAnswered State = "CHALLENGE_ANSWERED"
)

func (s State) String() string { return string(s) }
