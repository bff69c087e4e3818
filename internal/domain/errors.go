package domain

import "errors"

var (
	// ErrInvalidPayload marks a command whose payload is malformed or fails validation.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUnknownCommand marks an envelope whose type is not a known command.
	ErrUnknownCommand = errors.New("unknown command")

	ErrNoActivePoll       = errors.New("no active poll")
	ErrPollEnded          = errors.New("poll has ended")
	ErrPollAlreadyActive  = errors.New("a poll is already active")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrUnknownConnection  = errors.New("unknown connection")
	ErrInvalidOption      = errors.New("option is not part of the current poll")
	ErrForbidden          = errors.New("command requires the presenter role")
)

// IsNoOp reports whether err is a precondition miss rather than a bad
// command: the state simply did not allow the action at that moment.
func IsNoOp(err error) bool {
	return errors.Is(err, ErrNoActivePoll) ||
		errors.Is(err, ErrPollEnded) ||
		errors.Is(err, ErrUnknownParticipant) ||
		errors.Is(err, ErrUnknownConnection)
}
