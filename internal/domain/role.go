package domain

// Role is the role a connection holds in the session.
type Role string

const (
	// RoleParticipant is any connection not verified as the presenter.
	RoleParticipant Role = "participant"
	// RolePresenter is a connection that presented a valid presenter token.
	RolePresenter Role = "presenter"
)
