package model

// Session is the client-held proof of authentication against the parking
// backend: the user identity, the opaque bearer token, and a validity flag.
//
// Valid is distinct from mere token presence: it is true only after a
// successful verification round-trip, starts false on every process start,
// and is dropped again when verification fails.
type Session struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
	Valid bool   `json:"valid"`
}

// LoggedIn reports whether a token is held at all, regardless of whether it
// has been verified yet.
func (s *Session) LoggedIn() bool {
	return s != nil && s.Token != ""
}

// BranchID returns the branch scope of the session's user, or 0 when no
// user is held or the user has no branch assignment.
func (s *Session) BranchID() int64 {
	if s == nil || s.User == nil {
		return 0
	}
	return s.User.BranchID
}
