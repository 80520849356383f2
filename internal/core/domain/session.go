package domain

// Session is the authenticated identity held by the running client.
// Invariant: token and user are set together on login and cleared together
// on logout; one without the other counts as unauthenticated.
type Session struct {
	User  *User
	Token string
}

// Authenticated reports whether the session holds both a token and a user.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}
