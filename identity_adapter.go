package tasks

type authIdentity struct {
	id    string
	email string
	role  string
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Email() string {
	return a.email
}

func (a authIdentity) Role() string {
	return a.role
}

var _ Identity = authIdentity{}

// IdentityFromUser adapts a user record to the Identity interface.
func IdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return authIdentity{
		id:    user.ID.String(),
		email: user.Email,
		role:  string(user.Role),
	}
}
