package graph

import "github.com/Jeevan-04/Invariant/pkg/errs"

// Identity is the frozen requesting identity for one turn. Anonymous
// execution is refused at construction: every field is required.
type Identity struct {
	userID string
	role   string
	org    string
	env    string
}

// NewIdentity validates and freezes an Identity. All four fields must
// be non-empty; an anonymous or partial identity is an InputError.
func NewIdentity(userID, role, org, env string) (Identity, error) {
	switch {
	case userID == "":
		return Identity{}, errs.Input("identity: user_id is required")
	case role == "":
		return Identity{}, errs.Input("identity: role is required")
	case org == "":
		return Identity{}, errs.Input("identity: org is required")
	case env == "":
		return Identity{}, errs.Input("identity: env is required")
	}
	return Identity{userID: userID, role: role, org: org, env: env}, nil
}

func (i Identity) UserID() string { return i.userID }
func (i Identity) Role() string   { return i.role }
func (i Identity) Org() string    { return i.org }
func (i Identity) Env() string    { return i.env }

// Canonical returns the JSON-marshalable shape consumed by the
// canonical hasher.
func (i Identity) Canonical() map[string]interface{} {
	return map[string]interface{}{
		"user_id": i.userID,
		"role":    i.role,
		"org":     i.org,
		"env":     i.env,
	}
}
