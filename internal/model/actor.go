package model

// Actor is the identity on whose behalf an operation runs.
type Actor struct {
	UserID string
	Role   string
}

// System is the actor recorded for automatic transitions (monitor, webhook).
var System = Actor{UserID: "system", Role: RoleAdmin}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess reports whether a may read or act on a resource owned by ownerID.
func (a Actor) CanAccess(ownerID string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == ownerID)
}
