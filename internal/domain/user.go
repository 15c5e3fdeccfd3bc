package domain

import "time"

// User is an actor allowed to create or decide tickets.
type User struct {
	UserID    int64
	Name      string
	Admin     bool
	Whitelist bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPatch lists mutable user fields. Nil fields are left untouched.
type UserPatch struct {
	Name      *string
	Admin     *bool
	Whitelist *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Admin == nil && p.Whitelist == nil
}

// Apply copies the set fields of the patch onto u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Admin != nil {
		u.Admin = *p.Admin
	}
	if p.Whitelist != nil {
		u.Whitelist = *p.Whitelist
	}
}
