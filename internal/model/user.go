package model

// UserRole is the role carried in the identity claims. Users themselves are
// owned by the external user-management service; only their ids are stored here.
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
	// System is never issued in a token. It identifies background jobs such as
	// the deadline sweep.
	System UserRole = "system"
)

func (r UserRole) Valid() bool {
	switch r {
	case Student, Teacher, Admin:
		return true
	}
	return false
}
