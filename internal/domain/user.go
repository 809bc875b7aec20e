package domain

import (
	"github.com/google/uuid"
)

// Permission levels. Users at PermissionAdmin or above bypass the credit check.
const (
	PermissionUser  = 0
	PermissionStaff = 1
	PermissionAdmin = 2
)

// User is the billing view of an account.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	CreditsLeft float64   `json:"credits_left"`
	Permission  int       `json:"permission"`
}

// HasElevatedPermission reports whether the user may run tasks without credits.
func (u *User) HasElevatedPermission() bool {
	return u.Permission >= PermissionAdmin
}

// CanAffordTask reports whether the user may start a new generation task.
func (u *User) CanAffordTask() bool {
	return u.CreditsLeft > 0 || u.HasElevatedPermission()
}
