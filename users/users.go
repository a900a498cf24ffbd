package users

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is the platform role carried on every identity
type RoleType string

const (
	RoleDonor     RoleType = "DONOR"      // Registers donations and joins campaigns
	RoleReceiver  RoleType = "RECEIVER"   // Raises blood requests
	RoleHospital  RoleType = "HOSPITAL"   // Hospital staff managing requests
	RoleBloodBank RoleType = "BLOOD_BANK" // Blood bank staff managing inventory and campaigns
	RoleAdmin     RoleType = "ADMIN"      // Platform administrator
)

// AllRoles lists every role the backend may return
var AllRoles = []RoleType{RoleDonor, RoleReceiver, RoleHospital, RoleBloodBank, RoleAdmin}

// SelfRegistrableRoles are the roles offered on the public registration form.
// Admin accounts are created by other admins.
var SelfRegistrableRoles = []RoleType{RoleDonor, RoleReceiver, RoleHospital, RoleBloodBank}

// ParseRole converts a string into a known role
func ParseRole(s string) (RoleType, error) {
	r := RoleType(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(AllRoles, r) {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// IsSelfRegistrable reports whether the role can be chosen at sign up
func (r RoleType) IsSelfRegistrable() bool {
	return slices.Contains(SelfRegistrableRoles, r)
}

// DisplayName is the label shown in the console
func (r RoleType) DisplayName() string {
	switch r {
	case RoleDonor:
		return "Donor"
	case RoleReceiver:
		return "Receiver"
	case RoleHospital:
		return "Hospital"
	case RoleBloodBank:
		return "Blood Bank Staff"
	case RoleAdmin:
		return "Admin"
	}
	return string(r)
}

// User is the identity returned by the profile endpoint
type User struct {
	ID              int64     `json:"id"`                          // Backend user id
	Username        string    `json:"username"`                    // Unique username
	Email           string    `json:"email,omitempty"`             // User's email address
	FirstName       string    `json:"first_name,omitempty"`        // First name of the user
	LastName        string    `json:"last_name,omitempty"`         // Last name of the user
	Role            RoleType  `json:"role"`                        // Platform role
	PhoneNumber     string    `json:"phone_number,omitempty"`      // Contact number
	IsActiveAccount bool      `json:"is_active_account,omitempty"` // Account enabled by an admin
	EmailVerified   bool      `json:"email_verified,omitempty"`    // Email address confirmed
	CreatedAt       time.Time `json:"created_at,omitempty"`        // Account creation time
	UpdatedAt       time.Time `json:"updated_at,omitempty"`        // Last profile change
}

// FullName returns "first last", falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// HasRole reports whether the user's role is one of roles
func (u *User) HasRole(roles ...RoleType) bool {
	return slices.Contains(roles, u.Role)
}

// Clone returns a copy that shares no memory with u
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
