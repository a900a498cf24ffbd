package users_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/blood-bank-console/users"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input    string
		expected users.RoleType
		wantErr  bool
	}{
		{"DONOR", users.RoleDonor, false},
		{" blood_bank ", users.RoleBloodBank, false},
		{"admin", users.RoleAdmin, false},
		{"NURSE", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			role, err := users.ParseRole(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, role)
		})
	}
}

func TestSelfRegistrableRoles(t *testing.T) {
	for _, r := range []users.RoleType{users.RoleDonor, users.RoleReceiver, users.RoleHospital, users.RoleBloodBank} {
		require.True(t, r.IsSelfRegistrable(), r)
	}
	require.False(t, users.RoleAdmin.IsSelfRegistrable())
}

func TestFullName(t *testing.T) {
	u := &users.User{Username: "donor1"}
	require.Equal(t, "donor1", u.FullName())

	u.FirstName = "Dana"
	require.Equal(t, "Dana", u.FullName())

	u.LastName = "Donor"
	require.Equal(t, "Dana Donor", u.FullName())
}

func TestHasRole(t *testing.T) {
	u := &users.User{Role: users.RoleHospital}
	require.True(t, u.HasRole(users.RoleHospital, users.RoleBloodBank))
	require.False(t, u.HasRole(users.RoleAdmin))
	require.False(t, u.HasRole())
}

func TestCloneIsIndependent(t *testing.T) {
	var nilUser *users.User
	require.Nil(t, nilUser.Clone())

	u := &users.User{ID: 1, Username: "donor1"}
	c := u.Clone()
	c.Username = "changed"
	require.Equal(t, "donor1", u.Username)
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("password123")
	require.NoError(t, err)
	require.NotEqual(t, "password123", hash)
	require.True(t, users.CheckPasswordHash("password123", hash))
	require.False(t, users.CheckPasswordHash("password124", hash))
}
