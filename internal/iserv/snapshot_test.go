package iserv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

func testConfig() Config {
	return Config{MailDomain: "@School.de", TeacherGroup: "lehrkraefte", LocationID: "1"}
}

func TestBuildSnapshot(t *testing.T) {
	users := []userRow{
		{Act: "alice.a", FirstName: "Alice", LastName: "A"},
		{Act: "bob.b", FirstName: " Bob ", LastName: "B"},
		{Act: "tina.t", FirstName: "Tina", LastName: "T"},
	}
	groups := []groupRow{
		{Act: "5a", Type: "jamfsync"},
		{Act: "lehrkraefte"},
		{Act: "chor", Type: ""},
	}
	members := []memberRow{
		{User: "alice.a", Group: "5a"},
		{User: "bob.b", Group: "5a"},
		{User: "bob.b", Group: "chor"},
		{User: "tina.t", Group: "lehrkraefte"},
		{User: "tina.t", Group: "5a"},
		{User: "ghost", Group: "5a"},
		{User: "alice.a", Group: "deleted-group"},
	}

	snap := buildSnapshot(testConfig(), users, groups, members)
	require.NoError(t, snap.Validate())

	require.Len(t, snap.People, 3)
	alice := snap.People[0]
	assert.Equal(t, "alice.a@school.de", alice.IdentityKey)
	assert.Equal(t, alice.IdentityKey, alice.Email)
	assert.Equal(t, "1", alice.LocationID)
	assert.Equal(t, []string{"5a"}, alice.Groups, "memberships of deleted groups are dropped")
	assert.Equal(t, directory.RoleStudent, alice.Role)

	bob := snap.People[1]
	assert.Equal(t, "Bob", bob.FirstName)
	assert.Equal(t, []string{"5a", "chor"}, bob.Groups)

	tina := snap.People[2]
	assert.Equal(t, directory.RoleTeacher, tina.Role)

	require.Len(t, snap.Groups, 3)
	class, ok := snap.Group("5a")
	require.True(t, ok)
	assert.Equal(t, "jamfsync", class.Marker)
	assert.Equal(t, []string{"alice.a@school.de", "bob.b@school.de", "tina.t@school.de"}, class.Members)

	staff, ok := snap.Group("lehrkraefte")
	require.True(t, ok)
	assert.Empty(t, staff.Marker)
	assert.Equal(t, []string{"tina.t@school.de"}, staff.Members)
}

func TestBuildSnapshotSkipsBlankAndDuplicateAccounts(t *testing.T) {
	users := []userRow{
		{Act: "alice.a", FirstName: "Alice"},
		{Act: "alice.a", FirstName: "Alicia"},
		{Act: "  ", FirstName: "Nobody"},
	}
	members := []memberRow{{User: "alice.a", Group: "5a"}}
	snap := buildSnapshot(testConfig(), users, nil, members)
	require.Len(t, snap.People, 1)
	assert.Equal(t, "Alice", snap.People[0].FirstName)
	assert.Empty(t, snap.Groups)
}

func TestBuildSnapshotSkipsAccountsWithoutMembership(t *testing.T) {
	users := []userRow{
		{Act: "alice.a", FirstName: "Alice"},
		{Act: "admin", FirstName: "Admin"},
		{Act: "gone.g", FirstName: "Gone"},
	}
	groups := []groupRow{{Act: "5a"}}
	members := []memberRow{
		{User: "alice.a", Group: "5a"},
		{User: "gone.g", Group: "deleted-group"},
	}

	snap := buildSnapshot(testConfig(), users, groups, members)
	require.Len(t, snap.People, 2)
	assert.Equal(t, "alice.a@school.de", snap.People[0].IdentityKey)
	assert.Equal(t, "gone.g@school.de", snap.People[1].IdentityKey)
	assert.Empty(t, snap.People[1].Groups)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		domain string
		valid  bool
	}{
		{"school.de", true},
		{"@school.de", true},
		{"", false},
		{"a b.de", false},
		{"x@school.de", false},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			err := Config{MailDomain: tt.domain}.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, testConfig())
	assert.True(t, errors.IsValidationError(err))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ISERV_DSN", "postgres://postgres@localhost/iserv")
	t.Setenv("ISERV_MAIL_DOMAIN", "school.de")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "lehrkraefte", cfg.TeacherGroup)
	assert.Equal(t, "school.de", cfg.MailDomain)
}
