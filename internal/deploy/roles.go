package deploy

import (
	"strings"

	"github.com/velonis/blueprint/internal/clickup"
)

// RoleDirectory is the email -> workspace user ID map built once per run in
// the mapping_roles step and reused for every assignee and watcher lookup.
type RoleDirectory struct {
	byEmail map[string]int
}

// BuildRoleDirectory indexes team members by lower-cased email.
func BuildRoleDirectory(members []clickup.Member) *RoleDirectory {
	d := &RoleDirectory{byEmail: make(map[string]int, len(members))}
	for _, m := range members {
		email := strings.ToLower(strings.TrimSpace(m.User.Email))
		if email == "" {
			continue
		}
		d.byEmail[email] = m.User.ID
	}
	return d
}

// UserIDForEmail resolves an email to a member ID.
func (d *RoleDirectory) UserIDForEmail(email string) (int, bool) {
	id, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	return id, ok
}

// ResolveRole walks role -> roles_map -> email -> member ID. Any broken
// link yields ok=false; the caller records a warning, never an error.
func (d *RoleDirectory) ResolveRole(role string, rolesMap map[string]string) (int, bool) {
	if role == "" {
		return 0, false
	}
	email, ok := rolesMap[role]
	if !ok || email == "" {
		return 0, false
	}
	return d.UserIDForEmail(email)
}

// Size returns how many members are indexed.
func (d *RoleDirectory) Size() int { return len(d.byEmail) }
