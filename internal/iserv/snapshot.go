package iserv

import (
	"slices"
	"strings"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
)

// buildSnapshot joins the raw rows into a directory snapshot.
//
// Identity keys are act@MailDomain. Accounts without any membership row are
// left out. Memberships of unknown users or of deleted groups are dropped.
// Members of the teacher group are tagged with the teacher role.
func buildSnapshot(cfg Config, users []userRow, groups []groupRow, members []memberRow) *directory.Snapshot {
	domain := strings.TrimPrefix(strings.TrimSpace(cfg.MailDomain), "@")
	keyOf := func(act string) string {
		return directory.NormalizeKey(act + "@" + domain)
	}

	live := make(map[string]groupRow, len(groups))
	for _, g := range groups {
		live[g.Act] = g
	}

	people := make(map[string]*directory.Person, len(users))
	order := make([]string, 0, len(users))
	for _, u := range users {
		act := strings.TrimSpace(u.Act)
		if act == "" {
			continue
		}
		if _, dup := people[act]; dup {
			continue
		}
		key := keyOf(act)
		people[act] = &directory.Person{
			IdentityKey: key,
			FirstName:   strings.TrimSpace(u.FirstName),
			LastName:    strings.TrimSpace(u.LastName),
			Email:       key,
			LocationID:  cfg.LocationID,
			Role:        directory.RoleStudent,
		}
		order = append(order, act)
	}

	enrolled := make(map[string]bool, len(people))
	groupMembers := make(map[string][]string, len(groups))
	for _, m := range members {
		p, ok := people[m.User]
		if !ok {
			continue
		}
		enrolled[m.User] = true
		if _, ok := live[m.Group]; !ok {
			continue
		}
		if !p.InGroup(m.Group) {
			p.Groups = append(p.Groups, m.Group)
		}
		groupMembers[m.Group] = append(groupMembers[m.Group], p.IdentityKey)
		if m.Group == cfg.TeacherGroup {
			p.Role = directory.RoleTeacher
		}
	}

	snap := &directory.Snapshot{
		People: make([]directory.Person, 0, len(order)),
		Groups: make([]directory.Group, 0, len(groups)),
	}
	for _, act := range order {
		if !enrolled[act] {
			continue
		}
		p := people[act]
		slices.Sort(p.Groups)
		snap.People = append(snap.People, *p)
	}
	for _, g := range groups {
		memberKeys := groupMembers[g.Act]
		slices.Sort(memberKeys)
		snap.Groups = append(snap.Groups, directory.Group{
			Name:       g.Act,
			Members:    slices.Compact(memberKeys),
			LocationID: cfg.LocationID,
			Marker:     strings.TrimSpace(g.Type),
		})
	}
	return snap
}
