package session

import (
	"slices"
	"testing"

	"github.com/backkem/ptt/pkg/packet"
)

func TestDirectoryGroups(t *testing.T) {
	d := NewDirectory()
	d.Apply(&packet.GroupList{Groups: []packet.GroupRecord{
		{ID: 1, Name: "ops", Type: 1, Action: packet.ActionAdd},
		{ID: 2, Name: "field", Action: packet.ActionAdd},
	}})
	d.Apply(&packet.GroupListEx{Groups: []packet.GroupRecordEx{
		{GroupRecord: packet.GroupRecord{ID: 2, Name: "field-2", Action: packet.ActionUpdate}, Muted: true},
	}})
	d.Apply(&packet.GroupList{Groups: []packet.GroupRecord{{ID: 1, Action: packet.ActionRemove}}})

	if _, ok := d.Groups[1]; ok {
		t.Error("group 1 not removed")
	}
	g, ok := d.Groups[2]
	if !ok {
		t.Fatal("group 2 missing")
	}
	if g.Name != "field-2" || !g.Muted {
		t.Errorf("group 2 = %+v, want updated and muted", g)
	}
}

func TestDirectoryContacts(t *testing.T) {
	d := NewDirectory()
	d.Apply(&packet.ContactList{Contacts: []packet.Contact{
		{UID: 10, Name: "alex", GroupID: 1, Action: packet.ActionAdd},
		{UID: 11, Name: "dana", GroupID: 1, Action: packet.ActionAdd},
		{UID: 10, Name: "alex", GroupID: 1, Action: packet.ActionUpdate},
	}})
	if got := d.Members[1]; !slices.Equal(got, []uint64{10, 11}) {
		t.Errorf("Members[1] = %v, want [10 11]", got)
	}

	d.Apply(&packet.StateList{States: []packet.ContactState{{ContactID: 11, State: 2}, {ContactID: 99, State: 1}}})
	if s, ok := d.State(11); !ok || s != 2 {
		t.Errorf("State(11) = %v, %v, want 2, true", s, ok)
	}
	if _, ok := d.State(99); ok {
		t.Error("State(99) ok for unknown contact")
	}

	d.Apply(&packet.ContactList{Contacts: []packet.Contact{{UID: 11, GroupID: 1, Action: packet.ActionRemoveMember}}})
	if got := d.Members[1]; !slices.Equal(got, []uint64{10}) {
		t.Errorf("Members[1] = %v, want [10]", got)
	}
	if _, ok := d.Contacts[11]; !ok {
		t.Error("RemoveMember deleted the contact")
	}

	d.Apply(&packet.ContactList{Contacts: []packet.Contact{{UID: 10, Action: packet.ActionRemove}}})
	if _, ok := d.Contacts[10]; ok {
		t.Error("contact 10 not removed")
	}
	if got := d.Members[1]; len(got) != 0 {
		t.Errorf("Members[1] = %v, want empty", got)
	}
}

func TestDirectoryMembersAndSessions(t *testing.T) {
	d := NewDirectory()
	members := []uint64{5, 6, 7}
	d.Apply(&packet.GroupIDList{GroupID: 3, Members: members})
	members[0] = 0
	if got := d.Members[3]; !slices.Equal(got, []uint64{5, 6, 7}) {
		t.Errorf("Members[3] = %v, want a copy of [5 6 7]", got)
	}

	d.Apply(&packet.SessionUpdatesList{Updates: []packet.SessionUpdate{
		{ContactID: 5, SessionID: 100, Join: true},
		{ContactID: 6, SessionID: 100, Join: true},
		{ContactID: 5, SessionID: 100, Join: true},
	}})
	if got := d.Sessions[100]; !slices.Equal(got, []uint64{5, 6}) {
		t.Errorf("Sessions[100] = %v, want [5 6]", got)
	}

	d.Apply(&packet.SessionUpdatesList{Updates: []packet.SessionUpdate{
		{ContactID: 5, SessionID: 100},
		{ContactID: 6, SessionID: 100},
	}})
	if _, ok := d.Sessions[100]; ok {
		t.Error("empty session not removed")
	}
}

func TestDirectoryIgnoresOtherPackets(t *testing.T) {
	d := NewDirectory()
	if d.Apply(&packet.KeepAlive{}) {
		t.Error("Apply(KeepAlive) = true, want false")
	}
}
