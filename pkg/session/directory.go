package session

import (
	"slices"

	"github.com/backkem/ptt/pkg/packet"
)

// Group is a directory group with its optional extended flags.
type Group struct {
	ID         uint64
	Name       string
	Type       packet.GroupType
	Large      bool
	Affiliated bool
	Muted      bool
}

// Directory is the local copy of the address book synchronized after
// approval. It is owned by the Machine and must only be read through the
// Runner.
type Directory struct {
	Groups   map[uint64]Group
	Contacts map[uint64]packet.Contact
	// Members lists the member ids of a group or session.
	Members map[uint64][]uint64
	// Sessions lists the contacts currently joined to each session.
	Sessions map[uint64][]uint64
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		Groups:   make(map[uint64]Group),
		Contacts: make(map[uint64]packet.Contact),
		Members:  make(map[uint64][]uint64),
		Sessions: make(map[uint64][]uint64),
	}
}

// Apply merges a directory datagram into d. It returns false for packets
// that are not directory lists.
func (d *Directory) Apply(p packet.Packet) bool {
	switch p := p.(type) {
	case *packet.GroupList:
		for _, g := range p.Groups {
			d.applyGroup(Group{ID: g.ID, Name: g.Name, Type: g.Type}, g.Action)
		}
	case *packet.GroupListEx:
		for _, g := range p.Groups {
			d.applyGroup(Group{
				ID:         g.ID,
				Name:       g.Name,
				Type:       g.Type,
				Large:      g.Large,
				Affiliated: g.Affiliated,
				Muted:      g.Muted,
			}, g.Action)
		}
	case *packet.ContactList:
		for _, c := range p.Contacts {
			d.applyContact(c)
		}
	case *packet.GroupIDList:
		d.Members[p.GroupID] = slices.Clone(p.Members)
	case *packet.StateList:
		for _, s := range p.States {
			if c, ok := d.Contacts[s.ContactID]; ok {
				c.State = s.State
				d.Contacts[s.ContactID] = c
			}
		}
	case *packet.SessionUpdatesList:
		for _, u := range p.Updates {
			if u.Join {
				d.Sessions[u.SessionID] = addID(d.Sessions[u.SessionID], u.ContactID)
			} else {
				d.Sessions[u.SessionID] = removeID(d.Sessions[u.SessionID], u.ContactID)
				if len(d.Sessions[u.SessionID]) == 0 {
					delete(d.Sessions, u.SessionID)
				}
			}
		}
	default:
		return false
	}
	return true
}

func (d *Directory) applyGroup(g Group, action packet.ActionCode) {
	if action == packet.ActionRemove {
		delete(d.Groups, g.ID)
		delete(d.Members, g.ID)
		return
	}
	d.Groups[g.ID] = g
}

func (d *Directory) applyContact(c packet.Contact) {
	switch c.Action {
	case packet.ActionRemove:
		delete(d.Contacts, c.UID)
		for gid, ids := range d.Members {
			d.Members[gid] = removeID(ids, c.UID)
		}
	case packet.ActionRemoveMember:
		d.Members[c.GroupID] = removeID(d.Members[c.GroupID], c.UID)
	default:
		d.Contacts[c.UID] = c
		if c.GroupID != 0 {
			d.Members[c.GroupID] = addID(d.Members[c.GroupID], c.UID)
		}
	}
}

// State returns the presence state of a contact.
func (d *Directory) State(uid uint64) (packet.UserState, bool) {
	c, ok := d.Contacts[uid]
	return c.State, ok
}

func addID(ids []uint64, id uint64) []uint64 {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []uint64, id uint64) []uint64 {
	return slices.DeleteFunc(ids, func(v uint64) bool { return v == id })
}
