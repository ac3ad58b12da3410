package packet

import (
	"fmt"

	"github.com/backkem/ptt/pkg/bitcodec"
	"github.com/backkem/ptt/pkg/message"
)

// Directory (PAB) record layouts. Sizes are in bits.
const (
	groupRecordBits       = 64 + groupNameLen*8 + 3 + 1 + 4
	groupRecordExBits     = groupRecordBits + 5 + 1 + 1 + 1
	contactRecordBits     = 64 + contactNameChars*contactCharBits + 3 + 1 + 1 + 3 + 64 + 3
	stateRecordBits       = 64 + 3
	sessionUpdateBits     = 64 + 64 + 1
	groupIDListHeaderBits = 64 + 1

	groupNameLen     = 12
	contactNameChars = 12
	contactCharBits  = 16

	MaxGroupRecords         = 15
	MaxGroupRecordsEx       = 14
	MaxContactRecords       = 15
	MaxGroupIDListMembers   = 128
	MaxStateRecords         = 61
	MaxSessionUpdateRecords = 30
)

// UserState is the presence state of a contact.
type UserState uint8

const (
	UserOffline UserState = 0
	UserOnline  UserState = 1
	UserPageMe  UserState = 2
	UserDND     UserState = 3
	UserUnknown UserState = 4
)

// String returns a human-readable name for the state.
func (s UserState) String() string {
	switch s {
	case UserOffline:
		return "Offline"
	case UserOnline:
		return "Online"
	case UserPageMe:
		return "PageMe"
	case UserDND:
		return "DND"
	case UserUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("UserState(%d)", uint8(s))
	}
}

// GroupType is the kind of a directory group.
type GroupType uint8

const (
	GroupUndefined      GroupType = 0
	GroupConference     GroupType = 1
	GroupChatRoom       GroupType = 2
	GroupPersonal       GroupType = 3
	GroupContactList    GroupType = 4
	GroupBroadcastOrg   GroupType = 5
	GroupGroupBroadcast GroupType = 6
)

// String returns a human-readable name for the group type.
func (g GroupType) String() string {
	switch g {
	case GroupUndefined:
		return "Undefined"
	case GroupConference:
		return "Conference"
	case GroupChatRoom:
		return "ChatRoom"
	case GroupPersonal:
		return "Personal"
	case GroupContactList:
		return "ContactList"
	case GroupBroadcastOrg:
		return "BroadcastOrg"
	case GroupGroupBroadcast:
		return "GroupBroadcast"
	default:
		return fmt.Sprintf("GroupType(%d)", uint8(g))
	}
}

// ActionCode says how a directory record changes the local copy.
type ActionCode uint8

const (
	ActionNop          ActionCode = 0
	ActionAdd          ActionCode = 1
	ActionAddMember    ActionCode = 2
	ActionRemove       ActionCode = 3
	ActionRemoveMember ActionCode = 4
	ActionUpdate       ActionCode = 5
	ActionJoin         ActionCode = 6
	ActionLeave        ActionCode = 7
)

// String returns a human-readable name for the action.
func (a ActionCode) String() string {
	switch a {
	case ActionNop:
		return "Nop"
	case ActionAdd:
		return "Add"
	case ActionAddMember:
		return "AddMember"
	case ActionRemove:
		return "Remove"
	case ActionRemoveMember:
		return "RemoveMember"
	case ActionUpdate:
		return "Update"
	case ActionJoin:
		return "Join"
	case ActionLeave:
		return "Leave"
	default:
		return fmt.Sprintf("ActionCode(%d)", uint8(a))
	}
}

// recordCount returns how many whole fixed-size records body holds, capped
// at limit. Trailing bits that do not fill a record are ignored.
func recordCount(body []byte, recordBits, limit int) int {
	return min(len(body)*8/recordBits, limit)
}

// checkCount rejects lists longer than a command allows.
func checkCount(cmd message.Command, n, limit int) error {
	if n > limit {
		return fmt.Errorf("%w: %s has %d records, max %d", ErrInvalidFieldValue, cmd, n, limit)
	}
	return nil
}

// GroupRecord is one entry of PABGroupList.
type GroupRecord struct {
	ID     uint64
	Name   string
	Type   GroupType
	Action ActionCode
}

func (g *GroupRecord) write(w *bitcodec.Writer) {
	w.Uint(g.ID, 64)
	w.String(g.Name, groupNameLen)
	w.Uint(uint64(g.Type), 3)
	w.Skip(1)
	w.Uint(uint64(g.Action), 4)
}

func (g *GroupRecord) read(r *bitcodec.Reader) {
	g.ID = r.Uint(64)
	g.Name = r.String(groupNameLen)
	g.Type = GroupType(r.Uint8(3))
	r.Skip(1)
	g.Action = ActionCode(r.Uint8(4))
}

// GroupList delivers the groups of the directory.
type GroupList struct {
	Groups []GroupRecord
}

func (*GroupList) Command() message.Command { return message.CommandPABGroupList }
func (*GroupList) isPacket()                {}

func (p *GroupList) MarshalBody() ([]byte, error) {
	if err := checkCount(p.Command(), len(p.Groups), MaxGroupRecords); err != nil {
		return nil, err
	}
	w := bitcodec.NewWriter(bitcodec.BitsToBytes(len(p.Groups) * groupRecordBits))
	for i := range p.Groups {
		p.Groups[i].write(w)
	}
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseGroupList(body []byte) (Packet, error) {
	n := recordCount(body, groupRecordBits, MaxGroupRecords)
	p := &GroupList{Groups: make([]GroupRecord, n)}
	r := bitcodec.NewReader(body)
	for i := range p.Groups {
		p.Groups[i].read(r)
	}
	return p, codecError(p.Command(), r.Err())
}

// GroupRecordEx is one entry of PABGroupListEx.
type GroupRecordEx struct {
	GroupRecord
	Large      bool
	Affiliated bool
	Muted      bool
}

// GroupListEx is GroupList with per-group membership flags.
type GroupListEx struct {
	Groups []GroupRecordEx
}

func (*GroupListEx) Command() message.Command { return message.CommandPABGroupListEx }
func (*GroupListEx) isPacket()                {}

func (p *GroupListEx) MarshalBody() ([]byte, error) {
	if err := checkCount(p.Command(), len(p.Groups), MaxGroupRecordsEx); err != nil {
		return nil, err
	}
	w := bitcodec.NewWriter(bitcodec.BitsToBytes(len(p.Groups) * groupRecordExBits))
	for i := range p.Groups {
		g := &p.Groups[i]
		g.GroupRecord.write(w)
		w.Skip(5)
		w.Bool(g.Large)
		w.Bool(g.Affiliated)
		w.Bool(g.Muted)
	}
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseGroupListEx(body []byte) (Packet, error) {
	n := recordCount(body, groupRecordExBits, MaxGroupRecordsEx)
	p := &GroupListEx{Groups: make([]GroupRecordEx, n)}
	r := bitcodec.NewReader(body)
	for i := range p.Groups {
		g := &p.Groups[i]
		g.GroupRecord.read(r)
		r.Skip(5)
		g.Large = r.Bool()
		g.Affiliated = r.Bool()
		g.Muted = r.Bool()
	}
	return p, codecError(p.Command(), r.Err())
}

// Contact is one entry of PABContactList.
type Contact struct {
	UID       uint64
	Name      string
	State     UserState
	Nick      bool
	Action    ActionCode
	GroupID   uint64
	GroupType GroupType
}

// ContactList delivers contacts and their group membership.
type ContactList struct {
	Contacts []Contact
}

func (*ContactList) Command() message.Command { return message.CommandPABContactList }
func (*ContactList) isPacket()                {}

func (p *ContactList) MarshalBody() ([]byte, error) {
	if err := checkCount(p.Command(), len(p.Contacts), MaxContactRecords); err != nil {
		return nil, err
	}
	w := bitcodec.NewWriter(bitcodec.BitsToBytes(len(p.Contacts) * contactRecordBits))
	for _, c := range p.Contacts {
		w.Uint(c.UID, 64)
		w.WideString(c.Name, contactNameChars, contactCharBits)
		w.Uint(uint64(c.State), 3)
		w.Bool(c.Nick)
		w.Skip(1)
		w.Uint(uint64(c.Action), 3)
		w.Uint(c.GroupID, 64)
		w.Uint(uint64(c.GroupType), 3)
	}
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseContactList(body []byte) (Packet, error) {
	n := recordCount(body, contactRecordBits, MaxContactRecords)
	p := &ContactList{Contacts: make([]Contact, n)}
	r := bitcodec.NewReader(body)
	for i := range p.Contacts {
		c := &p.Contacts[i]
		c.UID = r.Uint(64)
		c.Name = r.WideString(contactNameChars, contactCharBits)
		c.State = UserState(r.Uint8(3))
		c.Nick = r.Bool()
		r.Skip(1)
		c.Action = ActionCode(r.Uint8(3))
		c.GroupID = r.Uint(64)
		c.GroupType = GroupType(r.Uint8(3))
	}
	return p, codecError(p.Command(), r.Err())
}

// GroupIDList lists the members of one group or session. On the wire the
// member ids are terminated by a zero id or the end of the body.
type GroupIDList struct {
	GroupID   uint64
	IsSession bool
	Members   []uint64
}

func (*GroupIDList) Command() message.Command { return message.CommandPABGroupIDList }
func (*GroupIDList) isPacket()                {}

func (p *GroupIDList) MarshalBody() ([]byte, error) {
	if err := checkCount(p.Command(), len(p.Members), MaxGroupIDListMembers); err != nil {
		return nil, err
	}
	for _, id := range p.Members {
		if id == 0 {
			return nil, fmt.Errorf("%w: %s member id 0 is the terminator", ErrInvalidFieldValue, p.Command())
		}
	}
	bits := groupIDListHeaderBits + (len(p.Members)+1)*64
	w := bitcodec.NewWriter(bitcodec.BitsToBytes(bits))
	w.Uint(p.GroupID, 64)
	w.Bool(p.IsSession)
	for _, id := range p.Members {
		w.Uint(id, 64)
	}
	w.Uint(0, 64)
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseGroupIDList(body []byte) (Packet, error) {
	if err := needBytes(message.CommandPABGroupIDList, body, bitcodec.BitsToBytes(groupIDListHeaderBits)); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &GroupIDList{
		GroupID:   r.Uint(64),
		IsSession: r.Bool(),
	}
	for r.Remaining() >= 64 && len(p.Members) < MaxGroupIDListMembers {
		id := r.Uint(64)
		if id == 0 {
			break
		}
		p.Members = append(p.Members, id)
	}
	return p, codecError(p.Command(), r.Err())
}

// ContactState is one entry of PABStateList.
type ContactState struct {
	ContactID uint64
	State     UserState
}

// StateList delivers presence updates.
type StateList struct {
	States []ContactState
}

func (*StateList) Command() message.Command { return message.CommandPABStateList }
func (*StateList) isPacket()                {}

func (p *StateList) MarshalBody() ([]byte, error) {
	if err := checkCount(p.Command(), len(p.States), MaxStateRecords); err != nil {
		return nil, err
	}
	w := bitcodec.NewWriter(bitcodec.BitsToBytes(len(p.States) * stateRecordBits))
	for _, s := range p.States {
		w.Uint(s.ContactID, 64)
		w.Uint(uint64(s.State), 3)
	}
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseStateList(body []byte) (Packet, error) {
	n := recordCount(body, stateRecordBits, MaxStateRecords)
	p := &StateList{States: make([]ContactState, n)}
	r := bitcodec.NewReader(body)
	for i := range p.States {
		p.States[i].ContactID = r.Uint(64)
		p.States[i].State = UserState(r.Uint8(3))
	}
	return p, codecError(p.Command(), r.Err())
}

// SessionUpdate is one entry of PABSessionUpdatesList.
type SessionUpdate struct {
	ContactID uint64
	SessionID uint64
	Join      bool
}

// SessionUpdatesList reports contacts joining or leaving sessions.
type SessionUpdatesList struct {
	Updates []SessionUpdate
}

func (*SessionUpdatesList) Command() message.Command { return message.CommandPABSessionUpdatesList }
func (*SessionUpdatesList) isPacket()                {}

func (p *SessionUpdatesList) MarshalBody() ([]byte, error) {
	if err := checkCount(p.Command(), len(p.Updates), MaxSessionUpdateRecords); err != nil {
		return nil, err
	}
	w := bitcodec.NewWriter(bitcodec.BitsToBytes(len(p.Updates) * sessionUpdateBits))
	for _, u := range p.Updates {
		w.Uint(u.ContactID, 64)
		w.Uint(u.SessionID, 64)
		w.Bool(u.Join)
	}
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseSessionUpdatesList(body []byte) (Packet, error) {
	n := recordCount(body, sessionUpdateBits, MaxSessionUpdateRecords)
	p := &SessionUpdatesList{Updates: make([]SessionUpdate, n)}
	r := bitcodec.NewReader(body)
	for i := range p.Updates {
		p.Updates[i].ContactID = r.Uint(64)
		p.Updates[i].SessionID = r.Uint(64)
		p.Updates[i].Join = r.Bool()
	}
	return p, codecError(p.Command(), r.Err())
}
