// Package message implements the dispatch protocol datagram header.
//
// Every control datagram starts with a fixed 23-byte header:
//
//	protocolVersion(32) recipientId(64) senderId(64) seqMajor(8) seqMinor(8)
//	command(6) doNotReply(1) reserved(1)
//
// Commands that do not fit the 6-bit field are carried in one extra byte
// after the header, signalled by the escape value 63 in the command field.
//
// The package provides:
//   - Header encoding/decoding including the command escape
//   - The command table with human-readable names
//   - SequenceState, the pure next-sequence rule for outbound headers
package message

import "fmt"

// Command identifies a signaling command.
type Command uint8

// Command values.
const (
	CommandNull        Command = 0
	CommandAck         Command = 1
	CommandReRegister  Command = 2
	CommandServerBusy  Command = 3
	CommandKeepAlive   Command = 4
	CommandRegister    Command = 5
	CommandUnregister  Command = 6
	CommandApproved    Command = 7
	CommandDenied      Command = 8
	CommandJoin        Command = 9
	CommandCreateAdHoc Command = 10
	CommandLeave       Command = 11
	CommandNewSession  Command = 12
	CommandEndSession  Command = 13
	CommandEnablePTT   Command = 14
	CommandDisablePTT  Command = 15
	CommandAccept      Command = 16
	CommandReject      Command = 17
	CommandPending     Command = 18
	CommandError       Command = 19
	CommandDirSesLog   Command = 20

	CommandPABSyncRequest        Command = 21
	CommandPABGroupList          Command = 22
	CommandPABContactList        Command = 23
	CommandPABGroupIDList        Command = 24
	CommandPABStateList          Command = 25
	CommandPABSessionUpdatesList Command = 26
	CommandPABSearch             Command = 27
	CommandPABSearchResults      Command = 28

	CommandRedirectJoin            Command = 29
	CommandRemoteUpdateContact     Command = 30
	CommandPABSearchOrg            Command = 31
	CommandPABSearchOrgResults     Command = 32
	CommandForward                 Command = 35
	CommandJoinEx                  Command = 36
	CommandPocURIAction            Command = 37
	CommandAuthorize               Command = 38
	CommandSosAction               Command = 39
	CommandFloorGranted            Command = 40
	CommandPABSubscribe            Command = 41
	CommandPABUnsubscribe          Command = 42
	CommandRemoteActions           Command = 43
	CommandAddToSession            Command = 44
	CommandSessionRefresh          Command = 45
	CommandOpenChannel             Command = 46
	CommandCreateAdHocEx           Command = 47
	CommandPublish                 Command = 48
	CommandControlPTT              Command = 49
	CommandSubscribe               Command = 50
	CommandSessionInfo             Command = 51
	CommandGroupSessionInfo        Command = 55
	CommandServiceDiscovery        Command = 56
	CommandDispatcherRequest       Command = 57
	CommandUserLog                 Command = 58
	CommandGroupInChargeSiteUpdate Command = 59
	CommandSiteBackOnline          Command = 60
	CommandUpgradeVersion          Command = 61
	CommandPABReachMeList          Command = 62

	// CommandPlaceSavedForReachMe doubles as the escape marker: a raw
	// command field of 63 means the real command follows the header.
	CommandPlaceSavedForReachMe Command = 63

	CommandNack                  Command = 64
	CommandMoveSiteByOrg         Command = 69
	CommandReachMeGroup          Command = 70
	CommandChangeCallInitiator   Command = 71
	CommandGroupAction           Command = 72
	CommandSiteList              Command = 73
	CommandPABRequest            Command = 74
	CommandAuthLongToken         Command = 75
	CommandPasswordDenied        Command = 76
	CommandGroupOneToOneSession  Command = 77
	CommandRecorderStatistic     Command = 78
	CommandPABGroupListEx        Command = 79
)

// EscapeCommand is the raw command value that signals an escaped command.
const EscapeCommand = CommandPlaceSavedForReachMe

var commandNames = map[Command]string{
	CommandNull:                    "Null",
	CommandAck:                     "Ack",
	CommandReRegister:              "ReRegister",
	CommandServerBusy:              "ServerBusy",
	CommandKeepAlive:               "KeepAlive",
	CommandRegister:                "Register",
	CommandUnregister:              "Unregister",
	CommandApproved:                "Approved",
	CommandDenied:                  "Denied",
	CommandJoin:                    "Join",
	CommandCreateAdHoc:             "CreateAdHoc",
	CommandLeave:                   "Leave",
	CommandNewSession:              "NewSession",
	CommandEndSession:              "EndSession",
	CommandEnablePTT:               "EnablePTT",
	CommandDisablePTT:              "DisablePTT",
	CommandAccept:                  "Accept",
	CommandReject:                  "Reject",
	CommandPending:                 "Pending",
	CommandError:                   "Error",
	CommandDirSesLog:               "DirSesLog",
	CommandPABSyncRequest:          "PABSyncRequest",
	CommandPABGroupList:            "PABGroupList",
	CommandPABContactList:          "PABContactList",
	CommandPABGroupIDList:          "PABGroupIDList",
	CommandPABStateList:            "PABStateList",
	CommandPABSessionUpdatesList:   "PABSessionUpdatesList",
	CommandPABSearch:               "PABSearch",
	CommandPABSearchResults:        "PABSearchResults",
	CommandRedirectJoin:            "RedirectJoin",
	CommandRemoteUpdateContact:     "RemoteUpdateContact",
	CommandPABSearchOrg:            "PABSearchOrg",
	CommandPABSearchOrgResults:     "PABSearchOrgResults",
	CommandForward:                 "Forward",
	CommandJoinEx:                  "JoinEx",
	CommandPocURIAction:            "PocUriAction",
	CommandAuthorize:               "Authorize",
	CommandSosAction:               "SosAction",
	CommandFloorGranted:            "FloorGranted",
	CommandPABSubscribe:            "PABSubscribe",
	CommandPABUnsubscribe:          "PABUnsubscribe",
	CommandRemoteActions:           "RemoteActions",
	CommandAddToSession:            "AddToSession",
	CommandSessionRefresh:          "SessionRefresh",
	CommandOpenChannel:             "OpenChannel",
	CommandCreateAdHocEx:           "CreateAdHocEx",
	CommandPublish:                 "Publish",
	CommandControlPTT:              "ControlPTT",
	CommandSubscribe:               "Subscribe",
	CommandSessionInfo:             "SessionInfo",
	CommandGroupSessionInfo:        "GroupSessionInfo",
	CommandServiceDiscovery:        "ServiceDiscovery",
	CommandDispatcherRequest:       "DispatcherRequest",
	CommandUserLog:                 "UserLog",
	CommandGroupInChargeSiteUpdate: "GroupInChargeSiteUpdate",
	CommandSiteBackOnline:          "SiteBackOnline",
	CommandUpgradeVersion:          "UpgradeVersion",
	CommandPABReachMeList:          "PABReachMeList",
	CommandPlaceSavedForReachMe:    "PlaceSavedForReachMe",
	CommandNack:                    "Nack",
	CommandMoveSiteByOrg:           "MoveSiteByOrg",
	CommandReachMeGroup:            "ReachMeGroup",
	CommandChangeCallInitiator:     "ChangeCallInitiator",
	CommandGroupAction:             "GroupAction",
	CommandSiteList:                "SiteList",
	CommandPABRequest:              "PABRequest",
	CommandAuthLongToken:           "AuthLongToken",
	CommandPasswordDenied:          "PasswordDenied",
	CommandGroupOneToOneSession:    "GroupOneToOneSession",
	CommandRecorderStatistic:       "RecorderStatistic",
	CommandPABGroupListEx:          "PABGroupListEx",
}

// String returns the command name, or "Command(n)" for unknown values.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// IsKnown returns true if the command is part of the command table.
func (c Command) IsKnown() bool {
	_, ok := commandNames[c]
	return ok
}

// NeedsEscape returns true if the command must be carried in the escape byte.
func (c Command) NeedsEscape() bool {
	return c >= EscapeCommand
}
