package packet

import (
	"fmt"

	"github.com/backkem/ptt/pkg/bitcodec"
	"github.com/backkem/ptt/pkg/message"
)

// ErrorReason is the 16-bit reason code of an Error datagram.
type ErrorReason uint16

const (
	ReasonNone                  ErrorReason = 0x0000
	ReasonBadDefGroup           ErrorReason = 0x0001
	ReasonJoinBadID             ErrorReason = 0x0002
	ReasonNoPermission          ErrorReason = 0x0003
	ReasonJoinOwnID             ErrorReason = 0x0004
	ReasonUserOffline           ErrorReason = 0x0005
	ReasonUserBusy              ErrorReason = 0x0006
	ReasonGroupBusy             ErrorReason = 0x0007
	ReasonBadPTT                ErrorReason = 0x0008
	ReasonNoSession             ErrorReason = 0x0009
	ReasonNotMember             ErrorReason = 0x000A
	ReasonNoCredit              ErrorReason = 0x000B
	ReasonIllegalStateForJoin   ErrorReason = 0x000C
	ReasonNotFound              ErrorReason = 0x000D
	ReasonInvalidParam          ErrorReason = 0x000E
	ReasonServerError           ErrorReason = 0x000F
	ReasonServerConfigError     ErrorReason = 0x0010
	ReasonMustCreateSession     ErrorReason = 0x0011
	ReasonNotSupported          ErrorReason = 0x0012
	ReasonUnauthorized          ErrorReason = 0x0013
	ReasonTimeout               ErrorReason = 0x0014
	ReasonPendingTrying         ErrorReason = 0x0015
	ReasonPendingRinging        ErrorReason = 0x0016
	ReasonDialogDoesNotExist    ErrorReason = 0x0017
	ReasonProxyAuthentication   ErrorReason = 0x0018
	ReasonVocoderError          ErrorReason = 0x0019
	ReasonPriorityOverride      ErrorReason = 0x0020
	ReasonSosBetweenDispatchers ErrorReason = 0x0021
)

var reasonText = map[ErrorReason]string{
	ReasonNone:                  "no error",
	ReasonBadDefGroup:           "could not join default group, no group id",
	ReasonJoinBadID:             "could not join, unrecognized id",
	ReasonNoPermission:          "could not join, no permission",
	ReasonJoinOwnID:             "could not join private session, ids are the same",
	ReasonUserOffline:           "could not join private session, not registered",
	ReasonUserBusy:              "could not join private session, user is busy",
	ReasonGroupBusy:             "could not join public session, all users are busy",
	ReasonBadPTT:                "could not handle ptt, not in a server session or floor already taken",
	ReasonNoSession:             "could not locate session",
	ReasonNotMember:             "could not join public session, not a member of the group",
	ReasonNoCredit:              "not enough credits to perform action",
	ReasonIllegalStateForJoin:   "cannot join while busy, must leave first",
	ReasonNotFound:              "not found",
	ReasonInvalidParam:          "invalid parameter",
	ReasonServerError:           "internal server error",
	ReasonServerConfigError:     "server data is misconfigured",
	ReasonMustCreateSession:     "join existing requested but session does not exist",
	ReasonNotSupported:          "operation not supported",
	ReasonUnauthorized:          "authorization required",
	ReasonTimeout:               "request timeout",
	ReasonPendingTrying:         "100 trying",
	ReasonPendingRinging:        "180 ringing",
	ReasonDialogDoesNotExist:    "481 call/transaction does not exist",
	ReasonProxyAuthentication:   "proxy authentication required",
	ReasonVocoderError:          "no appropriate vocoder found for session",
	ReasonPriorityOverride:      "server is processing a higher priority item",
	ReasonSosBetweenDispatchers: "sos between dispatchers is not allowed",
}

// String returns the reason description.
func (r ErrorReason) String() string {
	if s, ok := reasonText[r]; ok {
		return s
	}
	return fmt.Sprintf("unknown error (%#06x)", uint16(r))
}

// RequiresReauth returns true for reasons that invalidate the login.
func (r ErrorReason) RequiresReauth() bool {
	return r == ReasonUnauthorized || r == ReasonProxyAuthentication
}

// Error reports a failed request, optionally scoped to a session.
type Error struct {
	SessionID uint64
	Reason    ErrorReason
}

func (*Error) Command() message.Command { return message.CommandError }
func (*Error) isPacket()                {}

func (p *Error) MarshalBody() ([]byte, error) {
	w := bitcodec.NewWriter(ErrorSize)
	w.Uint(p.SessionID, 64)
	w.Uint(uint64(p.Reason), 16)
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseError(body []byte) (Packet, error) {
	if err := needBytes(message.CommandError, body, ErrorSize); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &Error{
		SessionID: r.Uint(64),
		Reason:    ErrorReason(r.Uint16(16)),
	}
	return p, codecError(p.Command(), r.Err())
}
