// Package auth implements the digest challenge/response login.
//
// The server sends an Authorize challenge carrying a realm, a URI and a
// 32-bit nonce. The client answers with
//
//	MD5( MD5(username:realm:password) : nonce64 : MD5(method:uri) )
//
// where every inner MD5 is rendered as lowercase hex, nonce64 is the
// nonce's 4 big-endian bytes in the server's Base64 variant, and method is
// derived from the command that preceded the challenge.
package auth

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"

	"github.com/backkem/ptt/pkg/message"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Base64Encode encodes src the way the server does. The alphabet and '='
// padding are the standard ones, but the sextets of each triplet are taken
// starting from the least significant bits of the first byte, so the output
// differs from encoding/base64.
func Base64Encode(src []byte) string {
	out := make([]byte, 0, (len(src)+2)/3*4)
	for i := 0; i < len(src); i += 3 {
		b0 := src[i]
		var b1, b2 byte
		if i+1 < len(src) {
			b1 = src[i+1]
		}
		if i+2 < len(src) {
			b2 = src[i+2]
		}

		out = append(out,
			base64Alphabet[b0&0x3F],
			base64Alphabet[(b0>>6)|((b1&0x0F)<<2)],
		)
		if i+1 < len(src) {
			out = append(out, base64Alphabet[(b1>>4)|((b2&0x03)<<4)])
		} else {
			out = append(out, '=')
		}
		if i+2 < len(src) {
			out = append(out, base64Alphabet[b2>>2])
		} else {
			out = append(out, '=')
		}
	}
	return string(out)
}

// NonceString encodes a challenge nonce for use in the digest.
func NonceString(nonce uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], nonce)
	return Base64Encode(b[:])
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ComputeResponse returns the lowercase hex digest response. nonce is the
// already encoded nonce string (see NonceString).
func ComputeResponse(username, realm, password, method, uri, nonce string) string {
	ha1 := md5Hex(username + ":" + realm + ":" + password)
	ha2 := md5Hex(method + ":" + uri)
	return md5Hex(ha1 + ":" + nonce + ":" + ha2)
}

// Digest method labels.
const (
	MethodAck       = "ACK"
	MethodForbidden = "FORBIDDEN"
	MethodRegister  = "REGISTER"
	MethodApproved  = "APPROVED"
	MethodInvite    = "INVITE"
	MethodBye       = "BYE"
	MethodSubscribe = "SUBSCRIBE"
	MethodNotify    = "NOTIFY"
	MethodInfo      = "INFO"
	MethodError     = "ERROR"
)

// MethodForCommand maps the numeric code of the preceding command to the
// digest method label. The table is keyed by raw code as the server
// computes it, which does not always line up with the command names.
func MethodForCommand(cmd message.Command) string {
	switch c := uint8(cmd); {
	case c == 1 || c == 3 || c == 4:
		return MethodAck
	case c == 38 || c == 39:
		return MethodForbidden
	case c >= 5 && c <= 7:
		return MethodRegister
	case c == 8:
		return MethodApproved
	case c >= 9 && c <= 16:
		return MethodInvite
	case c == 17 || c == 18:
		return MethodBye
	case c == 21 || c == 22:
		return MethodSubscribe
	case c >= 23 && c <= 30:
		return MethodNotify
	case c >= 31 && c <= 36:
		return MethodInfo
	default:
		return MethodError
	}
}
