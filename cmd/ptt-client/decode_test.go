package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/backkem/ptt/pkg/audio"
	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/packet"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []byte
		wantErr bool
	}{
		{"single", []string{"0a0b"}, []byte{0x0a, 0x0b}, false},
		{"split", []string{"0a", "0b", "0c"}, []byte{0x0a, 0x0b, 0x0c}, false},
		{"colons", []string{"0a:0b"}, []byte{0x0a, 0x0b}, false},
		{"prefix", []string{"0x0a0b"}, []byte{0x0a, 0x0b}, false},
		{"odd", []string{"abc"}, nil, true},
		{"empty", []string{" "}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHex(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("parseHex() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestDescribeControlDatagram(t *testing.T) {
	h := message.Header{
		ProtocolVersion: message.DefaultProtocolVersion,
		SenderID:        message.DefaultSenderID,
	}
	data, err := packet.Encode(h, &packet.Pending{SessionID: 77})
	if err != nil {
		t.Fatal(err)
	}

	out, err := describeDatagram(data, false)
	if err != nil {
		t.Fatalf("describeDatagram() error = %v", err)
	}
	if !strings.Contains(out, "*packet.Pending") || !strings.Contains(out, "SessionID:77") {
		t.Errorf("describeDatagram() = %q, want Pending with SessionID:77", out)
	}

	if _, err := describeDatagram(data[:5], false); !errors.Is(err, message.ErrTruncatedHeader) {
		t.Errorf("describeDatagram(truncated) error = %v, want %v", err, message.ErrTruncatedHeader)
	}
}

func TestDescribeAudioDatagram(t *testing.T) {
	p := &audio.Packet{
		Header: audio.Header{
			ProtocolVersion: message.DefaultProtocolVersion,
			SessionID:       5,
			Vocoder:         audio.VocoderAMR122,
			Serial:          2,
		},
		Payload: []byte{1, 2, 3},
	}
	hexData := hex.EncodeToString(p.Encode())
	data, err := parseHex([]string{hexData})
	if err != nil {
		t.Fatal(err)
	}

	out, err := describeDatagram(data, true)
	if err != nil {
		t.Fatalf("describeDatagram() error = %v", err)
	}
	if out != p.String() {
		t.Errorf("describeDatagram() = %q, want %q", out, p.String())
	}

	if _, err := describeDatagram(data[:10], true); !errors.Is(err, audio.ErrTruncated) {
		t.Errorf("describeDatagram(truncated) error = %v, want %v", err, audio.ErrTruncated)
	}
}
