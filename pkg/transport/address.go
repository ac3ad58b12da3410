package transport

import (
	"fmt"
	"net"
	"net/netip"
)

// PeerAddress identifies a remote endpoint and the local channel it talks to.
type PeerAddress struct {
	// Addr is the UDP endpoint of the peer.
	Addr netip.AddrPort
	// Channel is the local endpoint used to reach the peer.
	Channel Channel
}

// String returns a human-readable representation of the peer address.
func (p PeerAddress) String() string {
	if !p.Addr.IsValid() {
		return fmt.Sprintf("%s:<invalid>", p.Channel)
	}
	return fmt.Sprintf("%s:%s", p.Channel, p.Addr)
}

// IsValid returns true if the peer address has a valid channel and address.
func (p PeerAddress) IsValid() bool {
	return p.Channel.IsValid() && p.Addr.IsValid()
}

// NewControlPeer creates a PeerAddress on the control channel.
func NewControlPeer(addr netip.AddrPort) PeerAddress {
	return PeerAddress{Addr: addr, Channel: ChannelControl}
}

// NewAudioPeer creates a PeerAddress on the audio channel.
func NewAudioPeer(addr netip.AddrPort) PeerAddress {
	return PeerAddress{Addr: addr, Channel: ChannelAudio}
}

// ResolveAddrPort resolves "host:port", looking up host names.
// IPv4-mapped addresses are unmapped.
func ResolveAddrPort(addr string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return unmap(ap), nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return unmap(udpAddr.AddrPort()), nil
}

// addrPortOf converts a net.Addr delivered by a PacketConn.
func addrPortOf(addr net.Addr) (netip.AddrPort, bool) {
	if addr == nil {
		return netip.AddrPort{}, false
	}
	if u, ok := addr.(*net.UDPAddr); ok {
		ap := u.AddrPort()
		return unmap(ap), ap.IsValid()
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.AddrPort{}, false
	}
	return unmap(ap), true
}

func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
