package transport

// Channel identifies which client endpoint a datagram belongs to.
type Channel int

const (
	// ChannelUnknown is the zero value.
	ChannelUnknown Channel = iota
	// ChannelControl carries signaling datagrams.
	ChannelControl
	// ChannelAudio carries vocoder payloads of an active session.
	ChannelAudio
)

// String returns the string representation of the channel.
func (c Channel) String() string {
	switch c {
	case ChannelControl:
		return "Control"
	case ChannelAudio:
		return "Audio"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the channel is a known valid channel.
func (c Channel) IsValid() bool {
	return c == ChannelControl || c == ChannelAudio
}
