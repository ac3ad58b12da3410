package transport

// ReceivedMessage is one inbound datagram. Data is the raw datagram,
// header included; parsing is left to higher layers.
type ReceivedMessage struct {
	// Data contains the raw datagram bytes.
	Data []byte
	// PeerAddr identifies the source of the datagram.
	PeerAddr PeerAddress
}

// MessageHandler is called for each received message.
// Implementations should process messages quickly or hand them off to
// another goroutine to avoid blocking the transport's read loop.
type MessageHandler func(msg *ReceivedMessage)
