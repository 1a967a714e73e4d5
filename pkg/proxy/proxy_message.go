package proxy

type ProxyMessageType uint8

const (
	ProxyMessageType_Forward ProxyMessageType = iota
	ProxyMessageType_ConnectionReset
	ProxyMessageType_Exit
)

func (t ProxyMessageType) String() string {
	switch t {
	case ProxyMessageType_Forward:
		return "Forward"
	case ProxyMessageType_ConnectionReset:
		return "ConnectionReset"
	case ProxyMessageType_Exit:
		return "Exit"
	}
	return "Unknown"
}

// ProxyMessage flows from a Proxy worker to its owner. Message is set for
// Forward. Err is the cause for ConnectionReset and the terminal error (or
// nil for a requested stop) for Exit.
type ProxyMessage[R any] struct {
	MessageType ProxyMessageType
	Message     R
	Err         error
}

func forward[R any](msg R) ProxyMessage[R] {
	return ProxyMessage[R]{MessageType: ProxyMessageType_Forward, Message: msg}
}

func connectionReset[R any](cause error) ProxyMessage[R] {
	return ProxyMessage[R]{MessageType: ProxyMessageType_ConnectionReset, Err: cause}
}

func exit[R any](cause error) ProxyMessage[R] {
	return ProxyMessage[R]{MessageType: ProxyMessageType_Exit, Err: cause}
}
