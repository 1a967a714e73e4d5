package wire

// Message is the keep-alive capability every payload type carried by a Proxy
// must provide. Ping and Pong are called on the zero value and must return the
// canonical keep-alive instances.
type Message[T any] interface {
	IsPing() bool
	IsPong() bool
	Ping() T
	Pong() T
}

// MessageSerializer converts one payload type to and from its binary form.
type MessageSerializer[T any] interface {
	SerializeMessage(msg T) ([]byte, error)
	Parse(raw []byte) (T, error)
}
