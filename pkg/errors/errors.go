package errors

import (
	goerrs "errors"
	"fmt"
)

// ErrWouldBlock means not enough bytes have arrived yet. It is not a failure;
// callers should retry on the next tick.
var ErrWouldBlock = goerrs.New("no complete message available yet")

//
// Framing errors - always fatal to the connection

type SerializationError struct {
	MessageName string
	Err         error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("Error when serializing %s: %v", e.MessageName, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

type DeserializationError struct {
	MessageName string
	Err         error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("Error when deserializing %s: %v", e.MessageName, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

type HeaderSizeMismatch struct {
	ExpectedSize int
	ActualSize   int
}

func (e *HeaderSizeMismatch) Error() string {
	return fmt.Sprintf("Serialized header is %d bytes, expected HeaderSize=%d", e.ActualSize, e.ExpectedSize)
}

type MessageTooLarge struct {
	DeclaredSize uint64
	MaximumSize  int
}

func (e *MessageTooLarge) Error() string {
	return fmt.Sprintf("Header declares a %d byte payload, maximum is %d", e.DeclaredSize, e.MaximumSize)
}

type InvalidEnumValue struct {
	EnumName string
	IntValue uint64
}

func (e *InvalidEnumValue) Error() string {
	return fmt.Sprintf("Invalid enum value=%d (enum: %s)", e.IntValue, e.EnumName)
}

type MissingFieldError struct {
	MessageName string
	FieldName   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing field %s in message type %s", e.FieldName, e.MessageName)
}

type InvalidFieldError struct {
	MessageName string
	FieldName   string
	Err         error
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("Invalid field %s in message type %s: %v", e.FieldName, e.MessageName, e.Err)
}

func (e *InvalidFieldError) Unwrap() error {
	return e.Err
}

//
// Stream errors

type StreamWriteError struct {
	Err error
}

func (e *StreamWriteError) Error() string {
	return fmt.Sprintf("Error when writing to stream: %v", e.Err)
}

func (e *StreamWriteError) Unwrap() error {
	return e.Err
}

type StreamReadError struct {
	Err error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("Error when reading the stream: %v", e.Err)
}

func (e *StreamReadError) Unwrap() error {
	return e.Err
}

//
// Channel / lifecycle errors

type ChannelClosedError struct {
	Context string
}

func (e *ChannelClosedError) Error() string {
	return fmt.Sprintf("Channel counterpart has hung up (context: %s)", e.Context)
}

type ChannelFullError struct {
	Context  string
	Capacity int
}

func (e *ChannelFullError) Error() string {
	return fmt.Sprintf("Channel is full (context: %s, capacity: %d)", e.Context, e.Capacity)
}

type ConnectionLostError struct {
	RemoteAddr string
	Reason     error
}

func (e *ConnectionLostError) Error() string {
	if e.Reason == nil {
		return fmt.Sprintf("Connection to %s lost", e.RemoteAddr)
	}
	return fmt.Sprintf("Connection to %s lost: %v", e.RemoteAddr, e.Reason)
}

func (e *ConnectionLostError) Unwrap() error {
	return e.Reason
}

type ProxyStoppedError struct {
	RemoteAddr string
}

func (e *ProxyStoppedError) Error() string {
	return fmt.Sprintf("Proxy for %s is not running", e.RemoteAddr)
}
