package wire

import (
	"github.com/sessamekesh/chessnet/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const headerSizeFieldNumber protowire.Number = 1

// HeaderSize is the serialized size of every Header. The size field is always
// encoded as a fixed64 so the preamble never changes width.
var HeaderSize = protowire.SizeTag(headerSizeFieldNumber) + protowire.SizeFixed64()

// Header is the fixed-size preamble declaring the byte length of the payload
// that follows it on the stream.
type Header struct {
	Size uint64
}

func SerializeHeader(h Header) ([]byte, error) {
	out := make([]byte, 0, HeaderSize)
	out = protowire.AppendTag(out, headerSizeFieldNumber, protowire.Fixed64Type)
	out = protowire.AppendFixed64(out, h.Size)

	if err := CheckHeaderSize(out); err != nil {
		return nil, err
	}
	return out, nil
}

func CheckHeaderSize(raw []byte) error {
	if len(raw) != HeaderSize {
		return &errors.HeaderSizeMismatch{
			ExpectedSize: HeaderSize,
			ActualSize:   len(raw),
		}
	}
	return nil
}

func ParseHeader(raw []byte) (Header, error) {
	if err := CheckHeaderSize(raw); err != nil {
		return Header{}, err
	}

	num, typ, n := protowire.ConsumeTag(raw)
	if n < 0 {
		return Header{}, protowire.ParseError(n)
	}
	if num != headerSizeFieldNumber || typ != protowire.Fixed64Type {
		return Header{}, &errors.MissingFieldError{
			MessageName: "Header",
			FieldName:   "Size",
		}
	}

	size, m := protowire.ConsumeFixed64(raw[n:])
	if m < 0 {
		return Header{}, protowire.ParseError(m)
	}

	return Header{Size: size}, nil
}
