package proto

import (
	"encoding/binary"
	"strconv"
)

// TextPayload encodes a MsgText payload.
//
// Convention:
// - Payload is UTF-8 bytes without a trailing newline.
// - The text is copied; the payload may be retained by the receiver.
func TextPayload(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

// ValuePayload encodes a MsgValue payload.
//
// Layout (little-endian):
//   - u64: value
func ValuePayload(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// DecodeValue decodes a ValuePayload.
func DecodeValue(payload []byte) (uint64, bool) {
	if len(payload) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(payload), true
}

// Format renders a payload of the given kind for humans: text as is, values
// in decimal. Malformed or unknown payloads render as their kind and length.
func Format(kind Kind, payload []byte) string {
	switch kind {
	case MsgText:
		return string(payload)
	case MsgValue:
		if v, ok := DecodeValue(payload); ok {
			return strconv.FormatUint(v, 10)
		}
	}
	return kind.String() + "[" + strconv.Itoa(len(payload)) + "]"
}
