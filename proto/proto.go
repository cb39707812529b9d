// Package proto defines the message kinds exchanged by scenario threads and
// their payload encodings.
package proto

// Kind identifies the message type carried in kernel.Message.Kind.
type Kind uint16

const (
	MsgText Kind = iota + 1
	MsgValue
)

func (k Kind) String() string {
	switch k {
	case MsgText:
		return "text"
	case MsgValue:
		return "value"
	default:
		return "unknown"
	}
}
