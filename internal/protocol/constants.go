package protocol

// Request-kind tags carried in the id field. Replies echo the tag of the
// request they answer.
const (
	IDAuthorize     int32 = 5
	IDCommand       int32 = 6
	IDLogger        int32 = 7
	IDProtocolCheck int32 = 8
)

// Message kinds carried in the type field. AuthResponse and ExecCommand
// share a value; the id field tells them apart.
const (
	TypeResponseValue int32 = 0
	TypeAuthResponse  int32 = 2
	TypeExecCommand   int32 = 2
	TypeAuth          int32 = 3
	TypeLogger        int32 = 4
	TypeProtocol      int32 = 9
)

// ProtocolVersion is the version this client speaks. LegacyProtocolVersion
// servers send plain-text logger bodies and no status record.
const (
	ProtocolVersion       = 3
	LegacyProtocolVersion = 2
)

// Frame layout: [4B size LE][4B id LE][4B type LE][body][0x00 0x00].
// size counts everything after itself.
const (
	SizeFieldLen = 4
	HeaderLen    = 8
	TrailerLen   = 2

	// MaxFrameSize bounds the declared size of an incoming frame.
	MaxFrameSize = 16 * 1024 * 1024

	// MaxBodyLen is the largest body whose size still fits the uint32 field.
	MaxBodyLen = 1<<32 - 1 - HeaderLen - TrailerLen
)

// KindName returns a short label for an id tag, used in debug traces.
func KindName(id int32) string {
	switch id {
	case IDAuthorize:
		return "authorize"
	case IDCommand:
		return "command"
	case IDLogger:
		return "logger"
	case IDProtocolCheck:
		return "protocol"
	default:
		return "unknown"
	}
}
