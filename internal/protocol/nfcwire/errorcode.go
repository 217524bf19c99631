package nfcwire

import "encoding/json"

// ErrorCode is the wire taxonomy code carried in ERROR frame payloads.
type ErrorCode string

const (
	CodeParseError   ErrorCode = "PARSE_ERROR"
	CodeFrameError   ErrorCode = "FRAME_ERROR"
	CodeChecksum     ErrorCode = "CHECKSUM_MISMATCH"
	CodeBlocked      ErrorCode = "BLOCKED"
	CodeInternal     ErrorCode = "INTERNAL"
	CodeTimeout      ErrorCode = "TIMEOUT"
	CodeBusy         ErrorCode = "BUSY"
	CodeShuttingDown ErrorCode = "SHUTTING_DOWN"
)

// ErrorPayload is the JSON body of an ERROR frame.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

// ErrorFrame builds an ERROR frame for the given session.
func ErrorFrame(sessionID [16]byte, code ErrorCode, message string) *Frame {
	payload, _ := json.Marshal(ErrorPayload{Code: code, Message: message})
	return &Frame{
		SessionID: sessionID,
		Kind:      KindError,
		Payload:   payload,
	}
}
