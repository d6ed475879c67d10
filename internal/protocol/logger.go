package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBadLoggerPayload = errors.New("undecodable logger payload")

// Status is the server status record pushed with each logger poll.
type Status struct {
	Online   int     `json:"online"`
	Max      int     `json:"max"`
	Usage    string  `json:"usage"`
	Upload   float64 `json:"upload"`
	Download float64 `json:"download"`
	TPS      float64 `json:"tps"`
	Load     float64 `json:"load"`
}

// LoggerPayload is the body of a logger reply. Status is nil when the
// server did not send one.
type LoggerPayload struct {
	Logger string  `json:"logger"`
	Status *Status `json:"serverStatus,omitempty"`
}

// EncodeLoggerPayload serialises a payload the way a version 3 server does.
func EncodeLoggerPayload(p LoggerPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode logger payload: %w", err)
	}
	return string(b), nil
}

// DecodeLoggerPayload decodes a logger reply body for the negotiated
// protocol version. Legacy servers send the log text as-is.
func DecodeLoggerPayload(version int, body string) (LoggerPayload, error) {
	if version <= LegacyProtocolVersion {
		return LoggerPayload{Logger: body}, nil
	}
	var p LoggerPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return LoggerPayload{}, fmt.Errorf("%w: %w", ErrBadLoggerPayload, err)
	}
	return p, nil
}
