// Package protocol defines the duplex live-session wire format: the
// client frames a browser sends and the server events the session
// engine emits back. Every message is a discriminated JSON object with
// a stable "type" tag.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ProtocolVersion1 = "1"

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ---- client → server frames ----

// ClientStart opens a session. First frame on every connection.
type ClientStart struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocolVersion"`
	SessionID       string `json:"sessionId"`
	LanguageCode    string `json:"languageCode,omitempty"`
	VoiceName       string `json:"voiceName,omitempty"`
	LeadEmail       string `json:"leadEmail,omitempty"`
	Mock            bool   `json:"mock,omitempty"`
}

// ClientAudioChunk carries one inbound audio frame, base64-encoded.
type ClientAudioChunk struct {
	Type     string `json:"type"`
	DataB64  string `json:"data"`
	MimeType string `json:"mimeType,omitempty"`
}

// ClientText carries one inbound typed user message.
type ClientText struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content"`
}

// ClientToolResult resolves a previously emitted tool_call by id.
type ClientToolResult struct {
	Type    string         `json:"type"`
	CallID  string         `json:"callId"`
	Name    string         `json:"name,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	IsError bool           `json:"isError,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ClientEnd closes the session from the client side.
type ClientEnd struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// DecodeClientMessage parses and validates one inbound frame.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "start":
		var msg ClientStart
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start frame", "")
		}
		if err := ValidateStart(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "audio_chunk":
		var msg ClientAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_chunk", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_chunk.data is required", "data")
		}
		return msg, nil
	case "text":
		var msg ClientText
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid text frame", "")
		}
		if strings.TrimSpace(msg.Content) == "" {
			return nil, badRequest("text.content is required", "content")
		}
		return msg, nil
	case "tool_result":
		var msg ClientToolResult
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid tool_result", "")
		}
		if strings.TrimSpace(msg.CallID) == "" {
			return nil, badRequest("tool_result.callId is required", "callId")
		}
		return msg, nil
	case "end":
		var msg ClientEnd
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid end frame", "")
		}
		return msg, nil
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}

// ValidateStart checks the opening frame.
func ValidateStart(msg ClientStart) error {
	if strings.TrimSpace(msg.ProtocolVersion) == "" {
		return badRequest("start.protocolVersion is required", "protocolVersion")
	}
	if strings.TrimSpace(msg.ProtocolVersion) != ProtocolVersion1 {
		return unsupported("unsupported protocolVersion", "protocolVersion")
	}
	if strings.TrimSpace(msg.SessionID) == "" {
		return badRequest("start.sessionId is required", "sessionId")
	}
	return nil
}

// ---- server → client events ----

type ServerConnected struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

type ServerStartAck struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

type ServerSessionStarted struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	LanguageCode string `json:"languageCode,omitempty"`
	VoiceName    string `json:"voiceName,omitempty"`
	Mock         bool   `json:"mock,omitempty"`
}

type ServerSessionClosed struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type ServerInputTranscript struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal,omitempty"`
}

type ServerOutputTranscript struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal,omitempty"`
}

type ServerModelText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ServerText struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type ServerAudio struct {
	Type      string `json:"type"`
	AudioData string `json:"audioData"`
	MimeType  string `json:"mimeType,omitempty"`
}

type ServerHeartbeat struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type ServerTurnComplete struct {
	Type         string `json:"type"`
	TurnComplete bool   `json:"turnComplete"`
}

type ServerSetupComplete struct {
	Type          string `json:"type"`
	SetupComplete bool   `json:"setupComplete"`
}

type ServerInterrupted struct {
	Type        string `json:"type"`
	Interrupted bool   `json:"interrupted"`
}

type ServerToolCall struct {
	Type   string         `json:"type"`
	CallID string         `json:"callId"`
	Name   string         `json:"name"`
	Input  map[string]any `json:"input,omitempty"`
}

type ServerToolResult struct {
	Type       string `json:"type"`
	CallID     string `json:"callId"`
	Name       string `json:"name,omitempty"`
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
	DurationMS int64  `json:"durationMs,omitempty"`
}

type ServerToolCallCancellation struct {
	Type    string   `json:"type"`
	CallIDs []string `json:"callIds"`
}

type ServerStageUpdate struct {
	Type  string `json:"type"`
	Stage string `json:"stage"`
	Agent string `json:"agent"`
	Flow  any    `json:"flow,omitempty"`
}

type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Detail  any    `json:"detail,omitempty"`
}
