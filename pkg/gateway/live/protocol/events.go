package protocol

import "time"

func Connected(connectionID string) ServerConnected {
	return ServerConnected{Type: "connected", ConnectionID: connectionID}
}

func StartAck(connectionID string) ServerStartAck {
	return ServerStartAck{Type: "start_ack", ConnectionID: connectionID}
}

func SessionStarted(connectionID, languageCode, voiceName string, mock bool) ServerSessionStarted {
	return ServerSessionStarted{
		Type:         "session_started",
		ConnectionID: connectionID,
		LanguageCode: languageCode,
		VoiceName:    voiceName,
		Mock:         mock,
	}
}

func SessionClosed(reason string) ServerSessionClosed {
	return ServerSessionClosed{Type: "session_closed", Reason: reason}
}

func InputTranscript(text string, isFinal bool) ServerInputTranscript {
	return ServerInputTranscript{Type: "input_transcript", Text: text, IsFinal: isFinal}
}

func OutputTranscript(text string, isFinal bool) ServerOutputTranscript {
	return ServerOutputTranscript{Type: "output_transcript", Text: text, IsFinal: isFinal}
}

func ModelText(text string) ServerModelText {
	return ServerModelText{Type: "model_text", Text: text}
}

func Text(content string) ServerText {
	return ServerText{Type: "text", Content: content}
}

func Audio(dataB64, mimeType string) ServerAudio {
	return ServerAudio{Type: "audio", AudioData: dataB64, MimeType: mimeType}
}

func Heartbeat(now time.Time) ServerHeartbeat {
	return ServerHeartbeat{Type: "heartbeat", Timestamp: now.UnixMilli()}
}

func TurnComplete() ServerTurnComplete {
	return ServerTurnComplete{Type: "turn_complete", TurnComplete: true}
}

func SetupComplete() ServerSetupComplete {
	return ServerSetupComplete{Type: "setup_complete", SetupComplete: true}
}

func Interrupted() ServerInterrupted {
	return ServerInterrupted{Type: "interrupted", Interrupted: true}
}

func ToolCall(callID, name string, input map[string]any) ServerToolCall {
	return ServerToolCall{Type: "tool_call", CallID: callID, Name: name, Input: input}
}

func ToolCallCancellation(callIDs []string) ServerToolCallCancellation {
	return ServerToolCallCancellation{Type: "tool_call_cancellation", CallIDs: callIDs}
}

func StageUpdate(stage, agent string, flow any) ServerStageUpdate {
	return ServerStageUpdate{Type: "stage_update", Stage: stage, Agent: agent, Flow: flow}
}

func Error(message, code string) ServerError {
	return ServerError{Type: "error", Message: message, Code: code}
}
