package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message types carried in the envelope "type" field.
const (
	TypeRegister            = "register"
	TypeTranscription       = "transcription"
	TypeTranscriptionResult = "transcription_result"
	TypeTranslation         = "translation"
	TypeTTSRequest          = "tts_request"
	TypeTTSResponse         = "tts_response"
	TypeAudio               = "audio"
	TypePing                = "ping"
	TypePong                = "pong"
	TypeError               = "error"
	TypeSessionEnding       = "session_ending"
)

// Connection roles.
const (
	RoleSpeaker  = "speaker"
	RoleListener = "listener"
)

// Reply statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Well-known settings keys.
const (
	SettingSynthesisTier = "synthesisTier"
	SettingVoice         = "voice"
)

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

// Register declares or updates a connection's role, language, and settings.
// All fields are optional; absent fields leave the current value untouched.
type Register struct {
	Type         string            `json:"type"`
	Role         string            `json:"role,omitempty"`
	LanguageCode string            `json:"languageCode,omitempty"`
	Settings     map[string]string `json:"settings,omitempty"`
}

// Transcription carries speaker text that should be relayed to listeners.
type Transcription struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TTSRequest asks the server to synthesize one piece of text on demand.
type TTSRequest struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
	Voice        string `json:"voice,omitempty"`
}

// Audio is one base64-encoded speaker audio chunk.
type Audio struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Ping measures round-trip time. Timestamp is the client's clock in
// milliseconds and is echoed back verbatim.
type Ping struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Decode parses one inbound frame. It returns the envelope type alongside
// the typed message so callers can route replies even when decoding fails;
// typ is empty only when the frame has no usable type field.
func Decode(data []byte) (typ string, msg any, err error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, badRequest("invalid json frame", "")
	}
	typ = strings.TrimSpace(envelope.Type)
	if typ == "" {
		return "", nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeRegister:
		var m Register
		if err := json.Unmarshal(data, &m); err != nil {
			return typ, nil, badRequest("invalid register frame", "")
		}
		role := strings.TrimSpace(m.Role)
		if role != "" && role != RoleSpeaker && role != RoleListener {
			return typ, nil, unsupported("unsupported role", "role")
		}
		m.Role = role
		m.LanguageCode = strings.TrimSpace(m.LanguageCode)
		return typ, m, nil
	case TypeTranscription:
		var m Transcription
		if err := json.Unmarshal(data, &m); err != nil {
			return typ, nil, badRequest("invalid transcription frame", "")
		}
		if strings.TrimSpace(m.Text) == "" {
			return typ, nil, badRequest("transcription.text is required", "text")
		}
		return typ, m, nil
	case TypeTTSRequest:
		var m TTSRequest
		if err := json.Unmarshal(data, &m); err != nil {
			return typ, nil, badRequest("invalid tts_request frame", "")
		}
		if strings.TrimSpace(m.Text) == "" {
			return typ, nil, badRequest("tts_request.text is required", "text")
		}
		if strings.TrimSpace(m.LanguageCode) == "" {
			return typ, nil, badRequest("tts_request.languageCode is required", "languageCode")
		}
		return typ, m, nil
	case TypeAudio:
		var m Audio
		if err := json.Unmarshal(data, &m); err != nil {
			return typ, nil, badRequest("invalid audio frame", "")
		}
		if strings.TrimSpace(m.Data) == "" {
			return typ, nil, badRequest("audio.data is required", "data")
		}
		return typ, m, nil
	case TypePing:
		var m Ping
		if err := json.Unmarshal(data, &m); err != nil {
			return typ, nil, badRequest("invalid ping frame", "")
		}
		return typ, m, nil
	default:
		return typ, nil, unsupported("unsupported message type", "type")
	}
}

// RegisterData echoes the connection state applied by a register message.
type RegisterData struct {
	Role         string            `json:"role"`
	LanguageCode string            `json:"languageCode"`
	Settings     map[string]string `json:"settings,omitempty"`
}

type RegisterAck struct {
	Type   string       `json:"type"`
	Status string       `json:"status"`
	Data   RegisterData `json:"data"`
}

func NewRegisterAck(data RegisterData) RegisterAck {
	return RegisterAck{Type: TypeRegister, Status: StatusOK, Data: data}
}

// SpeechParams tells a client how to voice text locally when the server has
// no synthesized audio for it.
type SpeechParams struct {
	Lang  string  `json:"lang"`
	Voice string  `json:"voice,omitempty"`
	Rate  float64 `json:"rate,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`
}

// LatencyComponents breaks total latency down per stage, in milliseconds.
type LatencyComponents struct {
	Translation int64 `json:"translation"`
	TTS         int64 `json:"tts"`
	Processing  int64 `json:"processing"`
	Network     int64 `json:"network"`
}

type Latency struct {
	Total      int64             `json:"total"`
	Components LatencyComponents `json:"components"`
}

// Translation is the delivered result for one listener: translated text plus
// either synthesized audio or client-speech parameters. Text fields are
// always populated when the message is sent at all; AudioData may be empty.
type Translation struct {
	Type            string        `json:"type"`
	Text            string        `json:"text"`
	OriginalText    string        `json:"originalText"`
	SourceLanguage  string        `json:"sourceLanguage"`
	TargetLanguage  string        `json:"targetLanguage"`
	AudioData       string        `json:"audioData,omitempty"`
	UseClientSpeech bool          `json:"useClientSpeech,omitempty"`
	SpeechParams    *SpeechParams `json:"speechParams,omitempty"`
	Latency         Latency       `json:"latency"`
}

type TranscriptionResult struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type TTSResponse struct {
	Type         string        `json:"type"`
	Status       string        `json:"status"`
	AudioData    string        `json:"audioData,omitempty"`
	SpeechParams *SpeechParams `json:"speechParams,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type Pong struct {
	Type              string `json:"type"`
	Timestamp         int64  `json:"timestamp"`
	OriginalTimestamp int64  `json:"originalTimestamp"`
}

// ErrorReply is the typed error sent back to a misbehaving sender. The
// connection stays open; OriginalType names the envelope that failed.
type ErrorReply struct {
	Type         string `json:"type"`
	Status       string `json:"status"`
	Error        string `json:"error"`
	OriginalType string `json:"originalType,omitempty"`
	Param        string `json:"param,omitempty"`
}

func NewErrorReply(err error, originalType string) ErrorReply {
	reply := ErrorReply{
		Type:         TypeError,
		Status:       StatusError,
		OriginalType: originalType,
	}
	if err == nil {
		reply.Error = "unknown error"
		return reply
	}
	reply.Error = err.Error()
	if de, ok := err.(*DecodeError); ok {
		reply.Error = de.Message
		reply.Param = de.Param
	}
	return reply
}

// SessionEnding warns a connection that the server is about to close it.
type SessionEnding struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}
