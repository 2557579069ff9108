// Package protocol defines the wire format shared by the relay server and
// the host agent: a JSON envelope for events and a one-byte prefix scheme
// for binary frames multiplexed over the same websocket.
package protocol

import "encoding/json"

// Binary message prefixes. The first byte of every binary websocket
// message identifies the payload kind.
const (
	BinFrameRaw  byte = 0x01 // raw JPEG frame
	BinFrameGzip byte = 0x02 // gzip-compressed JPEG frame (relay to observers only)
	BinAnalyze   byte = 0x03 // frame submitted for analysis
)

// Event type values carried in the envelope.
const (
	EventRegister       = "register"
	EventRegistered     = "registered"
	EventRegisterFailed = "register_failed"

	EventHostConnected    = "host_connected"
	EventHostDisconnected = "host_disconnected"

	EventCommand         = "command"
	EventCommandRejected = "command_rejected"

	EventInjectionText = "injection_text"
	EventSettings      = "settings"
	EventClipboard     = "clipboard"

	EventFileChunk    = "file_chunk"
	EventFileComplete = "file_complete"
	EventFileChunkAck = "file_chunk_ack"

	EventAnalysisStarted = "analysis_started"
	EventAnalysisResult  = "analysis_result"
	EventAnalysisFailed  = "analysis_failed"
)

// Command actions.
const (
	ActionMove    = "move"
	ActionClick   = "click"
	ActionScroll  = "scroll"
	ActionKeyDown = "keydown"
	ActionKeyUp   = "keyup"
)

// Clipboard origins.
const (
	OriginHost     = "host"
	OriginObserver = "observer"
)

// Message is the envelope for all text (JSON) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals a payload into an enveloped message ready for the wire.
func Encode(typ string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Message{Type: typ, Payload: raw})
}

// Register is sent by the host agent right after connecting.
type Register struct {
	Token string `json:"token"`
}

// Reason carries a human-readable rejection or failure cause.
type Reason struct {
	Reason string `json:"reason"`
}

// Command is one input action routed from an observer to the bound host.
type Command struct {
	Action string `json:"action"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	Button string `json:"button,omitempty"`
	Key    string `json:"key,omitempty"`
	DY     int    `json:"dy,omitempty"`
}

// Text wraps injected text and similar single-string payloads.
type Text struct {
	Text string `json:"text"`
}

// Settings is pushed from an observer and applied live by the capture loop.
type Settings struct {
	FPS     int `json:"fps"`
	Quality int `json:"quality"`
}

// Clipboard propagates clipboard content; Origin prevents echo loops.
type Clipboard struct {
	Text   string `json:"text"`
	Origin string `json:"origin,omitempty"`
}

// FileChunk is one acknowledged unit of a file transfer. Data is
// base64-encoded by encoding/json.
type FileChunk struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
}

// FileComplete closes the receiver's file handle.
type FileComplete struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// FileChunkAck gates the sender's next chunk.
type FileChunkAck struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Analysis result kinds.
const (
	KindClickable = "clickable"
	KindEssay     = "essay"
)

// Analysis reports the state of one answering-service request.
type Analysis struct {
	ID     uint64 `json:"id"`
	Kind   string `json:"kind,omitempty"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
}
