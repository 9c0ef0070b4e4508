package domain

type MessageType string

const (
	MessageRequest  MessageType = "REQUEST"
	MessageResponse MessageType = "RESPONSE"
)

// MessageDump is the external projection of an HTTP message shared by the
// live dashboard, captured scenarios and playback. Body is always the decoded text.
type MessageDump struct {
	Type          MessageType `json:"type"`
	Method        string      `json:"method,omitempty"`
	Host          string      `json:"host,omitempty"`
	Port          int         `json:"port,omitempty"`
	Path          string      `json:"path,omitempty"`
	StatusCode    int         `json:"statusCode,omitempty"`
	StatusMessage string      `json:"statusMessage,omitempty"`
	Headers       Header      `json:"headers,omitempty"`
	Body          string      `json:"body"`
}

// Clone returns a copy that shares no mutable state with d.
func (d *MessageDump) Clone() *MessageDump {
	if d == nil {
		return nil
	}
	c := *d
	c.Headers = d.Headers.Clone()
	return &c
}
