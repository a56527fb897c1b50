package protocol

// MessageType identifies a message exchanged over the worker channels.
type MessageType string

const (
	// MsgReady is written once by the worker after its model has loaded.
	MsgReady MessageType = "ready"
	// MsgRegister and MsgUnregister update the connection registry.
	MsgRegister   MessageType = "register"
	MsgUnregister MessageType = "unregister"
	// MsgShutdown asks the worker to return from its entrypoint.
	MsgShutdown MessageType = "shutdown"
	MsgError    MessageType = "error"
)

// Message is the envelope written as one JSON object per line on the
// inbound and outbound channels.
type Message struct {
	Type MessageType       `json:"type"`
	Text string            `json:"text,omitempty"`
	Meta map[string]string `json:"meta,omitempty"`
}

// Personal.AI order the ending
