package transcript

// Sender identifies who a transcript message belongs to.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Message is one rendered entry of the conversation log.
type Message struct {
	Sender Sender
	Text   string
}

// ClearedText replaces the log after a clear.
const ClearedText = "Session cleared. Ready when you are!"
