package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// ChatTarget identifies a delivery target. For direct messages the chat id
// equals the recipient's user id.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is a single inline-keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is rendered by the adapter as platform-native inline markup.
type Keyboard [][]Button

func Row(btns ...Button) []Button { return btns }

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       Keyboard
}

// Adapter is the messaging platform boundary. Implementations must classify
// delivery failures via SendError so callers can branch on the outcome kind.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// CopyMessage re-sends an existing message verbatim to another chat,
	// preserving formatting and attachments. Content is opaque to the caller.
	CopyMessage(ctx context.Context, to ChatTarget, ref MessageRef) error
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
