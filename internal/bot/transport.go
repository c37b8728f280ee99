package bot

import (
	"context"

	"github.com/sweeney/climate-bot/internal/membership"
)

// Format selects how the transport renders a text message.
type Format int

const (
	Plain Format = iota
	HTML
	Markdown
)

// Button is one inline choice. Data is returned in the Callback when pressed.
type Button struct {
	Label string
	Data  string
}

// Transport delivers outbound messages through the chat service.
type Transport interface {
	// SendText sends a text message to a chat.
	SendText(ctx context.Context, chatID int64, text string, format Format) error

	// SendPrompt sends an HTML message with exactly two inline buttons.
	SendPrompt(ctx context.Context, chatID int64, text string, buttons [2]Button) error

	// SendPhoto sends a PNG image with a caption.
	SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error

	// EditText replaces the text of a previously sent message.
	EditText(ctx context.Context, chatID int64, messageID int, text string) error

	// AnswerCallback acknowledges a button press.
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Update is one inbound event. Exactly one field is set.
type Update struct {
	Command  *Command
	Callback *Callback
}

// Command is a slash command sent by a user.
type Command struct {
	From   membership.Profile
	ChatID int64
	Name   string
	Args   string
}

// Callback is a press of an inline button.
type Callback struct {
	ID        string
	From      membership.ID
	ChatID    int64
	MessageID int
	Data      string
}
