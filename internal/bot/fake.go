package bot

import (
	"context"
	"sync"
)

// Sent is one recorded outbound message.
type Sent struct {
	ChatID  int64
	Text    string
	Format  Format
	Buttons []Button
	Photo   []byte
}

// Edit is one recorded message edit.
type Edit struct {
	ChatID    int64
	MessageID int
	Text      string
}

// FakeTransport records outbound traffic for test assertions.
// Safe for concurrent use.
type FakeTransport struct {
	mu sync.Mutex

	// Sent contains text messages, prompts and photos in send order.
	Sent []Sent

	// Edits contains every edited message.
	Edits []Edit

	// Answered contains acknowledged callback ids.
	Answered []string

	// FailChats makes sends to the given chats fail, e.g. a user who
	// blocked the bot.
	FailChats map[int64]error
}

// NewFakeTransport creates a FakeTransport for testing.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{FailChats: make(map[int64]error)}
}

func (f *FakeTransport) send(chatID int64, s Sent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailChats[chatID]; err != nil {
		return err
	}
	f.Sent = append(f.Sent, s)
	return nil
}

// SendText records a text message.
func (f *FakeTransport) SendText(ctx context.Context, chatID int64, text string, format Format) error {
	return f.send(chatID, Sent{ChatID: chatID, Text: text, Format: format})
}

// SendPrompt records a prompt with its buttons.
func (f *FakeTransport) SendPrompt(ctx context.Context, chatID int64, text string, buttons [2]Button) error {
	return f.send(chatID, Sent{ChatID: chatID, Text: text, Format: HTML, Buttons: buttons[:]})
}

// SendPhoto records a photo; the caption is stored as Text.
func (f *FakeTransport) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error {
	return f.send(chatID, Sent{ChatID: chatID, Text: caption, Photo: png})
}

// EditText records an edit.
func (f *FakeTransport) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, Edit{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

// AnswerCallback records the acknowledgement.
func (f *FakeTransport) AnswerCallback(ctx context.Context, callbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Answered = append(f.Answered, callbackID)
	return nil
}

// To returns the messages sent to chatID.
func (f *FakeTransport) To(chatID int64) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, s := range f.Sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Prompts returns the sent messages that carry buttons.
func (f *FakeTransport) Prompts() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, s := range f.Sent {
		if len(s.Buttons) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Reset clears recorded traffic.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = nil
	f.Edits = nil
	f.Answered = nil
}
