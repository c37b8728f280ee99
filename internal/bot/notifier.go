package bot

import (
	"context"
	"fmt"
	"html"

	"github.com/sweeney/climate-bot/internal/access"
	"github.com/sweeney/climate-bot/internal/membership"
)

// Private chats share the user's id, so identities double as chat ids.

type notifier struct {
	t Transport
}

// NewNotifier adapts a Transport to the gateway's out-of-band messages.
func NewNotifier(t Transport) access.Notifier {
	return &notifier{t: t}
}

func (n *notifier) PromptAdmin(ctx context.Context, admin membership.ID, p membership.Profile) error {
	return n.t.SendPrompt(ctx, int64(admin), FormatPrompt(p), [2]Button{
		{Label: "✅", Data: access.CallbackData(access.Approve, p.ID)},
		{Label: "🚫", Data: access.CallbackData(access.Deny, p.ID)},
	})
}

func (n *notifier) NotifyDecision(ctx context.Context, requester membership.ID, d access.Decision) error {
	text := msgRequestDenied
	if d == access.Approve {
		text = msgRequestApproved
	}
	return n.t.SendText(ctx, int64(requester), text, Plain)
}

// FormatPrompt renders the admin's access request message.
func FormatPrompt(p membership.Profile) string {
	return fmt.Sprintf("<b>Access Request</b>\n"+
		"Id: %s\n"+
		"Username: %s\n"+
		"First Name: %s\n"+
		"Last Name: %s\n"+
		"Language: %s\n\n"+
		"Grant access to this user?",
		p.ID,
		html.EscapeString(p.Username),
		html.EscapeString(p.FirstName),
		html.EscapeString(p.LastName),
		html.EscapeString(p.Locale),
	)
}
