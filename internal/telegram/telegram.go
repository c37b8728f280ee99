// Package telegram connects the dispatcher to the Telegram Bot API using long
// polling.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sweeney/climate-bot/internal/bot"
	"github.com/sweeney/climate-bot/internal/membership"
)

// pollTimeout is the long-poll timeout in seconds.
const pollTimeout = 60

// Client is a bot.Transport over the Telegram Bot API.
type Client struct {
	api *tgbotapi.BotAPI
}

// New authenticates with the given bot token.
func New(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return &Client{api: api}, nil
}

// Username returns the bot's account name.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Updates long-polls for updates until ctx is done. The returned channel is
// closed once polling has stopped.
func (c *Client) Updates(ctx context.Context) <-chan bot.Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	raw := c.api.GetUpdatesChan(cfg)

	out := make(chan bot.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case u, ok := <-raw:
				if !ok {
					return
				}
				converted, ok := Convert(u)
				if !ok {
					continue
				}
				select {
				case out <- converted:
				case <-ctx.Done():
					c.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// Convert maps a Telegram update to a dispatcher update. Updates that are
// neither a command from a user nor a button press are dropped.
func Convert(u tgbotapi.Update) (bot.Update, bool) {
	if m := u.Message; m != nil && m.From != nil && m.Chat != nil && m.IsCommand() {
		return bot.Update{Command: &bot.Command{
			From:   Profile(m.From),
			ChatID: m.Chat.ID,
			Name:   m.Command(),
			Args:   m.CommandArguments(),
		}}, true
	}
	if q := u.CallbackQuery; q != nil && q.From != nil {
		cb := &bot.Callback{
			ID:   q.ID,
			From: membership.ID(q.From.ID),
			Data: q.Data,
		}
		if q.Message != nil && q.Message.Chat != nil {
			cb.ChatID = q.Message.Chat.ID
			cb.MessageID = q.Message.MessageID
		}
		return bot.Update{Callback: cb}, true
	}
	return bot.Update{}, false
}

// Profile snapshots a Telegram user.
func Profile(u *tgbotapi.User) membership.Profile {
	return membership.NewProfile(membership.ID(u.ID), u.FirstName, u.LastName, u.UserName, u.LanguageCode)
}

func parseMode(f bot.Format) string {
	switch f {
	case bot.HTML:
		return tgbotapi.ModeHTML
	case bot.Markdown:
		return tgbotapi.ModeMarkdown
	}
	return ""
}

// SendText sends a text message.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, format bot.Format) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode(format)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPrompt sends an HTML message with a two-button inline keyboard.
func (c *Client) SendPrompt(ctx context.Context, chatID int64, text string, buttons [2]bot.Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = Keyboard(buttons)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	return nil
}

// Keyboard builds the single-row inline keyboard of a prompt.
func Keyboard(buttons [2]bot.Button) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(buttons[0].Label, buttons[0].Data),
		tgbotapi.NewInlineKeyboardButtonData(buttons[1].Label, buttons[1].Data),
	))
}

// SendPhoto uploads a PNG.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "graph.png", Bytes: png})
	photo.Caption = caption
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// EditText replaces a message's text, dropping its keyboard.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if _, err := c.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
