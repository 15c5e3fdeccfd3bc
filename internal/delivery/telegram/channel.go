// Package telegram delivers announcements through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/spec-kit/announce-service/internal/config"
	"github.com/spec-kit/announce-service/internal/dispatch"
	"github.com/spec-kit/announce-service/internal/domain"
)

// NewBot builds a telebot client. Without a token the bot runs offline: it
// never polls and every API call fails, which keeps local setups bootable.
func NewBot(cfg config.TelegramConfig) (*tele.Bot, error) {
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	settings := tele.Settings{
		Token: strings.TrimSpace(cfg.Token),
		Poller: &tele.LongPoller{
			Timeout:        timeout,
			AllowedUpdates: []string{"message", "my_chat_member"},
		},
		Client:  &http.Client{Timeout: timeout + 10*time.Second},
		Offline: strings.TrimSpace(cfg.Token) == "",
	}
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return bot, nil
}

// Channel implements dispatch.Channel on top of a telebot client.
type Channel struct {
	bot *tele.Bot
}

var _ dispatch.Channel = (*Channel)(nil)

// NewChannel wraps bot.
func NewChannel(bot *tele.Bot) *Channel {
	return &Channel{bot: bot}
}

var htmlOptions = &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}

// Send posts msg to the chat and returns the new message id.
func (c *Channel) Send(ctx context.Context, chatID int64, msg dispatch.Message) (string, error) {
	what, err := sendable(msg)
	if err != nil {
		return "", err
	}
	sent, err := call(ctx, func() (*tele.Message, error) {
		return c.bot.Send(&tele.Chat{ID: chatID}, what, htmlOptions)
	})
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.ID), nil
}

// Edit replaces the text of a text message or the caption of a media message.
func (c *Channel) Edit(ctx context.Context, chatID int64, ref string, msg dispatch.Message) (string, error) {
	target, err := editable(chatID, ref)
	if err != nil {
		return "", err
	}
	_, err = call(ctx, func() (*tele.Message, error) {
		if msg.MediaType == domain.MediaText || msg.MediaType == "" {
			return c.bot.Edit(target, msg.Text, htmlOptions)
		}
		return c.bot.EditCaption(target, msg.Text, htmlOptions)
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// Delete removes the referenced message.
func (c *Channel) Delete(ctx context.Context, chatID int64, ref string) error {
	target, err := editable(chatID, ref)
	if err != nil {
		return err
	}
	_, err = call(ctx, func() (struct{}, error) {
		return struct{}{}, c.bot.Delete(target)
	})
	return err
}

// Notify sends a plain HTML message, used for review-chat notices.
func (c *Channel) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := c.Send(ctx, chatID, dispatch.Message{Text: text, MediaType: domain.MediaText})
	return err
}

func editable(chatID int64, ref string) (*tele.Message, error) {
	id, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("invalid message reference %q", ref)
	}
	return &tele.Message{ID: id, Chat: &tele.Chat{ID: chatID}}, nil
}

func sendable(msg dispatch.Message) (any, error) {
	switch msg.MediaType {
	case domain.MediaText, "":
		return msg.Text, nil
	case domain.MediaImage:
		return &tele.Photo{File: resolveFile(msg.MediaRef), Caption: msg.Text}, nil
	case domain.MediaVideo:
		return &tele.Video{File: resolveFile(msg.MediaRef), Caption: msg.Text}, nil
	case domain.MediaFile:
		return &tele.Document{File: resolveFile(msg.MediaRef), Caption: msg.Text}, nil
	default:
		return nil, fmt.Errorf("unsupported media type %q", msg.MediaType)
	}
}

// resolveFile maps a stored media reference to a telebot file: URLs are
// fetched by Telegram, existing local paths are uploaded and anything else is
// treated as a Telegram file id.
func resolveFile(ref string) tele.File {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tele.FromURL(ref)
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return tele.FromDisk(ref)
	}
	return tele.File{FileID: ref}
}

// call runs fn and returns early when ctx ends. telebot calls are bounded by
// the HTTP client timeout, so an abandoned call does not leak for long.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{val: v, err: err}
	}()
	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
