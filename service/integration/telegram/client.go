package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"
)

type Client struct {
	bot *telego.Bot
}

func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, nil
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Client{bot: bot}, nil
}

func (c *Client) GetMe(ctx context.Context) (*telego.User, error) {
	if c == nil || c.bot == nil {
		return nil, fmt.Errorf("telegram client not initialized")
	}
	return c.bot.GetMe(ctx)
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c == nil || c.bot == nil {
		return fmt.Errorf("telegram client not initialized")
	}

	msg := telegoutil.Message(
		telegoutil.ID(chatID),
		text,
	).WithParseMode(telego.ModeHTML)

	_, err := c.bot.SendMessage(ctx, msg)
	return err
}

// Health reports whether the bot token is accepted and the bot's username.
func (c *Client) Health(ctx context.Context) (bool, string) {
	me, err := c.GetMe(ctx)
	if err != nil {
		return false, ""
	}
	return true, "@" + me.Username
}
