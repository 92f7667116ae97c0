package bot

import (
	"context"
	"fmt"
	"strconv"

	"remindbot/internal/sched"
	kit "remindbot/internal/transport"
)

// Messenger bridges the scheduler's delivery port onto a transport adapter.
// Channel IDs are stored as strings in the job set; Telegram wants int64.
type Messenger struct {
	adapter kit.Adapter
}

func NewMessenger(adapter kit.Adapter) *Messenger {
	return &Messenger{adapter: adapter}
}

func (m *Messenger) Send(ctx context.Context, channelID, text string, scope sched.MentionScope) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad channel id %q: %w", channelID, err)
	}

	opt := &kit.SendOptions{DisablePreview: true}
	// User mentions are rendered as tg://user links and need HTML parse mode.
	if scope == sched.MentionUser {
		opt.ParseMode = "HTML"
	}

	_, err = m.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt)
	return err
}
