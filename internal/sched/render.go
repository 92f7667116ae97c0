package sched

import (
	"context"
	"fmt"
	"strings"
)

// MentionScope tells the messenger what the rendered text intends to mention,
// so the transport can pick parse mode / mention behavior.
type MentionScope string

const (
	MentionNone MentionScope = "none"
	MentionRole MentionScope = "role"
	MentionUser MentionScope = "user"
)

// Rendered is the outbound payload for one occurrence.
type Rendered struct {
	Text  string
	Scope MentionScope
}

// Messenger delivers rendered notifications. Any non-nil error is a delivery
// failure: the occurrence stays in the job set and the wake is retried with
// backoff.
type Messenger interface {
	Send(ctx context.Context, channelID, text string, scope MentionScope) error
}

// Format renders the outbound message for a job. The kind set is closed and
// dispatch is a plain switch; an unknown kind on an already-stored job is
// corrupt data and reported as ErrUnknownKind so the engine can purge it.
func Format(j Job) (Rendered, error) {
	subject := strings.TrimSpace(j.Subject)
	switch j.Kind {
	case KindRolePing:
		return Rendered{Text: "🔔 @" + subject + " reminder", Scope: MentionRole}, nil
	case KindUserPing:
		return Rendered{
			Text:  fmt.Sprintf(`🔔 <a href="tg://user?id=%s">reminder</a>`, subject),
			Scope: MentionUser,
		}, nil
	case KindMessage:
		return Rendered{Text: "⏰ " + subject, Scope: MentionNone}, nil
	default:
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(j.Kind))
	}
}
