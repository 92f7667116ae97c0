package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	logx "remindbot/pkg/logx"
)

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("hello", 100, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("split = %v", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 10))
	}
	s := strings.Join(lines, "\n")

	chunks := splitTelegramText(s, 100, "")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		// newline-preferred splitting should not cut lines in half
		for _, ln := range strings.Split(c, "\n") {
			if ln != "" && len(ln) != 10 {
				t.Fatalf("chunk %d has a partial line %q", i, ln)
			}
		}
	}
}

func TestSplitTelegramTextAvoidsHTMLTagSplit(t *testing.T) {
	t.Parallel()
	// Build text whose naive cut point lands inside a tag.
	prefix := strings.Repeat("a", 95)
	s := prefix + `<a href="tg://user?id=12345">x</a>` + strings.Repeat("b", 50)

	chunks := splitTelegramText(s, 100, "HTML")
	for i, c := range chunks {
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("chunk %d splits inside a tag: %q", i, c)
		}
	}
}

func TestInboundUpdateChannelPostWithoutSender(t *testing.T) {
	t.Parallel()
	up, ok := inboundUpdate(&tele.Message{
		ID:   7,
		Chat: &tele.Chat{ID: -100_123},
		Text: "channel post",
	})
	if !ok {
		t.Fatal("channel post should produce an update")
	}
	if up.Message == nil || up.Message.ChatID != -100_123 || up.Message.Text != "channel post" {
		t.Fatalf("update = %+v", up.Message)
	}
	if up.Message.FromID != 0 || up.Message.FromUsername != "" {
		t.Fatalf("sender fields should stay zero, got %+v", up.Message)
	}
}

func TestInboundUpdateDropsIncomplete(t *testing.T) {
	t.Parallel()
	if _, ok := inboundUpdate(nil); ok {
		t.Fatal("nil message should be dropped")
	}
	if _, ok := inboundUpdate(&tele.Message{ID: 1}); ok {
		t.Fatal("message without chat should be dropped")
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
