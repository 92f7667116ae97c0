package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"remindbot/internal/sched"
)

const timeFormat = "2006-01-02 15:04:05 MST"

// shortID is the prefix shown to users; enough to cancel by.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func describeJob(j sched.Job) string {
	switch j.Kind {
	case sched.KindRolePing:
		return "ping role @" + j.Subject
	case sched.KindUserPing:
		return "ping user " + j.Subject
	default:
		return j.Subject
	}
}

// formatJobList renders Telegram-friendly HTML. Safe for ParseMode="HTML".
func formatJobList(jobs []sched.Job, limit int, loc *time.Location) string {
	if len(jobs) == 0 {
		return "Tidak ada pengingat terjadwal."
	}
	if limit <= 0 || limit > len(jobs) {
		limit = len(jobs)
	}

	lines := []string{fmt.Sprintf("⏰ <b>Pengingat</b> (%d)", len(jobs)), ""}
	for _, j := range jobs[:limit] {
		due := j.Due().In(loc)
		suffix := ""
		if j.RepeatsDaily {
			suffix = " 🔁 harian"
		}
		lines = append(lines, fmt.Sprintf("• <code>%s</code> %s — %s%s",
			html.EscapeString(shortID(j.ID)),
			due.Format(timeFormat),
			html.EscapeString(describeJob(j)),
			suffix))
	}
	if limit < len(jobs) {
		lines = append(lines, "", fmt.Sprintf("… dan %d lagi", len(jobs)-limit))
	}
	lines = append(lines, "", "Batalkan dengan <code>/cancel &lt;id&gt;</code>")
	return strings.Join(lines, "\n")
}

func formatScheduled(j sched.Job, loc *time.Location) string {
	due := j.Due().In(loc)
	suffix := ""
	if j.RepeatsDaily {
		suffix = " (berulang harian)"
	}
	return fmt.Sprintf("✅ Tersimpan <code>%s</code>: %s pada %s%s",
		html.EscapeString(shortID(j.ID)),
		html.EscapeString(describeJob(j)),
		due.Format(timeFormat),
		suffix)
}

func formatCanceled(j sched.Job) string {
	return fmt.Sprintf("🗑 Dibatalkan <code>%s</code>: %s",
		html.EscapeString(shortID(j.ID)),
		html.EscapeString(describeJob(j)))
}

func helpText() string {
	return strings.Join([]string{
		"📚 <b>Perintah</b>",
		"",
		"• <code>/remind &lt;kapan&gt; [--daily] &lt;isi&gt;</code> — jadwalkan pengingat",
		"• <code>/reminders</code> — daftar pengingat chat ini",
		"• <code>/cancel &lt;id&gt;</code> — batalkan pengingat",
		"• <code>/help</code> — bantuan ini",
		"",
		"<b>kapan</b>: durasi (<code>10m</code>, <code>1h30m</code>), jam (<code>07:30</code>), atau unix timestamp",
		"<b>isi</b>: <code>role:oncall</code>, <code>user:12345678</code>, atau teks bebas",
		"Tambahkan <code>--daily</code> untuk pengulangan tiap hari.",
	}, "\n")
}
