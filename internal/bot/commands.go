package bot

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/sched"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const defaultListLimit = 25

// Commands wires the reminder scheduler into chat commands.
type Commands struct {
	svc       *sched.Service
	listLimit int
	now       func() time.Time
}

func NewCommands(svc *sched.Service, listLimit int) *Commands {
	if listLimit <= 0 {
		listLimit = defaultListLimit
	}
	return &Commands{svc: svc, listLimit: listLimit, now: time.Now}
}

// Register installs the command set on the router.
func (c *Commands) Register(r *Router) {
	r.Register(
		Command{
			Name:        "remind",
			Aliases:     []string{"r"},
			Description: "jadwalkan pengingat",
			Usage:       "/remind <kapan> [--daily] <isi>",
			Timeout:     10 * time.Second,
			Handle:      c.handleRemind,
		},
		Command{
			Name:        "reminders",
			Aliases:     []string{"list"},
			Description: "daftar pengingat chat ini",
			Usage:       "/reminders",
			Timeout:     10 * time.Second,
			Handle:      c.handleList,
		},
		Command{
			Name:        "cancel",
			Description: "batalkan pengingat",
			Usage:       "/cancel <id>",
			Timeout:     10 * time.Second,
			Handle:      c.handleCancel,
		},
		Command{
			Name:        "help",
			Aliases:     []string{"h", "start"},
			Description: "tampilkan bantuan",
			Usage:       "/help",
			Timeout:     5 * time.Second,
			Handle:      c.handleHelp,
		},
	)
}

func reply(ctx context.Context, req *Request, text string) {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	if err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
}

func (c *Commands) handleRemind(ctx context.Context, req *Request) error {
	spec, err := ParseRemindArgs(req.Args, c.now())
	if err != nil {
		var ue *UsageError
		if errors.As(err, &ue) {
			reply(ctx, req, ue.Msg)
			return nil
		}
		return err
	}

	job, err := c.svc.Schedule(ctx, sched.ScheduleRequest{
		TenantID:     req.TenantID(),
		ChannelID:    req.TenantID(),
		Kind:         spec.Kind,
		Subject:      spec.Subject,
		DueUnix:      spec.DueUnix,
		RepeatsDaily: spec.Daily,
		CreatedBy:    strconv.FormatInt(req.FromID, 10),
	})
	if err != nil {
		if errors.Is(err, sched.ErrPastDue) {
			reply(ctx, req, "waktunya sudah lewat; pilih waktu di masa depan")
			return nil
		}
		reply(ctx, req, "gagal menyimpan pengingat")
		return err
	}

	reply(ctx, req, formatScheduled(job, c.now().Location()))
	return nil
}

func (c *Commands) handleList(ctx context.Context, req *Request) error {
	jobs, err := c.svc.List(ctx, req.TenantID())
	if err != nil {
		reply(ctx, req, "gagal membaca daftar pengingat")
		return err
	}
	reply(ctx, req, formatJobList(jobs, c.listLimit, c.now().Location()))
	return nil
}

func (c *Commands) handleCancel(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		reply(ctx, req, "format: /cancel <id> (lihat /reminders)")
		return nil
	}
	prefix := strings.TrimSpace(req.Args[0])

	jobs, err := c.svc.List(ctx, req.TenantID())
	if err != nil {
		reply(ctx, req, "gagal membaca daftar pengingat")
		return err
	}

	var matches []sched.Job
	for _, j := range jobs {
		if strings.HasPrefix(j.ID, prefix) {
			matches = append(matches, j)
		}
	}
	switch len(matches) {
	case 0:
		reply(ctx, req, "tidak ada pengingat dengan id <code>"+html.EscapeString(prefix)+"</code>")
		return nil
	case 1:
	default:
		reply(ctx, req, "id <code>"+html.EscapeString(prefix)+"</code> tidak unik; pakai id yang lebih panjang")
		return nil
	}

	removed, err := c.svc.Cancel(ctx, req.TenantID(), matches[0].ID)
	if err != nil {
		if errors.Is(err, sched.ErrNotFound) {
			// Raced with delivery; the reminder is gone either way.
			reply(ctx, req, "pengingat sudah tidak ada")
			return nil
		}
		reply(ctx, req, "gagal membatalkan pengingat")
		return err
	}

	reply(ctx, req, formatCanceled(removed))
	return nil
}

func (c *Commands) handleHelp(ctx context.Context, req *Request) error {
	reply(ctx, req, helpText())
	return nil
}
