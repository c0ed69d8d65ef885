package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"digestbot/internal/directory"
	"digestbot/internal/mailer"
	kit "digestbot/internal/transport"
	logx "digestbot/pkg/logx"
)

// Mailer is the slice of the broadcast service the router needs.
type Mailer interface {
	RunCategory(ctx context.Context, categoryID int64) (mailer.Summary, error)
	RunFull(ctx context.Context, ref kit.MessageRef) (mailer.Summary, error)
	History() []mailer.RunRecord
}

const handlerTimeout = 30 * time.Second

// Router owns the conversational surface: subscriber menus, the inline
// subscription checklist, and the owner-only admin panel. It consumes the
// adapter's update stream and talks back through the same adapter.
type Router struct {
	adapter kit.Adapter
	dir     directory.Directory
	mailer  Mailer
	log     logx.Logger

	mu       sync.RWMutex
	owners   []int64
	sessions map[int64]*session
	picks    map[int64]map[int64]bool // in-progress checklist selections
	runCtx   context.Context          // long-lived; broadcasts outlive handler timeouts
}

func New(adapter kit.Adapter, dir directory.Directory, m Mailer, owners []int64, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter:  adapter,
		dir:      dir,
		mailer:   m,
		log:      log,
		owners:   append([]int64(nil), owners...),
		sessions: map[int64]*session{},
		picks:    map[int64]map[int64]bool{},
		runCtx:   context.Background(),
	}
}

// SetOwners swaps the admin list on config reload.
func (r *Router) SetOwners(owners []int64) {
	r.mu.Lock()
	r.owners = append([]int64(nil), owners...)
	r.mu.Unlock()
}

func (r *Router) isOwner(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.owners {
		if o == id {
			return true
		}
	}
	return false
}

// Run consumes updates until ctx ends or the channel closes. Handlers run
// inline: broadcast work is handed off internally, so nothing here blocks
// long enough to matter.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	r.mu.Lock()
	r.runCtx = ctx
	r.mu.Unlock()

	r.log.Info("router started")
	defer r.log.Info("router stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.handle(ctx, up)
		}
	}
}

func (r *Router) handle(ctx context.Context, up kit.Update) {
	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	start := time.Now()
	var err error

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("panic in update handler",
					logx.Any("panic", rec),
					logx.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		switch up.Kind {
		case kit.UpdateMessage:
			err = r.handleMessage(hctx, up.Message)
		case kit.UpdateCallback:
			err = r.handleCallback(hctx, up.Callback)
		}
	}()

	if err != nil {
		r.log.Warn("update handling failed",
			logx.String("kind", string(up.Kind)),
			logx.Duration("dur", time.Since(start)),
			logx.Err(err))
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *kit.Message) error {
	if msg == nil {
		return nil
	}

	// Pending conversation state wins over command parsing: an admin mid-flow
	// may be typing a category name or the broadcast content itself.
	if st := r.takeSession(msg.FromID); st != nil {
		return r.resumeSession(ctx, msg, st)
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	cmd := strings.Fields(text)[0]
	cmd = strings.TrimPrefix(cmd, "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "start":
		return r.sendMainMenu(ctx, msg.ChatID)
	case "help":
		return r.sendHelp(ctx, msg.ChatID, r.isOwner(msg.FromID))
	case "admin":
		if !r.isOwner(msg.FromID) {
			return r.reply(ctx, msg.ChatID, "Unauthorized.")
		}
		return r.sendAdminPanel(ctx, msg.ChatID)
	default:
		return r.reply(ctx, msg.ChatID, "Unknown command. Try /help")
	}
}

// Callback data uses "ns:action" or "ns:action:payload", mirroring how the
// buttons in menu.go are built.
func (r *Router) handleCallback(ctx context.Context, cb *kit.Callback) error {
	if cb == nil {
		return nil
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return nil
	}
	ns, action := parts[0], parts[1]
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	var err error
	switch ns {
	case "menu":
		err = r.handleMenuCallback(ctx, cb, action)
	case "sub":
		err = r.handleSubscriptionCallback(ctx, cb, action, payload)
	case "adm":
		if !r.isOwner(cb.FromID) {
			return r.adapter.AnswerCallback(ctx, cb.ID, "Forbidden")
		}
		err = r.handleAdminCallback(ctx, cb, action, payload)
	default:
		return nil
	}

	if err != nil {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Something went wrong")
		return err
	}
	return r.adapter.AnswerCallback(ctx, cb.ID, "")
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) error {
	_, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text,
		&kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}
