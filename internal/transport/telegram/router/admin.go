package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"digestbot/internal/mailer"
	kit "digestbot/internal/transport"
	logx "digestbot/pkg/logx"
	"digestbot/pkg/tgui"
)

func adminPanelKeyboard() kit.Keyboard {
	return kit.Keyboard{
		kit.Row(kit.Button{Text: "\U0001F4CA Stats", Data: "adm:stats"}),
		kit.Row(kit.Button{Text: "\U0001F4E3 Broadcast to everyone", Data: "adm:bcast"}),
		kit.Row(kit.Button{Text: "\U0001F5C2 Categories", Data: "adm:cats"}),
		kit.Row(kit.Button{Text: "\U0001F553 Recent runs", Data: "adm:runs"}),
	}
}

const adminPanelText = "Admin panel. Pick an action."

func (r *Router) sendAdminPanel(ctx context.Context, chatID int64) error {
	_, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, adminPanelText,
		&kit.SendOptions{Keyboard: adminPanelKeyboard()})
	return err
}

func (r *Router) handleAdminCallback(ctx context.Context, cb *kit.Callback, action, payload string) error {
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}

	switch action {
	case "panel":
		return r.adapter.EditText(ctx, ref, adminPanelText,
			&kit.SendOptions{Keyboard: adminPanelKeyboard()})

	case "stats":
		return r.showStats(ctx, ref)

	case "bcast":
		r.setSession(cb.FromID, &session{kind: sessAwaitBroadcast})
		return r.adapter.EditText(ctx, ref,
			"Send the message to broadcast. It will be copied to every recipient as-is (formatting and media survive). /cancel to abort.",
			nil)

	case "cats":
		return r.showCategoryAdmin(ctx, ref)

	case "runs":
		return r.showRuns(ctx, ref)

	case "cat":
		return r.handleCategoryAction(ctx, cb, ref, payload)

	case "run":
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil
		}
		return r.triggerCategoryRun(ctx, cb, id)
	}
	return nil
}

func (r *Router) showStats(ctx context.Context, ref kit.MessageRef) error {
	total, err := r.dir.SubscriberCount(ctx)
	if err != nil {
		return err
	}
	stats, err := r.dir.CategoryStats(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(tgui.B("Subscribers").String())
	fmt.Fprintf(&b, "\nUnique users: %d\n", total)
	for _, s := range stats {
		fmt.Fprintf(&b, "\n%s — %d", tgui.Esc(s.Name), s.Subscribers)
	}

	kb := kit.Keyboard{kit.Row(kit.Button{Text: "⬅ Back", Data: "adm:panel"})}
	return r.adapter.EditText(ctx, ref, b.String(),
		&kit.SendOptions{ParseMode: "HTML", Keyboard: kb})
}

func (r *Router) showRuns(ctx context.Context, ref kit.MessageRef) error {
	runs := r.mailer.History()
	if len(runs) > 10 {
		runs = runs[:10]
	}

	var b strings.Builder
	b.WriteString(tgui.B("Recent broadcast runs").String())
	if len(runs) == 0 {
		b.WriteString("\nNothing yet.")
	}
	for _, rec := range runs {
		target := "everyone"
		if rec.Kind == "category" {
			target = "category " + strconv.FormatInt(rec.CategoryID, 10)
		}
		fmt.Fprintf(&b, "\n\n%s, %s\ndelivered %d / blocked %d / failed %d",
			rec.Started.Format("02 Jan 15:04"), target,
			rec.Summary.Delivered, rec.Summary.Blocked, rec.Summary.Failed)
		if rec.Err != "" {
			fmt.Fprintf(&b, "\nerror: %s", tgui.Esc(tgui.TruncRunes(rec.Err, 200)))
		}
	}

	kb := kit.Keyboard{kit.Row(kit.Button{Text: "⬅ Back", Data: "adm:panel"})}
	return r.adapter.EditText(ctx, ref, b.String(),
		&kit.SendOptions{ParseMode: "HTML", Keyboard: kb})
}

// ---- Category management ----

func (r *Router) showCategoryAdmin(ctx context.Context, ref kit.MessageRef) error {
	cats, err := r.dir.Categories(ctx)
	if err != nil {
		return err
	}

	kb := make(kit.Keyboard, 0, len(cats)+2)
	for _, c := range cats {
		kb = append(kb, kit.Row(kit.Button{
			Text: c.Name,
			Data: "adm:cat:menu." + strconv.FormatInt(c.ID, 10),
		}))
	}
	kb = append(kb,
		kit.Row(kit.Button{Text: "➕ New category", Data: "adm:cat:add"}),
		kit.Row(kit.Button{Text: "⬅ Back", Data: "adm:panel"}),
	)

	return r.adapter.EditText(ctx, ref, tgui.B("Categories").String(),
		&kit.SendOptions{ParseMode: "HTML", Keyboard: kb})
}

// handleCategoryAction payloads look like "add", "menu.7", "ren.7", "desc.7",
// "del.7", "now.7" (callback data only allows two ':' separators).
func (r *Router) handleCategoryAction(ctx context.Context, cb *kit.Callback, ref kit.MessageRef, payload string) error {
	op, rest, _ := strings.Cut(payload, ".")

	if op == "add" {
		r.setSession(cb.FromID, &session{kind: sessAwaitCategoryName})
		return r.adapter.EditText(ctx, ref, "Send the new category name. /cancel to abort.", nil)
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return nil
	}

	switch op {
	case "menu":
		kb := kit.Keyboard{
			kit.Row(kit.Button{Text: "✏️ Rename", Data: "adm:cat:ren." + rest}),
			kit.Row(kit.Button{Text: "\U0001F4DD Edit description", Data: "adm:cat:desc." + rest}),
			kit.Row(kit.Button{Text: "\U0001F4E8 Mail now", Data: "adm:run:" + rest}),
			kit.Row(kit.Button{Text: "\U0001F5D1 Delete", Data: "adm:cat:del." + rest}),
			kit.Row(kit.Button{Text: "⬅ Back", Data: "adm:cats"}),
		}
		return r.adapter.EditText(ctx, ref, fmt.Sprintf("Category %d", id), &kit.SendOptions{Keyboard: kb})

	case "ren":
		r.setSession(cb.FromID, &session{kind: sessAwaitRename, categoryID: id})
		return r.adapter.EditText(ctx, ref, "Send the new name. /cancel to abort.", nil)

	case "desc":
		r.setSession(cb.FromID, &session{kind: sessAwaitRedescribe, categoryID: id})
		return r.adapter.EditText(ctx, ref, "Send the new description. /cancel to abort.", nil)

	case "del":
		if err := r.dir.DeleteCategory(ctx, id); err != nil {
			r.log.Error("category delete failed", logx.Int64("category_id", id), logx.Err(err))
			return err
		}
		r.log.Info("category deleted", logx.Int64("category_id", id))
		return r.showCategoryAdmin(ctx, ref)
	}
	return nil
}

// ---- Broadcast flows ----

// startFullBroadcast copies the admin's message to every recipient and keeps
// a status message updated while the run goes on in the background.
func (r *Router) startFullBroadcast(ctx context.Context, msg *kit.Message) error {
	src := kit.MessageRef{ChatID: msg.ChatID, MessageID: msg.ID}

	status, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, "Broadcasting…", nil)
	if err != nil {
		return err
	}

	r.mu.RLock()
	runCtx := r.runCtx
	r.mu.RUnlock()

	go func() {
		sum, err := r.mailer.RunFull(runCtx, src)

		var text string
		switch {
		case errors.Is(err, mailer.ErrBusy):
			text = "Another broadcast is already running, try later."
		case err != nil:
			text = "Broadcast failed: " + err.Error()
		default:
			text = fmt.Sprintf("Delivered %d of %d (blocked %d, failed %d).",
				sum.Delivered, sum.Total, sum.Blocked, sum.Failed)
		}
		if eerr := r.adapter.EditText(runCtx, status, text, nil); eerr != nil {
			r.log.Warn("broadcast status update failed", logx.Err(eerr))
		}
	}()
	return nil
}

// triggerCategoryRun fires a category mailing on demand from the admin panel.
func (r *Router) triggerCategoryRun(ctx context.Context, cb *kit.Callback, categoryID int64) error {
	r.mu.RLock()
	runCtx := r.runCtx
	r.mu.RUnlock()

	status, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: cb.ChatID}, "Mailing started…", nil)
	if err != nil {
		return err
	}

	go func() {
		sum, err := r.mailer.RunCategory(runCtx, categoryID)

		var text string
		switch {
		case errors.Is(err, mailer.ErrBusy):
			text = "A mailing for this category is already running."
		case err != nil:
			text = "Mailing failed: " + err.Error()
		case sum.SourceItems == 0:
			text = "No new items, nothing sent."
		default:
			text = fmt.Sprintf("Delivered %d of %d (blocked %d, failed %d).",
				sum.Delivered, sum.Total, sum.Blocked, sum.Failed)
		}
		if eerr := r.adapter.EditText(runCtx, status, text, nil); eerr != nil {
			r.log.Warn("mailing status update failed", logx.Err(eerr))
		}
	}()
	return nil
}
