package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	kit "digestbot/internal/transport"
	logx "digestbot/pkg/logx"
	"digestbot/pkg/tgui"
)

func mainMenuKeyboard() kit.Keyboard {
	return kit.Keyboard{
		kit.Row(kit.Button{Text: "\U0001F4DA Catalog", Data: "menu:catalog"}),
		kit.Row(kit.Button{Text: "⚙️ My subscriptions", Data: "sub:open"}),
		kit.Row(kit.Button{Text: "❓ Help", Data: "menu:help"}),
	}
}

const mainMenuText = "Hi! I deliver fresh digests for the topics you pick.\n\n" +
	"Browse the catalog, subscribe to what you like, and I will send new items on schedule."

func (r *Router) sendMainMenu(ctx context.Context, chatID int64) error {
	_, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, mainMenuText,
		&kit.SendOptions{Keyboard: mainMenuKeyboard(), DisablePreview: true})
	return err
}

func (r *Router) sendHelp(ctx context.Context, chatID int64, owner bool) error {
	var b strings.Builder
	b.WriteString(tgui.B("Commands").String())
	b.WriteString("\n/start — main menu\n/help — this message")
	if owner {
		b.WriteString("\n/admin — admin panel")
	}
	b.WriteString("\n\nUse the buttons under /start to manage subscriptions.")
	return r.reply(ctx, chatID, b.String())
}

func (r *Router) handleMenuCallback(ctx context.Context, cb *kit.Callback, action string) error {
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}

	switch action {
	case "main":
		return r.adapter.EditText(ctx, ref, mainMenuText,
			&kit.SendOptions{Keyboard: mainMenuKeyboard(), DisablePreview: true})
	case "catalog":
		return r.showCatalog(ctx, ref)
	case "help":
		var b strings.Builder
		b.WriteString(tgui.B("Commands").String())
		b.WriteString("\n/start — main menu\n/help — help")
		kb := kit.Keyboard{kit.Row(kit.Button{Text: "⬅ Back", Data: "menu:main"})}
		return r.adapter.EditText(ctx, ref, b.String(),
			&kit.SendOptions{ParseMode: "HTML", Keyboard: kb, DisablePreview: true})
	}
	return nil
}

// showCatalog lists every category as a button leading to its description.
func (r *Router) showCatalog(ctx context.Context, ref kit.MessageRef) error {
	cats, err := r.dir.Categories(ctx)
	if err != nil {
		return err
	}

	if len(cats) == 0 {
		kb := kit.Keyboard{kit.Row(kit.Button{Text: "⬅ Back", Data: "menu:main"})}
		return r.adapter.EditText(ctx, ref, "The catalog is empty for now.",
			&kit.SendOptions{Keyboard: kb})
	}

	kb := make(kit.Keyboard, 0, len(cats)+1)
	for _, c := range cats {
		kb = append(kb, kit.Row(kit.Button{
			Text: c.Name,
			Data: "sub:info:" + strconv.FormatInt(c.ID, 10),
		}))
	}
	kb = append(kb, kit.Row(kit.Button{Text: "⬅ Back", Data: "menu:main"}))

	return r.adapter.EditText(ctx, ref, tgui.B("Catalog").String()+"\nPick a topic to read about it.",
		&kit.SendOptions{ParseMode: "HTML", Keyboard: kb})
}

// ---- Subscription checklist ----

func (r *Router) handleSubscriptionCallback(ctx context.Context, cb *kit.Callback, action, payload string) error {
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}

	switch action {
	case "open":
		return r.openChecklist(ctx, cb.FromID, ref)

	case "toggle":
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil
		}
		r.togglePick(cb.FromID, id)
		return r.renderChecklist(ctx, cb.FromID, ref)

	case "save":
		return r.saveChecklist(ctx, cb.FromID, ref)

	case "info":
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil
		}
		return r.showCategoryInfo(ctx, id, ref)
	}
	return nil
}

func (r *Router) showCategoryInfo(ctx context.Context, categoryID int64, ref kit.MessageRef) error {
	cats, err := r.dir.Categories(ctx)
	if err != nil {
		return err
	}
	name := ""
	for _, c := range cats {
		if c.ID == categoryID {
			name = c.Name
			break
		}
	}
	desc, err := r.dir.CategoryDescription(ctx, categoryID)
	if err != nil {
		return err
	}
	if desc == "" {
		desc = "No description yet."
	}

	text := tgui.JoinH("\n\n", tgui.B(name), tgui.Esc(tgui.TruncRunes(desc, 800))).String()
	kb := kit.Keyboard{
		kit.Row(kit.Button{Text: "✅ Manage subscriptions", Data: "sub:open"}),
		kit.Row(kit.Button{Text: "⬅ Back", Data: "menu:catalog"}),
	}
	return r.adapter.EditText(ctx, ref, text,
		&kit.SendOptions{ParseMode: "HTML", Keyboard: kb, DisablePreview: true})
}

// openChecklist seeds the in-progress selection from the stored subscriptions
// and renders the toggle keyboard.
func (r *Router) openChecklist(ctx context.Context, userID int64, ref kit.MessageRef) error {
	subs, err := r.dir.UserSubscriptions(ctx, userID)
	if err != nil {
		return err
	}

	sel := map[int64]bool{}
	for _, id := range subs {
		sel[id] = true
	}
	r.mu.Lock()
	r.picks[userID] = sel
	r.mu.Unlock()

	return r.renderChecklist(ctx, userID, ref)
}

func (r *Router) togglePick(userID, categoryID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sel := r.picks[userID]
	if sel == nil {
		sel = map[int64]bool{}
		r.picks[userID] = sel
	}
	sel[categoryID] = !sel[categoryID]
}

func (r *Router) pickSnapshot(userID int64) map[int64]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[int64]bool{}
	for id, on := range r.picks[userID] {
		out[id] = on
	}
	return out
}

func (r *Router) renderChecklist(ctx context.Context, userID int64, ref kit.MessageRef) error {
	cats, err := r.dir.Categories(ctx)
	if err != nil {
		return err
	}
	sel := r.pickSnapshot(userID)

	kb := make(kit.Keyboard, 0, len(cats)+2)
	for _, c := range cats {
		mark := "⬜" // empty
		if sel[c.ID] {
			mark = "✅"
		}
		kb = append(kb, kit.Row(kit.Button{
			Text: mark + " " + c.Name,
			Data: "sub:toggle:" + strconv.FormatInt(c.ID, 10),
		}))
	}
	kb = append(kb,
		kit.Row(kit.Button{Text: "\U0001F4BE Save", Data: "sub:save"}),
		kit.Row(kit.Button{Text: "⬅ Back", Data: "menu:main"}),
	)

	text := tgui.B("Your subscriptions").String() + "\nToggle topics, then hit Save."
	return r.adapter.EditText(ctx, ref, text,
		&kit.SendOptions{ParseMode: "HTML", Keyboard: kb})
}

func (r *Router) saveChecklist(ctx context.Context, userID int64, ref kit.MessageRef) error {
	sel := r.pickSnapshot(userID)
	ids := make([]int64, 0, len(sel))
	for id, on := range sel {
		if on {
			ids = append(ids, id)
		}
	}

	if err := r.dir.UpdateUserSubscriptions(ctx, userID, ids); err != nil {
		r.log.Error("subscription save failed", logx.Int64("user_id", userID), logx.Err(err))
		return err
	}

	r.mu.Lock()
	delete(r.picks, userID)
	r.mu.Unlock()

	r.log.Info("subscriptions saved", logx.Int64("user_id", userID), logx.Int("count", len(ids)))
	text := fmt.Sprintf("Saved: %d topic(s). New digests will arrive on schedule.", len(ids))
	kb := kit.Keyboard{kit.Row(kit.Button{Text: "⬅ Back", Data: "menu:main"})}
	return r.adapter.EditText(ctx, ref, text, &kit.SendOptions{Keyboard: kb})
}
