package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"digestbot/internal/directory"
	kit "digestbot/internal/transport"
	logx "digestbot/pkg/logx"
	"digestbot/pkg/tgui"
)

// sessionKind marks what the next plain-text message from a user means.
type sessionKind int

const (
	sessAwaitBroadcast sessionKind = iota
	sessAwaitCategoryName
	sessAwaitCategoryDesc
	sessAwaitRename
	sessAwaitRedescribe
)

const sessionTTL = 10 * time.Minute

type session struct {
	kind       sessionKind
	categoryID int64
	name       string // pending category name while waiting for its description
	expires    time.Time
}

func (r *Router) setSession(userID int64, st *session) {
	st.expires = time.Now().Add(sessionTTL)
	r.mu.Lock()
	r.sessions[userID] = st
	r.mu.Unlock()
}

// takeSession pops the user's pending state; expired states are dropped.
func (r *Router) takeSession(userID int64) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	delete(r.sessions, userID)
	if time.Now().After(st.expires) {
		return nil
	}
	return st
}

func (r *Router) resumeSession(ctx context.Context, msg *kit.Message, st *session) error {
	if strings.EqualFold(strings.TrimSpace(msg.Text), "/cancel") {
		return r.reply(ctx, msg.ChatID, "Cancelled.")
	}

	switch st.kind {
	case sessAwaitBroadcast:
		return r.startFullBroadcast(ctx, msg)

	case sessAwaitCategoryName:
		name := strings.TrimSpace(msg.Text)
		if name == "" {
			r.setSession(msg.FromID, st)
			return r.reply(ctx, msg.ChatID, "Category name cannot be empty. Send a name or /cancel.")
		}
		r.setSession(msg.FromID, &session{kind: sessAwaitCategoryDesc, name: name})
		return r.reply(ctx, msg.ChatID, "Now send a description for "+tgui.B(name).String()+".")

	case sessAwaitCategoryDesc:
		desc := strings.TrimSpace(msg.Text)
		id, err := r.dir.AddCategory(ctx, st.name, desc)
		if err != nil {
			r.log.Error("add category failed", logx.Err(err))
			return r.reply(ctx, msg.ChatID, "Could not create the category, see logs.")
		}
		r.log.Info("category created", logx.Int64("category_id", id), logx.String("name", st.name))
		return r.reply(ctx, msg.ChatID, fmt.Sprintf("Category %s created (id %d).", tgui.B(st.name), id))

	case sessAwaitRename:
		return r.updateCategoryField(ctx, msg, st.categoryID, directory.FieldName, "renamed")

	case sessAwaitRedescribe:
		return r.updateCategoryField(ctx, msg, st.categoryID, directory.FieldDescription, "description updated")
	}
	return nil
}

func (r *Router) updateCategoryField(ctx context.Context, msg *kit.Message, categoryID int64, field directory.CategoryField, done string) error {
	value := strings.TrimSpace(msg.Text)
	if value == "" {
		return r.reply(ctx, msg.ChatID, "Empty value, nothing changed.")
	}
	if err := r.dir.UpdateCategoryField(ctx, categoryID, field, value); err != nil {
		r.log.Error("category update failed",
			logx.Int64("category_id", categoryID),
			logx.String("field", string(field)),
			logx.Err(err))
		return r.reply(ctx, msg.ChatID, "Update failed, see logs.")
	}
	return r.reply(ctx, msg.ChatID, "Category "+done+".")
}
