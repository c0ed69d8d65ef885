package router

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"digestbot/internal/directory"
	"digestbot/internal/mailer"
	kit "digestbot/internal/transport"
	logx "digestbot/pkg/logx"
)

type recordedSend struct {
	chatID int64
	text   string
	opt    *kit.SendOptions
}

type recordedEdit struct {
	ref  kit.MessageRef
	text string
	opt  *kit.SendOptions
}

type stubAdapter struct {
	mu     sync.Mutex
	sends  []recordedSend
	edits  []recordedEdit
	edited chan struct{}
	nextID int
}

func newStubAdapter() *stubAdapter {
	return &stubAdapter{edited: make(chan struct{}, 16)}
}

func (a *stubAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *stubAdapter) Stop(ctx context.Context) error                         { return nil }

func (a *stubAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	a.sends = append(a.sends, recordedSend{chatID: to.ChatID, text: text, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: a.nextID}, nil
}

func (a *stubAdapter) CopyMessage(ctx context.Context, to kit.ChatTarget, ref kit.MessageRef) error {
	return nil
}

func (a *stubAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	a.mu.Lock()
	a.edits = append(a.edits, recordedEdit{ref: ref, text: text, opt: opt})
	a.mu.Unlock()
	select {
	case a.edited <- struct{}{}:
	default:
	}
	return nil
}

func (a *stubAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error { return nil }

func (a *stubAdapter) lastSend(t *testing.T) recordedSend {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sends) == 0 {
		t.Fatal("no messages sent")
	}
	return a.sends[len(a.sends)-1]
}

func (a *stubAdapter) lastEdit(t *testing.T) recordedEdit {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.edits) == 0 {
		t.Fatal("no messages edited")
	}
	return a.edits[len(a.edits)-1]
}

type stubDirectory struct {
	directory.Directory

	mu         sync.Mutex
	categories []directory.Category
	subs       map[int64][]int64
	saved      map[int64][]int64
}

func (d *stubDirectory) Categories(ctx context.Context) ([]directory.Category, error) {
	return d.categories, nil
}

func (d *stubDirectory) CategoryDescription(ctx context.Context, id int64) (string, error) {
	for _, c := range d.categories {
		if c.ID == id {
			return c.Description, nil
		}
	}
	return "", nil
}

func (d *stubDirectory) UserSubscriptions(ctx context.Context, userID int64) ([]int64, error) {
	return d.subs[userID], nil
}

func (d *stubDirectory) UpdateUserSubscriptions(ctx context.Context, userID int64, ids []int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saved == nil {
		d.saved = map[int64][]int64{}
	}
	d.saved[userID] = append([]int64(nil), ids...)
	return nil
}

func (d *stubDirectory) AddCategory(ctx context.Context, name, description string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := int64(len(d.categories) + 1)
	d.categories = append(d.categories, directory.Category{ID: id, Name: name, Description: description})
	return id, nil
}

func (d *stubDirectory) SubscriberCount(ctx context.Context) (int, error) { return 5, nil }

func (d *stubDirectory) CategoryStats(ctx context.Context) ([]directory.CategoryStat, error) {
	return []directory.CategoryStat{{Name: "tech", Subscribers: 5}}, nil
}

type stubMailer struct {
	mu       sync.Mutex
	fullRefs []kit.MessageRef
	catRuns  []int64
	summary  mailer.Summary
	err      error
}

func (m *stubMailer) RunCategory(ctx context.Context, categoryID int64) (mailer.Summary, error) {
	m.mu.Lock()
	m.catRuns = append(m.catRuns, categoryID)
	m.mu.Unlock()
	return m.summary, m.err
}

func (m *stubMailer) RunFull(ctx context.Context, ref kit.MessageRef) (mailer.Summary, error) {
	m.mu.Lock()
	m.fullRefs = append(m.fullRefs, ref)
	m.mu.Unlock()
	return m.summary, m.err
}

func (m *stubMailer) History() []mailer.RunRecord { return nil }

func newTestRouter(a *stubAdapter, d *stubDirectory, m *stubMailer, owners ...int64) *Router {
	return New(a, d, m, owners, logx.Nop())
}

func message(fromID, chatID int64, text string) *kit.Message {
	return &kit.Message{ID: 1, ChatID: chatID, FromID: fromID, Text: text}
}

func callback(fromID int64, data string) *kit.Callback {
	return &kit.Callback{ID: "cb1", FromID: fromID, ChatID: fromID, MessageID: 99, Data: data}
}

func waitEdit(t *testing.T, a *stubAdapter) {
	t.Helper()
	select {
	case <-a.edited:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message edit")
	}
}

func TestStartSendsMainMenu(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	r := newTestRouter(a, &stubDirectory{}, &stubMailer{})

	if err := r.handleMessage(context.Background(), message(1, 1, "/start")); err != nil {
		t.Fatalf("handleMessage error: %v", err)
	}
	sent := a.lastSend(t)
	if sent.opt == nil || len(sent.opt.Keyboard) == 0 {
		t.Fatal("main menu should carry an inline keyboard")
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	r := newTestRouter(a, &stubDirectory{}, &stubMailer{})

	if err := r.handleMessage(context.Background(), message(1, 1, "/frobnicate")); err != nil {
		t.Fatalf("handleMessage error: %v", err)
	}
	if !strings.Contains(a.lastSend(t).text, "Unknown command") {
		t.Fatalf("unexpected reply: %q", a.lastSend(t).text)
	}
}

func TestPlainTextIgnored(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	r := newTestRouter(a, &stubDirectory{}, &stubMailer{})

	if err := r.handleMessage(context.Background(), message(1, 1, "hello there")); err != nil {
		t.Fatalf("handleMessage error: %v", err)
	}
	if len(a.sends) != 0 {
		t.Fatalf("plain chat must not trigger replies, got %d", len(a.sends))
	}
}

func TestAdminRequiresOwner(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	r := newTestRouter(a, &stubDirectory{}, &stubMailer{}, 100)

	if err := r.handleMessage(context.Background(), message(1, 1, "/admin")); err != nil {
		t.Fatalf("handleMessage error: %v", err)
	}
	if !strings.Contains(a.lastSend(t).text, "Unauthorized") {
		t.Fatalf("non-owner should be rejected: %q", a.lastSend(t).text)
	}

	if err := r.handleMessage(context.Background(), message(100, 100, "/admin")); err != nil {
		t.Fatalf("handleMessage error: %v", err)
	}
	if sent := a.lastSend(t); sent.opt == nil || len(sent.opt.Keyboard) == 0 {
		t.Fatal("admin panel should carry an inline keyboard")
	}
}

func TestChecklistToggleAndSave(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	d := &stubDirectory{
		categories: []directory.Category{{ID: 1, Name: "tech"}, {ID: 2, Name: "art"}},
		subs:       map[int64][]int64{42: {1}},
	}
	r := newTestRouter(a, d, &stubMailer{})
	ctx := context.Background()

	// Open seeds the selection from stored subscriptions.
	if err := r.handleCallback(ctx, callback(42, "sub:open")); err != nil {
		t.Fatalf("open: %v", err)
	}
	edit := a.lastEdit(t)
	if len(edit.opt.Keyboard) != 4 { // 2 categories + save + back
		t.Fatalf("keyboard rows = %d, want 4", len(edit.opt.Keyboard))
	}
	if !strings.HasPrefix(edit.opt.Keyboard[0][0].Text, "✅") {
		t.Fatalf("subscribed category not checked: %q", edit.opt.Keyboard[0][0].Text)
	}
	if !strings.HasPrefix(edit.opt.Keyboard[1][0].Text, "⬜") {
		t.Fatalf("unsubscribed category should be unchecked: %q", edit.opt.Keyboard[1][0].Text)
	}

	// Toggle art on, tech off.
	if err := r.handleCallback(ctx, callback(42, "sub:toggle:2")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := r.handleCallback(ctx, callback(42, "sub:toggle:1")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := r.handleCallback(ctx, callback(42, "sub:save")); err != nil {
		t.Fatalf("save: %v", err)
	}

	saved := d.saved[42]
	sort.Slice(saved, func(i, j int) bool { return saved[i] < saved[j] })
	if len(saved) != 1 || saved[0] != 2 {
		t.Fatalf("saved = %v, want [2]", saved)
	}
}

func TestFullBroadcastFlow(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	m := &stubMailer{summary: mailer.Summary{Total: 10, Delivered: 8, Blocked: 1, Failed: 1}}
	r := newTestRouter(a, &stubDirectory{}, m, 100)
	ctx := context.Background()

	// Arm the broadcast, then send the content.
	if err := r.handleCallback(ctx, callback(100, "adm:bcast")); err != nil {
		t.Fatalf("arm: %v", err)
	}
	waitEdit(t, a)

	if err := r.handleMessage(ctx, &kit.Message{ID: 77, ChatID: 100, FromID: 100, Text: "big news"}); err != nil {
		t.Fatalf("broadcast message: %v", err)
	}
	waitEdit(t, a)

	m.mu.Lock()
	refs := append([]kit.MessageRef(nil), m.fullRefs...)
	m.mu.Unlock()
	if len(refs) != 1 || refs[0].MessageID != 77 {
		t.Fatalf("RunFull refs = %v, want the admin message", refs)
	}
	if got := a.lastEdit(t).text; !strings.Contains(got, "Delivered 8 of 10") {
		t.Fatalf("status text = %q", got)
	}
}

func TestBroadcastCancel(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	m := &stubMailer{}
	r := newTestRouter(a, &stubDirectory{}, m, 100)
	ctx := context.Background()

	if err := r.handleCallback(ctx, callback(100, "adm:bcast")); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if err := r.handleMessage(ctx, message(100, 100, "/cancel")); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(m.fullRefs) != 0 {
		t.Fatal("cancelled broadcast must not run")
	}
	if !strings.Contains(a.lastSend(t).text, "Cancelled") {
		t.Fatalf("unexpected reply: %q", a.lastSend(t).text)
	}
}

func TestCategoryCreateFlow(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	d := &stubDirectory{}
	r := newTestRouter(a, d, &stubMailer{}, 100)
	ctx := context.Background()

	if err := r.handleCallback(ctx, callback(100, "adm:cat:add")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.handleMessage(ctx, message(100, 100, "Science")); err != nil {
		t.Fatalf("name: %v", err)
	}
	if !strings.Contains(a.lastSend(t).text, "description") {
		t.Fatalf("expected description prompt, got %q", a.lastSend(t).text)
	}
	if err := r.handleMessage(ctx, message(100, 100, "All about science")); err != nil {
		t.Fatalf("desc: %v", err)
	}
	if !strings.Contains(a.lastSend(t).text, "created") {
		t.Fatalf("expected creation confirmation, got %q", a.lastSend(t).text)
	}
}

func TestMailNowReportsNoItems(t *testing.T) {
	t.Parallel()
	a := newStubAdapter()
	m := &stubMailer{summary: mailer.Summary{}}
	r := newTestRouter(a, &stubDirectory{}, m, 100)

	if err := r.handleCallback(context.Background(), callback(100, "adm:run:7")); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitEdit(t, a)

	m.mu.Lock()
	runs := append([]int64(nil), m.catRuns...)
	m.mu.Unlock()
	if len(runs) != 1 || runs[0] != 7 {
		t.Fatalf("category runs = %v, want [7]", runs)
	}
	if got := a.lastEdit(t).text; !strings.Contains(got, "No new items") {
		t.Fatalf("status text = %q", got)
	}
}
