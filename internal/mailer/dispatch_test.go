package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "digestbot/internal/transport"
	logx "digestbot/pkg/logx"
)

type sentMsg struct {
	chatID int64
	text   string
	copied bool
}

// fakeAdapter scripts per-recipient send errors and records every attempt.
type fakeAdapter struct {
	mu    sync.Mutex
	sends []sentMsg
	// errs holds a queue of results per chat id; nil entries succeed.
	errs map[int64][]error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{errs: map[int64][]error{}}
}

func (a *fakeAdapter) fail(chatID int64, errs ...error) {
	a.mu.Lock()
	a.errs[chatID] = append(a.errs[chatID], errs...)
	a.mu.Unlock()
}

func (a *fakeAdapter) next(chatID int64) error {
	q := a.errs[chatID]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	a.errs[chatID] = q[1:]
	return err
}

func (a *fakeAdapter) sentTo(chatID int64) []sentMsg {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []sentMsg
	for _, s := range a.sends {
		if s.chatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (a *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sends = append(a.sends, sentMsg{chatID: to.ChatID, text: text})
	if err := a.next(to.ChatID); err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(a.sends)}, nil
}

func (a *fakeAdapter) CopyMessage(ctx context.Context, to kit.ChatTarget, ref kit.MessageRef) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sends = append(a.sends, sentMsg{chatID: to.ChatID, copied: true})
	return a.next(to.ChatID)
}

func (a *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}

func (a *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}

func blockedErr() error {
	return &kit.SendError{Kind: kit.SendBlocked, Err: errors.New("bot was blocked by the user")}
}

func throttledErr(after time.Duration) error {
	return &kit.SendError{Kind: kit.SendThrottled, RetryAfter: after, Err: errors.New("too many requests")}
}

// testDispatcher swaps real sleeping for a recorder.
func testDispatcher(a *fakeAdapter) (*Dispatcher, *[]time.Duration) {
	d := NewDispatcher(a, Config{RatePerSec: 1000}, logx.Nop())
	var slept []time.Duration
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		slept = append(slept, dur)
		return ctx.Err()
	}
	return d, &slept
}

func TestDispatchAllDelivered(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	d, slept := testDispatcher(a)

	parts := []MessagePart{{Text: "one"}, {Text: "two"}}
	sum, err := d.Dispatch(context.Background(), []int64{10, 20}, parts)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	want := Summary{Total: 2, Delivered: 2, Parts: 2}
	if sum != want {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}
	if len(a.sends) != 4 {
		t.Fatalf("sends = %d, want 4", len(a.sends))
	}
	// part delay x2 + recipient delay x1; nothing after the final send.
	if len(*slept) != 3 {
		t.Fatalf("sleeps = %d, want 3 (%v)", len(*slept), *slept)
	}
}

func TestDispatchBlockedRecipientIsolated(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	a.fail(10, blockedErr())
	d, _ := testDispatcher(a)

	parts := []MessagePart{{Text: "one"}, {Text: "two"}}
	sum, err := d.Dispatch(context.Background(), []int64{10, 20}, parts)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if sum.Blocked != 1 || sum.Delivered != 1 {
		t.Fatalf("summary = %+v, want 1 blocked / 1 delivered", sum)
	}
	// The blocked recipient's second part must be skipped.
	if got := a.sentTo(10); len(got) != 1 {
		t.Fatalf("sends to blocked recipient = %d, want 1", len(got))
	}
	if got := a.sentTo(20); len(got) != 2 {
		t.Fatalf("sends to healthy recipient = %d, want 2", len(got))
	}
}

func TestDispatchThrottledRetrySucceeds(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	a.fail(10, throttledErr(3*time.Second), nil)
	d, slept := testDispatcher(a)

	sum, err := d.Dispatch(context.Background(), []int64{10}, []MessagePart{{Text: "one"}})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if sum.Delivered != 1 {
		t.Fatalf("summary = %+v, want delivered", sum)
	}
	if got := a.sentTo(10); len(got) != 2 {
		t.Fatalf("sends = %d, want 2 (original + retry)", len(got))
	}
	found := false
	for _, dur := range *slept {
		if dur == 3*time.Second {
			found = true
		}
	}
	if !found {
		t.Fatalf("mandated retry-after pause not honored: %v", *slept)
	}
}

func TestDispatchThrottledRetryBudgetIsOne(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	a.fail(10, throttledErr(time.Second), throttledErr(time.Second))
	d, _ := testDispatcher(a)

	sum, err := d.Dispatch(context.Background(), []int64{10, 20}, []MessagePart{{Text: "one"}})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if sum.Failed != 1 || sum.Delivered != 1 {
		t.Fatalf("summary = %+v, want 1 failed / 1 delivered", sum)
	}
	if got := a.sentTo(10); len(got) != 2 {
		t.Fatalf("sends = %d, want exactly one retry", len(got))
	}
}

func TestDispatchRetryBlockedCountsBlocked(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	a.fail(10, throttledErr(time.Second), blockedErr())
	d, _ := testDispatcher(a)

	sum, err := d.Dispatch(context.Background(), []int64{10}, []MessagePart{{Text: "one"}})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if sum.Blocked != 1 {
		t.Fatalf("summary = %+v, want blocked", sum)
	}
}

func TestDispatchGenericFailureIsolated(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	a.fail(10, errors.New("boom"))
	d, _ := testDispatcher(a)

	sum, err := d.Dispatch(context.Background(), []int64{10, 20}, []MessagePart{{Text: "one"}})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if sum.Failed != 1 || sum.Delivered != 1 {
		t.Fatalf("summary = %+v, want 1 failed / 1 delivered", sum)
	}
}

func TestDispatchCopyPart(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	d, _ := testDispatcher(a)

	ref := kit.MessageRef{ChatID: 999, MessageID: 5}
	sum, err := d.Dispatch(context.Background(), []int64{10, 20}, []MessagePart{{Copy: &ref}})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if sum.Delivered != 2 {
		t.Fatalf("summary = %+v, want 2 delivered", sum)
	}
	for _, s := range a.sends {
		if !s.copied {
			t.Fatalf("expected copy delivery, got text send to %d", s.chatID)
		}
	}
}

func TestDispatchStopsOnCancel(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	d, _ := testDispatcher(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, []int64{10, 20}, []MessagePart{{Text: "one"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(a.sends) != 0 {
		t.Fatalf("sends = %d, want 0 after cancellation", len(a.sends))
	}
}

func TestDispatchNoRecipients(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	d, _ := testDispatcher(a)

	sum, err := d.Dispatch(context.Background(), nil, []MessagePart{{Text: "one"}})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if sum.Total != 0 || len(a.sends) != 0 {
		t.Fatalf("expected no work, got %+v with %d sends", sum, len(a.sends))
	}
}
