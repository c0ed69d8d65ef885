package adapter

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "digestbot/internal/transport"
)

func TestClassifySend(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		err       error
		wantKind  kit.SendErrKind
		wantAfter time.Duration
	}{
		{
			name:      "flood",
			err:       tele.FloodError{RetryAfter: 17},
			wantKind:  kit.SendThrottled,
			wantAfter: 17 * time.Second,
		},
		{
			name:      "flood without retry hint",
			err:       tele.FloodError{},
			wantKind:  kit.SendThrottled,
			wantAfter: time.Second,
		},
		{
			name:     "blocked by user",
			err:      tele.ErrBlockedByUser,
			wantKind: kit.SendBlocked,
		},
		{
			name:     "deactivated account",
			err:      tele.ErrUserIsDeactivated,
			wantKind: kit.SendBlocked,
		},
		{
			name:     "chat gone",
			err:      tele.ErrChatNotFound,
			wantKind: kit.SendBlocked,
		},
		{
			name:     "wrapped blocked",
			err:      fmt.Errorf("send: %w", tele.ErrBlockedByUser),
			wantKind: kit.SendBlocked,
		},
		{
			name:     "unknown 403",
			err:      tele.NewError(403, "Forbidden: something new"),
			wantKind: kit.SendBlocked,
		},
		{
			name:     "generic",
			err:      errors.New("network down"),
			wantKind: kit.SendFailed,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := classifySend(tc.err)
			kind, after := kit.ClassifySend(got)
			if kind != tc.wantKind {
				t.Fatalf("kind = %v, want %v", kind, tc.wantKind)
			}
			if tc.wantAfter != 0 && after != tc.wantAfter {
				t.Fatalf("retry after = %v, want %v", after, tc.wantAfter)
			}
			if !errors.Is(got, tc.err) {
				t.Fatal("original error lost")
			}
		})
	}

	if classifySend(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	if got := splitTelegramText("short", 100, ""); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text should stay whole: %q", got)
	}

	long := ""
	for i := 0; i < 50; i++ {
		long += fmt.Sprintf("line %02d\n", i)
	}
	chunks := splitTelegramText(long, 100, "")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 100 {
			t.Fatalf("chunk %d has %d runes, limit 100", i, n)
		}
	}
}
