package adapter

import (
	"errors"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "digestbot/internal/transport"
)

// classifySend maps telebot failures onto the transport error taxonomy so
// dispatch loops never have to know Telegram's error surface.
func classifySend(err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		after := time.Duration(flood.RetryAfter) * time.Second
		if after <= 0 {
			after = time.Second
		}
		return &kit.SendError{Kind: kit.SendThrottled, RetryAfter: after, Err: err}
	}

	if isBlocked(err) {
		return &kit.SendError{Kind: kit.SendBlocked, Err: err}
	}
	return &kit.SendError{Kind: kit.SendFailed, Err: err}
}

func isBlocked(err error) bool {
	for _, known := range []error{
		tele.ErrBlockedByUser,
		tele.ErrUserIsDeactivated,
		tele.ErrChatNotFound,
		tele.ErrNotStartedByUser,
		tele.ErrKickedFromGroup,
		tele.ErrKickedFromSuperGroup,
	} {
		if errors.Is(err, known) {
			return true
		}
	}

	// Any other 403 means the bot has no access to the chat anymore.
	var te *tele.Error
	if errors.As(err, &te) && te.Code == 403 {
		return true
	}
	return false
}
