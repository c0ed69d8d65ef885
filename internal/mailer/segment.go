package mailer

import (
	"strings"

	"digestbot/internal/source"
	"digestbot/pkg/tgui"
)

// renderItem formats one item as a Telegram-HTML fragment ending in a blank
// line, so greedily concatenated fragments stay visually separated. An item
// with a URL but no title uses the link itself as the emphasized title.
func renderItem(it source.Item) string {
	var b strings.Builder
	b.WriteString("\U0001F4CC ") // pushpin

	title := strings.TrimSpace(it.Title)
	url := strings.TrimSpace(it.URL)
	switch {
	case title != "" && url != "":
		b.WriteString(tgui.BoldLink(title, url).String())
	case title != "":
		b.WriteString(tgui.B(title).String())
	case url != "":
		b.WriteString(tgui.BoldLink(url, url).String())
	}
	b.WriteString("\n")

	if s := strings.TrimSpace(it.Summary); s != "" {
		b.WriteString(tgui.Esc(s).String())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// Segment renders items and packs the fragments greedily into parts whose
// rune length never exceeds limit. Fragment boundaries are respected: an item
// is never split across parts unless it alone exceeds the limit, in which
// case it becomes its own oversized part rather than being dropped.
func Segment(items []source.Item, limit int) []MessagePart {
	if limit <= 0 {
		limit = defaultPartLimit
	}

	var parts []MessagePart
	var cur strings.Builder
	curRunes := 0

	flush := func() {
		text := strings.TrimRight(cur.String(), " \t\n")
		if text != "" {
			parts = append(parts, MessagePart{Text: text})
		}
		cur.Reset()
		curRunes = 0
	}

	for _, it := range items {
		// Items with no content at all render to a bare marker; drop them
		// instead of shipping noise.
		if strings.TrimSpace(it.Title) == "" && strings.TrimSpace(it.Summary) == "" &&
			strings.TrimSpace(it.URL) == "" {
			continue
		}
		frag := renderItem(it)
		n := len([]rune(frag))

		if curRunes > 0 && curRunes+n > limit {
			flush()
		}
		cur.WriteString(frag)
		curRunes += n

		// An oversized single fragment ships alone.
		if curRunes > limit {
			flush()
		}
	}
	flush()
	return parts
}
