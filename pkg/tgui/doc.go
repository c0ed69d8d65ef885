// Package tgui provides small helpers for building Telegram HTML messages.
//
// The H type marks strings as already-escaped; everything user-supplied must
// go through Esc (or a helper that escapes internally) before being embedded,
// so untrusted titles/summaries cannot break the rendered layout.
package tgui
