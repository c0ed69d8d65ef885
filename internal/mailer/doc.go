// Package mailer turns source items into paced broadcasts.
//
// The pipeline is: fetch items, render and segment them into size-bounded
// message parts, resolve the audience from the directory, then dispatch
// serially with per-recipient failure isolation. One unreachable recipient
// never aborts a run; only context cancellation does.
package mailer
