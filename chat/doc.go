// Package chat connects to IRC and feeds public channel messages into the
// per-channel day logs.
//
// The client speaks Twitch-flavored IRC but works against any bouncer that
// accepts PASS/NICK: point IRC_ADDR at the bouncer host:port and set IRC_TLS=0
// for plaintext. Incoming messages are stripped of mIRC formatting codes
// before logging so the emailed digests stay readable in plain text.
//
// The recorder never blocks on the digest side: the two only share the
// filesystem, and the recorder writes exclusively to today's files while the
// digest job moves only files dated before today.
package chat
