package tuitest

import (
	"bytes"
	"io"
)

// terminalQueries are the capability probes lipgloss and bubbletea send at startup,
// paired with the replies a dark terminal would give.
var terminalQueries = []struct {
	query, reply string
}{
	{"\x1b[6n", "\x1b[1;1R"},
	{"\x1b]10;?\x07", "\x1b]10;rgb:cccc/cccc/cccc\x07"},
	{"\x1b]10;?\x1b\\", "\x1b]10;rgb:cccc/cccc/cccc\x1b\\"},
	{"\x1b]11;?\x07", "\x1b]11;rgb:0000/0000/0000\x07"},
	{"\x1b]11;?\x1b\\", "\x1b]11;rgb:0000/0000/0000\x1b\\"},
}

const responderTail = 64

// terminalResponder answers terminal queries so the program does not block waiting for a
// real terminal.
type terminalResponder struct {
	w   io.Writer
	buf []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w}
}

func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	for tr.answerOne() {
	}
	// A query may straddle two reads.
	if len(tr.buf) > responderTail {
		tr.buf = append(tr.buf[:0], tr.buf[len(tr.buf)-responderTail:]...)
	}
}

// answerOne replies to the earliest pending query and drops the buffer up to it.
func (tr *terminalResponder) answerOne() bool {
	first, at := -1, -1
	for i, q := range terminalQueries {
		if idx := bytes.Index(tr.buf, []byte(q.query)); idx >= 0 && (at < 0 || idx < at) {
			first, at = i, idx
		}
	}
	if first < 0 {
		return false
	}
	q := terminalQueries[first]
	tr.buf = tr.buf[at+len(q.query):]
	_, _ = io.WriteString(tr.w, q.reply)
	return true
}
