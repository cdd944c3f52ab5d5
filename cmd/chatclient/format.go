package main

import (
	"fmt"
	"io"

	"event_chat/internal/chatsync"
)

func formatMessage(m chatsync.Message) string {
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04:05"), m.DisplayAlias, m.Content)
	switch m.State {
	case chatsync.StatePending:
		line += " (sending)"
	case chatsync.StateFailed:
		line += fmt.Sprintf(" (failed: %v, id %s)", m.Err, m.ID)
	}
	return line
}

// viewPrinter 只輸出新出現或狀態改變的訊息
type viewPrinter struct {
	out      io.Writer
	seen     map[string]chatsync.State
	lastErr  error
	wasBlock bool
}

func newViewPrinter(out io.Writer) *viewPrinter {
	return &viewPrinter{out: out, seen: make(map[string]chatsync.State)}
}

func (p *viewPrinter) Print(v chatsync.View) {
	if v.FetchErr != nil && !sameError(v.FetchErr, p.lastErr) {
		fmt.Fprintf(p.out, "! could not load messages: %v\n", v.FetchErr)
	}
	p.lastErr = v.FetchErr

	if v.Blocked && !p.wasBlock {
		fmt.Fprintln(p.out, "! sending paused, sign in again")
	}
	p.wasBlock = v.Blocked

	// 切換頻道後列表會被清空
	if len(v.Messages) == 0 {
		clear(p.seen)
		return
	}
	for _, m := range v.Messages {
		if state, ok := p.seen[m.ID]; ok && state == m.State {
			continue
		}
		p.seen[m.ID] = m.State
		fmt.Fprintln(p.out, formatMessage(m))
	}
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Error() == b.Error()
}
