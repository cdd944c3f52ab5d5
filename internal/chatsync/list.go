package chatsync

import (
	"cmp"
	"slices"
	"time"
)

// MergeResult 一則進入列表的確認訊息如何被處理
type MergeResult int

const (
	MergeDuplicate MergeResult = iota
	MergeReconciled
	MergeAppended
)

func (r MergeResult) String() string {
	switch r {
	case MergeDuplicate:
		return "duplicate"
	case MergeReconciled:
		return "reconciled"
	default:
		return "appended"
	}
}

type entry struct {
	msg Message
	seq uint64
}

// MessageList 一個頻道的可見訊息列表
// 依 created_at 排序，相同時間以插入順序為準；本身不做同步，由 Engine 串行化所有修改
type MessageList struct {
	entries []entry
	ids     map[string]struct{}
	nextSeq uint64
}

func NewMessageList() *MessageList {
	return &MessageList{ids: make(map[string]struct{})}
}

func (l *MessageList) Reset() {
	l.entries = nil
	l.ids = make(map[string]struct{})
}

func (l *MessageList) Len() int {
	return len(l.entries)
}

func (l *MessageList) Has(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// ConfirmedCount 用來計算下一頁的 offset
func (l *MessageList) ConfirmedCount() int {
	n := 0
	for _, e := range l.entries {
		if e.msg.State == StateConfirmed {
			n++
		}
	}
	return n
}

// Messages 回傳排序後的副本
func (l *MessageList) Messages() []Message {
	out := make([]Message, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.msg
	}
	return out
}

func (l *MessageList) Get(id string) (Message, bool) {
	if i := l.indexOf(id); i >= 0 {
		return l.entries[i].msg, true
	}
	return Message{}, false
}

// AddPending 將樂觀訊息放到列表尾端
// 已有相同 (content, author, channel) 的待確認訊息時回傳 ErrDuplicatePending
func (l *MessageList) AddPending(msg Message, now time.Time) (Message, error) {
	if _, ok := l.pendingByKey(keyOf(msg)); ok {
		return Message{}, ErrDuplicatePending
	}
	if n := len(l.entries); n > 0 && l.entries[n-1].msg.CreatedAt.After(now) {
		now = l.entries[n-1].msg.CreatedAt
	}
	msg.CreatedAt = now
	msg.State = StatePending
	msg.Err = nil
	l.insert(msg)
	return msg, nil
}

// Merge 處理來自抓取或推送的確認訊息：
// 已存在的 ID 直接丟棄；符合待確認訊息則視為其確認；否則加入並重新排序
func (l *MessageList) Merge(msg Message) MergeResult {
	msg.State = StateConfirmed
	msg.Err = nil
	if l.Has(msg.ID) {
		return MergeDuplicate
	}
	if i, ok := l.pendingFor(msg); ok {
		l.replace(i, msg)
		return MergeReconciled
	}
	l.insert(msg)
	return MergeAppended
}

// Confirm 以伺服器回傳的訊息取代暫時訊息
// 推送已先送達同一則訊息時，暫時訊息直接移除
func (l *MessageList) Confirm(tempID string, msg Message) MergeResult {
	msg.State = StateConfirmed
	msg.Err = nil
	i := l.indexOf(tempID)
	if l.Has(msg.ID) {
		if i >= 0 && tempID != msg.ID {
			l.removeAt(i)
		}
		return MergeDuplicate
	}
	if i < 0 {
		l.insert(msg)
		return MergeAppended
	}
	l.replace(i, msg)
	return MergeReconciled
}

// Fail 將待確認訊息標記為失敗，保留在列表中等待重試
func (l *MessageList) Fail(tempID string, err error) bool {
	i := l.indexOf(tempID)
	if i < 0 || l.entries[i].msg.State != StatePending {
		return false
	}
	l.entries[i].msg.State = StateFailed
	l.entries[i].msg.Err = err
	return true
}

// Requeue 把失敗的訊息改回待確認並移到尾端
// 已有相同內容的待確認訊息時回傳 ErrDuplicatePending，失敗的訊息保持原狀
func (l *MessageList) Requeue(tempID string, now time.Time) (Message, error) {
	i := l.indexOf(tempID)
	if i < 0 || l.entries[i].msg.State != StateFailed {
		return Message{}, ErrUnknownMessage
	}
	msg := l.entries[i].msg
	if _, ok := l.pendingByKey(keyOf(msg)); ok {
		return Message{}, ErrDuplicatePending
	}
	l.removeAt(i)
	return l.AddPending(msg, now)
}

// Patch 修改尚未確認的訊息；已確認或不存在時回傳 false
func (l *MessageList) Patch(id string, fn func(*Message)) bool {
	i := l.indexOf(id)
	if i < 0 || l.entries[i].msg.State == StateConfirmed {
		return false
	}
	fn(&l.entries[i].msg)
	return true
}

// RemoveFailed 移除失敗的訊息並回傳它
func (l *MessageList) RemoveFailed(tempID string) (Message, bool) {
	i := l.indexOf(tempID)
	if i < 0 || l.entries[i].msg.State != StateFailed {
		return Message{}, false
	}
	msg := l.entries[i].msg
	l.removeAt(i)
	return msg, true
}

// pendingFor 找出某則確認訊息對應的待確認訊息
// 有 client ref 時只依 ref 比對，失敗的訊息也算在內，因為送出可能其實已經成功；
// 沒有 ref 時退回 (content, author, channel)
func (l *MessageList) pendingFor(msg Message) (int, bool) {
	if msg.ClientRef != "" {
		for i, e := range l.entries {
			if e.msg.State != StateConfirmed && e.msg.ClientRef == msg.ClientRef {
				return i, true
			}
		}
		return -1, false
	}
	return l.pendingByKey(keyOf(msg))
}

// pendingByKey 取最早插入的一筆
func (l *MessageList) pendingByKey(key matchKey) (int, bool) {
	best := -1
	for i, e := range l.entries {
		if e.msg.State != StatePending || keyOf(e.msg) != key {
			continue
		}
		if best < 0 || e.seq < l.entries[best].seq {
			best = i
		}
	}
	return best, best >= 0
}

func (l *MessageList) indexOf(id string) int {
	if !l.Has(id) {
		return -1
	}
	for i, e := range l.entries {
		if e.msg.ID == id {
			return i
		}
	}
	return -1
}

func (l *MessageList) insert(msg Message) {
	l.nextSeq++
	l.entries = append(l.entries, entry{msg: msg, seq: l.nextSeq})
	l.ids[msg.ID] = struct{}{}
	l.sort()
}

func (l *MessageList) replace(i int, msg Message) {
	delete(l.ids, l.entries[i].msg.ID)
	l.entries[i].msg = msg
	l.ids[msg.ID] = struct{}{}
	l.sort()
}

func (l *MessageList) removeAt(i int) {
	delete(l.ids, l.entries[i].msg.ID)
	l.entries = slices.Delete(l.entries, i, i+1)
}

func (l *MessageList) sort() {
	slices.SortStableFunc(l.entries, func(a, b entry) int {
		if c := a.msg.CreatedAt.Compare(b.msg.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
}
