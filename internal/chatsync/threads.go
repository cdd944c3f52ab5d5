package chatsync

import "sync"

// ThreadResolver 記住每個收件人對應的私訊串
// 第一次送出成功後取得的 thread id 在整個 session 內固定不變
type ThreadResolver struct {
	mu      sync.RWMutex
	threads map[string]string     // eventID/recipientID -> threadID
	roles   map[string]ThreadRole // threadID -> 自己在串中的角色
}

func NewThreadResolver() *ThreadResolver {
	return &ThreadResolver{
		threads: make(map[string]string),
		roles:   make(map[string]ThreadRole),
	}
}

func recipientKey(eventID, recipientID string) string {
	return eventID + "\x00" + recipientID
}

// Lookup 若已知該收件人的私訊串則回傳其 ID
func (r *ThreadResolver) Lookup(eventID, recipientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.threads[recipientKey(eventID, recipientID)]
	return id, ok
}

// Remember 記錄送出後得到的 thread id，已存在的對應不會被覆蓋
func (r *ThreadResolver) Remember(eventID, recipientID, threadID string) string {
	if recipientID == "" || threadID == "" {
		return threadID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recipientKey(eventID, recipientID)
	if existing, ok := r.threads[key]; ok {
		return existing
	}
	r.threads[key] = threadID
	return threadID
}

// RememberRole 記錄自己在某個私訊串中的角色
func (r *ThreadResolver) RememberRole(threadID string, role ThreadRole) {
	if threadID == "" || role == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[threadID]; !ok {
		r.roles[threadID] = role
	}
}

func (r *ThreadResolver) Role(threadID string) (ThreadRole, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[threadID]
	return role, ok
}

// Prime 以伺服器回傳的私訊串列表預先填入對應
func (r *ThreadResolver) Prime(threads []ThreadSummary) {
	for _, t := range threads {
		r.Remember(t.EventID, t.CounterpartID, t.ID)
		r.RememberRole(t.ID, t.Role)
	}
}

// Resolve 補上 scope 的 ThreadID；回傳 false 表示這是尚未建立私訊串的新收件人
func (r *ThreadResolver) Resolve(scope Scope) (Scope, bool) {
	if !scope.IsPrivate() || scope.ThreadID != "" {
		return scope, true
	}
	if id, ok := r.Lookup(scope.EventID, scope.RecipientID); ok {
		scope.ThreadID = id
		return scope, true
	}
	return scope, false
}
