package chatsync

import (
	"context"
	"time"
)

// Page 一頁歷史訊息，由新到舊排列
type Page struct {
	Messages []Message
	HasMore  bool
}

// SubmitResult 伺服器確認後的訊息
// ThreadID 只有在這次送出隱式建立了私訊串時才會有值
type SubmitResult struct {
	Message  Message
	ThreadID string
}

// Participant 某個活動中的參與者資料
type Participant struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	DisplayName string `json:"display_name"`
	Pseudonym   string `json:"pseudonym"`
	Color       string `json:"color"`
}

// ThreadRole 參與者在私訊串中的角色
type ThreadRole string

const (
	RoleAnonymous ThreadRole = "anonymous"
	RoleExposed   ThreadRole = "exposed"
)

// ThreadSummary 目前使用者所在的私訊串
type ThreadSummary struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	CounterpartID  string     `json:"counterpart_id"`
	Role           ThreadRole `json:"role"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// Store 訊息存儲的客戶端介面，本身不保存狀態
type Store interface {
	FetchPage(ctx context.Context, scope Scope, offset, limit int) (Page, error)
	Submit(ctx context.Context, scope Scope, content, clientRef string) (SubmitResult, error)
	ListThreads(ctx context.Context, eventID string) ([]ThreadSummary, error)
}

// IdentityStore 由穩定身份查詢活動內的參與者
type IdentityStore interface {
	LookupParticipant(ctx context.Context, eventID, identity string) (Participant, error)
}

// Session 提供 bearer 憑證與穩定的使用者身份
type Session interface {
	Credentials() (token, identity string, ok bool)
}

// StaticSession 固定的憑證，主要給 CLI 和測試使用
type StaticSession struct {
	Token    string
	Identity string
}

func (s StaticSession) Credentials() (string, string, bool) {
	return s.Token, s.Identity, s.Token != ""
}

// Notifier 接收已確認的訊息做站外通知，失敗不影響送出結果
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Message) error { return nil }
