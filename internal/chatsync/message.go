// Package chatsync 負責在客戶端同步活動頻道與私訊串的訊息列表。
//
// 它將三個來源合併成一個有序且不重複的列表：分頁抓取的歷史訊息、
// 尚待伺服器確認的樂觀訊息，以及即時推送的新訊息。
package chatsync

import (
	"strings"
	"time"
	"unicode/utf16"
)

// MaxContentLength 訊息內容上限，以 UTF-16 code unit 計算
const MaxContentLength = 2000

type Channel string

const (
	ChannelBroadcast Channel = "broadcast"
	ChannelPrivate   Channel = "private"
)

type State string

const (
	StateConfirmed State = "confirmed"
	StatePending   State = "pending"
	StateFailed    State = "failed"
)

// Message 是列表中的一則訊息；待確認時 ID 為本地產生的暫時 ID
type Message struct {
	ID                  string    `json:"id"`
	Content             string    `json:"content"`
	AuthorParticipantID string    `json:"author_participant_id"`
	DisplayAlias        string    `json:"display_alias"`
	DisplayColor        string    `json:"display_color"`
	CreatedAt           time.Time `json:"created_at"`
	Channel             Channel   `json:"channel"`
	PrivateThreadID     string    `json:"private_thread_id,omitempty"`
	ClientRef           string    `json:"client_ref,omitempty"`
	State               State     `json:"state"`

	// 送出失敗的原因，僅 StateFailed 時有值
	Err error `json:"-"`
}

// Scope 描述目前檢視的頻道
// 私訊可以只帶 RecipientID，在第一次送出前還沒有 ThreadID
type Scope struct {
	EventID     string
	Channel     Channel
	ThreadID    string
	RecipientID string
	// Anonymous 表示以化名身份開啟新的私訊串
	Anonymous bool
}

func (s Scope) IsPrivate() bool {
	return s.Channel == ChannelPrivate
}

// matchKey 樂觀訊息與確認訊息的比對鍵
type matchKey struct {
	content string
	author  string
	channel Channel
}

func keyOf(m Message) matchKey {
	return matchKey{content: m.Content, author: m.AuthorParticipantID, channel: m.Channel}
}

// ValidateContent 檢查內容是否為空或超出長度
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return validationError("content is empty")
	}
	if ContentLength(content) > MaxContentLength {
		return validationError("content exceeds %d units", MaxContentLength)
	}
	return nil
}

// ContentLength 回傳 UTF-16 長度
func ContentLength(content string) int {
	return len(utf16.Encode([]rune(content)))
}
