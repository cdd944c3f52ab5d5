package chatsync

import (
	"context"
	"sync"
)

// Token 非同步操作開始時取得的世代標記
type Token uint64

// EpochGuard 在頻道切換後作廢仍在途中的請求
// 新世代開始時會取消前一個世代的 context；即使傳輸層無法中止，
// 過期結果也會因 IsCurrent 為 false 而被丟棄
type EpochGuard struct {
	mu      sync.Mutex
	current Token
	cancel  context.CancelFunc
}

func NewEpochGuard() *EpochGuard {
	return &EpochGuard{}
}

// Begin 開始新世代並回傳其 token 與 context
func (g *EpochGuard) Begin(parent context.Context) (Token, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	g.mu.Lock()
	prev := g.cancel
	g.current++
	token := g.current
	g.cancel = cancel
	g.mu.Unlock()

	if prev != nil {
		prev()
	}
	return token, ctx
}

func (g *EpochGuard) IsCurrent(token Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return token == g.current
}

func (g *EpochGuard) Current() Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Stop 作廢目前世代
func (g *EpochGuard) Stop() {
	g.mu.Lock()
	prev := g.cancel
	g.current++
	g.cancel = nil
	g.mu.Unlock()

	if prev != nil {
		prev()
	}
}
