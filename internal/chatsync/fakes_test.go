package chatsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

var t0 = time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

func confirmedMsg(id, content, author string, at time.Duration) Message {
	return Message{
		ID:                  id,
		Content:             content,
		AuthorParticipantID: author,
		CreatedAt:           t0.Add(at),
		Channel:             ChannelBroadcast,
		State:               StateConfirmed,
	}
}

func privateMsg(id, threadID, content, author string, at time.Duration) Message {
	m := confirmedMsg(id, content, author, at)
	m.Channel = ChannelPrivate
	m.PrivateThreadID = threadID
	return m
}

type fetchCall struct {
	scope  Scope
	offset int
}

type fakeStore struct {
	mu          sync.Mutex
	pages       map[string]Page
	fetchHook   func(ctx context.Context, scope Scope, offset, limit int) (Page, error)
	submitHook  func(ctx context.Context, scope Scope, content, clientRef string) (SubmitResult, error)
	threads     []ThreadSummary
	fetchCalls  []fetchCall
	submitCalls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{pages: make(map[string]Page)}
}

func pageKey(scope Scope) string {
	if scope.IsPrivate() {
		return scope.ThreadID
	}
	return "broadcast"
}

func (s *fakeStore) FetchPage(ctx context.Context, scope Scope, offset, limit int) (Page, error) {
	s.mu.Lock()
	s.fetchCalls = append(s.fetchCalls, fetchCall{scope: scope, offset: offset})
	hook := s.fetchHook
	page := s.pages[pageKey(scope)]
	s.mu.Unlock()

	if hook != nil {
		return hook(ctx, scope, offset, limit)
	}
	return page, nil
}

func (s *fakeStore) Submit(ctx context.Context, scope Scope, content, clientRef string) (SubmitResult, error) {
	s.mu.Lock()
	s.submitCalls = append(s.submitCalls, clientRef)
	hook := s.submitHook
	s.mu.Unlock()

	if hook != nil {
		return hook(ctx, scope, content, clientRef)
	}
	return SubmitResult{}, ErrStoreUnavailable
}

func (s *fakeStore) ListThreads(context.Context, string) ([]ThreadSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads, nil
}

func (s *fakeStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetchCalls)
}

func (s *fakeStore) submitRefs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.submitCalls...)
}

type fakeSub struct {
	filter  FeedFilter
	handler func(Message)
	closes  atomic.Int32
}

func (s *fakeSub) Close() error {
	s.closes.Add(1)
	return nil
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (f *fakeFeed) Subscribe(_ context.Context, filter FeedFilter, handler func(Message)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSub{filter: filter, handler: handler}
	f.subs = append(f.subs, sub)
	return sub, nil
}

// Deliver 把訊息送給所有尚未關閉且過濾條件相符的訂閱
func (f *fakeFeed) Deliver(msg Message) {
	f.mu.Lock()
	var targets []*fakeSub
	for _, s := range f.subs {
		if s.closes.Load() > 0 || s.filter.ThreadID != msg.PrivateThreadID {
			continue
		}
		targets = append(targets, s)
	}
	f.mu.Unlock()

	for _, s := range targets {
		s.handler(msg)
	}
}

// DeliverAll 忽略過濾條件直接呼叫所有訂閱過的 handler，包括已關閉的
func (f *fakeFeed) DeliverAll(msg Message) {
	f.mu.Lock()
	targets := append([]*fakeSub(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range targets {
		s.handler(msg)
	}
}

func (f *fakeFeed) all() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSub(nil), f.subs...)
}

type fakeIdentity struct {
	calls atomic.Int32
	mu    sync.Mutex
	gate  chan struct{}
	err   error
}

func (f *fakeIdentity) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeIdentity) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = gate
}

func (f *fakeIdentity) LookupParticipant(ctx context.Context, eventID, identity string) (Participant, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Participant{}, ctx.Err()
		}
	}
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return Participant{}, err
	}
	return Participant{
		ID:          "p-" + identity,
		EventID:     eventID,
		DisplayName: "Name " + identity,
		Pseudonym:   "Elf " + identity,
		Color:       "#aa0000",
	}, nil
}

type fakeNotifier struct {
	got chan Message
	err error
}

func (n *fakeNotifier) Notify(_ context.Context, msg Message) error {
	n.got <- msg
	return n.err
}
