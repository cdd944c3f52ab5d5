package chatsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMessageListOrdersByCreatedAt(t *testing.T) {
	l := NewMessageList()
	l.Merge(confirmedMsg("m3", "c", "p1", 3*time.Second))
	l.Merge(confirmedMsg("m1", "a", "p1", 1*time.Second))
	l.Merge(confirmedMsg("m2", "b", "p2", 2*time.Second))

	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(l.Messages()))
}

func TestMessageListTiesKeepInsertionOrder(t *testing.T) {
	l := NewMessageList()
	l.Merge(confirmedMsg("b", "x", "p1", time.Second))
	l.Merge(confirmedMsg("a", "y", "p1", time.Second))

	assert.Equal(t, []string{"b", "a"}, ids(l.Messages()))
}

func TestMessageListDropsDuplicateIDs(t *testing.T) {
	l := NewMessageList()
	assert.Equal(t, MergeAppended, l.Merge(confirmedMsg("m1", "a", "p1", 0)))
	assert.Equal(t, MergeDuplicate, l.Merge(confirmedMsg("m1", "a", "p1", 0)))
	assert.Equal(t, 1, l.Len())
}

func TestMessageListPendingGoesToTail(t *testing.T) {
	l := NewMessageList()
	l.Merge(confirmedMsg("m1", "a", "p1", time.Hour))

	// 本地時鐘落後伺服器時仍排在尾端
	pending, err := l.AddPending(Message{ID: "tmp-1", Content: "hi", AuthorParticipantID: "p1", Channel: ChannelBroadcast}, t0)
	require.NoError(t, err)
	assert.Equal(t, StatePending, pending.State)
	assert.Equal(t, []string{"m1", "tmp-1"}, ids(l.Messages()))
}

func TestMessageListRejectsSecondIdenticalPending(t *testing.T) {
	l := NewMessageList()
	msg := Message{ID: "tmp-1", Content: "hi", AuthorParticipantID: "p1", Channel: ChannelBroadcast, ClientRef: "r1"}
	_, err := l.AddPending(msg, t0)
	require.NoError(t, err)

	msg.ID, msg.ClientRef = "tmp-2", "r2"
	_, err = l.AddPending(msg, t0)
	assert.ErrorIs(t, err, ErrDuplicatePending)
}

func TestMessageListMergeReconcilesByClientRef(t *testing.T) {
	l := NewMessageList()
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "hi", AuthorParticipantID: "p1", Channel: ChannelBroadcast, ClientRef: "r1"}, t0)
	require.NoError(t, err)

	other := confirmedMsg("m-other", "hi", "p1", time.Second)
	other.ClientRef = "r-other-device"
	assert.Equal(t, MergeAppended, l.Merge(other), "a different ref is a different message")

	mine := confirmedMsg("m1", "hi", "p1", 2*time.Second)
	mine.ClientRef = "r1"
	assert.Equal(t, MergeReconciled, l.Merge(mine))

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, StateConfirmed, m.State)
	}
	assert.False(t, l.Has("tmp-1"))
}

func TestMessageListMergeFallsBackToContentMatch(t *testing.T) {
	l := NewMessageList()
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "hi", AuthorParticipantID: "p1", Channel: ChannelBroadcast, ClientRef: "r1"}, t0)
	require.NoError(t, err)

	assert.Equal(t, MergeReconciled, l.Merge(confirmedMsg("m1", "hi", "p1", time.Second)))
	assert.Equal(t, []string{"m1"}, ids(l.Messages()))
}

func TestMessageListConfirmReplacesInPlaceAndResorts(t *testing.T) {
	l := NewMessageList()
	l.Merge(confirmedMsg("m1", "a", "p2", time.Second))
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "mine", AuthorParticipantID: "p1", Channel: ChannelBroadcast}, t0.Add(time.Minute))
	require.NoError(t, err)
	l.Merge(confirmedMsg("m2", "b", "p2", 3*time.Second))

	// 伺服器時間早於 m2，確認後要重新排序
	res := l.Confirm("tmp-1", confirmedMsg("m-mine", "mine", "p1", 2*time.Second))
	assert.Equal(t, MergeReconciled, res)
	assert.Equal(t, []string{"m1", "m-mine", "m2"}, ids(l.Messages()))
}

func TestMessageListConfirmAfterFeedDeliveredIsDuplicate(t *testing.T) {
	l := NewMessageList()
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "hi", AuthorParticipantID: "p1", Channel: ChannelBroadcast}, t0)
	require.NoError(t, err)

	l.Merge(confirmedMsg("m1", "hi", "p1", time.Second))
	assert.Equal(t, MergeDuplicate, l.Confirm("tmp-1", confirmedMsg("m1", "hi", "p1", time.Second)))
	assert.Equal(t, []string{"m1"}, ids(l.Messages()))
}

func TestMessageListFailAndRemove(t *testing.T) {
	l := NewMessageList()
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "hi", AuthorParticipantID: "p1", Channel: ChannelBroadcast}, t0)
	require.NoError(t, err)

	require.True(t, l.Fail("tmp-1", ErrStoreUnavailable))
	failed, ok := l.Get("tmp-1")
	require.True(t, ok)
	assert.Equal(t, StateFailed, failed.State)
	assert.ErrorIs(t, failed.Err, ErrStoreUnavailable)

	// 失敗的訊息不佔用待確認的位置
	_, err = l.AddPending(Message{ID: "tmp-2", Content: "hi", AuthorParticipantID: "p1", Channel: ChannelBroadcast}, t0)
	require.NoError(t, err)

	removed, ok := l.RemoveFailed("tmp-1")
	require.True(t, ok)
	assert.Equal(t, "hi", removed.Content)
	_, ok = l.RemoveFailed("tmp-2")
	assert.False(t, ok, "pending entries cannot be removed as failed")
}

func TestMessageListConfirmedCount(t *testing.T) {
	l := NewMessageList()
	l.Merge(confirmedMsg("m1", "a", "p1", 0))
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "b", AuthorParticipantID: "p1", Channel: ChannelBroadcast}, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, l.ConfirmedCount())
	assert.Equal(t, 2, l.Len())
}

func TestMessageListMergeReconcilesFailedEntryByClientRef(t *testing.T) {
	l := NewMessageList()
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "hi", AuthorParticipantID: "p1", Channel: ChannelBroadcast, ClientRef: "r1"}, t0)
	require.NoError(t, err)
	require.True(t, l.Fail("tmp-1", ErrStoreUnavailable))

	// 送出回報失敗但伺服器其實已寫入
	landed := confirmedMsg("m1", "hi", "p1", time.Second)
	landed.ClientRef = "r1"
	assert.Equal(t, MergeReconciled, l.Merge(landed))
	assert.Equal(t, []string{"m1"}, ids(l.Messages()))
	assert.Equal(t, StateConfirmed, l.Messages()[0].State)

	// 沒有 ref 時不會把失敗的訊息當成確認
	_, err = l.AddPending(Message{ID: "tmp-2", Content: "yo", AuthorParticipantID: "p1", Channel: ChannelBroadcast}, t0)
	require.NoError(t, err)
	require.True(t, l.Fail("tmp-2", ErrStoreUnavailable))
	assert.Equal(t, MergeAppended, l.Merge(confirmedMsg("m2", "yo", "p1", 2*time.Second)))
	assert.True(t, l.Has("tmp-2"))
}

func TestMessageListRequeue(t *testing.T) {
	l := NewMessageList()
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "ok", AuthorParticipantID: "p1", Channel: ChannelBroadcast, ClientRef: "r1"}, t0)
	require.NoError(t, err)
	require.True(t, l.Fail("tmp-1", ErrStoreUnavailable))
	l.Merge(confirmedMsg("m1", "later", "p2", time.Minute))

	_, err = l.AddPending(Message{ID: "tmp-2", Content: "ok", AuthorParticipantID: "p1", Channel: ChannelBroadcast, ClientRef: "r2"}, t0)
	require.NoError(t, err)

	// 相同內容仍在等待確認，失敗的訊息保留
	_, err = l.Requeue("tmp-1", t0)
	assert.ErrorIs(t, err, ErrDuplicatePending)
	failed, ok := l.Get("tmp-1")
	require.True(t, ok)
	assert.Equal(t, StateFailed, failed.State)

	l.Confirm("tmp-2", confirmedMsg("m2", "ok", "p1", 2*time.Minute))
	requeued, err := l.Requeue("tmp-1", t0)
	require.NoError(t, err)
	assert.Equal(t, StatePending, requeued.State)
	assert.Equal(t, "r1", requeued.ClientRef)
	assert.Nil(t, requeued.Err)
	assert.Equal(t, []string{"m1", "m2", "tmp-1"}, ids(l.Messages()), "requeued entries move to the tail")

	_, err = l.Requeue("tmp-1", t0)
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestMessageListPatchSkipsConfirmed(t *testing.T) {
	l := NewMessageList()
	l.Merge(confirmedMsg("m1", "a", "p1", 0))
	_, err := l.AddPending(Message{ID: "tmp-1", Content: "b", Channel: ChannelBroadcast}, t0)
	require.NoError(t, err)

	assert.True(t, l.Patch("tmp-1", func(m *Message) { m.AuthorParticipantID = "p1" }))
	got, _ := l.Get("tmp-1")
	assert.Equal(t, "p1", got.AuthorParticipantID)

	assert.False(t, l.Patch("m1", func(m *Message) { m.Content = "changed" }))
	assert.False(t, l.Patch("missing", func(*Message) {}))
}
