package chatsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultParticipantTTL = 5 * time.Minute

	participantCacheCapacity = 1024
	participantLookupTimeout = 10 * time.Second
	// 過期的資料仍保留這麼久，送出時先拿來顯示，同時在背景更新
	participantRetention = 24 * time.Hour
)

type participantEntry struct {
	participant Participant
	fetchedAt   time.Time
}

// ParticipantResolver 將穩定身份對應到活動內的參與者 ID，結果快取 ttl 時間
type ParticipantResolver struct {
	store IdentityStore
	ttl   time.Duration
	cache *ttlcache.Cache[string, participantEntry]
	group singleflight.Group
	log   *zap.Logger
	now   func() time.Time
}

func NewParticipantResolver(store IdentityStore, ttl time.Duration, log *zap.Logger) *ParticipantResolver {
	if ttl <= 0 {
		ttl = DefaultParticipantTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	// 新鮮度由 fetchedAt 判斷，快取本身只負責淘汰太舊的項目
	retention := max(ttl, participantRetention)
	return &ParticipantResolver{
		store: store,
		ttl:   ttl,
		cache: ttlcache.New[string, participantEntry](
			ttlcache.WithTTL[string, participantEntry](retention),
			ttlcache.WithCapacity[string, participantEntry](participantCacheCapacity),
			ttlcache.WithDisableTouchOnHit[string, participantEntry](),
		),
		log: log,
		now: time.Now,
	}
}

func cacheKey(eventID, identity string) string {
	return eventID + "\x00" + identity
}

// Resolve 回傳參與者 ID
func (r *ParticipantResolver) Resolve(ctx context.Context, eventID, identity string) (string, error) {
	p, err := r.Lookup(ctx, eventID, identity)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// Lookup 回傳完整的參與者資料
// 同一身份的並行查詢只會發出一次外部請求
func (r *ParticipantResolver) Lookup(ctx context.Context, eventID, identity string) (Participant, error) {
	key := cacheKey(eventID, identity)
	if p, ok := r.cached(key); ok {
		return p, nil
	}

	ch := r.group.DoChan(key, func() (any, error) {
		// 共享的查詢不跟隨任何單一呼叫者的取消
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), participantLookupTimeout)
		defer cancel()

		p, err := r.store.LookupParticipant(lookupCtx, eventID, identity)
		if err != nil {
			return Participant{}, err
		}
		r.cache.Set(key, participantEntry{participant: p, fetchedAt: r.now()}, ttlcache.DefaultTTL)
		r.log.Debug("participant resolved",
			zap.String("event_id", eventID),
			zap.String("participant_id", p.ID),
		)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return Participant{}, fmt.Errorf("resolve participant: %w", ErrCancelled)
	case res := <-ch:
		if res.Err != nil {
			return Participant{}, fmt.Errorf("resolve participant: %w", res.Err)
		}
		return res.Val.(Participant), nil
	}
}

func (r *ParticipantResolver) cached(key string) (Participant, bool) {
	p, fresh, ok := r.known(key)
	return p, ok && fresh
}

// Known 不發出請求，回傳最後一次查到的參與者以及它是否仍在 ttl 內
func (r *ParticipantResolver) Known(eventID, identity string) (p Participant, fresh, ok bool) {
	return r.known(cacheKey(eventID, identity))
}

func (r *ParticipantResolver) known(key string) (Participant, bool, bool) {
	item := r.cache.Get(key)
	if item == nil {
		return Participant{}, false, false
	}
	entry := item.Value()
	return entry.participant, r.now().Sub(entry.fetchedAt) < r.ttl, true
}

// Invalidate 讓下一次 Lookup 重新查詢；舊資料仍可從 Known 取得
func (r *ParticipantResolver) Invalidate(eventID, identity string) {
	key := cacheKey(eventID, identity)
	if item := r.cache.Get(key); item != nil {
		r.cache.Set(key, participantEntry{participant: item.Value().participant}, ttlcache.DefaultTTL)
	}
}
