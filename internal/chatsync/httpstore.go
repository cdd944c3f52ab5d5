package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPStore 透過伺服器的 REST API 實作 Store 與 IdentityStore
type HTTPStore struct {
	baseURL string
	client  *http.Client
	session Session
}

func NewHTTPStore(baseURL string, session Session, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		session: session,
	}
}

type pageResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

type submitRequest struct {
	Channel     Channel `json:"channel"`
	Content     string  `json:"content"`
	ThreadID    string  `json:"thread_id,omitempty"`
	RecipientID string  `json:"recipient_id,omitempty"`
	Anonymous   bool    `json:"anonymous,omitempty"`
	ClientRef   string  `json:"client_ref,omitempty"`
}

type submitResponse struct {
	Message  Message `json:"message"`
	ThreadID string  `json:"thread_id,omitempty"`
}

type threadsResponse struct {
	Threads []ThreadSummary `json:"threads"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPStore) FetchPage(ctx context.Context, scope Scope, offset, limit int) (Page, error) {
	q := url.Values{}
	q.Set("channel", string(scope.Channel))
	if scope.ThreadID != "" {
		q.Set("thread_id", scope.ThreadID)
	} else if scope.RecipientID != "" {
		q.Set("recipient_id", scope.RecipientID)
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var resp pageResponse
	if err := s.do(ctx, http.MethodGet, s.eventPath(scope.EventID, "messages")+"?"+q.Encode(), nil, &resp); err != nil {
		return Page{}, fmt.Errorf("fetch page: %w", err)
	}
	return Page{Messages: resp.Messages, HasMore: resp.HasMore}, nil
}

func (s *HTTPStore) Submit(ctx context.Context, scope Scope, content, clientRef string) (SubmitResult, error) {
	req := submitRequest{
		Channel:   scope.Channel,
		Content:   content,
		ClientRef: clientRef,
	}
	if scope.IsPrivate() {
		req.ThreadID = scope.ThreadID
		if req.ThreadID == "" {
			req.RecipientID = scope.RecipientID
			req.Anonymous = scope.Anonymous
		}
	}

	var resp submitResponse
	if err := s.do(ctx, http.MethodPost, s.eventPath(scope.EventID, "messages"), req, &resp); err != nil {
		return SubmitResult{}, fmt.Errorf("submit: %w", err)
	}
	return SubmitResult{Message: resp.Message, ThreadID: resp.ThreadID}, nil
}

func (s *HTTPStore) ListThreads(ctx context.Context, eventID string) ([]ThreadSummary, error) {
	var resp threadsResponse
	if err := s.do(ctx, http.MethodGet, s.eventPath(eventID, "threads"), nil, &resp); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return resp.Threads, nil
}

func (s *HTTPStore) LookupParticipant(ctx context.Context, eventID, identity string) (Participant, error) {
	var p Participant
	path := s.eventPath(eventID, "participants/"+url.PathEscape(identity))
	if err := s.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return Participant{}, fmt.Errorf("lookup participant: %w", err)
	}
	return p, nil
}

func (s *HTTPStore) eventPath(eventID, suffix string) string {
	return s.baseURL + "/api/events/" + url.PathEscape(eventID) + "/" + suffix
}

func (s *HTTPStore) do(ctx context.Context, method, target string, body, out any) error {
	token, _, ok := s.session.Credentials()
	if !ok {
		return ErrNotReady
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// statusError 將 HTTP 狀態碼對應到錯誤分類
func statusError(resp *http.Response) error {
	var payload errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)
	msg := payload.Error
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusRequestEntityTooLarge ||
		resp.StatusCode == http.StatusUnprocessableEntity ||
		resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	default:
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, msg)
	}
}
