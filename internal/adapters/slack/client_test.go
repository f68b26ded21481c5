package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
)

func TestPostMessage(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq postMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("не удалось разобрать запрос: %v", err)
		}
		_ = json.NewEncoder(w).Encode(postMessageResponse{OK: true, Channel: "C1", TS: "1700000000.000100"})
	}))
	defer server.Close()

	c := NewClient("xoxb-test", server.URL, 0)
	blocks := []domain.Block{domain.SectionBlock("hello")}
	result, err := c.PostMessage(context.Background(), "C1", "hello", blocks)
	if err != nil {
		t.Fatalf("ожидали успех, получили %v", err)
	}
	if !result.OK || result.Ref.Channel != "C1" || result.Ref.TS != "1700000000.000100" {
		t.Fatalf("ссылка на сообщение собрана неверно: %+v", result)
	}
	if gotAuth != "Bearer xoxb-test" {
		t.Fatalf("токен должен уходить в заголовке Authorization, получили %q", gotAuth)
	}
	if gotPath != "/chat.postMessage" {
		t.Fatalf("ожидали вызов chat.postMessage, получили %q", gotPath)
	}
	if gotReq.Channel != "C1" || gotReq.Text != "hello" || len(gotReq.Blocks) != 1 {
		t.Fatalf("тело запроса собрано неверно: %+v", gotReq)
	}
}

func TestPostMessageSlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(postMessageResponse{OK: false, Error: "channel_not_found"})
	}))
	defer server.Close()

	c := NewClient("xoxb-test", server.URL, 0)
	_, err := c.PostMessage(context.Background(), "C404", "hello", nil)
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("ошибка Slack должна попадать в текст ошибки, получили %v", err)
	}
}

func TestPostMessageEmptyChannel(t *testing.T) {
	c := NewClient("xoxb-test", "http://unused", 0)
	_, err := c.PostMessage(context.Background(), "", "hello", nil)
	if !errors.Is(err, domain.ErrNoChannelConfigured) {
		t.Fatalf("пустой канал должен давать ErrNoChannelConfigured, получили %v", err)
	}
}

func TestPostMessageHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient("xoxb-test", server.URL, 0)
	_, err := c.PostMessage(context.Background(), "C1", "hello", nil)
	if err == nil || !strings.Contains(err.Error(), "unexpected status 429") {
		t.Fatalf("статус ответа должен попадать в ошибку, получили %v", err)
	}
}

func TestPostMessageEmptyToken(t *testing.T) {
	c := NewClient("", "http://unused", 0)
	_, err := c.PostMessage(context.Background(), "C1", "hello", nil)
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Fatalf("пустой токен должен отсекаться до запроса, получили %v", err)
	}
}

func TestSendDirectMessage(t *testing.T) {
	var openReq openConversationRequest
	var postReq postMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conversations.open":
			if err := json.NewDecoder(r.Body).Decode(&openReq); err != nil {
				t.Errorf("не удалось разобрать conversations.open: %v", err)
			}
			var resp openConversationResponse
			resp.OK = true
			resp.Channel.ID = "D42"
			_ = json.NewEncoder(w).Encode(resp)
		case "/chat.postMessage":
			if err := json.NewDecoder(r.Body).Decode(&postReq); err != nil {
				t.Errorf("не удалось разобрать chat.postMessage: %v", err)
			}
			_ = json.NewEncoder(w).Encode(postMessageResponse{OK: true, Channel: "D42", TS: "1700000001.000200"})
		default:
			t.Errorf("неожиданный вызов %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient("xoxb-test", server.URL, 0)
	result, err := c.SendDirectMessage(context.Background(), "U-lead", "summary")
	if err != nil {
		t.Fatalf("ожидали успех, получили %v", err)
	}
	if openReq.Users != "U-lead" {
		t.Fatalf("conversations.open должен открывать канал с пользователем, получили %q", openReq.Users)
	}
	if postReq.Channel != "D42" || postReq.Text != "summary" {
		t.Fatalf("сообщение должно уходить в открытый канал: %+v", postReq)
	}
	if !result.OK || result.Ref.Channel != "D42" {
		t.Fatalf("ссылка на сообщение собрана неверно: %+v", result)
	}
}

func TestSendDirectMessageSplitsLongText(t *testing.T) {
	var posts []postMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conversations.open":
			var resp openConversationResponse
			resp.OK = true
			resp.Channel.ID = "D42"
			_ = json.NewEncoder(w).Encode(resp)
		case "/chat.postMessage":
			var req postMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("не удалось разобрать chat.postMessage: %v", err)
			}
			posts = append(posts, req)
			ts := "1700000000.00010" + string(rune('0'+len(posts)))
			_ = json.NewEncoder(w).Encode(postMessageResponse{OK: true, Channel: "D42", TS: ts})
		default:
			t.Errorf("неожиданный вызов %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	long := strings.Repeat("x", 39999) + "\n" + strings.Repeat("y", 5000)

	c := NewClient("xoxb-test", server.URL, 0)
	result, err := c.SendDirectMessage(context.Background(), "U-lead", long)
	if err != nil {
		t.Fatalf("ожидали успех, получили %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("длинная сводка уходит двумя сообщениями, получили %d", len(posts))
	}
	if posts[0].Text != strings.Repeat("x", 39999) {
		t.Fatalf("первая часть собрана неверно, длина %d", len(posts[0].Text))
	}
	if result.Ref.TS != "1700000000.000101" {
		t.Fatalf("ссылка должна указывать на первое сообщение, получили %q", result.Ref.TS)
	}
}

func TestSendDirectMessageOpenFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openConversationResponse{OK: false, Error: "users_not_found"})
	}))
	defer server.Close()

	c := NewClient("xoxb-test", server.URL, 0)
	_, err := c.SendDirectMessage(context.Background(), "U-ghost", "summary")
	if err == nil || !strings.Contains(err.Error(), "users_not_found") {
		t.Fatalf("ошибка открытия канала должна возвращаться, получили %v", err)
	}
}
