package meowstatus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestFeedClientRequiresBaseURL(t *testing.T) {
	if _, err := NewFeedClient(FeedConfig{}); err == nil {
		t.Fatal("empty base url must be rejected")
	}
}

func TestPushHeartbeatSendsToken(t *testing.T) {
	var (
		mu       sync.Mutex
		gotToken string
		gotPath  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotToken = r.Header.Get("x-token")
		gotPath = r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewFeedClient(FeedConfig{BaseURL: srv.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("NewFeedClient: %v", err)
	}
	if err := client.PushHeartbeat(context.Background(), Heartbeat{DeviceID: "desk", Online: true}); err != nil {
		t.Fatalf("PushHeartbeat: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/heartbeat" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotToken != "secret" {
		t.Fatalf("token header missing, got %q", gotToken)
	}
}

func TestFetchStatusRejectsNonList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("null"))
	}))
	defer srv.Close()

	client, err := NewFeedClient(FeedConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewFeedClient: %v", err)
	}
	if _, err := client.FetchStatus(context.Background()); err == nil {
		t.Fatal("non-list status payload must be an error")
	}
}

func TestFetchStatusDecodesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"device_id":"desk","device_name":"工位","online":true,"music_playing":true,"music_title":"晴天"}]`))
	}))
	defer srv.Close()

	client, err := NewFeedClient(FeedConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewFeedClient: %v", err)
	}
	records, err := client.FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if len(records) != 1 || !records[0].Online || records[0].MusicTitle != "晴天" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestFetchQuoteUsesSeparateOrigin(t *testing.T) {
	quoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hitokoto":"海内存知己","from":"王勃"}`))
	}))
	defer quoteSrv.Close()

	client, err := NewFeedClient(FeedConfig{BaseURL: "http://backend.invalid", QuoteURL: quoteSrv.URL})
	if err != nil {
		t.Fatalf("NewFeedClient: %v", err)
	}
	quote, err := client.FetchQuote(context.Background())
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if quote.Text != "海内存知己" || quote.From != "王勃" {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestFetchQuoteWithoutURL(t *testing.T) {
	client, err := NewFeedClient(FeedConfig{BaseURL: "http://backend.invalid"})
	if err != nil {
		t.Fatalf("NewFeedClient: %v", err)
	}
	if _, err := client.FetchQuote(context.Background()); err == nil {
		t.Fatal("missing quote url must be an error")
	}
}

func TestRecordVisitRequiresID(t *testing.T) {
	client, err := NewFeedClient(FeedConfig{BaseURL: "http://backend.invalid"})
	if err != nil {
		t.Fatalf("NewFeedClient: %v", err)
	}
	if err := client.RecordVisit(context.Background(), "  "); err == nil {
		t.Fatal("blank visitor id must be an error")
	}
}

func TestNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewFeedClient(FeedConfig{BaseURL: srv.URL, Token: "wrong"})
	if err != nil {
		t.Fatalf("NewFeedClient: %v", err)
	}
	if err := client.PushHeartbeat(context.Background(), Heartbeat{DeviceID: "desk"}); err == nil {
		t.Fatal("401 must surface as an error")
	}
}
