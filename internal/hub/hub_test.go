package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Parth8155/SkillSwap/internal/auth"
	"github.com/Parth8155/SkillSwap/internal/event"
	"github.com/Parth8155/SkillSwap/internal/model"
	"github.com/Parth8155/SkillSwap/internal/presence"
	"github.com/Parth8155/SkillSwap/internal/repo"
	"github.com/Parth8155/SkillSwap/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const hubTestSecret = "hub-test-secret"

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeStatusStore struct {
	mu       sync.Mutex
	known    map[string]bool
	statuses map[string]string
}

func newFakeStatusStore(knownUsers ...string) *fakeStatusStore {
	f := &fakeStatusStore{
		known:    make(map[string]bool),
		statuses: make(map[string]string),
	}
	for _, id := range knownUsers {
		f.known[id] = true
	}
	return f
}

func (f *fakeStatusStore) GetByID(_ context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[userID] {
		return nil, repo.ErrUserNotFound
	}
	return &model.User{Name: userID}, nil
}

func (f *fakeStatusStore) UpdateStatus(_ context.Context, userID, status string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[userID] = status
	return nil
}

func (f *fakeStatusStore) status(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[userID]
}

type fakeMessageService struct {
	sendFn func(ctx context.Context, senderID string, in service.SendMessageInput) (*model.Message, error)
}

func (f *fakeMessageService) SendMessage(ctx context.Context, senderID string, in service.SendMessageInput) (*model.Message, error) {
	if f.sendFn == nil {
		return nil, repo.ErrConversationNotFound
	}
	return f.sendFn(ctx, senderID, in)
}

func (f *fakeMessageService) ListConversations(context.Context, string) ([]service.ConversationView, error) {
	return nil, nil
}

func (f *fakeMessageService) GetOrCreateConversation(context.Context, string, string) (*service.ConversationView, error) {
	return nil, nil
}

func (f *fakeMessageService) ListMessages(context.Context, string, string) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeMessageService) ListCandidateUsers(context.Context, string) ([]model.UserSummary, error) {
	return nil, nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

func newTestHub(t *testing.T, svc service.MessageService, users StatusStore) *Hub {
	t.Helper()

	if svc == nil {
		svc = &fakeMessageService{}
	}
	if users == nil {
		users = newFakeStatusStore()
	}

	h := NewHub(Options{
		Presence: presence.NewRegistry(),
		Verifier: auth.NewTokenVerifier(hubTestSecret),
		Messages: svc,
		Users:    users,
		Logger:   zap.NewNop(),
	})
	t.Cleanup(h.Stop)
	return h
}

func mustEvent(t *testing.T, name string, payload any) event.WsEvent {
	t.Helper()
	ev, err := event.New(name, payload)
	if err != nil {
		t.Fatalf("build event %s: %v", name, err)
	}
	return ev
}

func recvEvent(t *testing.T, c *Client) event.WsEvent {
	t.Helper()
	select {
	case ev := <-c.egress:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event.WsEvent{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.egress:
		t.Fatalf("unexpected event delivered: %s", ev.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func signHubToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(hubTestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRoomKeysAreNamespaced(t *testing.T) {
	if UserRoom("abc") == ConversationRoom("abc") {
		t.Fatal("user and conversation rooms must not collide on the same id")
	}
}

func TestJoinConversationAndBroadcast(t *testing.T) {
	h := newTestHub(t, nil, nil)

	a := newClient("user-a", nil, h)
	b := newClient("user-b", nil, h)

	join := mustEvent(t, event.EventJoinConversation, event.ConversationPayload{ConversationID: "conv-1"})
	h.handleEvent(join, a)
	h.handleEvent(join, b)

	out := mustEvent(t, event.EventMessageReceived, event.MessageReceivedPayload{ID: "m1"})
	h.broadcastToRoom(ConversationRoom("conv-1"), out, "")

	if got := recvEvent(t, a); got.Event != event.EventMessageReceived {
		t.Fatalf("a received %s", got.Event)
	}
	if got := recvEvent(t, b); got.Event != event.EventMessageReceived {
		t.Fatalf("b received %s", got.Event)
	}

	// Exclusion skips the named connection.
	h.broadcastToRoom(ConversationRoom("conv-1"), out, a.ID)
	assertNoEvent(t, a)
	if got := recvEvent(t, b); got.Event != event.EventMessageReceived {
		t.Fatalf("b received %s", got.Event)
	}
}

func TestLeaveConversationStopsDelivery(t *testing.T) {
	h := newTestHub(t, nil, nil)

	a := newClient("user-a", nil, h)

	h.handleEvent(mustEvent(t, event.EventJoinConversation, event.ConversationPayload{ConversationID: "conv-1"}), a)
	h.handleEvent(mustEvent(t, event.EventLeaveConversation, event.ConversationPayload{ConversationID: "conv-1"}), a)

	h.broadcastToRoom(ConversationRoom("conv-1"), mustEvent(t, event.EventMessageReceived, event.MessageReceivedPayload{ID: "m1"}), "")
	assertNoEvent(t, a)
}

func TestTypingRelayTargetsReceiverOnly(t *testing.T) {
	h := newTestHub(t, nil, nil)

	a := newClient("user-a", nil, h)
	b := newClient("user-b", nil, h)
	c := newClient("user-c", nil, h)

	h.joinRoom(UserRoom(b.userID), b)
	h.joinRoom(UserRoom(c.userID), c)

	typing := mustEvent(t, event.EventTyping, event.TypingPayload{ReceiverID: "user-b", IsTyping: true})
	h.handleEvent(typing, a)

	got := recvEvent(t, b)
	if got.Event != event.EventUserTyping {
		t.Fatalf("expected userTyping, got %s", got.Event)
	}
	var p event.UserTypingPayload
	if err := got.DecodePayload(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.UserID != "user-a" || !p.IsTyping {
		t.Fatalf("unexpected payload: %+v", p)
	}

	assertNoEvent(t, c)
	assertNoEvent(t, a)
}

func TestSendMessageFansOutToRoom(t *testing.T) {
	msgID := primitive.NewObjectID()
	created := time.Now().UTC()
	svc := &fakeMessageService{
		sendFn: func(_ context.Context, senderID string, in service.SendMessageInput) (*model.Message, error) {
			return &model.Message{
				ID:        msgID,
				SenderID:  senderID,
				Content:   in.Content,
				Type:      model.MessageTypeText,
				CreatedAt: created,
			}, nil
		},
	}
	h := newTestHub(t, svc, nil)

	a := newClient("user-a", nil, h)
	b := newClient("user-b", nil, h)

	join := mustEvent(t, event.EventJoinConversation, event.ConversationPayload{ConversationID: "conv-1"})
	h.handleEvent(join, a)
	h.handleEvent(join, b)

	send := mustEvent(t, event.EventSendMessage, event.SendMessagePayload{
		ConversationID: "conv-1",
		ReceiverID:     "user-b",
		Content:        "hello",
	})
	h.handleEvent(send, a)

	// Both members receive it, the sender included.
	for _, c := range []*Client{a, b} {
		got := recvEvent(t, c)
		if got.Event != event.EventMessageReceived {
			t.Fatalf("expected messageReceived, got %s", got.Event)
		}
		var p event.MessageReceivedPayload
		if err := got.DecodePayload(&p); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if p.ID != msgID.Hex() || p.SenderID != "user-a" || p.Content != "hello" {
			t.Fatalf("unexpected payload: %+v", p)
		}
	}
}

func TestSendMessageFailureAcksSenderOnly(t *testing.T) {
	svc := &fakeMessageService{
		sendFn: func(context.Context, string, service.SendMessageInput) (*model.Message, error) {
			return nil, repo.ErrConversationNotFound
		},
	}
	h := newTestHub(t, svc, nil)

	a := newClient("user-a", nil, h)
	b := newClient("user-b", nil, h)

	join := mustEvent(t, event.EventJoinConversation, event.ConversationPayload{ConversationID: "conv-1"})
	h.handleEvent(join, a)
	h.handleEvent(join, b)

	send := mustEvent(t, event.EventSendMessage, event.SendMessagePayload{
		ConversationID: "conv-1",
		ReceiverID:     "user-b",
		Content:        "hello",
	})
	h.handleEvent(send, a)

	got := recvEvent(t, a)
	if got.Event != event.EventError {
		t.Fatalf("expected error ack, got %s", got.Event)
	}
	var p event.ErrorPayload
	if err := got.DecodePayload(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.Code != "CONVERSATION_NOT_FOUND" {
		t.Fatalf("unexpected error code: %s", p.Code)
	}

	assertNoEvent(t, b)
}

func TestUpdateStatusBroadcastsAndPersists(t *testing.T) {
	users := newFakeStatusStore("user-a", "user-b")
	h := newTestHub(t, nil, users)

	a := newClient("user-a", nil, h)
	b := newClient("user-b", nil, h)

	h.clientsMu.Lock()
	h.clients[a.ID] = a
	h.clients[b.ID] = b
	h.clientsMu.Unlock()
	h.presence.Register("user-a", a.ID)

	h.handleEvent(mustEvent(t, event.EventUpdateStatus, event.UpdateStatusPayload{Status: model.StatusAway}), a)

	got := recvEvent(t, b)
	if got.Event != event.EventUserStatusUpdate {
		t.Fatalf("expected userStatusUpdate, got %s", got.Event)
	}
	var p event.StatusUpdatePayload
	if err := got.DecodePayload(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.UserID != "user-a" || p.Status != model.StatusAway {
		t.Fatalf("unexpected payload: %+v", p)
	}
	assertNoEvent(t, a)

	if rec, _ := h.presence.Get("user-a"); rec.Status != model.StatusAway {
		t.Fatalf("registry status: %s", rec.Status)
	}
	if users.status("user-a") != model.StatusAway {
		t.Fatalf("durable status: %s", users.status("user-a"))
	}
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	h := newTestHub(t, nil, nil)

	a := newClient("user-a", nil, h)
	h.handleEvent(mustEvent(t, event.EventUpdateStatus, event.UpdateStatusPayload{Status: "invisible"}), a)

	got := recvEvent(t, a)
	if got.Event != event.EventError {
		t.Fatalf("expected error ack, got %s", got.Event)
	}
}

func TestUnknownEventAcked(t *testing.T) {
	h := newTestHub(t, nil, nil)

	a := newClient("user-a", nil, h)
	h.handleEvent(event.WsEvent{Event: "sudo"}, a)

	got := recvEvent(t, a)
	if got.Event != event.EventError {
		t.Fatalf("expected error ack, got %s", got.Event)
	}
}

func TestServeWSRejectsBadCredentials(t *testing.T) {
	h := newTestHub(t, nil, newFakeStatusStore("user-a"))

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	// No token at all.
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: got status %d", resp.StatusCode)
	}

	// Garbage token.
	resp, err = http.Get(srv.URL + "?token=garbage")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("invalid token: got status %d", resp.StatusCode)
	}

	// Valid signature, unknown identity.
	resp, err = http.Get(srv.URL + "?token=" + signHubToken(t, "stranger"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown user: got status %d", resp.StatusCode)
	}

	if h.presence.Len() != 0 {
		t.Fatalf("rejected connections must not register presence, got %d records", h.presence.Len())
	}
}

func TestServeWSAuthenticatedLifecycle(t *testing.T) {
	users := newFakeStatusStore("user-a")
	h := newTestHub(t, nil, users)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + signHubToken(t, "user-a")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	waitFor(t, func() bool {
		_, ok := h.presence.Get("user-a")
		return ok
	}, "presence record after connect")
	waitFor(t, func() bool {
		return users.status("user-a") == model.StatusOnline
	}, "durable online status")

	conn.Close()

	waitFor(t, func() bool {
		_, ok := h.presence.Get("user-a")
		return !ok
	}, "presence record removed after disconnect")
	waitFor(t, func() bool {
		return users.status("user-a") == model.StatusOffline
	}, "durable offline status")
}

func TestRemoveClientThatNeverRegisteredIsNoop(t *testing.T) {
	h := newTestHub(t, nil, nil)

	c := newClient("user-a", nil, h)
	h.removeClient(c)

	if h.presence.Len() != 0 {
		t.Fatal("presence must stay empty")
	}
}

func TestMonitorStats(t *testing.T) {
	h := newTestHub(t, nil, newFakeStatusStore("user-a", "user-b"))

	a := newClient("user-a", nil, h)
	b := newClient("user-b", nil, h)
	h.addClient(a)
	h.addClient(b)

	h.handleEvent(mustEvent(t, event.EventJoinConversation, event.ConversationPayload{ConversationID: "conv-1"}), a)

	stats := NewMonitorService(h).GetStats()
	if stats.Status != "healthy" {
		t.Fatalf("unexpected status: %s", stats.Status)
	}
	if stats.Connections.TotalConnected != 2 {
		t.Fatalf("connected: got %d want 2", stats.Connections.TotalConnected)
	}
	if stats.Rooms.UserRooms != 2 {
		t.Fatalf("user rooms: got %d want 2", stats.Rooms.UserRooms)
	}
	if stats.Rooms.ConversationRooms != 1 {
		t.Fatalf("conversation rooms: got %d want 1", stats.Rooms.ConversationRooms)
	}
}

func echoingService() *fakeMessageService {
	return &fakeMessageService{
		sendFn: func(_ context.Context, senderID string, in service.SendMessageInput) (*model.Message, error) {
			return &model.Message{
				ID:        primitive.NewObjectID(),
				SenderID:  senderID,
				Content:   in.Content,
				Type:      model.MessageTypeText,
				CreatedAt: time.Now().UTC(),
			}, nil
		},
	}
}

func TestSendRacingCloseDoesNotPanic(t *testing.T) {
	h := newTestHub(t, nil, nil)
	ev := mustEvent(t, event.EventUserOnline, event.PresencePayload{UserID: "user-a"})

	for i := 0; i < 50; i++ {
		c := newClient("user-a", nil, h)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c.Send(ev)
			}
		}()
		go func() {
			defer wg.Done()
			c.Close()
		}()
		wg.Wait()

		// After close, sends are dropped silently.
		c.Send(ev)
		if !c.IsClosed() {
			t.Fatal("client should report closed")
		}
	}
}

func TestDispatchKeepsPerConnectionOrder(t *testing.T) {
	h := newTestHub(t, echoingService(), nil)

	sender := newClient("user-a", nil, h)
	member := newClient("user-b", nil, h)
	h.handleEvent(mustEvent(t, event.EventJoinConversation, event.ConversationPayload{ConversationID: "conv-1"}), member)

	const count = 10
	for i := 0; i < count; i++ {
		send := mustEvent(t, event.EventSendMessage, event.SendMessagePayload{
			ConversationID: "conv-1",
			ReceiverID:     "user-b",
			Content:        fmt.Sprintf("m-%d", i),
		})
		if !h.dispatch(sender, send) {
			t.Fatalf("dispatch refused event %d", i)
		}
	}

	for i := 0; i < count; i++ {
		got := recvEvent(t, member)
		var p event.MessageReceivedPayload
		if err := got.DecodePayload(&p); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if want := fmt.Sprintf("m-%d", i); p.Content != want {
			t.Fatalf("event %d out of order: got %s want %s", i, p.Content, want)
		}
	}
}

func TestConcurrentSendersDeliverInOneOrder(t *testing.T) {
	h := newTestHub(t, echoingService(), nil)

	s1 := newClient("user-a", nil, h)
	s2 := newClient("user-b", nil, h)
	m1 := newClient("user-c", nil, h)
	m2 := newClient("user-d", nil, h)

	join := mustEvent(t, event.EventJoinConversation, event.ConversationPayload{ConversationID: "conv-1"})
	h.handleEvent(join, m1)
	h.handleEvent(join, m2)

	const perSender = 20
	var wg sync.WaitGroup
	for _, s := range []*Client{s1, s2} {
		wg.Add(1)
		go func(s *Client) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				send := mustEvent(t, event.EventSendMessage, event.SendMessagePayload{
					ConversationID: "conv-1",
					ReceiverID:     "peer",
					Content:        fmt.Sprintf("%s-%d", s.userID, i),
				})
				h.handleEvent(send, s)
			}
		}(s)
	}
	wg.Wait()

	order := func(c *Client) []string {
		out := make([]string, 0, 2*perSender)
		for i := 0; i < 2*perSender; i++ {
			got := recvEvent(t, c)
			var p event.MessageReceivedPayload
			if err := got.DecodePayload(&p); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			out = append(out, p.Content)
		}
		return out
	}

	// Every room member must observe the interleaved sends in the same order.
	seq1 := order(m1)
	seq2 := order(m2)
	for i := range seq1 {
		if seq1[i] != seq2[i] {
			t.Fatalf("members diverge at %d: %s vs %s", i, seq1[i], seq2[i])
		}
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
