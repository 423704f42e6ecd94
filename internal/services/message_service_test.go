package services_test

import (
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"shopfront/internal/errs"
	"shopfront/internal/realtime"
	"shopfront/internal/repos"
	"shopfront/internal/services"
)

// fakePublisher records publishes so tests can assert on delivery without a
// transport.
type fakePublisher struct {
	mu     sync.Mutex
	events []struct {
		UserID string
		Event  realtime.Event
	}
}

func (f *fakePublisher) Publish(userID string, ev realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, struct {
		UserID string
		Event  realtime.Event
	}{userID, ev})
}

func newMessageService(db *sqlx.DB) (*services.MessageService, *fakePublisher) {
	pub := &fakePublisher{}
	svc := services.NewMessageService(db, repos.NewMessageRepo(db), repos.NewUserRepo(db), pub)
	return svc, pub
}

func TestSendPublishesToRecipient(t *testing.T) {
	db := memdb(t)
	svc, pub := newMessageService(db)

	m, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Subject: "hi", Body: "hello bob"})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == "" || m.CreatedAt == "" {
		t.Fatalf("bad message: %+v", m)
	}
	if m.SenderName != "Alice" || m.RecipientName != "Bob" {
		t.Fatalf("names not resolved: %+v", m)
	}

	if len(pub.events) != 1 {
		t.Fatalf("want 1 publish, got %d", len(pub.events))
	}
	got := pub.events[0]
	if got.UserID != "u-bob" || got.Event.Name != "new_message" {
		t.Fatalf("bad publish: %+v", got)
	}
	data := got.Event.Data.(map[string]any)
	if data["sender_name"] != "Alice" || data["message"] != "hello bob" {
		t.Fatalf("bad payload: %+v", data)
	}
}

func TestSendRejectsBadInput(t *testing.T) {
	db := memdb(t)
	svc, _ := newMessageService(db)

	if _, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-ghost", Body: "x"}); !errs.IsNotFound(err) {
		t.Fatalf("unknown recipient: want not-found, got %v", err)
	}
	if _, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Body: "   "}); !errs.IsValidation(err) {
		t.Fatalf("blank body: want validation error, got %v", err)
	}
	if _, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-alice", Body: "me"}); !errs.IsValidation(err) {
		t.Fatalf("self message: want validation error, got %v", err)
	}

	// Deactivated recipients read as missing.
	if _, err := db.Exec(`UPDATE users SET active = 0 WHERE id = 'u-bob'`); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Body: "x"}); !errs.IsNotFound(err) {
		t.Fatalf("inactive recipient: want not-found, got %v", err)
	}
}

func TestReadOnView(t *testing.T) {
	db := memdb(t)
	svc, _ := newMessageService(db)

	sent, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Body: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	// Sender re-fetching does not flip read state.
	m, _, err := svc.GetByID(sent.ID, "u-alice")
	if err != nil {
		t.Fatal(err)
	}
	if m.IsRead || m.ReadAt.Valid {
		t.Fatalf("sender view marked message read: %+v", m)
	}

	// Recipient fetch marks read and stamps read_at.
	m, _, err = svc.GetByID(sent.ID, "u-bob")
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsRead || !m.ReadAt.Valid {
		t.Fatalf("read-on-view did not apply: %+v", m)
	}
	firstReadAt := m.ReadAt.String

	// A second view leaves read_at untouched.
	m, _, err = svc.GetByID(sent.ID, "u-bob")
	if err != nil {
		t.Fatal(err)
	}
	if m.ReadAt.String != firstReadAt {
		t.Fatalf("read_at rewritten on re-view: %s != %s", m.ReadAt.String, firstReadAt)
	}

	if n, _ := svc.UnreadCount("u-bob"); n != 0 {
		t.Fatalf("unread count after view: %d", n)
	}
}

func TestGetByIDHidesExistenceFromThirdParties(t *testing.T) {
	db := memdb(t)
	svc, _ := newMessageService(db)

	sent, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Body: "private"})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.GetByID(sent.ID, "u-admin"); !errs.IsNotFound(err) {
		t.Fatalf("third party: want not-found, got %v", err)
	}
}

func TestRepliesAndThreadVisibility(t *testing.T) {
	db := memdb(t)
	svc, _ := newMessageService(db)

	root, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Subject: "thread", Body: "first"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send("u-bob", services.SendInput{RecipientID: "u-alice", Body: "second", ParentID: &root.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Body: "third", ParentID: &root.ID}); err != nil {
		t.Fatal(err)
	}

	_, replies, err := svc.GetByID(root.ID, "u-alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 2 {
		t.Fatalf("want 2 replies, got %d", len(replies))
	}
	if replies[0].Body != "second" || replies[1].Body != "third" {
		t.Fatalf("replies out of order: %q, %q", replies[0].Body, replies[1].Body)
	}

	// An outsider cannot attach replies to a thread it cannot see.
	if _, err := svc.Send("u-admin", services.SendInput{RecipientID: "u-bob", Body: "sneak", ParentID: &root.ID}); !errs.IsNotFound(err) {
		t.Fatalf("want not-found for invisible parent, got %v", err)
	}
}

func TestConversationsAggregation(t *testing.T) {
	db := memdb(t)
	svc, _ := newMessageService(db)

	if _, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Body: "a->b"}); err != nil {
		t.Fatal(err)
	}
	last, err := svc.Send("u-bob", services.SendInput{RecipientID: "u-alice", Body: "b->a"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send("u-admin", services.SendInput{RecipientID: "u-alice", Body: "admin note"}); err != nil {
		t.Fatal(err)
	}

	convs, err := svc.Conversations("u-alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("want 2 conversations, got %d", len(convs))
	}
	// Most recently active first: the admin note came last.
	if convs[0].OtherUserID != "u-admin" {
		t.Fatalf("ordering: %+v", convs)
	}

	var bob *repos.ConversationRow
	for i := range convs {
		if convs[i].OtherUserID == "u-bob" {
			bob = &convs[i]
		}
	}
	if bob == nil {
		t.Fatalf("no conversation with bob: %+v", convs)
	}
	if bob.LastMessage != "b->a" || bob.LastAt != last.CreatedAt {
		t.Fatalf("last message wrong: %+v", bob)
	}
	// One unread from bob addressed to alice; alice's own send doesn't count.
	if bob.UnreadCount != 1 {
		t.Fatalf("unread count: want 1, got %d", bob.UnreadCount)
	}

	// Exactly one entry per pair even with traffic in both directions.
	convsBob, err := svc.Conversations("u-bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(convsBob) != 1 || convsBob[0].OtherUserID != "u-alice" {
		t.Fatalf("bob's conversations: %+v", convsBob)
	}
}

func TestMarkAllReadIdempotent(t *testing.T) {
	db := memdb(t)
	svc, _ := newMessageService(db)

	for i := 0; i < 3; i++ {
		if _, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Body: "ping"}); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := svc.UnreadCount("u-bob"); n != 3 {
		t.Fatalf("unread before: %d", n)
	}

	n, err := svc.MarkAllRead("u-bob")
	if err != nil || n != 3 {
		t.Fatalf("first mark-all: n=%d err=%v", n, err)
	}
	if n, _ := svc.UnreadCount("u-bob"); n != 0 {
		t.Fatalf("unread after first: %d", n)
	}

	n, err = svc.MarkAllRead("u-bob")
	if err != nil || n != 0 {
		t.Fatalf("second mark-all should be a no-op: n=%d err=%v", n, err)
	}
}

func TestInboxAndSentListing(t *testing.T) {
	db := memdb(t)
	svc, _ := newMessageService(db)

	if _, err := svc.Send("u-alice", services.SendInput{RecipientID: "u-bob", Body: "one"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send("u-bob", services.SendInput{RecipientID: "u-alice", Body: "two"}); err != nil {
		t.Fatal(err)
	}

	inbox, err := svc.List("u-bob", "inbox")
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 1 || inbox[0].Body != "one" {
		t.Fatalf("inbox: %+v", inbox)
	}
	sent, err := svc.List("u-bob", "sent")
	if err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 || sent[0].Body != "two" {
		t.Fatalf("sent: %+v", sent)
	}
}
