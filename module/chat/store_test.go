package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"callbridge/tools/ids"
)

func appendMsg(t *testing.T, s Store, sender, receiver int64, content string) *Message {
	t.Helper()
	msg := &Message{
		ID:         ids.Generate(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	if err := s.Append(context.Background(), msg); err != nil {
		t.Fatalf("append: %v", err)
	}
	return msg
}

func TestHistoryOrderAndBothDirections(t *testing.T) {
	s := NewMemoryStore()
	appendMsg(t, s, 1, 2, "hi")
	appendMsg(t, s, 2, 1, "hey")
	appendMsg(t, s, 1, 2, "how are you")
	appendMsg(t, s, 1, 3, "other conversation")

	msgs, err := s.History(context.Background(), 1, 2, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []string{"hi", "hey", "how are you"}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Fatalf("message %d: got %q want %q", i, m.Content, want[i])
		}
	}
}

func TestHistoryCursorPagesBackwards(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 10; i++ {
		appendMsg(t, s, 1, 2, fmt.Sprintf("m%d", i))
	}

	page, err := s.History(context.Background(), 1, 2, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 4 || page[3].Content != "m9" {
		t.Fatalf("latest page wrong: %+v", page)
	}

	older, err := s.History(context.Background(), 1, 2, 4, page[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 4 || older[0].Content != "m2" || older[3].Content != "m5" {
		t.Fatalf("older page wrong: %+v", older)
	}
}

func TestUnreadCountsTrackAppendAndMarkRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	appendMsg(t, s, 1, 2, "a")
	appendMsg(t, s, 1, 2, "b")
	appendMsg(t, s, 3, 2, "c")
	appendMsg(t, s, 2, 1, "outbound, not mine to read")

	counts, err := s.UnreadCounts(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if counts[1] != 2 || counts[3] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	n, err := s.MarkRead(ctx, 2, 1, time.Now())
	if err != nil || n != 2 {
		t.Fatalf("markRead n=%d err=%v", n, err)
	}
	// idempotent
	n, err = s.MarkRead(ctx, 2, 1, time.Now())
	if err != nil || n != 0 {
		t.Fatalf("second markRead should change nothing, n=%d err=%v", n, err)
	}

	counts, _ = s.UnreadCounts(ctx, 2)
	if counts[1] != 0 || counts[3] != 1 {
		t.Fatalf("counts after markRead %v", counts)
	}

	// an interleaved append is visible immediately
	appendMsg(t, s, 1, 2, "d")
	counts, _ = s.UnreadCounts(ctx, 2)
	if counts[1] != 1 {
		t.Fatalf("read-your-writes violated: %v", counts)
	}
}

func TestReadAtSetOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	appendMsg(t, s, 3, 4, "hello")

	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if _, err := s.MarkRead(ctx, 4, 3, first); err != nil {
		t.Fatal(err)
	}
	later := first.Add(time.Hour)
	if _, err := s.MarkRead(ctx, 4, 3, later); err != nil {
		t.Fatal(err)
	}

	msgs, _ := s.History(ctx, 3, 4, 0, 0)
	if msgs[0].ReadAt == nil || !msgs[0].ReadAt.Equal(first) {
		t.Fatalf("readAt must keep its first value, got %v", msgs[0].ReadAt)
	}
}

// Offline delivery: the recipient is away when "hello" is sent, then comes
// back, reads history, and clears the unread state.
func TestOfflineRecipientSeesMessageLater(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sent := appendMsg(t, s, 3, 4, "hello")
	if sent.ReadAt != nil {
		t.Fatal("fresh message must be unread")
	}

	msgs, err := s.History(ctx, 3, 4, 0, 0)
	if err != nil || len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Fatalf("history after reconnect: %v err=%v", msgs, err)
	}
	if _, err := s.MarkRead(ctx, 4, 3, time.Now()); err != nil {
		t.Fatal(err)
	}
	counts, _ := s.UnreadCounts(ctx, 4)
	if counts[3] != 0 {
		t.Fatalf("expected zero unread from 3, got %d", counts[3])
	}
}
