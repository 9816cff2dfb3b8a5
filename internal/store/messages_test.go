package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGetMessage(t *testing.T) {
	s := testStore(t)

	m, err := s.AddMessage(1, 2, "hello", "", "")
	if err != nil {
		t.Fatalf("AddMessage() error: %v", err)
	}
	if m.ID == 0 {
		t.Error("expected assigned id")
	}

	got, err := s.GetMessage(m.ID)
	if err != nil {
		t.Fatalf("GetMessage() error: %v", err)
	}
	if got.SenderID != 1 || got.ReceiverID != 2 || got.Content != "hello" {
		t.Errorf("unexpected message: %+v", got)
	}
	if got.IsRead {
		t.Error("new message should be unread")
	}
}

func TestMessageIDsIncrease(t *testing.T) {
	s := testStore(t)

	var last int64
	for i := 0; i < 5; i++ {
		m, err := s.AddMessage(1, 2, "msg", "", "")
		if err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}
		if m.ID <= last {
			t.Errorf("expected increasing ids, got %d after %d", m.ID, last)
		}
		last = m.ID
	}
}

func TestConversationAfter(t *testing.T) {
	s := testStore(t)

	m1, _ := s.AddMessage(1, 2, "from 1", "", "")
	m2, _ := s.AddMessage(2, 1, "from 2", "", "")
	s.AddMessage(1, 3, "other conversation", "", "")
	m3, _ := s.AddMessage(1, 2, "from 1 again", "", "")

	// Full conversation, both directions, in id order
	msgs, err := s.ConversationAfter(1, 2, 0)
	if err != nil {
		t.Fatalf("ConversationAfter() error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []int64{m1.ID, m2.ID, m3.ID} {
		if msgs[i].ID != want {
			t.Errorf("position %d: expected id %d, got %d", i, want, msgs[i].ID)
		}
	}

	// Incremental fetch only returns newer ids
	msgs, err = s.ConversationAfter(1, 2, m2.ID)
	if err != nil {
		t.Fatalf("ConversationAfter() error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != m3.ID {
		t.Errorf("expected only id %d, got %+v", m3.ID, msgs)
	}
}

func TestConversationAfterMarksInboundRead(t *testing.T) {
	s := testStore(t)

	inbound, _ := s.AddMessage(2, 1, "to user 1", "", "")
	outbound, _ := s.AddMessage(1, 2, "from user 1", "", "")

	// User 1 fetches the conversation
	if _, err := s.ConversationAfter(1, 2, 0); err != nil {
		t.Fatalf("ConversationAfter() error: %v", err)
	}

	got, _ := s.GetMessage(inbound.ID)
	if !got.IsRead {
		t.Error("inbound message should be marked read after fetch")
	}
	got, _ = s.GetMessage(outbound.ID)
	if got.IsRead {
		t.Error("outbound message must not be marked read by own fetch")
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	s := testStore(t)

	m, _ := s.AddMessage(1, 2, "hello", "", "")

	if err := s.DeleteMessage(m.ID, 2); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-sender, got %v", err)
	}
	if err := s.DeleteMessage(m.ID, 1); err != nil {
		t.Errorf("sender delete failed: %v", err)
	}
	if _, err := s.GetMessage(m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteMessage(m.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing message, got %v", err)
	}
}

func TestCountMessages(t *testing.T) {
	s := testStore(t)

	s.AddMessage(1, 2, "a", "", "")
	s.AddMessage(2, 1, "b", "", "")

	n, err := s.CountMessages()
	if err != nil {
		t.Fatalf("CountMessages() error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 messages, got %d", n)
	}
}

func TestMediaFieldsRoundTrip(t *testing.T) {
	s := testStore(t)

	m, err := s.AddMessage(1, 2, "", "/media/abc.png", "image")
	if err != nil {
		t.Fatalf("AddMessage() error: %v", err)
	}

	got, err := s.GetMessage(m.ID)
	if err != nil {
		t.Fatalf("GetMessage() error: %v", err)
	}
	if got.MediaURL != "/media/abc.png" || got.MediaType != "image" {
		t.Errorf("unexpected media fields: %+v", got)
	}
}
