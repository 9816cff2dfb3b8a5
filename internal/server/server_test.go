package server_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"pesan/internal/api"
	"pesan/internal/chat"
	"pesan/internal/server"
	"pesan/internal/store"
)

// testServer runs the full HTTP API against a temp database and returns
// transports for two users, exercising both sides of the wire.
func testServer(t *testing.T) (baseURL string, alice, bob *api.Client) {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := server.New(st, filepath.Join(dir, "media"), 0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts.URL, api.NewClient(ts.URL, 1), api.NewClient(ts.URL, 2)
}

func TestSendAndFetchRoundTrip(t *testing.T) {
	_, alice, bob := testServer(t)
	ctx := context.Background()

	sent, err := alice.SendMessage(ctx, 2, "hello bob", nil)
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if sent.ID == 0 || sent.SenderID != 1 || sent.ReceiverID != 2 {
		t.Errorf("unexpected created message: %+v", sent)
	}
	if sent.Timestamp == "" || sent.FullTimestamp == "" {
		t.Errorf("expected server-formatted timestamps, got %+v", sent)
	}

	msgs, err := bob.FetchMessages(ctx, 1, 0, "nonce")
	if err != nil {
		t.Fatalf("FetchMessages() error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello bob" {
		t.Fatalf("unexpected fetch result: %+v", msgs)
	}

	// Bob's fetch marked it read; Alice sees that on her next fetch
	msgs, err = alice.FetchMessages(ctx, 2, 0, "nonce")
	if err != nil {
		t.Fatalf("FetchMessages() error: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].IsRead {
		t.Errorf("expected message marked read, got %+v", msgs)
	}
}

func TestFetchFiltersByLastMessageID(t *testing.T) {
	_, alice, bob := testServer(t)
	ctx := context.Background()

	first, _ := alice.SendMessage(ctx, 2, "first", nil)
	second, _ := alice.SendMessage(ctx, 2, "second", nil)

	msgs, err := bob.FetchMessages(ctx, 1, first.ID, "nonce")
	if err != nil {
		t.Fatalf("FetchMessages() error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != second.ID {
		t.Errorf("expected only the second message, got %+v", msgs)
	}

	msgs, err = bob.FetchMessages(ctx, 1, second.ID, "nonce")
	if err != nil {
		t.Fatalf("FetchMessages() error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty result, got %+v", msgs)
	}
}

func TestEmptySendRejected(t *testing.T) {
	_, alice, _ := testServer(t)

	_, err := alice.SendMessage(context.Background(), 2, "   ", nil)
	var serverErr *api.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if !strings.Contains(serverErr.Reason, "empty") {
		t.Errorf("unexpected reason: %q", serverErr.Reason)
	}
}

func TestDeleteSenderOnly(t *testing.T) {
	_, alice, bob := testServer(t)
	ctx := context.Background()

	sent, err := alice.SendMessage(ctx, 2, "to be deleted", nil)
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}

	// The receiver cannot delete it
	err = bob.DeleteMessage(ctx, sent.ID)
	var serverErr *api.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError for non-sender delete, got %v", err)
	}

	if err := alice.DeleteMessage(ctx, sent.ID); err != nil {
		t.Fatalf("sender delete failed: %v", err)
	}

	msgs, err := bob.FetchMessages(ctx, 1, 0, "nonce")
	if err != nil {
		t.Fatalf("FetchMessages() error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected deleted message gone, got %+v", msgs)
	}

	if err := alice.DeleteMessage(ctx, sent.ID); !errors.As(err, &serverErr) {
		t.Errorf("expected ServerError for missing message, got %v", err)
	}
}

func TestMediaUploadAndServing(t *testing.T) {
	baseURL, alice, _ := testServer(t)
	ctx := context.Background()

	payload := []byte("fake png bytes")
	sent, err := alice.SendMessage(ctx, 2, "look at this", &chat.Attachment{
		Filename: "photo.PNG",
		Data:     payload,
	})
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if sent.MediaType != chat.MediaImage {
		t.Errorf("expected image media type, got %q", sent.MediaType)
	}
	if !strings.HasPrefix(sent.MediaURL, "/media/") || !strings.HasSuffix(sent.MediaURL, ".png") {
		t.Errorf("unexpected media url: %q", sent.MediaURL)
	}

	// The stored file is served back
	resp, err := http.Get(baseURL + sent.MediaURL)
	if err != nil {
		t.Fatalf("GET media error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for media, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(payload) {
		t.Error("served media does not match upload")
	}
}

func TestVideoAndFileClassification(t *testing.T) {
	_, alice, _ := testServer(t)
	ctx := context.Background()

	video, err := alice.SendMessage(ctx, 2, "", &chat.Attachment{Filename: "clip.mp4", Data: []byte{1}})
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if video.MediaType != chat.MediaVideo {
		t.Errorf("expected video, got %q", video.MediaType)
	}

	doc, err := alice.SendMessage(ctx, 2, "", &chat.Attachment{Filename: "notes.pdf", Data: []byte{1}})
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if doc.MediaType != chat.MediaFile {
		t.Errorf("expected file, got %q", doc.MediaType)
	}
}

func TestMissingUserIDRejected(t *testing.T) {
	baseURL, _, _ := testServer(t)

	// Raw request without the identity header
	resp, err := http.Get(baseURL + "/get_messages/2?last_message_id=0")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"success":false`) {
		t.Errorf("expected success:false, got %s", body)
	}
}
