// Package server implements the HTTP API the chat client polls:
// message retrieval, multipart send with media upload, and deletion.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pesan/internal/chat"
	"pesan/internal/constants"
	"pesan/internal/store"
)

// Server serves the chat API backed by the SQLite store.
type Server struct {
	store     *store.Store
	mediaDir  string
	maxUpload int64
	mux       *http.ServeMux
}

// New creates a server persisting messages in st and media uploads
// under mediaDir. maxUpload caps a single upload in bytes; zero means
// the default 16MB.
func New(st *store.Store, mediaDir string, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = constants.MaxUploadBytes
	}
	s := &Server{
		store:     st,
		mediaDir:  mediaDir,
		maxUpload: maxUpload,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /get_messages/{peer}", s.handleGetMessages)
	s.mux.HandleFunc("POST /send_message", s.handleSendMessage)
	s.mux.HandleFunc("POST /delete_message/{id}", s.handleDeleteMessage)
	if mediaDir != "" {
		s.mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))))
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type fetchResponse struct {
	Success  bool           `json:"success"`
	Messages []chat.Message `json:"messages"`
	Error    string         `json:"error,omitempty"`
}

type sendResponse struct {
	Success bool          `json:"success"`
	Message *chat.Message `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// handleGetMessages returns the messages newer than last_message_id for
// the conversation between the requesting user and {peer}, marking
// inbound ones as read. The _ query parameter (cache-defeating nonce)
// is accepted and ignored.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(r)
	if !ok {
		writeJSON(w, fetchResponse{Success: false, Error: "missing user id"})
		return
	}
	peerID, err := strconv.ParseInt(r.PathValue("peer"), 10, 64)
	if err != nil {
		writeJSON(w, fetchResponse{Success: false, Error: "invalid peer id"})
		return
	}
	afterID, _ := strconv.ParseInt(r.URL.Query().Get("last_message_id"), 10, 64)

	messages, err := s.store.ConversationAfter(userID, peerID, afterID)
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Int64("peer", peerID).Msg("Conversation query failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]chat.Message, len(messages))
	for i, m := range messages {
		out[i] = wireMessage(m)
	}
	writeJSON(w, fetchResponse{Success: true, Messages: out})
}

// handleSendMessage accepts a multipart payload with text content and
// an optional single file, stores the message, and returns it.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(r)
	if !ok {
		writeJSON(w, sendResponse{Success: false, Error: "missing user id"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeJSON(w, sendResponse{Success: false, Error: "upload too large (max 16MB)"})
		return
	}

	receiverID, err := strconv.ParseInt(r.FormValue("receiver_id"), 10, 64)
	if err != nil || receiverID == 0 {
		writeJSON(w, sendResponse{Success: false, Error: "receiver id is required"})
		return
	}
	content := strings.TrimSpace(r.FormValue("content"))

	var mediaURL, mediaType string
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		mediaURL, mediaType, err = s.saveMedia(file, header.Filename)
		if err != nil {
			log.Error().Err(err).Str("filename", header.Filename).Msg("Media upload failed")
			writeJSON(w, sendResponse{Success: false, Error: "failed to store media"})
			return
		}
	}

	// At least text or a file is required
	if content == "" && mediaURL == "" {
		writeJSON(w, sendResponse{Success: false, Error: "message cannot be empty"})
		return
	}

	m, err := s.store.AddMessage(userID, receiverID, content, mediaURL, mediaType)
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Msg("Insert message failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	msg := wireMessage(m)
	writeJSON(w, sendResponse{Success: true, Message: &msg})
}

// handleDeleteMessage deletes one message. Only its sender may.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(r)
	if !ok {
		writeJSON(w, deleteResponse{Success: false, Error: "missing user id"})
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, deleteResponse{Success: false, Error: "invalid message id"})
		return
	}

	switch err := s.store.DeleteMessage(id, userID); {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, deleteResponse{Success: false, Error: "message not found"})
	case errors.Is(err, store.ErrForbidden):
		writeJSON(w, deleteResponse{Success: false, Error: "you can only delete your own messages"})
	case err != nil:
		log.Error().Err(err).Int64("id", id).Msg("Delete message failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		writeJSON(w, deleteResponse{Success: true})
	}
}

// saveMedia writes an upload under the media dir with a generated name
// and returns its URL path and kind.
func (s *Server) saveMedia(file io.Reader, filename string) (url, kind string, err error) {
	if s.mediaDir == "" {
		return "", "", fmt.Errorf("media storage not configured")
	}
	if err := os.MkdirAll(s.mediaDir, 0755); err != nil {
		return "", "", fmt.Errorf("ensure media dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.mediaDir, name))
	if err != nil {
		return "", "", fmt.Errorf("create media file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", "", fmt.Errorf("write media file: %w", err)
	}

	return "/media/" + name, classifyMedia(ext), nil
}

// classifyMedia maps a file extension to a media kind.
func classifyMedia(ext string) string {
	switch strings.TrimPrefix(ext, ".") {
	case "jpg", "jpeg", "png", "gif", "webp":
		return string(chat.MediaImage)
	case "mp4", "avi", "mov", "wmv", "mkv":
		return string(chat.MediaVideo)
	default:
		return string(chat.MediaFile)
	}
}

// wireMessage converts a stored message to its wire form. Timestamps
// are formatted server-side; the client treats them as opaque.
func wireMessage(m *store.Message) chat.Message {
	return chat.Message{
		ID:            m.ID,
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		Content:       m.Content,
		MediaURL:      m.MediaURL,
		MediaType:     chat.MediaKind(m.MediaType),
		IsRead:        m.IsRead,
		Timestamp:     m.CreatedAt.Format("15:04"),
		FullTimestamp: m.CreatedAt.Format("02 Jan 2006 15:04"),
	}
}

func (s *Server) userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(constants.UserIDHeader), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Encode response failed")
	}
}
