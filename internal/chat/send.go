package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrEmptyMessage is returned when a send has neither text nor an
// attachment. Rejected client-side, before any network call.
var ErrEmptyMessage = errors.New("message is empty")

// ErrNoConversation is returned for sends and deletes outside an active
// conversation.
var ErrNoConversation = errors.New("no active conversation")

// Send sends text and/or a single attachment to the active peer. On
// success the created message is local-echoed into the render pipeline
// so it appears without waiting for the next poll, and returned.
// Failures propagate unchanged: the transport distinguishes
// server-reported failures from transient network errors.
func (s *Session) Send(ctx context.Context, text string, attachment *Attachment) (*Message, error) {
	if strings.TrimSpace(text) == "" && attachment == nil {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	peer := s.peerID
	s.mu.Unlock()
	if peer == 0 {
		return nil, ErrNoConversation
	}

	msg, err := s.transport.SendMessage(ctx, peer, text, attachment)
	if err != nil {
		log.Warn().Err(err).Int64("peer", peer).Msg("Send failed")
		return nil, err
	}

	s.pipeline.IngestLocal(*msg)
	log.Debug().Int64("id", msg.ID).Int64("peer", peer).Msg("Message sent")
	return msg, nil
}

// Delete deletes one message by id. Removing it from the rendered
// surface is the caller's concern; the engine's log keeps the id so a
// later duplicate delivery cannot resurrect it.
func (s *Session) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	active := s.peerID != 0
	s.mu.Unlock()
	if !active {
		return ErrNoConversation
	}

	if err := s.transport.DeleteMessage(ctx, id); err != nil {
		log.Warn().Err(err).Int64("id", id).Msg("Delete failed")
		return err
	}
	log.Debug().Int64("id", id).Msg("Message deleted")
	return nil
}
