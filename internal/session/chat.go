package session

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/weiawesome/live-poll/internal/audit"
	"github.com/weiawesome/live-poll/internal/domain"
)

// SendMessage appends a chat line and broadcasts it. With EnforceRoles the
// teacher flag comes from the connection role, and a joined participant
// always speaks under its own name.
func (s *Session) SendMessage(ctx context.Context, connID string, req domain.SendMessage) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connLocked(connID)
	if err != nil {
		return nil, err
	}
	text, err := normalizeText("message", req.Message, s.cfg.MaxChatLength)
	if err != nil {
		return nil, err
	}

	sender := strings.TrimSpace(req.Sender)
	isTeacher := req.IsTeacher
	if s.cfg.EnforceRoles {
		isTeacher = c.role == domain.RolePresenter
		if !isTeacher && c.name != "" {
			sender = c.name
		}
	}
	if sender == "" {
		sender = c.name
	}
	if sender == "" {
		return nil, fmt.Errorf("%w: sender is required", domain.ErrInvalidPayload)
	}
	if s.cfg.MaxNameLength > 0 && utf8.RuneCountInString(sender) > s.cfg.MaxNameLength {
		return nil, fmt.Errorf("%w: sender exceeds %d characters", domain.ErrInvalidPayload, s.cfg.MaxNameLength)
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	msg := domain.ChatMessage{
		ID:        id,
		Sender:    sender,
		Message:   text,
		Timestamp: s.nowMillis(),
		IsTeacher: isTeacher,
	}
	s.chat = append(s.chat, msg)
	s.notifier.Broadcast(domain.NewEvent(domain.EvtMessageReceived, msg))

	return &msg, nil
}

// ClearChat empties the chat log.
func (s *Session) ClearChat(ctx context.Context, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connLocked(connID)
	if err != nil {
		return err
	}
	if err := s.authorizeLocked(ctx, c, domain.CmdClearChat); err != nil {
		return err
	}

	s.chat = nil
	s.notifier.Broadcast(domain.NewEvent(domain.EvtChatCleared, nil))

	audit.Log(ctx, audit.ActionChatClear, connID, "chat cleared")
	return nil
}
