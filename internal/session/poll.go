package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/weiawesome/live-poll/internal/audit"
	"github.com/weiawesome/live-poll/internal/domain"
	"github.com/weiawesome/live-poll/pkg/log"
)

// Trigger names what ended a poll.
type Trigger string

const (
	TriggerCommand Trigger = "explicit-command"
	TriggerTimer   Trigger = "timer-expiry"
)

// CreatePoll validates req, makes it the current poll, clears the tally
// and starts the deadline timer. A previous poll, active or ended, is
// superseded unless RejectActiveCreate is set.
func (s *Session) CreatePoll(ctx context.Context, connID string, req domain.CreatePoll) (*domain.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connLocked(connID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeLocked(ctx, c, domain.CmdCreatePoll); err != nil {
		return nil, err
	}

	poll, err := s.buildPoll(req)
	if err != nil {
		return nil, err
	}
	if s.cfg.RejectActiveCreate && s.current != nil && !s.current.Ended {
		return nil, fmt.Errorf("%w: %s", domain.ErrPollAlreadyActive, s.current.ID)
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate poll id: %w", err)
	}
	poll.ID = id
	poll.StartTime = s.nowMillis()

	s.stopTimerLocked()
	s.current = poll
	s.votes = domain.Tally{}
	s.timer = s.afterFunc(time.Duration(poll.TimeLimit)*time.Second, func() {
		s.expire(id)
	})

	s.notifier.Broadcast(domain.NewEvent(domain.EvtPollCreated, poll.Clone()))
	audit.LogWithDetail(ctx, audit.ActionPollCreate, connID, id, "poll created")

	return poll.Clone(), nil
}

// EndPoll ends the current poll on request.
func (s *Session) EndPoll(ctx context.Context, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connLocked(connID)
	if err != nil {
		return err
	}
	if err := s.authorizeLocked(ctx, c, domain.CmdEndPoll); err != nil {
		return err
	}
	if err := s.endPollLocked(ctx, TriggerCommand); err != nil {
		return err
	}
	audit.LogWithDetail(ctx, audit.ActionPollEnd, connID, s.current.ID, "poll ended")
	return nil
}

// SubmitVote records option for the named participant, replacing any
// earlier choice. An empty name means the participant bound to connID.
func (s *Session) SubmitVote(ctx context.Context, connID, name, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connLocked(connID)
	if err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = c.name
	}
	if name == "" {
		return fmt.Errorf("%w: studentName is required", domain.ErrInvalidPayload)
	}
	option = strings.TrimSpace(option)
	if option == "" {
		return fmt.Errorf("%w: option is required", domain.ErrInvalidPayload)
	}

	if s.current == nil {
		return domain.ErrNoActivePoll
	}
	if !s.current.Active(s.now()) {
		return fmt.Errorf("%w: %s", domain.ErrPollEnded, s.current.ID)
	}
	if !s.inRosterLocked(name) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownParticipant, name)
	}
	if c.name != name {
		return fmt.Errorf("%w: %s is not joined on this connection", domain.ErrUnknownParticipant, name)
	}
	if s.cfg.ValidateVoteOption && !s.current.HasOption(option) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidOption, option)
	}

	s.votes[name] = option
	s.broadcastVotesLocked()

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldParticipant, name).Str(log.FieldPollID, s.current.ID).Msg("vote recorded")
	return nil
}

// expire is the deadline callback. It is a no-op unless pollID is still
// the current, unended poll.
func (s *Session) expire(pollID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != pollID || s.current.Ended {
		return
	}
	ctx := log.WithLogger(context.Background(), log.L())
	if err := s.endPollLocked(ctx, TriggerTimer); err == nil {
		audit.LogWithDetail(ctx, audit.ActionPollEnd, "", pollID, "poll expired")
	}
}

// endPollLocked is the single termination path for both triggers.
func (s *Session) endPollLocked(ctx context.Context, trigger Trigger) error {
	if s.current == nil {
		return domain.ErrNoActivePoll
	}
	if s.current.Ended {
		return fmt.Errorf("%w: %s", domain.ErrPollEnded, s.current.ID)
	}

	s.current.Ended = true
	s.stopTimerLocked()

	entry := domain.HistoryEntry{Poll: *s.current.Clone(), FinalVotes: s.votes.Clone()}
	s.history = append(s.history, entry)

	s.notifier.Broadcast(domain.NewEvent(domain.EvtPollEnded, domain.HistoryEntry{
		Poll:       *entry.Poll.Clone(),
		FinalVotes: entry.FinalVotes.Clone(),
	}))
	s.notifier.Broadcast(domain.NewEvent(domain.EvtHistoryUpdated, s.historyLocked()))

	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldPollID, entry.ID).
		Str(log.FieldTrigger, string(trigger)).
		Int("votes", len(entry.FinalVotes)).
		Msg("poll ended")
	return nil
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// buildPoll applies the content rules to a create request.
func (s *Session) buildPoll(req domain.CreatePoll) (*domain.Poll, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidPayload)
	}

	options := make([]string, 0, len(req.Options))
	seen := make(map[string]bool, len(req.Options))
	for _, o := range req.Options {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if seen[o] {
			return nil, fmt.Errorf("%w: duplicate option %q", domain.ErrInvalidPayload, o)
		}
		seen[o] = true
		options = append(options, o)
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("%w: at least 2 options are required", domain.ErrInvalidPayload)
	}
	if s.cfg.MaxOptions > 0 && len(options) > s.cfg.MaxOptions {
		return nil, fmt.Errorf("%w: at most %d options are allowed", domain.ErrInvalidPayload, s.cfg.MaxOptions)
	}

	if req.TimeLimit < 1 || (s.cfg.MaxTimeLimit > 0 && req.TimeLimit > s.cfg.MaxTimeLimit) {
		return nil, fmt.Errorf("%w: timeLimit %d out of range", domain.ErrInvalidPayload, req.TimeLimit)
	}

	correct := strings.TrimSpace(req.CorrectAnswer)
	if correct != "" && !seen[correct] {
		return nil, fmt.Errorf("%w: correctAnswer %q is not an option", domain.ErrInvalidPayload, correct)
	}

	return &domain.Poll{
		Question:      question,
		Options:       options,
		TimeLimit:     req.TimeLimit,
		CorrectAnswer: correct,
	}, nil
}
