package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/weiawesome/live-poll/internal/audit"
	"github.com/weiawesome/live-poll/internal/domain"
	"github.com/weiawesome/live-poll/internal/idgen"
	"github.com/weiawesome/live-poll/pkg/log"
)

// Config bounds what the session accepts.
type Config struct {
	MaxChatLength      int
	MaxNameLength      int
	MaxOptions         int
	MaxTimeLimit       int
	ValidateVoteOption bool
	RejectActiveCreate bool
	// EnforceRoles gates create, end, kick and clear on RolePresenter and
	// derives isTeacher on chat from the connection role.
	EnforceRoles bool
}

// DefaultConfig returns the defaults used by the server.
func DefaultConfig() Config {
	return Config{
		MaxChatLength:      200,
		MaxNameLength:      64,
		MaxOptions:         6,
		MaxTimeLimit:       3600,
		ValidateVoteOption: true,
	}
}

// Option customizes a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithAfterFunc replaces time.AfterFunc for the poll deadline.
func WithAfterFunc(af AfterFunc) Option {
	return func(s *Session) { s.afterFunc = af }
}

// WithIDGenerator sets the generator for poll and chat message ids.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Session) { s.ids = g }
}

type connection struct {
	id   string
	role domain.Role
	// name of the participant bound to this connection, empty if none
	name string
}

// Session is the single owner of all poll session state. Every exported
// method takes mu for its whole duration, including the notifier calls, so
// all connections observe mutations in the same order.
type Session struct {
	mu sync.Mutex

	cfg       Config
	notifier  Notifier
	ids       idgen.Generator
	now       func() time.Time
	afterFunc AfterFunc

	conns   map[string]*connection
	roster  []domain.Participant
	current *domain.Poll
	votes   domain.Tally
	chat    []domain.ChatMessage
	history []domain.HistoryEntry
	timer   Timer
}

// New creates an idle session that reports events to n.
func New(cfg Config, n Notifier, opts ...Option) *Session {
	s := &Session{
		cfg:       cfg,
		notifier:  n,
		now:       time.Now,
		afterFunc: stdAfterFunc,
		conns:     make(map[string]*connection),
		votes:     domain.Tally{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = idgen.NewULIDGenerator()
	}
	return s
}

// Connect registers a connection and sends it the full snapshot. The
// transport must already be able to deliver to connID.
func (s *Session) Connect(ctx context.Context, connID string, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == "" {
		role = domain.RoleParticipant
	}
	s.conns[connID] = &connection{id: connID, role: role}
	s.notifier.SendTo(connID, domain.NewEvent(domain.EvtStateUpdate, s.snapshotLocked()))

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldRole, string(role)).Int("connections", len(s.conns)).Msg("connection registered")
}

// Disconnect tears down a connection. A bound participant leaves the
// roster and loses its vote. Unknown or unjoined connections are a no-op.
func (s *Session) Disconnect(ctx context.Context, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[connID]
	if !ok {
		return
	}
	delete(s.conns, connID)

	if c.name == "" {
		return
	}
	s.removeParticipantLocked(connID)
	audit.LogWithDetail(ctx, audit.ActionLeave, connID, c.name, "participant left")
}

// Resolve returns the participant bound to connID.
func (s *Session) Resolve(connID string) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[connID]
	if !ok || c.name == "" {
		return domain.Participant{}, false
	}
	return s.findByConnLocked(connID)
}

// Snapshot returns a copy of the full session state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// History returns a copy of the terminated polls, oldest first.
func (s *Session) History() []domain.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

// Results is the aggregated tally of the current poll.
type Results struct {
	Poll         *domain.Poll
	Options      []domain.OptionResult
	TotalVotes   int
	Participants int
}

// Results aggregates the current poll's tally. ok is false when no poll
// has been created yet.
func (s *Session) Results() (Results, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Results{}, false
	}
	return Results{
		Poll:         s.current.Clone(),
		Options:      s.current.Results(s.votes, len(s.roster)),
		TotalVotes:   len(s.votes),
		Participants: len(s.roster),
	}, true
}

// Connections returns the number of registered connections.
func (s *Session) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops the pending deadline timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// Dispatch applies one decoded command from connID.
func (s *Session) Dispatch(ctx context.Context, connID string, cmd domain.Command) error {
	switch c := cmd.(type) {
	case domain.JoinSession:
		return s.Join(ctx, connID, c.Name)
	case domain.CreatePoll:
		_, err := s.CreatePoll(ctx, connID, c)
		return err
	case domain.EndPoll:
		return s.EndPoll(ctx, connID)
	case domain.SubmitVote:
		return s.SubmitVote(ctx, connID, c.StudentName, c.Option)
	case domain.SendMessage:
		_, err := s.SendMessage(ctx, connID, c)
		return err
	case domain.ClearChat:
		return s.ClearChat(ctx, connID)
	case domain.KickStudent:
		return s.Kick(ctx, connID, c.StudentID)
	case domain.Ping:
		return s.Ping(connID)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownCommand, cmd)
	}
}

// Ping answers the sender with pong.
func (s *Session) Ping(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[connID]; !ok {
		return domain.ErrUnknownConnection
	}
	s.notifier.SendTo(connID, domain.NewEvent(domain.EvtPong, nil))
	return nil
}

func (s *Session) connLocked(connID string) (*connection, error) {
	c, ok := s.conns[connID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, connID)
	}
	return c, nil
}

// authorizeLocked gates privileged commands when roles are enforced.
func (s *Session) authorizeLocked(ctx context.Context, c *connection, command string) error {
	if !s.cfg.EnforceRoles || c.role == domain.RolePresenter {
		return nil
	}
	audit.LogWithDetail(ctx, audit.ActionForbidden, c.id, command, "privileged command rejected")
	return fmt.Errorf("%w: %s", domain.ErrForbidden, command)
}

func (s *Session) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		CurrentPoll:  s.current.Clone(),
		Students:     s.rosterLocked(),
		Votes:        s.votes.Clone(),
		ChatMessages: s.chatLocked(),
		PollHistory:  s.historyLocked(),
	}
}

func (s *Session) rosterLocked() []domain.Participant {
	return append([]domain.Participant{}, s.roster...)
}

func (s *Session) chatLocked() []domain.ChatMessage {
	return append([]domain.ChatMessage{}, s.chat...)
}

func (s *Session) historyLocked() []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(s.history))
	for i, h := range s.history {
		out[i] = domain.HistoryEntry{Poll: *h.Poll.Clone(), FinalVotes: h.FinalVotes.Clone()}
	}
	return out
}

func (s *Session) broadcastRosterLocked() {
	s.notifier.Broadcast(domain.NewEvent(domain.EvtStudentsUpdated, s.rosterLocked()))
}

func (s *Session) broadcastVotesLocked() {
	s.notifier.Broadcast(domain.NewEvent(domain.EvtVotesUpdated, s.votes.Clone()))
}

func (s *Session) nowMillis() int64 {
	return s.now().UnixMilli()
}

// normalizeText trims s and checks it is non-empty and at most max runes.
func normalizeText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrInvalidPayload, field)
	}
	if max > 0 && utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%w: %s exceeds %d characters", domain.ErrInvalidPayload, field, max)
	}
	return s, nil
}
