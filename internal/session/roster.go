package session

import (
	"context"
	"fmt"

	"github.com/weiawesome/live-poll/internal/audit"
	"github.com/weiawesome/live-poll/internal/domain"
)

// Join binds name to connID. Another entry with the same name is evicted
// and its connection unbound; that name's vote is kept. A connection
// joining under a new name first leaves under its old one.
func (s *Session) Join(ctx context.Context, connID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connLocked(connID)
	if err != nil {
		return err
	}
	name, err = normalizeText("name", name, s.cfg.MaxNameLength)
	if err != nil {
		return err
	}

	votesChanged := false
	if c.name != "" && c.name != name {
		_, votesChanged, _ = s.dropParticipantLocked(connID)
	}

	for i := 0; i < len(s.roster); i++ {
		p := s.roster[i]
		if p.Name != name {
			continue
		}
		s.roster = append(s.roster[:i], s.roster[i+1:]...)
		i--
		if old, ok := s.conns[p.ID]; ok && p.ID != connID {
			old.name = ""
		}
	}

	s.roster = append(s.roster, domain.Participant{ID: connID, Name: name, JoinedAt: s.nowMillis()})
	c.name = name

	s.broadcastRosterLocked()
	if votesChanged {
		s.broadcastVotesLocked()
	}
	audit.LogWithDetail(ctx, audit.ActionJoin, connID, name, "participant joined")
	return nil
}

// Kick removes the participant joined on targetID, drops its vote, and
// closes that connection after sending it a kicked notice.
func (s *Session) Kick(ctx context.Context, connID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connLocked(connID)
	if err != nil {
		return err
	}
	if err := s.authorizeLocked(ctx, c, domain.CmdKickStudent); err != nil {
		return err
	}

	p, _, ok := s.dropParticipantLocked(targetID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownParticipant, targetID)
	}

	s.broadcastRosterLocked()
	s.broadcastVotesLocked()
	s.notifier.Terminate(targetID, domain.NewEvent(domain.EvtKicked, nil))

	audit.LogWithDetail(ctx, audit.ActionKick, connID, p.Name, "participant kicked")
	return nil
}

// removeParticipantLocked drops the participant on connID and broadcasts
// what changed.
func (s *Session) removeParticipantLocked(connID string) {
	_, hadVote, ok := s.dropParticipantLocked(connID)
	if !ok {
		return
	}
	s.broadcastRosterLocked()
	if hadVote {
		s.broadcastVotesLocked()
	}
}

// dropParticipantLocked removes the roster entry for connID, unbinds the
// connection and deletes the vote under that name. It does not broadcast.
func (s *Session) dropParticipantLocked(connID string) (p domain.Participant, hadVote bool, ok bool) {
	for i, entry := range s.roster {
		if entry.ID == connID {
			p, ok = entry, true
			s.roster = append(s.roster[:i], s.roster[i+1:]...)
			break
		}
	}
	if !ok {
		return p, false, false
	}
	if c, found := s.conns[connID]; found {
		c.name = ""
	}
	if _, hadVote = s.votes[p.Name]; hadVote {
		delete(s.votes, p.Name)
	}
	return p, hadVote, true
}

func (s *Session) findByConnLocked(connID string) (domain.Participant, bool) {
	for _, p := range s.roster {
		if p.ID == connID {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func (s *Session) inRosterLocked(name string) bool {
	for _, p := range s.roster {
		if p.Name == name {
			return true
		}
	}
	return false
}
