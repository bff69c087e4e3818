package domain

import (
	"encoding/json"
	"fmt"
)

// Commands, client -> server.
const (
	CmdJoinSession = "join-session"
	CmdCreatePoll  = "create-poll"
	CmdEndPoll     = "end-poll"
	CmdSubmitVote  = "submit-vote"
	CmdSendMessage = "send-message"
	CmdClearChat   = "clear-chat"
	CmdKickStudent = "kick-student"
	CmdPing        = "ping"
)

// Events, server -> client.
const (
	EvtStateUpdate     = "state-update"
	EvtStudentsUpdated = "students-updated"
	EvtPollCreated     = "poll-created"
	EvtPollEnded       = "poll-ended"
	EvtVotesUpdated    = "votes-updated"
	EvtMessageReceived = "message-received"
	EvtChatCleared     = "chat-cleared"
	EvtHistoryUpdated  = "history-updated"
	EvtKicked          = "kicked"
	EvtPong            = "pong"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame before encoding.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// NewEvent builds an outbound event.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{Type: eventType, Data: data}
}

// Command is one decoded inbound command. The set of implementations is
// closed: the payload types below.
type Command interface {
	CommandType() string
}

type JoinSession struct {
	Name string `json:"name"`
}

type CreatePoll struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	TimeLimit     int      `json:"timeLimit"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

type EndPoll struct{}

type SubmitVote struct {
	Option      string `json:"option"`
	StudentName string `json:"studentName"`
}

type SendMessage struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	IsTeacher bool   `json:"isTeacher"`
}

type ClearChat struct{}

type KickStudent struct {
	StudentID string `json:"studentId"`
}

type Ping struct{}

func (JoinSession) CommandType() string { return CmdJoinSession }
func (CreatePoll) CommandType() string  { return CmdCreatePoll }
func (EndPoll) CommandType() string     { return CmdEndPoll }
func (SubmitVote) CommandType() string  { return CmdSubmitVote }
func (SendMessage) CommandType() string { return CmdSendMessage }
func (ClearChat) CommandType() string   { return CmdClearChat }
func (KickStudent) CommandType() string { return CmdKickStudent }
func (Ping) CommandType() string        { return CmdPing }

// DecodeCommand parses a frame into its typed command. It checks shape
// only: JSON types and required fields. Range and content rules are
// applied by the session.
func DecodeCommand(frame []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Type {
	case CmdJoinSession:
		var c JoinSession
		if err := decodeData(env, &c); err != nil {
			return nil, err
		}
		if c.Name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidPayload)
		}
		return c, nil

	case CmdCreatePoll:
		var c CreatePoll
		if err := decodeData(env, &c); err != nil {
			return nil, err
		}
		if c.Question == "" || len(c.Options) == 0 {
			return nil, fmt.Errorf("%w: question and options are required", ErrInvalidPayload)
		}
		return c, nil

	case CmdSubmitVote:
		var c SubmitVote
		if err := decodeData(env, &c); err != nil {
			return nil, err
		}
		if c.Option == "" {
			return nil, fmt.Errorf("%w: option is required", ErrInvalidPayload)
		}
		return c, nil

	case CmdSendMessage:
		var c SendMessage
		if err := decodeData(env, &c); err != nil {
			return nil, err
		}
		if c.Message == "" {
			return nil, fmt.Errorf("%w: message is required", ErrInvalidPayload)
		}
		return c, nil

	case CmdKickStudent:
		var c KickStudent
		if err := decodeData(env, &c); err != nil {
			return nil, err
		}
		if c.StudentID == "" {
			return nil, fmt.Errorf("%w: studentId is required", ErrInvalidPayload)
		}
		return c, nil

	case CmdEndPoll:
		return EndPoll{}, nil
	case CmdClearChat:
		return ClearChat{}, nil
	case CmdPing:
		return Ping{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
}

func decodeData(env Envelope, v interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: %s requires data", ErrInvalidPayload, env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}
	return nil
}
