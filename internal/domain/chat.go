package domain

// ChatMessage is one line in the shared chat.
type ChatMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	IsTeacher bool   `json:"isTeacher"`
}
