package domain

// Snapshot is the full session state sent to a newly connected client.
type Snapshot struct {
	CurrentPoll  *Poll          `json:"currentPoll"`
	Students     []Participant  `json:"students"`
	Votes        Tally          `json:"votes"`
	ChatMessages []ChatMessage  `json:"chatMessages"`
	PollHistory  []HistoryEntry `json:"pollHistory"`
}
