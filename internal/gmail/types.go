package gmail

type MessageID string
type LabelID string

// Well-known Gmail system labels.
const (
	LabelUnread LabelID = "UNREAD"
	LabelInbox  LabelID = "INBOX"
)

// ListPage is one page of message IDs from a list call.
type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}

// FullMessage is a full-format message with headers and decoded bodies.
type FullMessage struct {
	ID       MessageID
	ThreadID string
	Headers  map[string]string // From, To, Subject, Date, etc.
	Snippet  string
	Labels   []LabelID
	BodyText string // decoded text/plain part, empty if none
	BodyHTML string // decoded text/html part, empty if none
}

// ModifyOps describes label changes applied to a single message.
type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

// HasLabel reports whether the message carries the given label.
func (m FullMessage) HasLabel(id LabelID) bool {
	for _, l := range m.Labels {
		if l == id {
			return true
		}
	}
	return false
}

type Query struct {
	Raw string // Gmail query string, already formed (e.g., `in:inbox`)
}
