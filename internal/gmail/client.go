package gmail

import "context"

// Client is the narrow Gmail surface required by mailrake.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	GetFull(ctx context.Context, id MessageID) (FullMessage, error)
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
	ListLabels(ctx context.Context) (map[string]LabelID, map[LabelID]string, error)
	EnsureLabel(ctx context.Context, name string) (LabelID, error)
}
