// internal/actions/service.go
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	gc "github.com/joshsymonds/mailrake/internal/gmail"
	"github.com/joshsymonds/mailrake/internal/rate"
	"github.com/joshsymonds/mailrake/internal/rules"
	"github.com/joshsymonds/mailrake/internal/store"
)

// ActionStore is the slice of the store the executor reads and writes.
type ActionStore interface {
	GetEmailByID(ctx context.Context, id int64) (*store.Email, error)
	MarkRead(ctx context.Context, id int64, read bool) error
	SetLabels(ctx context.Context, id int64, labels string) error
	LogAction(ctx context.Context, l store.ActionLog) error
}

// Result is the outcome of one attempted action.
type Result struct {
	EmailID int64
	RuleID  string
	Type    rules.ActionType
	Success bool
	Message string
}

// Service executes an action plan against Gmail and the local store. Every
// attempt is appended to the action log; failures never abort the run.
type Service struct {
	Client  gc.Client
	Store   ActionStore
	Limiter rate.Limiter
	Logger  *slog.Logger
	Clock   func() time.Time
	DryRun  bool

	// RunID groups one run's audit records. Assigned on first use if empty.
	RunID string
}

// NewService constructs a Service with sane defaults.
func NewService(client gc.Client, st ActionStore, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	return &Service{
		Client:  client,
		Store:   st,
		Limiter: limiter,
		Logger:  logger,
		Clock:   time.Now,
	}
}

// Execute performs every action in the plan, walking messages in ascending
// store-ID order and preserving the plan's per-message action order.
func (s *Service) Execute(ctx context.Context, plan rules.Plan) map[int64][]Result {
	if s.RunID == "" {
		s.RunID = uuid.NewString()
	}

	emailIDs := make([]int64, 0, len(plan))
	for id := range plan {
		emailIDs = append(emailIDs, id)
	}
	sort.Slice(emailIDs, func(i, j int) bool { return emailIDs[i] < emailIDs[j] })

	results := make(map[int64][]Result, len(plan))
	for _, emailID := range emailIDs {
		for _, ref := range plan[emailID] {
			var res Result
			switch ref.Action.Type {
			case rules.ActionMarkAsRead:
				res = s.setReadState(ctx, emailID, ref.RuleID, true)
			case rules.ActionMarkAsUnread:
				res = s.setReadState(ctx, emailID, ref.RuleID, false)
			case rules.ActionMoveMessage:
				res = s.moveMessage(ctx, emailID, ref.Action.Destination, ref.RuleID)
			default:
				res = Result{
					EmailID: emailID,
					RuleID:  ref.RuleID,
					Type:    ref.Action.Type,
					Message: fmt.Sprintf("unknown action type: %v", ref.Action.Type),
				}
				s.log(ctx, res, errors.New(res.Message))
			}
			results[emailID] = append(results[emailID], res)
		}
	}
	return results
}

func (s *Service) setReadState(ctx context.Context, emailID int64, ruleID string, read bool) Result {
	actionType := rules.ActionMarkAsRead
	state := "read"
	if !read {
		actionType = rules.ActionMarkAsUnread
		state = "unread"
	}
	res := Result{EmailID: emailID, RuleID: ruleID, Type: actionType}

	email, err := s.Store.GetEmailByID(ctx, emailID)
	if err != nil {
		res.Message = fmt.Sprintf("email %d not found", emailID)
		return res
	}

	if s.DryRun {
		res.Success = true
		res.Message = fmt.Sprintf("Would mark email %q as %s (DRY RUN)", email.Subject, state)
		s.log(ctx, res, nil)
		return res
	}

	if email.IsRead == read {
		res.Success = true
		res.Message = fmt.Sprintf("Email is already marked as %s", state)
		s.log(ctx, res, nil)
		return res
	}

	ops := gc.ModifyOps{RemoveLabels: []gc.LabelID{gc.LabelUnread}}
	if !read {
		ops = gc.ModifyOps{AddLabels: []gc.LabelID{gc.LabelUnread}}
	}
	if err := s.modify(ctx, gc.MessageID(email.MessageID), ops); err != nil {
		res.Message = fmt.Sprintf("Error: %v", err)
		s.log(ctx, res, err)
		return res
	}
	if err := s.Store.MarkRead(ctx, emailID, read); err != nil {
		res.Message = fmt.Sprintf("Error: %v", err)
		s.log(ctx, res, err)
		return res
	}

	res.Success = true
	res.Message = fmt.Sprintf("Marked email as %s", state)
	s.log(ctx, res, nil)
	return res
}

func (s *Service) moveMessage(ctx context.Context, emailID int64, destination, ruleID string) Result {
	res := Result{EmailID: emailID, RuleID: ruleID, Type: rules.ActionMoveMessage}

	email, err := s.Store.GetEmailByID(ctx, emailID)
	if err != nil {
		res.Message = fmt.Sprintf("email %d not found", emailID)
		return res
	}

	if s.DryRun {
		res.Success = true
		res.Message = fmt.Sprintf("Would move email %q to %q (DRY RUN)", email.Subject, destination)
		s.log(ctx, res, nil)
		return res
	}

	labelID, err := s.ensureLabel(ctx, destination)
	if err != nil {
		res.Message = fmt.Sprintf("Error: %v", err)
		s.log(ctx, res, err)
		return res
	}

	ops := gc.ModifyOps{
		AddLabels:    []gc.LabelID{labelID},
		RemoveLabels: []gc.LabelID{gc.LabelInbox},
	}
	if err := s.modify(ctx, gc.MessageID(email.MessageID), ops); err != nil {
		res.Message = fmt.Sprintf("Error: %v", err)
		s.log(ctx, res, err)
		return res
	}

	labels := relabel(email.Labels, labelID)
	if err := s.Store.SetLabels(ctx, emailID, labels); err != nil {
		res.Message = fmt.Sprintf("Error: %v", err)
		s.log(ctx, res, err)
		return res
	}

	res.Success = true
	res.Message = fmt.Sprintf("Moved email to %q", destination)
	s.log(ctx, res, nil)
	return res
}

func (s *Service) modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	if err := s.Limiter.Wait(ctx); err != nil {
		return err
	}
	return s.Client.Modify(ctx, id, ops)
}

func (s *Service) ensureLabel(ctx context.Context, name string) (gc.LabelID, error) {
	if err := s.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	return s.Client.EnsureLabel(ctx, name)
}

// relabel drops INBOX from a comma-separated label list and appends the
// destination label if it is not already present.
func relabel(csv string, add gc.LabelID) string {
	var out []string
	seen := false
	for _, l := range strings.Split(csv, ",") {
		if l == "" || l == string(gc.LabelInbox) {
			continue
		}
		if l == string(add) {
			seen = true
		}
		out = append(out, l)
	}
	if !seen {
		out = append(out, string(add))
	}
	return strings.Join(out, ",")
}

func (s *Service) log(ctx context.Context, res Result, cause error) {
	entry := store.ActionLog{
		EmailID:    res.EmailID,
		RunID:      s.RunID,
		ActionType: res.Type.String(),
		RuleID:     res.RuleID,
		Detail:     res.Message,
		Success:    res.Success,
		Timestamp:  s.Clock().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}
	if err := s.Store.LogAction(ctx, entry); err != nil {
		s.Logger.ErrorContext(ctx, "writing action log", "email_id", res.EmailID, "error", err)
	}
}
