package rules

import (
	"errors"
	"fmt"
	"time"
)

// Unknown-value errors. A rule set containing a value outside the recognized
// enumerations is an authoring mistake, so evaluation stops and the error
// propagates; it is never downgraded to a skip.
var (
	ErrUnknownCombinator = errors.New("unknown combinator")
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownPredicate  = errors.New("unknown predicate")
	ErrUnknownUnit       = errors.New("unknown unit")
)

// Combinator decides how a rule's conditions combine.
type Combinator int

const (
	CombinatorAll Combinator = iota + 1 // every condition must match
	CombinatorAny                       // at least one condition must match
)

func ParseCombinator(s string) (Combinator, error) {
	switch s {
	case "all":
		return CombinatorAll, nil
	case "any":
		return CombinatorAny, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCombinator, s)
	}
}

func (c Combinator) String() string {
	switch c {
	case CombinatorAll:
		return "all"
	case CombinatorAny:
		return "any"
	default:
		return fmt.Sprintf("Combinator(%d)", int(c))
	}
}

// Field selects the message attribute a condition tests.
type Field int

const (
	FieldFrom Field = iota + 1
	FieldTo
	FieldSubject
	FieldMessage
	FieldReceivedDate
)

func ParseField(s string) (Field, error) {
	switch s {
	case "from":
		return FieldFrom, nil
	case "to":
		return FieldTo, nil
	case "subject":
		return FieldSubject, nil
	case "message":
		return FieldMessage, nil
	case "received_date":
		return FieldReceivedDate, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
}

func (f Field) String() string {
	switch f {
	case FieldFrom:
		return "from"
	case FieldTo:
		return "to"
	case FieldSubject:
		return "subject"
	case FieldMessage:
		return "message"
	case FieldReceivedDate:
		return "received_date"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// Predicate is the comparison a condition applies. String fields accept the
// contains/equals family; received_date accepts only less_than/greater_than.
type Predicate int

const (
	PredContains Predicate = iota + 1
	PredDoesNotContain
	PredEquals
	PredDoesNotEqual
	PredLessThan
	PredGreaterThan
)

func ParsePredicate(s string) (Predicate, error) {
	switch s {
	case "contains":
		return PredContains, nil
	case "does_not_contain":
		return PredDoesNotContain, nil
	case "equals":
		return PredEquals, nil
	case "does_not_equal":
		return PredDoesNotEqual, nil
	case "less_than":
		return PredLessThan, nil
	case "greater_than":
		return PredGreaterThan, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPredicate, s)
	}
}

func (p Predicate) String() string {
	switch p {
	case PredContains:
		return "contains"
	case PredDoesNotContain:
		return "does_not_contain"
	case PredEquals:
		return "equals"
	case PredDoesNotEqual:
		return "does_not_equal"
	case PredLessThan:
		return "less_than"
	case PredGreaterThan:
		return "greater_than"
	default:
		return fmt.Sprintf("Predicate(%d)", int(p))
	}
}

// Unit is the time unit for received_date comparisons.
type Unit int

const (
	UnitDays Unit = iota + 1
	UnitMonths
)

func ParseUnit(s string) (Unit, error) {
	switch s {
	case "", "days":
		return UnitDays, nil
	case "months":
		return UnitMonths, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
}

func (u Unit) String() string {
	switch u {
	case UnitDays:
		return "days"
	case UnitMonths:
		return "months"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// ActionType enumerates the actions a rule may request.
type ActionType int

const (
	ActionMarkAsRead ActionType = iota + 1
	ActionMarkAsUnread
	ActionMoveMessage
)

func ParseActionType(s string) (ActionType, error) {
	switch s {
	case "mark_as_read":
		return ActionMarkAsRead, nil
	case "mark_as_unread":
		return ActionMarkAsUnread, nil
	case "move_message":
		return ActionMoveMessage, nil
	default:
		return 0, fmt.Errorf("unknown action type: %q", s)
	}
}

func (a ActionType) String() string {
	switch a {
	case ActionMarkAsRead:
		return "mark_as_read"
	case ActionMarkAsUnread:
		return "mark_as_unread"
	case ActionMoveMessage:
		return "move_message"
	default:
		return fmt.Sprintf("ActionType(%d)", int(a))
	}
}

// Condition tests a single message field against a value.
type Condition struct {
	Field     Field
	Predicate Predicate
	Value     string
	Unit      Unit // received_date conditions only; defaults to days
}

// Action is one operation a matching rule requests.
type Action struct {
	Type        ActionType
	Destination string // move_message only
}

// Rule is a named combinator over conditions with an ordered action list.
// Rules are immutable once loaded.
type Rule struct {
	ID         string
	Combinator Combinator
	Conditions []Condition
	Actions    []Action
}

// Message is the evaluator's read-only view of a stored email. Body may be
// empty when the message had no text part; a zero Received means the receive
// time is unknown and date conditions never match it.
type Message struct {
	ID       int64
	From     string
	To       string
	Subject  string
	Body     string
	Received time.Time
}

// ActionRef is an action tagged with the rule that produced it.
type ActionRef struct {
	Action Action
	RuleID string
}

// Plan maps store email IDs to the ordered actions to perform on them.
// Messages that matched no rule are absent.
type Plan map[int64][]ActionRef
