package rules

import (
	"errors"
	"testing"
	"time"
)

var evalNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func msgAgedDays(days int) Message {
	return Message{ID: 1, Received: evalNow.AddDate(0, 0, -days)}
}

func TestEvaluateStringPredicates(t *testing.T) {
	msg := Message{
		ID:      7,
		From:    "news@newsletter.example.com",
		To:      "me@example.com",
		Subject: "Hello World",
		Body:    "Weekly digest inside",
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{
			name: "from contains",
			cond: Condition{Field: FieldFrom, Predicate: PredContains, Value: "newsletter"},
			want: true,
		},
		{
			name: "from contains case-insensitive",
			cond: Condition{Field: FieldFrom, Predicate: PredContains, Value: "NEWSLETTER"},
			want: true,
		},
		{
			name: "subject contains case-insensitive",
			cond: Condition{Field: FieldSubject, Predicate: PredContains, Value: "hello"},
			want: true,
		},
		{
			name: "subject equals case-insensitive",
			cond: Condition{Field: FieldSubject, Predicate: PredEquals, Value: "hello world"},
			want: true,
		},
		{
			name: "subject equals is full-string",
			cond: Condition{Field: FieldSubject, Predicate: PredEquals, Value: "hello"},
			want: false,
		},
		{
			name: "to does_not_contain",
			cond: Condition{Field: FieldTo, Predicate: PredDoesNotContain, Value: "other.example"},
			want: true,
		},
		{
			name: "body contains",
			cond: Condition{Field: FieldMessage, Predicate: PredContains, Value: "digest"},
			want: true,
		},
		{
			name: "does_not_equal",
			cond: Condition{Field: FieldFrom, Predicate: PredDoesNotEqual, Value: "someone@else.com"},
			want: true,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got, err := conditionMatches(tc.cond, msg, evalNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNegatedPredicatesAreComplements(t *testing.T) {
	msgs := []Message{
		{Subject: "Invoice attached"},
		{Subject: "invoice"},
		{Subject: "completely unrelated"},
		{Subject: ""},
	}
	values := []string{"invoice", "Invoice attached", "missing"}

	for _, msg := range msgs {
		for _, val := range values {
			contains, err := conditionMatches(Condition{Field: FieldSubject, Predicate: PredContains, Value: val}, msg, evalNow)
			if err != nil {
				t.Fatalf("contains: %v", err)
			}
			notContains, err := conditionMatches(Condition{Field: FieldSubject, Predicate: PredDoesNotContain, Value: val}, msg, evalNow)
			if err != nil {
				t.Fatalf("does_not_contain: %v", err)
			}
			if contains == notContains {
				t.Fatalf("contains and does_not_contain agree for subject=%q value=%q", msg.Subject, val)
			}

			equals, err := conditionMatches(Condition{Field: FieldSubject, Predicate: PredEquals, Value: val}, msg, evalNow)
			if err != nil {
				t.Fatalf("equals: %v", err)
			}
			notEquals, err := conditionMatches(Condition{Field: FieldSubject, Predicate: PredDoesNotEqual, Value: val}, msg, evalNow)
			if err != nil {
				t.Fatalf("does_not_equal: %v", err)
			}
			if equals == notEquals {
				t.Fatalf("equals and does_not_equal agree for subject=%q value=%q", msg.Subject, val)
			}
		}
	}
}

func TestMissingBodyIsEmptyString(t *testing.T) {
	msg := Message{ID: 1, Subject: "x"} // no body

	got, err := conditionMatches(Condition{Field: FieldMessage, Predicate: PredEquals, Value: ""}, msg, evalNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatal("empty body should equal empty string")
	}
	got, err = conditionMatches(Condition{Field: FieldMessage, Predicate: PredContains, Value: "anything"}, msg, evalNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Fatal("empty body should not contain anything")
	}
}

func TestDateConditions(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		msg  Message
		want bool
	}{
		{
			name: "missing received date never matches",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredLessThan, Value: "1000", Unit: UnitDays},
			msg:  Message{ID: 1},
			want: false,
		},
		{
			name: "non-integer value never matches",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredLessThan, Value: "seven", Unit: UnitDays},
			msg:  msgAgedDays(1),
			want: false,
		},
		{
			name: "less_than days match",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredLessThan, Value: "7", Unit: UnitDays},
			msg:  msgAgedDays(3),
			want: true,
		},
		{
			name: "less_than days strict",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredLessThan, Value: "7", Unit: UnitDays},
			msg:  msgAgedDays(7),
			want: false,
		},
		{
			name: "greater_than days match",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredGreaterThan, Value: "7", Unit: UnitDays},
			msg:  msgAgedDays(8),
			want: true,
		},
		{
			name: "greater_than days strict",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredGreaterThan, Value: "7", Unit: UnitDays},
			msg:  msgAgedDays(7),
			want: false,
		},
		{
			name: "months 59 days is 1 month",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredLessThan, Value: "2", Unit: UnitMonths},
			msg:  msgAgedDays(59),
			want: true,
		},
		{
			name: "months 60 days is 2 months",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredLessThan, Value: "2", Unit: UnitMonths},
			msg:  msgAgedDays(60),
			want: false,
		},
		{
			name: "partial day truncates",
			cond: Condition{Field: FieldReceivedDate, Predicate: PredGreaterThan, Value: "0", Unit: UnitDays},
			msg:  Message{ID: 1, Received: evalNow.Add(-23 * time.Hour)},
			want: false,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got, err := conditionMatches(tc.cond, tc.msg, evalNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCombinators(t *testing.T) {
	matching := Condition{Field: FieldSubject, Predicate: PredContains, Value: "hello"}
	failing := Condition{Field: FieldSubject, Predicate: PredContains, Value: "absent"}
	msg := Message{ID: 1, Subject: "hello"}

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{
			name: "all with every condition matching",
			rule: Rule{Combinator: CombinatorAll, Conditions: []Condition{matching, matching}},
			want: true,
		},
		{
			name: "all with one failing condition",
			rule: Rule{Combinator: CombinatorAll, Conditions: []Condition{matching, failing}},
			want: false,
		},
		{
			name: "any with one matching condition",
			rule: Rule{Combinator: CombinatorAny, Conditions: []Condition{failing, matching}},
			want: true,
		},
		{
			name: "any with no matching condition",
			rule: Rule{Combinator: CombinatorAny, Conditions: []Condition{failing, failing}},
			want: false,
		},
		{
			name: "all over empty conditions is vacuously true",
			rule: Rule{Combinator: CombinatorAll},
			want: true,
		},
		{
			name: "any over empty conditions is vacuously false",
			rule: Rule{Combinator: CombinatorAny},
			want: false,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got, err := ruleMatches(tc.rule, msg, evalNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateUnknownValuesAbort(t *testing.T) {
	msg := Message{ID: 1, Subject: "hello", Received: evalNow.AddDate(0, 0, -1)}

	tests := []struct {
		name    string
		rule    Rule
		wantErr error
	}{
		{
			name:    "unknown combinator",
			rule:    Rule{ID: "R1", Combinator: Combinator(99)},
			wantErr: ErrUnknownCombinator,
		},
		{
			name: "unknown field",
			rule: Rule{ID: "R1", Combinator: CombinatorAll, Conditions: []Condition{
				{Field: Field(99), Predicate: PredContains, Value: "x"},
			}},
			wantErr: ErrUnknownField,
		},
		{
			name: "unknown string predicate",
			rule: Rule{ID: "R1", Combinator: CombinatorAll, Conditions: []Condition{
				{Field: FieldSubject, Predicate: Predicate(99), Value: "x"},
			}},
			wantErr: ErrUnknownPredicate,
		},
		{
			name: "date predicate on string field",
			rule: Rule{ID: "R1", Combinator: CombinatorAll, Conditions: []Condition{
				{Field: FieldSubject, Predicate: PredLessThan, Value: "2"},
			}},
			wantErr: ErrUnknownPredicate,
		},
		{
			name: "string predicate on date field",
			rule: Rule{ID: "R1", Combinator: CombinatorAll, Conditions: []Condition{
				{Field: FieldReceivedDate, Predicate: PredContains, Value: "2", Unit: UnitDays},
			}},
			wantErr: ErrUnknownPredicate,
		},
		{
			name: "unknown unit",
			rule: Rule{ID: "R1", Combinator: CombinatorAll, Conditions: []Condition{
				{Field: FieldReceivedDate, Predicate: PredLessThan, Value: "2", Unit: Unit(99)},
			}},
			wantErr: ErrUnknownUnit,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate([]Rule{tc.rule}, []Message{msg}, evalNow)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestEvaluatePlanAssembly(t *testing.T) {
	ruleSet := []Rule{
		{
			ID:         "R1",
			Combinator: CombinatorAll,
			Conditions: []Condition{{Field: FieldFrom, Predicate: PredContains, Value: "newsletter"}},
			Actions: []Action{
				{Type: ActionMarkAsRead},
				{Type: ActionMoveMessage, Destination: "News"},
			},
		},
		{
			ID:         "R2",
			Combinator: CombinatorAny,
			Conditions: []Condition{{Field: FieldSubject, Predicate: PredContains, Value: "digest"}},
			Actions:    []Action{{Type: ActionMarkAsUnread}},
		},
	}
	messages := []Message{
		{ID: 1, From: "news@newsletter.example.com", Subject: "Your weekly digest"},
		{ID: 2, From: "boss@work.example.com", Subject: "Q3 planning"},
	}

	plan, err := Evaluate(ruleSet, messages, evalNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if _, ok := plan[2]; ok {
		t.Fatal("message 2 matched no rule and must be absent from the plan")
	}
	refs, ok := plan[1]
	if !ok {
		t.Fatal("message 1 missing from plan")
	}
	want := []ActionRef{
		{Action: Action{Type: ActionMarkAsRead}, RuleID: "R1"},
		{Action: Action{Type: ActionMoveMessage, Destination: "News"}, RuleID: "R1"},
		{Action: Action{Type: ActionMarkAsUnread}, RuleID: "R2"},
	}
	if len(refs) != len(want) {
		t.Fatalf("plan has %d actions, want %d", len(refs), len(want))
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("action %d = %+v, want %+v", i, refs[i], want[i])
		}
	}
}

func TestEvaluateNewsletterScenario(t *testing.T) {
	ruleSet := []Rule{{
		ID:         "R1",
		Combinator: CombinatorAll,
		Conditions: []Condition{{Field: FieldFrom, Predicate: PredContains, Value: "newsletter"}},
		Actions:    []Action{{Type: ActionMarkAsRead}},
	}}
	messages := []Message{{ID: 42, From: "news@newsletter.example.com"}}

	plan, err := Evaluate(ruleSet, messages, evalNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("plan size = %d, want 1", len(plan))
	}
	refs := plan[42]
	if len(refs) != 1 || refs[0].RuleID != "R1" || refs[0].Action.Type != ActionMarkAsRead {
		t.Fatalf("unexpected plan entry: %+v", refs)
	}
}

func TestEvaluateDoesNotMutateInputs(t *testing.T) {
	ruleSet := []Rule{{
		ID:         "R1",
		Combinator: CombinatorAll,
		Conditions: []Condition{{Field: FieldSubject, Predicate: PredContains, Value: "x"}},
		Actions:    []Action{{Type: ActionMarkAsRead}},
	}}
	messages := []Message{{ID: 1, Subject: "x marks the spot"}}

	if _, err := Evaluate(ruleSet, messages, evalNow); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ruleSet[0].Conditions[0].Value != "x" || messages[0].Subject != "x marks the spot" {
		t.Fatal("inputs mutated during evaluation")
	}
}
