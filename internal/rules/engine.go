package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Evaluate tests every rule against every message and returns the resulting
// action plan. Evaluation is pure: inputs are never mutated, and now is
// threaded in explicitly so one run compares all messages against the same
// instant. A rule set containing an unrecognized combinator, field, predicate,
// or unit aborts evaluation with an error.
func Evaluate(ruleSet []Rule, messages []Message, now time.Time) (Plan, error) {
	plan := Plan{}
	for _, msg := range messages {
		var refs []ActionRef
		for _, rule := range ruleSet {
			matched, err := ruleMatches(rule, msg, now)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
			}
			if !matched {
				continue
			}
			for _, act := range rule.Actions {
				refs = append(refs, ActionRef{Action: act, RuleID: rule.ID})
			}
		}
		if len(refs) > 0 {
			plan[msg.ID] = refs
		}
	}
	return plan, nil
}

func ruleMatches(rule Rule, msg Message, now time.Time) (bool, error) {
	switch rule.Combinator {
	case CombinatorAll:
		// vacuously true over an empty condition list
		for _, cond := range rule.Conditions {
			ok, err := conditionMatches(cond, msg, now)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case CombinatorAny:
		// vacuously false over an empty condition list
		for _, cond := range rule.Conditions {
			ok, err := conditionMatches(cond, msg, now)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrUnknownCombinator, rule.Combinator)
	}
}

func conditionMatches(cond Condition, msg Message, now time.Time) (bool, error) {
	var fieldValue string
	switch cond.Field {
	case FieldFrom:
		fieldValue = msg.From
	case FieldTo:
		fieldValue = msg.To
	case FieldSubject:
		fieldValue = msg.Subject
	case FieldMessage:
		fieldValue = msg.Body
	case FieldReceivedDate:
		return checkDate(cond.Predicate, cond.Value, cond.Unit, msg.Received, now)
	default:
		return false, fmt.Errorf("%w: %v", ErrUnknownField, cond.Field)
	}

	have := strings.ToLower(fieldValue)
	want := strings.ToLower(cond.Value)
	switch cond.Predicate {
	case PredContains:
		return strings.Contains(have, want), nil
	case PredDoesNotContain:
		return !strings.Contains(have, want), nil
	case PredEquals:
		return have == want, nil
	case PredDoesNotEqual:
		return have != want, nil
	default:
		return false, fmt.Errorf("%w: %v on field %v", ErrUnknownPredicate, cond.Predicate, cond.Field)
	}
}

// checkDate compares the age of a message against an integer threshold.
// An unknown receive time or an unparsable threshold is a silent non-match;
// they are data problems, not rule-authoring problems.
func checkDate(pred Predicate, value string, unit Unit, received, now time.Time) (bool, error) {
	if received.IsZero() {
		return false, nil
	}
	threshold, err := strconv.Atoi(value)
	if err != nil {
		return false, nil
	}

	elapsed := int(now.Sub(received).Hours() / 24)
	switch unit {
	case UnitDays:
	case UnitMonths:
		// 30-day approximation, not calendar months
		elapsed /= 30
	default:
		return false, fmt.Errorf("%w: %v", ErrUnknownUnit, unit)
	}

	switch pred {
	case PredLessThan:
		return elapsed < threshold, nil
	case PredGreaterThan:
		return elapsed > threshold, nil
	default:
		return false, fmt.Errorf("%w: %v on received_date", ErrUnknownPredicate, pred)
	}
}
