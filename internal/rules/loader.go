package rules

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Wire format of the rules document:
//
//	{"rules": [{"id": "R1", "predicate": "all",
//	            "conditions": [{"field": "from", "predicate": "contains", "value": "x"}],
//	            "actions": [{"type": "move_message", "destination": "News"}]}]}
//
// The top-level "predicate" key is the rule combinator; the name is kept for
// compatibility with existing rule files.
type ruleDoc struct {
	Rules []ruleWire `json:"rules"`
}

type ruleWire struct {
	ID         string          `json:"id"`
	Combinator string          `json:"predicate"`
	Conditions []conditionWire `json:"conditions"`
	Actions    []actionWire    `json:"actions"`
}

type conditionWire struct {
	Field     string `json:"field"`
	Predicate string `json:"predicate"`
	Value     string `json:"value"`
	Unit      string `json:"unit,omitempty"`
}

type actionWire struct {
	Type        string `json:"type"`
	Destination string `json:"destination,omitempty"`
}

// Load reads and parses a rules document from path.
func Load(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	ruleSet, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ruleSet, nil
}

// Parse decodes a rules document and converts every string-keyed value into
// its typed form. Unknown combinators, fields, predicates, units, and action
// types are rejected here so the evaluator never sees them.
func Parse(r io.Reader) ([]Rule, error) {
	var doc ruleDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rules document: %w", err)
	}

	ruleSet := make([]Rule, 0, len(doc.Rules))
	for i, rw := range doc.Rules {
		rule, err := convertRule(rw)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rw.ID, err)
		}
		ruleSet = append(ruleSet, rule)
	}
	return ruleSet, nil
}

func convertRule(rw ruleWire) (Rule, error) {
	comb, err := ParseCombinator(rw.Combinator)
	if err != nil {
		return Rule{}, err
	}
	conds := make([]Condition, 0, len(rw.Conditions))
	for _, cw := range rw.Conditions {
		cond, err := convertCondition(cw)
		if err != nil {
			return Rule{}, err
		}
		conds = append(conds, cond)
	}
	acts := make([]Action, 0, len(rw.Actions))
	for _, aw := range rw.Actions {
		typ, err := ParseActionType(aw.Type)
		if err != nil {
			return Rule{}, err
		}
		if typ == ActionMoveMessage && aw.Destination == "" {
			return Rule{}, fmt.Errorf("move_message action requires a destination")
		}
		acts = append(acts, Action{Type: typ, Destination: aw.Destination})
	}
	return Rule{ID: rw.ID, Combinator: comb, Conditions: conds, Actions: acts}, nil
}

func convertCondition(cw conditionWire) (Condition, error) {
	field, err := ParseField(cw.Field)
	if err != nil {
		return Condition{}, err
	}
	pred, err := ParsePredicate(cw.Predicate)
	if err != nil {
		return Condition{}, err
	}
	cond := Condition{Field: field, Predicate: pred, Value: cw.Value}
	if field == FieldReceivedDate {
		unit, err := ParseUnit(cw.Unit)
		if err != nil {
			return Condition{}, err
		}
		cond.Unit = unit
		if pred != PredLessThan && pred != PredGreaterThan {
			return Condition{}, fmt.Errorf("%w: %s not valid for received_date", ErrUnknownPredicate, pred)
		}
	} else if pred == PredLessThan || pred == PredGreaterThan {
		return Condition{}, fmt.Errorf("%w: %s not valid for field %s", ErrUnknownPredicate, pred, field)
	}
	return cond, nil
}
