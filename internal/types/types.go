package types

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Snapshot maps an instrument symbol to its most recent price
type Snapshot map[string]float64

// Symbols returns the instruments of the snapshot
func (s Snapshot) Symbols() []string {
	symbols := make([]string, 0, len(s))
	for symbol := range s {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Owner identifies the chat that created a rule
type Owner struct {
	ID   int64
	Name string
}

func (o Owner) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{o.ID, o.Name})
}

func (o *Owner) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "owner must be a [id, name] array")
	}
	if len(raw) != 2 {
		return errors.Errorf("owner must have 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &o.ID); err != nil {
		return errors.Wrap(err, "owner id")
	}
	if err := json.Unmarshal(raw[1], &o.Name); err != nil {
		return errors.Wrap(err, "owner name")
	}
	return nil
}

// Direction is the comparison a rule waits for.
// The zero value is an unresolved "crosses" rule.
type Direction int8

const (
	DirectionUnresolved Direction = iota
	DirectionAbove
	DirectionBelow
)

// DirectionOf maps the boolean wire form to a Direction
func DirectionOf(above bool) Direction {
	if above {
		return DirectionAbove
	}
	return DirectionBelow
}

func (d Direction) String() string {
	switch d {
	case DirectionAbove:
		return "above"
	case DirectionBelow:
		return "below"
	default:
		return "unresolved"
	}
}

func (d Direction) MarshalJSON() ([]byte, error) {
	switch d {
	case DirectionAbove:
		return []byte("true"), nil
	case DirectionBelow:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*d = DirectionAbove
	case "false":
		*d = DirectionBelow
	case "null":
		*d = DirectionUnresolved
	default:
		return errors.Errorf("invalid direction flag: %s", data)
	}
	return nil
}

// Pair is an ordered pair of instruments whose ratio is watched
type Pair struct {
	A string
	B string
}

func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.A, p.B)
}

// Rule is a pending alert condition stored in a bucket
type Rule struct {
	Owner     Owner     `json:"owner"`
	Threshold float64   `json:"thresholdValue"`
	Direction Direction `json:"directionFlag"`
}

// Submission is a completed dialog travelling to the evaluator
type Submission struct {
	Owner     Owner
	PairA     string
	PairB     string
	Threshold float64
	Direction Direction
}

// Pair returns the bucket key of the submission
func (s Submission) Pair() Pair {
	return Pair{A: s.PairA, B: s.PairB}
}

// Rule returns the rule stored for the submission
func (s Submission) Rule() Rule {
	return Rule{Owner: s.Owner, Threshold: s.Threshold, Direction: s.Direction}
}

// MarshalJSON encodes [userId, userName, pairA, pairB, thresholdValue, directionFlag]
func (s Submission) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{s.Owner.ID, s.Owner.Name, s.PairA, s.PairB, s.Threshold, s.Direction})
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "submission must be an array")
	}
	if len(raw) != 6 {
		return errors.Errorf("submission must have 6 elements, got %d", len(raw))
	}

	targets := []interface{}{&s.Owner.ID, &s.Owner.Name, &s.PairA, &s.PairB, &s.Threshold, &s.Direction}
	for i, target := range targets {
		if err := json.Unmarshal(raw[i], target); err != nil {
			return errors.Wrapf(err, "submission element %d", i)
		}
	}
	return nil
}

// Notification reports a satisfied rule back to the chat side
type Notification struct {
	Owner     Owner     `json:"owner"`
	PairA     string    `json:"pairA"`
	PairB     string    `json:"pairB"`
	Direction Direction `json:"directionFlag"`
	Threshold float64   `json:"thresholdValue"`
	Current   float64   `json:"currentValue"`
}
