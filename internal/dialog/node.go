package dialog

import "pair-alert-bot/internal/types"

// Kind selects how a node matches user input
type Kind int

const (
	// KindSelection matches one of the node options exactly
	KindSelection Kind = iota
	// KindNumeric accepts any value ParseValue understands
	KindNumeric
	// KindTerminal ends the dialog
	KindTerminal
)

// Effect runs when the input of a node is accepted
type Effect int

const (
	EffectNone Effect = iota
	// EffectEmitRule submits the completed draft as a rule
	EffectEmitRule
)

// FieldKey names the draft field a node fills. The value doubles as the
// placeholder used in message templates.
type FieldKey string

const (
	FieldNone      FieldKey = ""
	FieldPairA     FieldKey = "pair1_name"
	FieldPairB     FieldKey = "pair2_name"
	FieldDirection FieldKey = "condition"
	FieldThreshold FieldKey = "check_value"
)

// Field describes where an accepted input is stored.
// Lookup, when set, maps the selected label to the stored direction.
type Field struct {
	Key    FieldKey
	Lookup map[string]types.Direction
}

// Node is one step of the dialog derived for a path
type Node struct {
	Kind          Kind
	Prompt        string
	ErrorTemplate string
	Field         Field
	Effect        Effect
	Options       []string
}

// Draft collects the fields of a rule while the dialog runs
type Draft struct {
	PairA     string
	PairB     string
	Condition string
	Direction types.Direction
	Threshold float64
}

// Submission turns the completed draft into the message sent to the evaluator
func (d Draft) Submission(owner types.Owner) types.Submission {
	return types.Submission{
		Owner:     owner,
		PairA:     d.PairA,
		PairB:     d.PairB,
		Threshold: d.Threshold,
		Direction: d.Direction,
	}
}

func (d *Draft) store(field Field, label string, value float64) {
	switch field.Key {
	case FieldPairA:
		d.PairA = label
	case FieldPairB:
		d.PairB = label
	case FieldDirection:
		d.Condition = label
		d.Direction = field.Lookup[label]
	case FieldThreshold:
		d.Threshold = value
	}
}
