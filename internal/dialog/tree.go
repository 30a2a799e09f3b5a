package dialog

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"pair-alert-bot/internal/commands"
	"pair-alert-bot/internal/types"
	"pair-alert-bot/lib/translation"
)

const (
	LabelSetNotification = "Set a notification"
	LabelGetRate         = "Get the current rate"

	LabelExceeds   = "When exceeds"
	LabelLowerThan = "When is lower than"
	LabelCrosses   = "When crosses"
)

var (
	rootOptions = []string{LabelSetNotification, LabelGetRate}
	conditions  = []string{LabelExceeds, LabelLowerThan, LabelCrosses}

	directionLookup = map[string]types.Direction{
		LabelExceeds:   types.DirectionAbove,
		LabelLowerThan: types.DirectionBelow,
		LabelCrosses:   types.DirectionUnresolved,
	}

	conditionVerbs = map[string]string{
		LabelExceeds:   "exceeds",
		LabelLowerThan: "is lower than",
		LabelCrosses:   "crosses",
	}
)

const (
	pairErrorTemplate = "The cryptocurrency you entered <error_value> is not available, please try choosing from the available ones:\n(<true_result>)"

	numericErrorTemplate = "The price you entered (<error_value>) is incorrect, please check what you entered and try again.\n" +
		"The entered price must be a number from 0 to 10^18 (1000000000000000000) and should not contain extra symbols except '.', ',', " +
		"a leading '$' and a single cryptocurrency name prefixed by a space.\n" +
		"Examples of correct prices: 1, 12345, 0.5, 1234567890.0123456789, 100000000000000000 USDC, 1.05 BTC"
)

// Universe is the set of instruments the dialog offers, with the prices
// used to show current rates in prompts.
type Universe struct {
	Symbols []string
	Prices  types.Snapshot
	Updated time.Time
}

// NewUniverse derives a universe from a market snapshot
func NewUniverse(snapshot types.Snapshot) *Universe {
	return &Universe{Symbols: sorted(snapshot.Symbols()), Prices: snapshot, Updated: time.Now()}
}

// SeedUniverse offers symbols before any prices are known
func SeedUniverse(symbols []string) *Universe {
	return &Universe{Symbols: sorted(lo.Uniq(symbols)), Prices: types.Snapshot{}}
}

// Node derives the dialog node addressed by path. Nothing is expanded
// ahead of time; a path naming an unknown instrument or label does not resolve.
func (u *Universe) Node(path []string) (Node, bool) {
	if len(path) == 0 {
		return Node{
			Kind:          KindSelection,
			Prompt:        translation.Translate("Select what you want to do"),
			ErrorTemplate: translation.Translate("I can't do '<error_value>', but I can respond to the following messages:\n<true_result>"),
			Options:       rootOptions,
		}, true
	}

	switch path[0] {
	case LabelSetNotification:
		return u.notificationNode(path[1:])
	case LabelGetRate:
		return u.rateNode(path[1:])
	}
	return Node{}, false
}

func (u *Universe) notificationNode(rest []string) (Node, bool) {
	if len(rest) == 0 {
		return u.pairANode(), true
	}

	a := rest[0]
	if !u.has(a) {
		return Node{}, false
	}
	if len(rest) == 1 {
		return u.pairBNode(a, translation.Translate("Alright, you entered %s, which cryptocurrency would you like to set the notification for?", a)), true
	}

	b := rest[1]
	if !u.has(b) || b == a {
		return Node{}, false
	}
	rate := commands.CommandPairRate(u.Prices, a, b)
	if len(rest) == 2 {
		return Node{
			Kind: KindSelection,
			Prompt: translation.Translate("You set the pair %s/%s, do you want to be notified when the price is higher, lower, or crosses your value?\nThe current rate for %s/%s is%s",
				a, b, a, b, rate),
			ErrorTemplate: translation.Translate("The value check type you entered (<error_value>) doesn't match any of the suggested types.\nOptions for value check types:\n(<true_result>)"),
			Field:         Field{Key: FieldDirection, Lookup: directionLookup},
			Options:       conditions,
		}, true
	}

	condition := rest[2]
	if !lo.Contains(conditions, condition) {
		return Node{}, false
	}
	if len(rest) == 3 {
		return Node{
			Kind:          KindNumeric,
			Prompt:        translation.Translate("Name the price at which I should notify you.\nThe current rate for %s/%s is%s", a, b, rate),
			ErrorTemplate: translation.Translate(numericErrorTemplate),
			Field:         Field{Key: FieldThreshold},
			Effect:        EffectEmitRule,
		}, true
	}

	if len(rest) == 4 && rest[3] == "" {
		return Node{
			Kind: KindTerminal,
			Prompt: translation.Translate("Alright, you set the price <check_value> %s for the cryptocurrency pair %s/%s. I will notify you when the current price %s the set value.\nThe current rate for %s/%s is%s",
				b, a, b, translation.Translate(conditionVerbs[condition]), a, b, rate),
		}, true
	}
	return Node{}, false
}

func (u *Universe) rateNode(rest []string) (Node, bool) {
	if len(rest) == 0 {
		return u.pairANode(), true
	}

	a := rest[0]
	if !u.has(a) {
		return Node{}, false
	}
	if len(rest) == 1 {
		return u.pairBNode(a, translation.Translate("Alright, you entered %s, which cryptocurrency would you like to know the rate for?", a)), true
	}

	b := rest[1]
	if len(rest) > 2 || !u.has(b) || b == a {
		return Node{}, false
	}
	return Node{
		Kind:   KindTerminal,
		Prompt: translation.Translate("Alright, the current rate for %s/%s is%s", a, b, commands.CommandPairRate(u.Prices, a, b)),
	}, true
}

func (u *Universe) pairANode() Node {
	return Node{
		Kind:          KindSelection,
		Prompt:        translation.Translate("Alright, enter the cryptocurrency you want to monitor"),
		ErrorTemplate: translation.Translate(pairErrorTemplate),
		Field:         Field{Key: FieldPairA},
		Options:       u.Symbols,
	}
}

func (u *Universe) pairBNode(a, prompt string) Node {
	return Node{
		Kind:          KindSelection,
		Prompt:        prompt,
		ErrorTemplate: translation.Translate(pairErrorTemplate),
		Field:         Field{Key: FieldPairB},
		Options:       lo.Without(u.Symbols, a),
	}
}

func (u *Universe) has(symbol string) bool {
	return lo.Contains(u.Symbols, symbol)
}

// Tree holds the current universe; swapping it changes every node derived afterwards
type Tree struct {
	universe atomic.Pointer[Universe]
}

func NewTree(u *Universe) *Tree {
	t := &Tree{}
	t.universe.Store(u)
	return t
}

func (t *Tree) Universe() *Universe {
	return t.universe.Load()
}

func (t *Tree) SetUniverse(u *Universe) {
	t.universe.Store(u)
}

func sorted(symbols []string) []string {
	sort.Strings(symbols)
	return symbols
}
