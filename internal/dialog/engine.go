package dialog

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pair-alert-bot/internal/types"
)

// Submitter delivers completed rules to the evaluator
type Submitter interface {
	SubmitRule(ctx context.Context, s types.Submission) error
}

// Reply is what the bot answers after a message was processed
type Reply struct {
	Text    string
	Options []string
	// RemoveKeyboard is set when the current step expects free text
	RemoveKeyboard bool
	// Complete marks the end of a dialog; the next message starts a new one
	Complete bool
	// Restarted means the previous path no longer resolved and the dialog was reset
	Restarted bool
}

// ValidationError is returned when the input does not match the current step.
// The session is left untouched.
type ValidationError struct {
	Message string
	Options []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// State is the position of a user in the dialog
type State struct {
	Path  []string
	Draft Draft
}

type session struct {
	mu    sync.Mutex
	state State
}

// Engine runs one dialog per user over a shared Tree
type Engine struct {
	tree      *Tree
	submitter Submitter

	mu       sync.Mutex
	sessions map[int64]*session
}

func NewEngine(tree *Tree, submitter Submitter) *Engine {
	return &Engine{
		tree:      tree,
		submitter: submitter,
		sessions:  make(map[int64]*session),
	}
}

// SetUniverse replaces the instruments offered by the dialog.
// Empty snapshots come from failed fetches and are ignored.
func (e *Engine) SetUniverse(snapshot types.Snapshot) {
	if len(snapshot) == 0 {
		log.Debug("Ignoring empty market snapshot")
		return
	}
	e.tree.SetUniverse(NewUniverse(snapshot))
}

// Universe returns the instruments and prices the dialog currently shows
func (e *Engine) Universe() *Universe {
	return e.tree.Universe()
}

// State returns a copy of the user's dialog position
func (e *Engine) State(userID int64) State {
	s := e.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{Path: append([]string(nil), s.state.Path...), Draft: s.state.Draft}
}

// Start resets the user to the root of the dialog
func (e *Engine) Start(user types.Owner) Reply {
	s := e.session(user.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}
	return e.reply(e.tree.Universe(), s.state)
}

// Current repeats the prompt of the user's current step
func (e *Engine) Current(user types.Owner) Reply {
	s := e.session(user.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	u := e.tree.Universe()
	if node, ok := u.Node(s.state.Path); !ok || node.Kind == KindTerminal {
		return e.restart(u, s)
	}
	return e.reply(u, s.state)
}

// Accept processes one message of the user
func (e *Engine) Accept(ctx context.Context, user types.Owner, raw string) (Reply, error) {
	s := e.session(user.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	u := e.tree.Universe()
	node, ok := u.Node(s.state.Path)
	if !ok || node.Kind == KindTerminal {
		log.WithFields(log.Fields{"user": user.ID, "path": s.state.Path}).Debug("Dialog path no longer resolves, restarting")
		return e.restart(u, s), nil
	}

	coordinate, value, ok := match(node, raw, u.Symbols)
	if !ok {
		return Reply{}, e.validationError(node, raw)
	}

	draft := s.state.Draft
	draft.store(node.Field, coordinate, value)

	if node.Effect == EffectEmitRule {
		if err := e.submitter.SubmitRule(ctx, draft.Submission(user)); err != nil {
			return Reply{}, errors.Wrap(err, "could not submit rule")
		}
		log.WithFields(log.Fields{
			"user":      user.ID,
			"pair":      draft.PairA + "/" + draft.PairB,
			"threshold": draft.Threshold,
			"direction": draft.Direction,
		}).Info("📨 Rule submitted")
	}

	path := append(append([]string(nil), s.state.Path...), coordinate)
	next := State{Path: path, Draft: draft}
	if _, ok := u.Node(path); !ok {
		return e.restart(u, s), nil
	}

	reply := e.reply(u, next)
	if reply.Complete {
		s.state = State{}
	} else {
		s.state = next
	}
	return reply, nil
}

func (e *Engine) session(userID int64) *session {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[userID]
	if !ok {
		s = &session{}
		e.sessions[userID] = s
	}
	return s
}

func (e *Engine) restart(u *Universe, s *session) Reply {
	s.state = State{}
	reply := e.reply(u, s.state)
	reply.Restarted = true
	return reply
}

// reply renders the prompt of the node at state.Path
func (e *Engine) reply(u *Universe, state State) Reply {
	node, _ := u.Node(state.Path)
	reply := Reply{Text: render(node.Prompt, state.Draft.values())}

	switch node.Kind {
	case KindSelection:
		reply.Options = append([]string(nil), node.Options...)
	case KindNumeric:
		reply.RemoveKeyboard = true
	case KindTerminal:
		reply.Complete = true
	}
	return reply
}

func (e *Engine) validationError(node Node, raw string) *ValidationError {
	verr := &ValidationError{}
	values := map[string]string{"error_value": raw, "true_result": ""}
	if node.Kind == KindSelection {
		verr.Options = append([]string(nil), node.Options...)
		values["true_result"] = strings.Join(node.Options, ", ")
	}
	verr.Message = render(node.ErrorTemplate, values)
	return verr
}

func match(node Node, raw string, symbols []string) (string, float64, bool) {
	switch node.Kind {
	case KindSelection:
		for _, option := range node.Options {
			if option == raw {
				return option, 0, true
			}
		}
	case KindNumeric:
		if v, ok := ParseValue(raw, symbols); ok {
			return "", v, true
		}
	}
	return "", 0, false
}

func (d Draft) values() map[string]string {
	return map[string]string{
		string(FieldPairA):     d.PairA,
		string(FieldPairB):     d.PairB,
		string(FieldDirection): d.Condition,
		string(FieldThreshold): strconv.FormatFloat(d.Threshold, 'f', -1, 64),
	}
}

// render replaces <name> placeholders with values
func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "<"+name+">", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
