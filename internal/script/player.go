package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/xlbridge/internal/desktop"
	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/internal/tree"
	"github.com/leapstack-labs/xlbridge/pkg/address"
	"github.com/leapstack-labs/xlbridge/pkg/query"
)

// Recorder appends steps for nodes to one script.
type Recorder struct {
	store    *Store
	scriptID string
}

// NewRecorder returns a recorder for the script.
func NewRecorder(store *Store, scriptID string) *Recorder {
	return &Recorder{store: store, scriptID: scriptID}
}

// Record stores action on n, capturing n's descriptor path.
func (r *Recorder) Record(ctx context.Context, n *tree.Node, action Action, property string, value any) (Step, error) {
	d, err := n.QueryDescriptor()
	if err != nil {
		return Step{}, fmt.Errorf("failed to describe %s: %w", n, err)
	}
	step := Step{Action: action, Target: d.Path()}
	if action.NeedsProperty() {
		canon, ok := address.CanonicalProperty(property)
		if !ok {
			return Step{}, fault.NotSupported("Record", "unknown property %q", property)
		}
		step.Property = canon
		step.Value = query.FormatValue(value)
	}
	return r.store.AppendStep(ctx, r.scriptID, step)
}

// Outcome is the result of one played step. Value holds the property value
// read by get and assert steps.
type Outcome struct {
	Step  Step   `json:"step"`
	Value string `json:"value,omitempty"`
}

// StepError reports the step that stopped a replay.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s %s): %v", e.Step.Seq, e.Step.Action, e.Step.Target, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrAssertion is wrapped by failed assert steps.
var ErrAssertion = errors.New("assertion failed")

// Player resolves descriptor paths below one window and runs steps.
type Player struct {
	mgr    *tree.Manager
	window desktop.Handle
	logger *slog.Logger
}

// NewPlayer returns a player for the worksheet window h.
func NewPlayer(mgr *tree.Manager, h desktop.Handle, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Player{mgr: mgr, window: h, logger: logger}
}

// Resolve walks path from the window node, taking the child that matches
// each segment. A leading window segment is matched against the window
// itself.
func (p *Player) Resolve(path string) (*tree.Node, error) {
	d, err := p.mgr.ParseQueryPath(path)
	if err != nil {
		return nil, err
	}
	cur, err := p.mgr.ElementFromWindowHandle(p.window)
	if err != nil {
		return nil, err
	}
	for i, seg := range d.Segments() {
		if i == 0 && p.mgr.MatchElement(cur, seg) {
			continue
		}
		var next *tree.Node
		for _, c := range p.mgr.Children(cur, seg) {
			if p.mgr.MatchElement(c, seg) {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fault.InvalidState("Resolve", "no element below %s matches %q", cur, seg.String())
		}
		cur = next
	}
	return cur, nil
}

// Play runs steps in order and stops at the first failure.
func (p *Player) Play(ctx context.Context, steps []Step) ([]Outcome, error) {
	props := p.mgr.Properties()
	out := make([]Outcome, 0, len(steps))
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		o, err := p.play(props, st)
		if err != nil {
			p.logger.Debug("Step failed", "seq", st.Seq, "action", st.Action, "error", err)
			return out, &StepError{Step: st, Err: err}
		}
		p.logger.Debug("Step played", "seq", st.Seq, "action", st.Action, "target", st.Target)
		out = append(out, o)
	}
	return out, nil
}

func (p *Player) play(props *tree.Provider, st Step) (Outcome, error) {
	o := Outcome{Step: st}
	n, err := p.Resolve(st.Target)
	if err != nil {
		return o, err
	}
	switch st.Action {
	case ActionFocus:
		return o, n.SetFocus()
	case ActionScroll:
		return o, n.ScrollIntoView()
	case ActionSet:
		return o, props.SetPropertyValue(n, st.Property, st.Value)
	case ActionGet, ActionAssert:
		v, err := props.GetPropertyValue(n, st.Property)
		if err != nil {
			return o, err
		}
		o.Value = query.FormatValue(v)
		if st.Action == ActionAssert && o.Value != st.Value {
			return o, fmt.Errorf("%w: %s is %q, want %q", ErrAssertion, st.Property, o.Value, st.Value)
		}
		return o, nil
	default:
		return o, fmt.Errorf("unknown action %q", st.Action)
	}
}
