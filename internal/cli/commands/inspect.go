package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/xlbridge/internal/cli/output"
	"github.com/leapstack-labs/xlbridge/internal/desktop"
	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/internal/tree"
	"github.com/leapstack-labs/xlbridge/pkg/query"
)

// NodeInfo is the rendered form of one element.
type NodeInfo struct {
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	ControlType string            `json:"control_type"`
	ClassName   string            `json:"class_name"`
	Descriptor  string            `json:"descriptor"`
	Rect        desktop.Rect      `json:"rect"`
	Properties  []PropertyValue   `json:"properties,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// PropertyValue is one cell property as text.
type PropertyValue struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Writable bool   `json:"writable"`
}

// describe reads everything shown about n. Cell properties that cannot be
// read are reported per property.
func describe(mgr *tree.Manager, n *tree.Node) (NodeInfo, error) {
	info := NodeInfo{
		Kind:        n.Kind().String(),
		ControlType: n.ControlType(),
	}

	var err error
	if info.Name, err = n.Name(); err != nil {
		return info, err
	}
	if info.ClassName, err = n.ClassName(); err != nil {
		return info, err
	}
	d, err := n.QueryDescriptor()
	if err != nil {
		return info, err
	}
	info.Descriptor = d.Path()
	if info.Rect, err = n.BoundingRectangle(); err != nil {
		return info, err
	}

	props := mgr.Properties()
	if props.ControlSupportLevel(n) == tree.SupportNone {
		return info, nil
	}
	for _, name := range props.PropertyNames() {
		pd, _ := props.PropertyDescriptor(name)
		v, err := props.GetPropertyValue(n, name)
		if err != nil {
			if errors.Is(err, fault.ErrConnectivity) {
				return info, err
			}
			if info.Errors == nil {
				info.Errors = make(map[string]string)
			}
			info.Errors[name] = err.Error()
			continue
		}
		info.Properties = append(info.Properties, PropertyValue{
			Name:     name,
			Value:    query.FormatValue(v),
			Writable: pd.CanWrite(),
		})
	}
	return info, nil
}

func renderNode(r *output.Renderer, info NodeInfo) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(info)
	case output.ModeMarkdown:
		r.Header(2, fmt.Sprintf("%s %s", info.ControlType, info.Name))
		r.KeyValues(nodeFields(info, output.FormatCode(info.Descriptor)))
		if len(info.Properties) > 0 {
			r.Println()
			r.Table([]string{"Property", "Value", "Writable"}, propertyRows(info))
		}
	default:
		r.Header(1, fmt.Sprintf("%s %s", info.ControlType, info.Name))
		r.KeyValues(nodeFields(info, info.Descriptor))
		if len(info.Properties) > 0 {
			r.Table([]string{"Property", "Value", "Writable"}, propertyRows(info))
		}
	}
	for name, msg := range info.Errors {
		r.Warning(fmt.Sprintf("%s: %s", name, msg))
	}
	return nil
}

func nodeFields(info NodeInfo, descriptor string) []output.KeyValue {
	rect := "offscreen"
	if info.Rect != tree.SentinelRect {
		rect = fmt.Sprintf("%d,%d %dx%d", info.Rect.Left, info.Rect.Top, info.Rect.Width, info.Rect.Height)
	}
	return []output.KeyValue{
		{Key: "Kind", Value: info.Kind},
		{Key: "Class", Value: info.ClassName},
		{Key: "Descriptor", Value: descriptor},
		{Key: "Rect", Value: rect},
	}
}

func propertyRows(info NodeInfo) [][]string {
	rows := make([][]string, len(info.Properties))
	for i, p := range info.Properties {
		rows[i] = []string{p.Name, p.Value, strconv.FormatBool(p.Writable)}
	}
	return rows
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the element at a point, the focused element, or the window",
		Long: `Resolve an element of the configured worksheet window through the
running target and show its identity, descriptor path, bounds, and cell
properties.

Output adapts to environment:
  - Terminal: Styled text with a property table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # The cell under a screen point
  xlbridge inspect point 250 80

  # The active cell
  xlbridge inspect focused -o json`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "point X Y",
		Short: "Inspect the element under a screen point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid x %q: %w", args[0], err)
			}
			y, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid y %q: %w", args[1], err)
			}
			return runInspect(cmd, func(mgr *tree.Manager, _ desktop.Handle) (*tree.Node, error) {
				return mgr.ElementFromPoint(x, y)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "focused",
		Short: "Inspect the active cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, (*tree.Manager).FocusedElement)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "window",
		Short: "Inspect the worksheet window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, (*tree.Manager).ElementFromWindowHandle)
		},
	})
	return cmd
}

func runInspect(cmd *cobra.Command, resolve func(*tree.Manager, desktop.Handle) (*tree.Node, error)) error {
	cc := NewCommandContext(cmd)
	mgr := cc.Manager()

	n, err := resolve(mgr, cc.Window())
	if err != nil {
		return err
	}
	info, err := describe(mgr, n)
	if err != nil {
		return err
	}
	return renderNode(cc.Renderer, info)
}
