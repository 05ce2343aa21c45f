package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/xlbridge/internal/cli/output"
	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/internal/tree"
	"github.com/leapstack-labs/xlbridge/pkg/query"
)

const pathHelp = `PATH is a descriptor path with ancestors first, for example
  "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=2;ColumnIndex=4"`

// propertyResult is the JSON form of get and set.
type propertyResult struct {
	Target   string `json:"target"`
	Property string `json:"property"`
	Value    string `json:"value"`
}

// resolvePath resolves path below the configured window.
func resolvePath(cmd *cobra.Command, path string) (*CommandContext, *tree.Manager, *tree.Node, error) {
	cc := NewCommandContext(cmd)
	mgr := cc.Manager()
	n, err := cc.Player(mgr).Resolve(path)
	if err != nil {
		return nil, nil, nil, err
	}
	return cc, mgr, n, nil
}

func getProperty(mgr *tree.Manager, n *tree.Node, name string) (string, string, error) {
	props := mgr.Properties()
	pd, ok := props.PropertyDescriptor(name)
	if !ok {
		return "", "", fault.NotSupported("get", "unknown property %q", name)
	}
	v, err := props.GetPropertyValue(n, pd.Name)
	if err != nil {
		return "", "", err
	}
	return pd.Name, query.FormatValue(v), nil
}

func renderProperty(r *output.Renderer, res propertyResult) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(res)
	case output.ModeMarkdown:
		r.Println(output.FormatKeyValue(res.Property, res.Value))
	default:
		r.Println(res.Value)
	}
	return nil
}

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "get PATH PROPERTY",
		Short:   "Read a cell property",
		Long:    "Read a cell property through the running target.\n\n" + pathHelp,
		Example: `  xlbridge get "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=1;ColumnIndex=1" Value`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, mgr, n, err := resolvePath(cmd, args[0])
			if err != nil {
				return err
			}
			name, value, err := getProperty(mgr, n, args[1])
			if err != nil {
				return err
			}
			return renderProperty(cc.Renderer, propertyResult{Target: args[0], Property: name, Value: value})
		},
	}
}

// NewSetCommand creates the set command.
func NewSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set PATH PROPERTY VALUE",
		Short: "Write a cell property",
		Long: `Write a cell property through the running target. VALUE is converted to
the property's type: numbers for widths and heights, true/false for WrapText.

` + pathHelp,
		Example: `  xlbridge set "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=1;ColumnIndex=1" WrapText true`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, mgr, n, err := resolvePath(cmd, args[0])
			if err != nil {
				return err
			}
			if err := mgr.Properties().SetPropertyValue(n, args[1], args[2]); err != nil {
				return err
			}
			name, value, err := getProperty(mgr, n, args[1])
			if err != nil {
				return err
			}
			return renderProperty(cc.Renderer, propertyResult{Target: args[0], Property: name, Value: value})
		},
	}
}

// NewFocusCommand creates the focus command.
func NewFocusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "focus PATH",
		Short: "Activate a cell and its worksheet",
		Long:  "Activate the cell's worksheet, then the cell.\n\n" + pathHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, _, n, err := resolvePath(cmd, args[0])
			if err != nil {
				return err
			}
			if err := n.SetFocus(); err != nil {
				return err
			}
			cc.Renderer.Success("Focused " + n.String())
			return nil
		},
	}
}

// NewScrollCommand creates the scroll command.
func NewScrollCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scroll PATH",
		Short: "Scroll a cell into view",
		Long:  "Scroll the window so the cell is visible.\n\n" + pathHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, _, n, err := resolvePath(cmd, args[0])
			if err != nil {
				return err
			}
			if err := n.ScrollIntoView(); err != nil {
				return err
			}
			cc.Renderer.Success("Scrolled " + n.String() + " into view")
			return nil
		},
	}
}
