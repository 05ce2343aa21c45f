package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/xlbridge/internal/cli/output"
	"github.com/leapstack-labs/xlbridge/internal/script"
)

// NewScriptCommand creates the script command and its subcommands.
func NewScriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Record and replay UI test scripts",
		Long: `Scripts are ordered steps that address cells by descriptor path, so they
survive a restart of the target. They are stored in the scripts database
(--scripts-db, default .xlbridge/scripts.db).`,
		Example: `  xlbridge script new totals
  xlbridge script add totals set "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=1;ColumnIndex=1" Value 7
  xlbridge script add totals assert "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=1;ColumnIndex=1" Value 7
  xlbridge script play totals`,
	}
	cmd.PersistentFlags().String("scripts-db", "", "Path to the scripts database")

	cmd.AddCommand(
		newScriptNewCommand(),
		newScriptAddCommand(),
		newScriptListCommand(),
		newScriptShowCommand(),
		newScriptPlayCommand(),
		newScriptRmCommand(),
	)
	return cmd
}

// withStore runs fn with an open scripts store.
func withStore(cmd *cobra.Command, fn func(cc *CommandContext, store *script.Store) error) error {
	cc := NewCommandContext(cmd)
	store, err := cc.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(cc, store)
}

func newScriptNewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new NAME",
		Short: "Create an empty script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(cc *CommandContext, store *script.Store) error {
				sc, err := store.CreateScript(cmd.Context(), args[0], cc.Cfg.Endpoint)
				if err != nil {
					return err
				}
				if cc.Renderer.EffectiveMode() == output.ModeJSON {
					return cc.Renderer.JSON(sc)
				}
				cc.Renderer.Success(fmt.Sprintf("Created script %s (%s)", sc.Name, sc.ID))
				return nil
			})
		},
	}
}

func newScriptAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add SCRIPT ACTION PATH [PROPERTY [VALUE]]",
		Short: "Record a step against the running target",
		Long: `Resolve PATH through the running target and append a step to SCRIPT.

ACTION is one of focus, scroll, get, set, assert. get, set and assert take a
PROPERTY; set and assert also take a VALUE.`,
		Args: cobra.RangeArgs(3, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := script.ParseAction(args[1])
			if err != nil {
				return err
			}
			var property, value string
			if len(args) > 3 {
				property = args[3]
			}
			if len(args) > 4 {
				value = args[4]
			}
			if action.NeedsProperty() && property == "" {
				return fmt.Errorf("%s needs a property", action)
			}
			if (action == script.ActionSet || action == script.ActionAssert) && len(args) < 5 {
				return fmt.Errorf("%s needs a value", action)
			}

			return withStore(cmd, func(cc *CommandContext, store *script.Store) error {
				sc, err := store.GetScript(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				mgr := cc.Manager()
				mgr.StartSession(true)
				defer mgr.StopSession()

				n, err := cc.Player(mgr).Resolve(args[2])
				if err != nil {
					return err
				}
				step, err := script.NewRecorder(store, sc.ID).Record(cmd.Context(), n, action, property, value)
				if err != nil {
					return err
				}
				if cc.Renderer.EffectiveMode() == output.ModeJSON {
					return cc.Renderer.JSON(step)
				}
				cc.Renderer.Success(fmt.Sprintf("Recorded step %d: %s %s", step.Seq, step.Action, n))
				return nil
			})
		},
	}
}

func newScriptListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(cc *CommandContext, store *script.Store) error {
				scripts, err := store.ListScripts(cmd.Context())
				if err != nil {
					return err
				}
				r := cc.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					if scripts == nil {
						scripts = []*script.Script{}
					}
					return r.JSON(scripts)
				}
				if len(scripts) == 0 {
					r.Println("No scripts")
					return nil
				}
				rows := make([][]string, len(scripts))
				for i, sc := range scripts {
					rows[i] = []string{sc.Name, strconv.Itoa(sc.Steps), sc.Endpoint, sc.CreatedAt.Format(time.DateTime)}
				}
				r.Header(1, fmt.Sprintf("Scripts (%d total)", len(scripts)))
				r.Table([]string{"Name", "Steps", "Endpoint", "Created"}, rows)
				return nil
			})
		},
	}
}

func stepRows(steps []script.Step) [][]string {
	rows := make([][]string, len(steps))
	for i, st := range steps {
		rows[i] = []string{strconv.Itoa(st.Seq), string(st.Action), st.Target, st.Property, st.Value}
	}
	return rows
}

var stepHeader = []string{"#", "Action", "Target", "Property", "Value"}

func newScriptShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show SCRIPT",
		Short: "Show the steps of a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(cc *CommandContext, store *script.Store) error {
				sc, err := store.GetScript(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				steps, err := store.Steps(cmd.Context(), sc.ID)
				if err != nil {
					return err
				}
				r := cc.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(struct {
						*script.Script
						StepList []script.Step `json:"step_list"`
					}{sc, steps})
				}
				r.Header(1, sc.Name)
				r.KeyValues([]output.KeyValue{
					{Key: "ID", Value: sc.ID},
					{Key: "Endpoint", Value: sc.Endpoint},
					{Key: "Steps", Value: strconv.Itoa(len(steps))},
				})
				if len(steps) > 0 {
					r.Println()
					r.Table(stepHeader, stepRows(steps))
				}
				return nil
			})
		},
	}
}

// playReport is the JSON form of a replay.
type playReport struct {
	Script   string           `json:"script"`
	Passed   int              `json:"passed"`
	Total    int              `json:"total"`
	Outcomes []script.Outcome `json:"outcomes"`
	Failed   *script.Step     `json:"failed,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func newScriptPlayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play SCRIPT",
		Short: "Replay a script against the running target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(cc *CommandContext, store *script.Store) error {
				sc, err := store.GetScript(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				steps, err := store.Steps(cmd.Context(), sc.ID)
				if err != nil {
					return err
				}

				mgr := cc.Manager()
				mgr.StartSession(false)
				defer mgr.StopSession()

				outcomes, playErr := cc.Player(mgr).Play(cmd.Context(), steps)
				report := playReport{Script: sc.Name, Passed: len(outcomes), Total: len(steps), Outcomes: outcomes}
				var stepErr *script.StepError
				if errors.As(playErr, &stepErr) {
					report.Failed = &stepErr.Step
				}
				if playErr != nil {
					report.Error = playErr.Error()
				}

				r := cc.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					if err := r.JSON(report); err != nil {
						return err
					}
					return playErr
				}
				for _, o := range outcomes {
					line := fmt.Sprintf("%d %s %s", o.Step.Seq, o.Step.Action, o.Step.Target)
					if o.Value != "" {
						line += " = " + o.Value
					}
					r.Success(line)
				}
				if playErr != nil {
					return playErr
				}
				r.Println(fmt.Sprintf("%d/%d steps passed", report.Passed, report.Total))
				return nil
			})
		},
	}
}

func newScriptRmCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm SCRIPT",
		Aliases: []string{"delete"},
		Short:   "Delete a script and its steps",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(cc *CommandContext, store *script.Store) error {
				sc, err := store.GetScript(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := store.DeleteScript(cmd.Context(), sc.ID); err != nil {
					return err
				}
				cc.Renderer.Success("Deleted script " + sc.Name)
				return nil
			})
		},
	}
}
