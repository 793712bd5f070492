// Package console implements the interactive operator console for a run.
// The console owns the tick cadence: nothing advances unless the operator
// (or the run loop driving it) says so.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/pellucid-labs/craftpilot/pkg/workflow"
)

// Stepper advances an attached simulated world by one unit of tool work.
// Nil when the console drives real external tools.
type Stepper interface {
	Step()
}

// Console provides an interactive REPL over a workflow engine.
type Console struct {
	engine      *workflow.Engine
	world       Stepper
	output      io.Writer
	rl          *readline.Instance
	snapshotDir string
}

// New creates a console for the given engine. world may be nil.
func New(engine *workflow.Engine, world Stepper, snapshotDir string) *Console {
	return &Console{
		engine:      engine,
		world:       world,
		output:      os.Stdout,
		snapshotDir: snapshotDir,
	}
}

// Run starts the interactive REPL loop.
func (c *Console) Run(ctx context.Context) error {
	commands := []string{"tick", "status", "plan", "tasks", "pause", "resume",
		"cancel", "dump", "snapshot", "help", "quit"}

	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children,
			readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	c.rl = rl
	defer rl.Close()

	fmt.Fprintf(c.output, "craftpilot console: %s\n", c.engine.StatusLine())
	fmt.Fprintf(c.output, "Type 'help' for available commands, 'tick' to advance the run.\n\n")

	for {
		rl.SetPrompt(c.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "tick", "t":
			if err := c.handleTick(ctx, parts); err != nil {
				fmt.Fprintf(c.output, "Error: %v\n", err)
			}
		case "status", "s":
			c.handleStatus()
		case "plan":
			c.handlePlan()
		case "tasks":
			c.handleTasks()
		case "pause":
			c.engine.Pause()
			fmt.Fprintf(c.output, "  Paused.\n")
		case "resume":
			c.engine.Resume()
			fmt.Fprintf(c.output, "  Resumed: %s\n", c.engine.State().Phase)
		case "cancel":
			if err := c.engine.Cancel(ctx); err != nil {
				fmt.Fprintf(c.output, "Error: %v\n", err)
			} else {
				fmt.Fprintf(c.output, "  Run canceled, tools disabled.\n")
			}
		case "dump":
			c.handleDump()
		case "snapshot":
			c.handleSnapshot()
		case "help", "?":
			c.handleHelp()
		case "quit", "q":
			fmt.Fprintf(c.output, "Exiting console.\n")
			return nil
		default:
			fmt.Fprintf(c.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
		}
	}
}

// buildPrompt creates the prompt string: craftpilot[phase | tick N]>
func (c *Console) buildPrompt() string {
	state := c.engine.State()
	if state.Phase == workflow.PhaseIdle {
		return "craftpilot[idle]> "
	}
	return fmt.Sprintf("craftpilot[%s | tick %d]> ", state.Phase, state.Ticks)
}
