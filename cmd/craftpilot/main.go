package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
	"github.com/pellucid-labs/craftpilot/pkg/console"
	"github.com/pellucid-labs/craftpilot/pkg/orchestrate"
	"github.com/pellucid-labs/craftpilot/pkg/resolver"
	"github.com/pellucid-labs/craftpilot/pkg/tools"
	"github.com/pellucid-labs/craftpilot/pkg/tools/sim"
	"github.com/pellucid-labs/craftpilot/pkg/workflow"
)

// Version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "craftpilot",
	Short: "Recipe resolution and cross-tool orchestration engine",
	Long:  "craftpilot resolves recipe dependency trees into gather/craft plans and drives external automation tools through them.",
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [catalog.yaml]",
	Short: "Validate a catalog YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cf, errs := catalog.ValidateFile(args[0])
	if len(errs) > 0 {
		var errors []*catalog.ValidationError
		var warnings []*catalog.ValidationError
		for _, e := range errs {
			if e.Severity == "warning" {
				warnings = append(warnings, e)
			} else {
				errors = append(errors, e)
			}
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
			if w.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
			}
		}
		if len(errors) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
			for i, e := range errors {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			return fmt.Errorf("validation failed with %d error(s)", len(errors))
		}
	}
	fmt.Printf("✓ %s is valid (%d recipes, %d gatherables)\n",
		cf.Meta.Name, len(cf.Recipes), len(cf.Gatherables))
	return nil
}

// --- resolve ---

var (
	resolveItem     string
	resolveQuantity int
	resolveOwn      []string
	resolvePolicy   string
	resolveJSON     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [catalog.yaml]",
	Short: "Resolve a target item into a gather/craft plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	cf, errs := catalog.ValidateFile(args[0])
	if catalog.HasErrors(errs) {
		return fmt.Errorf("catalog validation failed, run 'craftpilot validate %s'", args[0])
	}

	policy, err := parsePolicy(resolvePolicy)
	if err != nil {
		return err
	}
	own, err := parseOwn(resolveOwn)
	if err != nil {
		return err
	}

	cat := catalog.NewStatic(cf)
	res := &resolver.Resolver{Catalog: cat, Policy: policy}
	plan, err := res.Resolve(resolveItem, resolveQuantity, catalog.NewMemoryInventory(own))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", resolveItem, err)
	}

	if resolveJSON {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Plan for %s x%d:\n", plan.TargetItemID, plan.TargetQuantity)
	if len(plan.GatherList) > 0 {
		fmt.Println("Gather:")
		for _, m := range plan.GatherList {
			line := fmt.Sprintf("  %-24s need %d, own %d, gather %d",
				m.ItemID, m.QuantityNeeded, m.QuantityOwned, m.QuantityRemaining)
			if m.Zone != "" {
				line += "  @" + m.Zone
			}
			fmt.Println(line)
		}
	}
	if len(plan.CraftOrder) > 0 {
		fmt.Println("Craft:")
		for i, step := range plan.CraftOrder {
			fmt.Printf("  %2d. %-24s x%d runs (%d units)\n",
				i+1, step.Recipe.ItemID, step.Quantity, step.Units)
		}
	}
	if len(plan.OtherMaterials) > 0 {
		fmt.Println("Other (no automatable source):")
		for _, m := range plan.OtherMaterials {
			fmt.Printf("  %-24s need %d\n", m.ItemID, m.QuantityRemaining)
		}
	}
	return nil
}

// --- run ---

var (
	runItem       string
	runQuantity   int
	runOwn        []string
	runPolicy     string
	runMode       string
	runTicks      int
	runConsole    bool
	runOut        string
	runSolver     string
	runLevel      int
	runBooks      []string
	runSpecialist bool
	runOrder      string
	runRetries    int
)

var runCmd = &cobra.Command{
	Use:   "run [catalog.yaml]",
	Short: "Execute a full resolve-gather-craft run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	if runMode != "sim" {
		return fmt.Errorf("mode %q not supported: only 'sim' runs without external tool bridges", runMode)
	}

	cf, errs := catalog.ValidateFile(args[0])
	if catalog.HasErrors(errs) {
		return fmt.Errorf("catalog validation failed, run 'craftpilot validate %s'", args[0])
	}
	policy, err := parsePolicy(runPolicy)
	if err != nil {
		return err
	}
	own, err := parseOwn(runOwn)
	if err != nil {
		return err
	}

	cat := catalog.NewStatic(cf)
	inv := catalog.NewMemoryInventory(own)
	world := sim.NewWorld(cf, inv)

	engine, err := workflow.NewEngine(workflow.Deps{
		Catalog:    cat,
		Inventory:  inv,
		Resolver:   &resolver.Resolver{Catalog: cat, Policy: policy},
		Monitor:    tools.NewMonitor(world.Gatherer, world.Pathfinder, time.Second),
		Gatherer:   world.Gatherer,
		Crafter:    world.Crafter,
		Introspect: world.Gatherer,
		Reset:      world.Gatherer,
	}, workflow.Config{
		Player: workflow.PlayerProfile{
			Level:       runLevel,
			MasterBooks: runBooks,
			Specialist:  runSpecialist,
		},
		Orchestrate: orchestrate.Config{
			RetryBudget: runRetries,
			Order:       orchestrate.OrderPolicy(runOrder),
		},
		Solver:    runSolver,
		OutputDir: runOut,
	})
	if err != nil {
		return err
	}

	runID, err := engine.Start(runItem, runQuantity)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %s x%d (mode=%s)\n", runID, runItem, runQuantity, runMode)

	ctx := context.Background()
	if runConsole {
		return console.New(engine, world, runOut).Run(ctx)
	}

	now := time.Now()
	for i := 0; i < runTicks && !engine.State().Phase.Terminal(); i++ {
		if err := engine.Tick(ctx, now); err != nil {
			return fmt.Errorf("tick %d: %w", i, err)
		}
		world.Step()
		now = now.Add(time.Second)
	}

	state := engine.State()
	fmt.Println(engine.StatusLine())
	if state.Phase != workflow.PhaseCompleted {
		return fmt.Errorf("run ended in phase %s: %s", state.Phase, state.Reason)
	}
	fmt.Printf("✓ %s x%d complete, %d owned\n",
		runItem, runQuantity, inv.OwnedQuantity(runItem))
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the catalog JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := catalog.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- helpers ---

func parsePolicy(s string) (resolver.SourcePolicy, error) {
	switch s {
	case "", "gather":
		return resolver.GatherFirst, nil
	case "craft":
		return resolver.CraftFirst, nil
	default:
		return resolver.NewExprPolicy(s)
	}
}

func parseOwn(pairs []string) (map[string]int, error) {
	own := make(map[string]int, len(pairs))
	for _, p := range pairs {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --own %q: expected item=count", p)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid --own %q: count must be a non-negative integer", p)
		}
		own[parts[0]] = n
	}
	return own, nil
}

func init() {
	resolveCmd.Flags().StringVar(&resolveItem, "item", "", "target item id (required)")
	resolveCmd.Flags().IntVar(&resolveQuantity, "quantity", 1, "target quantity")
	resolveCmd.Flags().StringArrayVar(&resolveOwn, "own", nil, "owned item count as item=count (repeatable)")
	resolveCmd.Flags().StringVar(&resolvePolicy, "policy", "", "source policy for dual-sourced items: gather, craft, or an expression")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "output the plan as JSON")
	resolveCmd.MarkFlagRequired("item")

	runCmd.Flags().StringVar(&runItem, "item", "", "target item id (required)")
	runCmd.Flags().IntVar(&runQuantity, "quantity", 1, "target quantity")
	runCmd.Flags().StringArrayVar(&runOwn, "own", nil, "owned item count as item=count (repeatable)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "source policy for dual-sourced items")
	runCmd.Flags().StringVar(&runMode, "mode", "sim", "execution mode (sim)")
	runCmd.Flags().IntVar(&runTicks, "ticks", 10000, "tick budget before the run is abandoned")
	runCmd.Flags().BoolVar(&runConsole, "console", false, "drive the run from the interactive console")
	runCmd.Flags().StringVar(&runOut, "out", "", "directory for run artifacts (trace, snapshots, manifest)")
	runCmd.Flags().StringVar(&runSolver, "solver", "", "solver name pushed to the crafting tool")
	runCmd.Flags().IntVar(&runLevel, "level", 100, "player crafting level")
	runCmd.Flags().StringArrayVar(&runBooks, "book", nil, "owned master book (repeatable)")
	runCmd.Flags().BoolVar(&runSpecialist, "specialist", false, "player has specialist status")
	runCmd.Flags().StringVar(&runOrder, "order", "plan", "gathering order policy: plan, zone, window")
	runCmd.Flags().IntVar(&runRetries, "retries", 2, "retry budget after the first attempt")
	runCmd.MarkFlagRequired("item")

	rootCmd.Version = version
	rootCmd.AddCommand(validateCmd, resolveCmd, runCmd, schemaCmd)
}
