// Package sim provides in-process simulations of the external automation
// tools. The simulated tools mutate a shared MemoryInventory, so a full
// gather-and-craft run can be exercised end to end without any external
// process attached.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
)

// World bundles the simulated tools around one shared inventory and advances
// them in lockstep. One Step is one unit of simulated tool work.
type World struct {
	Inventory  *catalog.MemoryInventory
	Gatherer   *Gatherer
	Crafter    *Crafter
	Pathfinder *Pathfinder
}

// NewWorld builds a simulated world for the given catalog and inventory.
func NewWorld(cf *catalog.File, inv *catalog.MemoryInventory) *World {
	recipes := make(map[string]*catalog.RecipeNode, len(cf.Recipes))
	for i := range cf.Recipes {
		r := &cf.Recipes[i]
		recipes[r.RecipeID] = r
	}
	return &World{
		Inventory:  inv,
		Gatherer:   NewGatherer(inv),
		Crafter:    NewCrafter(inv, recipes),
		Pathfinder: NewPathfinder(0),
	}
}

// Step advances every simulated tool by one unit of work.
func (w *World) Step() {
	w.Pathfinder.Step()
	w.Gatherer.Step()
	w.Crafter.Step()
}

// Gatherer simulates the external gathering tool: while enabled it deposits
// units of the configured target items into the inventory, round-robin, one
// batch per Step. It also exposes the introspection surface the diagnoser
// reads.
type Gatherer struct {
	mu           sync.Mutex
	inv          *catalog.MemoryInventory
	enabled      bool
	targets      []string
	cursor       int
	unitsPerStep int
	status       string
	failures     int

	// DisableAfter stops the tool on its own after that many productive
	// steps, reporting DisableStatus. Zero disables the script.
	DisableAfter  int
	DisableStatus string
	steps         int
}

// NewGatherer creates a simulated gatherer depositing into inv.
func NewGatherer(inv *catalog.MemoryInventory) *Gatherer {
	return &Gatherer{inv: inv, unitsPerStep: 1}
}

func (g *Gatherer) Enable(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = true
	g.status = "gathering"
	return nil
}

func (g *Gatherer) Disable(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = false
	g.status = "stopped"
	return nil
}

func (g *Gatherer) IsRunning(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled, nil
}

func (g *Gatherer) IsReady(ctx context.Context, itemID string) (bool, error) {
	return true, nil
}

func (g *Gatherer) SetTargetItems(ctx context.Context, itemIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.targets = append([]string(nil), itemIDs...)
	g.cursor = 0
	return nil
}

// Step deposits one batch of the current target item and advances the
// round-robin cursor.
func (g *Gatherer) Step() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled || len(g.targets) == 0 {
		return
	}

	item := g.targets[g.cursor%len(g.targets)]
	g.cursor++
	g.inv.Add(item, g.unitsPerStep)
	g.steps++

	if g.DisableAfter > 0 && g.steps >= g.DisableAfter {
		g.enabled = false
		g.status = g.DisableStatus
	}
}

// Introspection surface.

func (g *Gatherer) StatusText() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, true
}

func (g *Gatherer) QueueDepth() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.targets), true
}

func (g *Gatherer) Busy() (bool, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled, true
}

func (g *Gatherer) FailureCount() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures, true
}

func (g *Gatherer) CurrentTarget() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled || len(g.targets) == 0 {
		return "", true
	}
	return g.targets[g.cursor%len(g.targets)], true
}

func (g *Gatherer) ResetFailureCount() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = 0
	return true
}

func (g *Gatherer) ClearRetryTimers() bool { return true }

type craftJob struct {
	recipe *catalog.RecipeNode
	runs   int
}

// Crafter simulates the external crafting tool. CraftItem enqueues runs and
// Step executes one run per call, consuming ingredients from and depositing
// yield into the shared inventory.
type Crafter struct {
	mu      sync.Mutex
	inv     *catalog.MemoryInventory
	recipes map[string]*catalog.RecipeNode // by recipe id
	solvers map[string]string
	queue   []craftJob
}

// NewCrafter creates a simulated crafter over inv with the given recipe index.
func NewCrafter(inv *catalog.MemoryInventory, recipes map[string]*catalog.RecipeNode) *Crafter {
	return &Crafter{inv: inv, recipes: recipes, solvers: make(map[string]string)}
}

func (c *Crafter) CraftItem(ctx context.Context, recipeID string, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.recipes[recipeID]
	if !ok {
		return fmt.Errorf("craft %s: unknown recipe", recipeID)
	}
	if amount <= 0 {
		return fmt.Errorf("craft %s: amount must be positive, got %d", recipeID, amount)
	}
	c.queue = append(c.queue, craftJob{recipe: r, runs: amount})
	return nil
}

func (c *Crafter) IsBusy(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) > 0, nil
}

func (c *Crafter) SetSolver(ctx context.Context, recipeID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.solvers[recipeID] = name
	return nil
}

// Solver returns the solver configured for recipeID, if any.
func (c *Crafter) Solver(recipeID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.solvers[recipeID]
	return name, ok
}

// Step executes one craft run from the head of the queue: ingredients are
// consumed and the recipe yield is deposited. A run with missing ingredients
// drops the whole job, mirroring a real tool giving up mid-list.
func (c *Crafter) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return
	}

	job := &c.queue[0]
	for _, ing := range job.recipe.Ingredients {
		if c.inv.OwnedQuantity(ing.ItemID) < ing.Quantity {
			c.queue = c.queue[1:]
			return
		}
	}
	for _, ing := range job.recipe.Ingredients {
		c.inv.Add(ing.ItemID, -ing.Quantity)
	}
	c.inv.Add(job.recipe.ItemID, job.recipe.Yield)

	job.runs--
	if job.runs <= 0 {
		c.queue = c.queue[1:]
	}
}

// Pathfinder simulates the optional navigation helper. It reports ready once
// warmup steps have elapsed; a warmup of zero is ready immediately.
type Pathfinder struct {
	mu     sync.Mutex
	warmup int
	steps  int
}

// NewPathfinder creates a simulated pathfinder that becomes ready after
// warmup steps.
func NewPathfinder(warmup int) *Pathfinder {
	return &Pathfinder{warmup: warmup}
}

func (p *Pathfinder) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.steps < p.warmup {
		p.steps++
	}
}

func (p *Pathfinder) IsReady(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps >= p.warmup, nil
}

func (p *Pathfinder) BuildProgress(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.warmup == 0 {
		return 1.0, nil
	}
	return float64(p.steps) / float64(p.warmup), nil
}
