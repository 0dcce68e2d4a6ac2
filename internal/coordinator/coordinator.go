// Package coordinator implements the two-level scheduler at the heart of
// the engine: sequential phases, parallel agents within a phase, cognitive
// style fan-out per agent, synthesis of style variants, cross-reference
// joining, and the final validation gate.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stpasec/internal/agent"
	"stpasec/internal/config"
	"stpasec/internal/llm"
	"stpasec/internal/logging"
	"stpasec/internal/prompts"
	"stpasec/internal/registry"
	"stpasec/internal/store"
	"stpasec/internal/types"
	"stpasec/internal/validator"
)

const (
	defaultAgentTimeout = 600 * time.Second
	defaultTotalTimeout = 3600 * time.Second
)

// Options configures a Coordinator. Prompt capture is enabled or disabled
// here, at construction, by wiring the saver into the Adapter.
type Options struct {
	Store   *store.Store
	Adapter *llm.Adapter
	Prompts *prompts.Loader
	Mode    config.ExecutionMode

	AgentTimeout time.Duration
	TotalTimeout time.Duration

	// Supervise wraps every agent with the expert critique decorator.
	Supervise bool

	// EventBuffer sizes the progress channel; 0 means 64.
	EventBuffer int
}

// Coordinator schedules one analysis run at a time.
type Coordinator struct {
	store        *store.Store
	adapter      *llm.Adapter
	prompts      *prompts.Loader
	mode         config.ExecutionMode
	agentTimeout time.Duration
	totalTimeout time.Duration
	supervise    bool
	events       chan types.ProgressEvent
}

// New creates a coordinator.
func New(opts Options) *Coordinator {
	if opts.AgentTimeout <= 0 {
		opts.AgentTimeout = defaultAgentTimeout
	}
	if opts.TotalTimeout <= 0 {
		opts.TotalTimeout = defaultTotalTimeout
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Mode == "" {
		opts.Mode = config.ModeStandard
	}
	return &Coordinator{
		store:        opts.Store,
		adapter:      opts.Adapter,
		prompts:      opts.Prompts,
		mode:         opts.Mode,
		agentTimeout: opts.AgentTimeout,
		totalTimeout: opts.TotalTimeout,
		supervise:    opts.Supervise,
		events:       make(chan types.ProgressEvent, opts.EventBuffer),
	}
}

// Events returns the progress channel. Events are dropped, not queued, when
// the consumer falls behind.
func (c *Coordinator) Events() <-chan types.ProgressEvent { return c.events }

// RunInput describes one analysis run.
type RunInput struct {
	Name  string
	Step  types.Step
	Input types.ProcessedInput
	// ParentAnalysisID links a Step 2 run to its Step 1 framing; empty means
	// use the most recent completed Step 1 analysis.
	ParentAnalysisID string
	UserID           string
	// PreservedElements carries user-frozen artifacts into a re-run.
	PreservedElements map[string]any
}

// Run executes all phases of one analysis. The returned result is populated
// even on failure: partial outputs, the execution log, and the completeness
// check are always attached.
func (c *Coordinator) Run(ctx context.Context, in RunInput) (*types.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.totalTimeout)
	defer cancel()

	analysis := types.Analysis{
		ID:            uuid.NewString(),
		Step:          in.Step,
		Name:          in.Name,
		Description:   in.Input.Content,
		Status:        types.AnalysisRunning,
		UserID:        in.UserID,
		ExecutionMode: string(c.mode),
		CreatedAt:     time.Now(),
	}
	result := &types.AnalysisResult{
		Analysis:     analysis,
		AgentResults: make(map[string]*types.AgentResult),
	}

	actx := &agent.Context{
		AnalysisID:        analysis.ID,
		Step:              in.Step,
		SystemDescription: in.Input.Content,
		Alloc:             types.NewIDAllocator(),
		PreservedElements: in.PreservedElements,
	}
	if in.Step == types.Step2 {
		actx.Registry = registry.New()
		parentID := in.ParentAnalysisID
		if parentID == "" {
			parent, err := c.store.FetchLatestStep1()
			if err != nil {
				return c.fatal(result, fmt.Errorf("step 2 requires a completed step 1 analysis: %w", err))
			}
			parentID = parent.ID
		}
		actx.ParentAnalysisID = parentID
		analysis.ParentID = parentID
		result.Analysis.ParentID = parentID
	}

	if err := c.store.InsertAnalysis(&analysis); err != nil {
		return c.fatal(result, err)
	}

	log := logging.L(logging.CategoryCoordinator)
	log.Infow("analysis started", "analysis", analysis.ID, "step", int(in.Step), "mode", c.mode)

	var report *validator.Report
	for _, phase := range phasesFor(in.Step) {
		if err := ctx.Err(); err != nil {
			return c.timedOut(result)
		}
		if phase.Name == PhaseValidation {
			rep, err := c.runValidation(result, actx)
			if err != nil {
				return c.fatal(result, err)
			}
			report = rep
			continue
		}
		if err := c.runPhase(ctx, phase, actx, result); err != nil {
			if ctx.Err() != nil {
				return c.timedOut(result)
			}
			return c.fatal(result, err)
		}
	}

	if in.Step == types.Step2 {
		if err := c.runCrossReference(result, actx); err != nil {
			return c.fatal(result, err)
		}
		rep, err := validator.ValidateStep2(c.store, analysis.ID, actx.Registry)
		if err != nil {
			return c.fatal(result, err)
		}
		report = rep
	}

	check, err := checkCompleteness(c.store, analysis.ID, in.Step)
	if err != nil {
		return c.fatal(result, err)
	}
	result.CompletenessCheck = check

	quality := 0.0
	if report != nil {
		quality = report.OverallScore
		result.OverallStatus = report.OverallStatus
	}
	// A failed agent downgrades the final status regardless of what the
	// surviving artifacts score.
	for _, r := range result.AgentResults {
		if !r.Success {
			result.OverallStatus = types.StatusRevisionRequired
			break
		}
	}

	result.Status = types.AnalysisCompleted
	result.Analysis.Status = types.AnalysisCompleted
	result.Analysis.QualityScore = quality
	if err := c.store.UpdateAnalysisStatus(analysis.ID, types.AnalysisCompleted, quality); err != nil {
		return c.fatal(result, err)
	}

	c.attachLog(result)
	log.Infow("analysis completed", "analysis", analysis.ID,
		"quality", quality, "status", result.OverallStatus)
	return result, nil
}

// runPhase executes the agents of one phase and commits their writes in one
// flush at phase end.
func (c *Coordinator) runPhase(ctx context.Context, phase Phase, actx *agent.Context, result *types.AnalysisResult) error {
	phaseTx, err := c.store.BeginPhase()
	if err != nil {
		return err
	}
	phaseCtx := *actx
	phaseCtx.Phase = phaseTx

	logging.L(logging.CategoryCoordinator).Debugw("phase started",
		"phase", phase.Name, "agents", phase.Agents, "parallel", phase.Parallel)

	if phase.Parallel {
		// Sibling goroutines never touch the shared result; each returns its
		// merged output and the coordinator folds them in after Wait.
		merged := make([]*types.AgentResult, len(phase.Agents))
		g, gctx := errgroup.WithContext(ctx)
		for i, agentType := range phase.Agents {
			g.Go(func() error {
				r, err := c.runAgent(gctx, phase.Name, agentType, &phaseCtx)
				merged[i] = r
				return err
			})
		}
		err := g.Wait()
		for i, agentType := range phase.Agents {
			recordAgentResult(result, agentType, merged[i])
		}
		if err != nil {
			phaseTx.Rollback()
			return err
		}
	} else {
		for _, agentType := range phase.Agents {
			r, err := c.runAgent(ctx, phase.Name, agentType, &phaseCtx)
			recordAgentResult(result, agentType, r)
			if err != nil {
				phaseTx.Rollback()
				return err
			}
		}
	}

	if err := phaseTx.Commit(); err != nil {
		return fmt.Errorf("phase %s: %w", phase.Name, err)
	}
	return nil
}

// runAgent fans one agent out across its style set, synthesizes the
// variants, and persists the merged result. Agent failures are reported
// through the returned result and swallowed; only persistence errors
// propagate.
func (c *Coordinator) runAgent(ctx context.Context, phaseName, agentType string, actx *agent.Context) (*types.AgentResult, error) {
	c.emit(phaseName, agentType, types.ProgressStarted, "")

	a, err := agent.New(agentType, agent.Deps{Adapter: c.adapter, Store: c.store, Prompts: c.prompts})
	if err != nil {
		return nil, err
	}
	if c.supervise {
		a = agent.Supervised(a, c.adapter)
	}

	agentCtx, cancel := context.WithTimeout(ctx, c.agentTimeout)
	defer cancel()

	styles := stylesFor(c.mode, agentType)
	variants := make([]*types.AgentResult, 0, len(styles))
	for i, style := range styles {
		styleCtx := *actx
		styleCtx.Style = style
		c.emit(phaseName, agentType, types.ProgressUpdate,
			fmt.Sprintf("style %s (%d/%d)", style, i+1, len(styles)))

		variant, err := a.Analyze(agentCtx, &styleCtx)
		if err != nil {
			// Analyze reports its own failures through the result; an error
			// here is a framework bug, treated like a failed variant.
			variant = &types.AgentResult{
				AgentType: agentType, AnalysisID: actx.AnalysisID,
				CognitiveStyle: style, Error: err.Error(),
			}
		}
		variants = append(variants, variant)
	}

	merged := Synthesize(agentType, variants)
	if merged.Success {
		if err := a.Persist(actx, merged); err != nil {
			c.emit(phaseName, agentType, types.ProgressFailed, err.Error())
			return nil, fmt.Errorf("persisting %s results: %w", agentType, err)
		}
		c.emit(phaseName, agentType, types.ProgressCompleted, "")
	} else {
		c.emit(phaseName, agentType, types.ProgressFailed, merged.Error)
	}

	if err := actx.Phase.InsertAgentResult(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// recordAgentResult folds one merged agent result into the run result. All
// writes to the result maps happen on the coordinator goroutine.
func recordAgentResult(result *types.AnalysisResult, agentType string, merged *types.AgentResult) {
	if merged == nil {
		return
	}
	if !merged.Success {
		result.Errors = append(result.Errors,
			(&agent.Error{AgentType: agentType, Cause: fmt.Errorf("%s", merged.Error)}).Error())
	}
	result.AgentResults[agentType] = merged
}

// runValidation is the synthetic final Step 1 phase: it runs the validator
// and persists the report as an agent result.
func (c *Coordinator) runValidation(result *types.AnalysisResult, actx *agent.Context) (*validator.Report, error) {
	c.emit(PhaseValidation, PhaseValidation, types.ProgressStarted, "")
	rep, err := validator.ValidateStep1(c.store, actx.AnalysisID)
	if err != nil {
		c.emit(PhaseValidation, PhaseValidation, types.ProgressFailed, err.Error())
		return nil, err
	}

	vr := &types.AgentResult{
		AgentType:   PhaseValidation,
		AnalysisID:  actx.AnalysisID,
		Success:     true,
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
		Data:        map[string]any{"report": rep},
	}
	if err := c.persistResult(vr); err != nil {
		return nil, err
	}
	result.AgentResults[PhaseValidation] = vr
	c.emit(PhaseValidation, PhaseValidation, types.ProgressCompleted,
		fmt.Sprintf("score %.0f (%s)", rep.OverallScore, rep.QualityLevel))
	return rep, nil
}

// runCrossReference joins the Step 2 outputs and persists the synthesis.
func (c *Coordinator) runCrossReference(result *types.AnalysisResult, actx *agent.Context) error {
	const name = "cross_reference_synthesis"
	c.emit(name, name, types.ProgressStarted, "")
	synth, err := synthesizeCrossReferences(c.store, actx.AnalysisID)
	if err != nil {
		c.emit(name, name, types.ProgressFailed, err.Error())
		return err
	}
	xr := &types.AgentResult{
		AgentType:   name,
		AnalysisID:  actx.AnalysisID,
		Success:     true,
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
		Data:        map[string]any{"synthesis": synth},
	}
	if err := c.persistResult(xr); err != nil {
		return err
	}
	result.AgentResults[name] = xr
	c.emit(name, name, types.ProgressCompleted, "")
	return nil
}

// persistResult writes one standalone agent result in its own phase flush.
func (c *Coordinator) persistResult(r *types.AgentResult) error {
	tx, err := c.store.BeginPhase()
	if err != nil {
		return err
	}
	if err := tx.InsertAgentResult(r); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// fatal marks the analysis errored and finalizes the result.
func (c *Coordinator) fatal(result *types.AnalysisResult, cause error) (*types.AnalysisResult, error) {
	logging.L(logging.CategoryCoordinator).Errorw("analysis failed",
		"analysis", result.Analysis.ID, "error", cause)
	result.Status = types.AnalysisError
	result.Analysis.Status = types.AnalysisError
	result.Errors = append(result.Errors, cause.Error())
	if err := c.store.UpdateAnalysisStatus(result.Analysis.ID, types.AnalysisError, 0); err != nil {
		logging.L(logging.CategoryCoordinator).Warnw("status update failed", "error", err)
	}
	c.attachLog(result)
	return result, cause
}

// timedOut marks the analysis timed out and finalizes the result.
func (c *Coordinator) timedOut(result *types.AnalysisResult) (*types.AnalysisResult, error) {
	result.Status = types.AnalysisTimeout
	result.Analysis.Status = types.AnalysisTimeout
	result.Errors = append(result.Errors, "analysis deadline exceeded")
	if err := c.store.UpdateAnalysisStatus(result.Analysis.ID, types.AnalysisTimeout, 0); err != nil {
		logging.L(logging.CategoryCoordinator).Warnw("status update failed", "error", err)
	}
	c.attachLog(result)
	return result, context.DeadlineExceeded
}

// attachLog loads the execution log into the result; the log is part of the
// result even on failure.
func (c *Coordinator) attachLog(result *types.AnalysisResult) {
	entries, err := c.store.FetchActivityLog(result.Analysis.ID)
	if err != nil {
		logging.L(logging.CategoryCoordinator).Warnw("activity log fetch failed", "error", err)
		return
	}
	result.ExecutionLog = entries
}
