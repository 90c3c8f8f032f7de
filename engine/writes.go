package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tcode/model"
	"tcode/permission"
	"tcode/retrieval"
	"tcode/tools"
)

// pendingWrite is a parsed mutation and its position in the round.
type pendingWrite struct {
	index  int
	raw    model.ToolCall
	call   tools.Call
	change tools.Change
}

// executeRound runs the calls of one assistant message and returns one
// result per call, in call order. Calls run one at a time. Two or more
// mutations in the same round go through the batch path after the other
// calls have run.
func (e *Engine) executeRound(ctx context.Context, calls []model.ToolCall, mode permission.Mode, res *Result) ([]string, error) {
	results := make([]string, len(calls))
	var writes []pendingWrite

	for i, raw := range calls {
		call, err := tools.Parse(raw)
		if err != nil {
			e.observer.ToolStarted(raw)
			results[i] = "Error: " + err.Error()
			e.observer.ToolFinished(raw, results[i])
			continue
		}
		if tools.IsMutation(call) {
			writes = append(writes, pendingWrite{
				index:  i,
				raw:    raw,
				call:   call,
				change: e.executor.Classify(call),
			})
			continue
		}
		results[i] = e.run(raw, call)
	}

	switch len(writes) {
	case 0:
	case 1:
		w := writes[0]
		results[w.index] = e.singleWrite(ctx, w, mode, res)
	default:
		e.batchWrite(ctx, writes, mode, results, res)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// run executes a call and renders its result for the model.
func (e *Engine) run(raw model.ToolCall, call tools.Call) string {
	e.observer.ToolStarted(raw)
	out, err := e.executor.Execute(call)
	if err != nil {
		out = "Error: " + err.Error()
	}
	e.observer.ToolFinished(raw, out)
	return out
}

// skip reports a call that was not executed.
func (e *Engine) skip(raw model.ToolCall, result string) string {
	e.observer.ToolStarted(raw)
	e.observer.ToolFinished(raw, result)
	return result
}

// singleWrite runs one mutation through the permission gate.
func (e *Engine) singleWrite(ctx context.Context, w pendingWrite, mode permission.Mode, res *Result) string {
	if !permission.AllowsMutation(mode) {
		res.Planned = append(res.Planned, w.change)
		e.confirmer.ShowPlan(ctx, []tools.Change{w.change})
		return e.skip(w.raw, resultPlanOnly)
	}

	out, err := e.write(ctx, w, permission.RequiresConfirmation(mode), res)
	if errors.Is(err, ErrCancelled) {
		return e.skip(w.raw, resultCancelled)
	}
	return out
}

// batchWrite resolves two or more mutations according to mode and, in
// default mode, the user's batch decision.
func (e *Engine) batchWrite(ctx context.Context, writes []pendingWrite, mode permission.Mode, results []string, res *Result) {
	changes := make([]tools.Change, len(writes))
	for i, w := range writes {
		changes[i] = w.change
	}

	decision := BatchApplyAll
	switch {
	case !permission.AllowsMutation(mode):
		res.Planned = append(res.Planned, changes...)
		e.confirmer.ShowPlan(ctx, changes)
		for _, w := range writes {
			results[w.index] = e.skip(w.raw, resultPlanOnly)
		}
		return

	case permission.RequiresConfirmation(mode):
		d, err := e.confirmer.ConfirmBatch(ctx, changes)
		if err != nil {
			e.logger.Warn("batch confirmation failed", zap.Error(err))
			d = BatchCancel
		}
		decision = d
	}

	e.logger.Debug("batch write", zap.Int("files", len(writes)), zap.Stringer("decision", decision))

	for _, w := range writes {
		switch decision {
		case BatchCancel:
			results[w.index] = e.skip(w.raw, resultCancelled)
		case BatchReviewEach:
			results[w.index] = e.singleWrite(ctx, w, mode, res)
		default:
			out, _ := e.write(ctx, w, false, res)
			results[w.index] = out
		}
	}
}

// write confirms (when asked to), checkpoints and performs a mutation. A
// declined confirmation returns ErrCancelled and touches nothing. The
// returned string is the tool result for every other outcome.
func (e *Engine) write(ctx context.Context, w pendingWrite, confirm bool, res *Result) (string, error) {
	if confirm {
		ok, err := e.confirmer.ConfirmWrite(ctx, w.change)
		if err != nil {
			e.logger.Warn("write confirmation failed", zap.String("path", w.change.Path), zap.Error(err))
		}
		if err != nil || !ok {
			return "", ErrCancelled
		}
	}

	outcome := WriteOutcome{Path: w.change.Path, Kind: w.change.Kind}

	e.observer.ToolStarted(w.raw)
	id, err := e.checkpoints.Create(ctx, e.executor.Resolve(w.call.Target()))
	if err != nil {
		result := fmt.Sprintf("Error: failed to checkpoint %s: %v", w.change.Path, err)
		outcome.Error = err.Error()
		res.Writes = append(res.Writes, outcome)
		e.observer.ToolFinished(w.raw, result)
		return result, err
	}
	outcome.CheckpointID = id

	out, err := e.executor.Execute(w.call)
	if err != nil {
		out = "Error: " + err.Error()
		outcome.Error = err.Error()
	} else {
		outcome.Success = true
		if inv, ok := e.retriever.(retrieval.Invalidator); ok {
			inv.Invalidate()
		}
	}
	res.Writes = append(res.Writes, outcome)
	e.observer.ToolFinished(w.raw, out)
	return out, err
}
