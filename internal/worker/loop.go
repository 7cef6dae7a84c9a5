// Package worker implements the contributor loop: it polls the task queue
// and, for each unclaimed task, isolates a branch, executes the work under
// the scope guard, commits whatever survived the audit, and writes the
// result record.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbrennan/overseer/internal/config"
	"github.com/mbrennan/overseer/internal/gitops"
	"github.com/mbrennan/overseer/internal/guard"
	"github.com/mbrennan/overseer/internal/history"
	"github.com/mbrennan/overseer/internal/models"
	"github.com/mbrennan/overseer/internal/queue"
	"github.com/mbrennan/overseer/internal/risk"
)

// DefaultPollInterval is the sleep between queue polls.
const DefaultPollInterval = 5 * time.Second

// Logger is the logging surface the loop needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Loop is the single-threaded worker. All git and process execution is
// synchronous; the loop owns its clone exclusively (enforced by Lease) and
// is cancellable only between tasks, never mid-task.
type Loop struct {
	Queue *queue.Queue
	Git   *gitops.Client
	Guard *guard.Guard
	Log   Logger

	// Lease is the exclusive claim on the clone, renewed every cycle.
	// Nil disables leasing (tests).
	Lease *queue.Lease

	// History records processed tasks. Nil disables recording.
	History *history.Store

	// RiskConfig is used to classify each committed change set for the
	// history record. Nil disables classification.
	RiskConfig *config.RiskConfig

	// ExecHook is the raw work-command template (see ExecHookEnvVar).
	ExecHook string

	// Interval between polls (0 = DefaultPollInterval).
	Interval time.Duration
}

// Run polls until ctx is cancelled. A failing cycle is logged and retried
// after the interval; only a lost lease terminates the loop with an error.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Queue.EnsureDirs(); err != nil {
		return err
	}
	l.Log.Infof("contributor loop started; watching %s", l.Queue.RequestsDir())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if l.Lease != nil {
			if err := l.Lease.Renew(); err != nil {
				return fmt.Errorf("renew worker lease: %w", err)
			}
		}

		if err := l.RunOnce(ctx); err != nil {
			l.Log.Warnf("poll cycle error: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.interval()):
		}
	}
}

func (l *Loop) interval() time.Duration {
	if l.Interval > 0 {
		return l.Interval
	}
	return DefaultPollInterval
}

// RunOnce performs one poll cycle: every unclaimed task is attempted, in
// the queue's deterministic order. One task's failure never prevents the
// remaining tasks in the cycle from being attempted.
func (l *Loop) RunOnce(ctx context.Context) error {
	pending, listErr := l.Queue.ListPending()
	if listErr != nil {
		l.Log.Warnf("queue listing problems: %v", listErr)
	}

	for _, p := range pending {
		if err := l.ProcessTask(ctx, p); err != nil {
			l.Log.Errorf("task %s failed: %v", p.Definition.TaskID, err)
		}
	}
	return nil
}

// ProcessTask runs one task through branch isolation, guarded execution,
// commit, and reporting. A branch-checkout failure abandons the task with
// no result record so it is retried on the next poll; every later failure
// is absorbed into a blocked or no-change result record.
func (l *Loop) ProcessTask(ctx context.Context, p queue.Pending) error {
	def := p.Definition
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid task definition: %w", err)
	}
	l.Log.Infof("processing task %s", def.TaskID)

	// BRANCHING
	if err := l.Git.CheckoutNew(ctx, def.Repo.TargetBranch); err != nil {
		return fmt.Errorf("checkout branch %s: %w", def.Repo.TargetBranch, err)
	}
	defer l.returnToBase(ctx, def.Repo.BaseRef)

	// The coarse whole-task measurement used for the commit; the guard
	// takes its own finer-grained snapshots internally.
	baseline, err := l.Git.ChangedPaths(ctx)
	if err != nil {
		return l.report(&def, models.StatusBlocked, "Scope guard violation or execution error.", nil)
	}

	// EXECUTING + AUDITING
	argv, summary := BuildWorkCommand(l.ExecHook, def.TaskID, p.Path)
	outcome, err := l.Guard.Run(ctx, argv, def.EffectiveAllowGlobs())
	if err != nil || outcome.ExitCode != 0 {
		if err != nil {
			l.Log.Errorf("scope guard failed for %s: %v", def.TaskID, err)
		} else {
			l.Log.Warnf("work command for %s exited %d", def.TaskID, outcome.ExitCode)
		}
		return l.report(&def, models.StatusBlocked, "Scope guard violation or execution error.", nil)
	}
	if len(outcome.Violations) > 0 {
		l.Log.Warnf("task %s: reverted %d unauthorized write(s)", def.TaskID, len(outcome.Violations))
	}

	// COMMITTING
	current, err := l.Git.ChangedPaths(ctx)
	if err != nil {
		return l.report(&def, models.StatusBlocked, "Scope guard violation or execution error.", nil)
	}
	changed := baseline.SymmetricDiff(current).Sorted()

	if len(changed) == 0 {
		l.Log.Infof("task %s produced no file changes", def.TaskID)
		return l.report(&def, models.StatusNoChange, summary, nil)
	}

	// Stage only the task's own changes so queue bookkeeping under work/
	// never ends up committed on the task branch.
	if err := l.Git.StagePaths(ctx, changed); err != nil {
		return l.report(&def, models.StatusBlocked, "Scope guard violation or execution error.", nil)
	}
	commitErr := l.Git.Commit(ctx, fmt.Sprintf("feat: implemented %s", def.TaskID))
	switch {
	case commitErr == nil:
		return l.report(&def, models.StatusOK, summary, changed)
	case errors.Is(commitErr, gitops.ErrNothingToCommit):
		l.Log.Infof("task %s: no commitable changes after staging", def.TaskID)
		return l.report(&def, models.StatusNoChange, summary, changed)
	default:
		return l.report(&def, models.StatusBlocked, "Scope guard violation or execution error.", nil)
	}
}

// report writes the result record (REPORTING state) and the optional
// history row. Writing the record is what marks the task handled, so its
// error is the one worth propagating.
func (l *Loop) report(def *models.TaskDefinition, status, summary string, changedFiles []string) error {
	if err := l.Queue.WriteResult(def.TaskID, status, summary, changedFiles); err != nil {
		return fmt.Errorf("write result for %s: %w", def.TaskID, err)
	}
	l.Log.Infof("task %s complete: %s", def.TaskID, status)
	l.recordHistory(def, status, summary, changedFiles)
	return nil
}

// recordHistory persists the run and its risk classification, best effort.
func (l *Loop) recordHistory(def *models.TaskDefinition, status, summary string, changedFiles []string) {
	if l.History == nil {
		return
	}

	run := history.TaskRun{
		TaskID:       def.TaskID,
		Branch:       def.Repo.TargetBranch,
		Status:       status,
		Summary:      summary,
		FilesChanged: len(changedFiles),
	}

	if l.RiskConfig != nil && status == models.StatusOK {
		stats, totalAdd, totalDel := l.branchStats(def)
		level, reasons := risk.Classify(stats, nil, l.RiskConfig, totalAdd, totalDel)
		run.RiskLevel = level.String()
		run.RiskReasons = reasons
	}

	if _, err := l.History.RecordRun(&run); err != nil {
		l.Log.Warnf("record history for %s: %v", def.TaskID, err)
	}
}

// branchStats measures the committed diff between base and target branch.
func (l *Loop) branchStats(def *models.TaskDefinition) ([]risk.FileStat, int, int) {
	if def.Repo.BaseRef == "" {
		return nil, 0, 0
	}
	numstat, err := l.Git.DiffNumStat(context.Background(), def.Repo.BaseRef, def.Repo.TargetBranch)
	if err != nil {
		l.Log.Debugf("diff stats unavailable for %s: %v", def.TaskID, err)
		return nil, 0, 0
	}

	var stats []risk.FileStat
	var totalAdd, totalDel int
	for _, fs := range numstat {
		stats = append(stats, risk.FileStat{Path: fs.Path, Additions: fs.Additions, Deletions: fs.Deletions})
		totalAdd += fs.Additions
		totalDel += fs.Deletions
	}
	return stats, totalAdd, totalDel
}

// returnToBase switches back to the base branch, best effort.
func (l *Loop) returnToBase(ctx context.Context, baseRef string) {
	if baseRef == "" {
		return
	}
	if err := l.Git.Checkout(ctx, baseRef); err != nil {
		l.Log.Warnf("failed to return to %s: %v", baseRef, err)
	}
}
