// Package packet builds the supervisor's review packet: one item per
// completed task, with committed diff stats and a risk classification, plus
// a recommended review order.
package packet

import (
	"context"
	"sort"
	"time"

	"github.com/mbrennan/overseer/internal/config"
	"github.com/mbrennan/overseer/internal/filelock"
	"github.com/mbrennan/overseer/internal/gitops"
	"github.com/mbrennan/overseer/internal/models"
	"github.com/mbrennan/overseer/internal/queue"
	"github.com/mbrennan/overseer/internal/risk"
)

// Item is one completed task in the packet.
type Item struct {
	TaskID       string
	Branch       string
	Status       string
	FilesChanged int
	Additions    int
	Deletions    int
	RiskLevel    string
	RiskReasons  []string
	AutoMerge    bool
	ChangedFiles []string
}

// DiffSize is the total churn of the item's committed diff.
func (it *Item) DiffSize() int { return it.Additions + it.Deletions }

// Builder assembles packet items from the queue's result records and the
// repository's committed branches.
type Builder struct {
	Queue *queue.Queue
	Git   *gitops.Client
	Risk  *config.RiskConfig

	// BaseRef is the ref branch diffs are measured against ("main" when
	// empty).
	BaseRef string
}

// Build returns one item per result record, ordered by task id. Tasks
// whose definition file is gone fall back to the conventional branch name;
// diff stats that cannot be measured are reported as zero rather than
// failing the whole packet.
func (b *Builder) Build(ctx context.Context) ([]Item, error) {
	records, err := b.Queue.ListResults()
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, b.buildItem(ctx, rec))
	}
	return items, nil
}

func (b *Builder) buildItem(ctx context.Context, rec models.ResultRecord) Item {
	item := Item{
		TaskID:       rec.TaskID,
		Status:       rec.Status,
		ChangedFiles: rec.ChangedFiles,
		Branch:       "worker/" + rec.TaskID,
	}

	base := b.BaseRef
	if def, err := b.Queue.ReadDefinition(rec.TaskID); err == nil {
		if def.Repo.TargetBranch != "" {
			item.Branch = def.Repo.TargetBranch
		}
		if base == "" {
			base = def.Repo.BaseRef
		}
	}
	if base == "" {
		base = "main"
	}

	// Only an ok task has a committed branch worth measuring.
	if rec.Status != models.StatusOK {
		return item
	}

	stats, err := b.Git.DiffNumStat(ctx, base, item.Branch)
	if err != nil {
		return item
	}

	riskStats := make([]risk.FileStat, 0, len(stats))
	for _, fs := range stats {
		riskStats = append(riskStats, risk.FileStat{
			Path:      fs.Path,
			Additions: fs.Additions,
			Deletions: fs.Deletions,
		})
		item.Additions += fs.Additions
		item.Deletions += fs.Deletions
	}
	item.FilesChanged = len(stats)

	if b.Risk != nil {
		level, reasons := risk.Classify(riskStats, nil, b.Risk, item.Additions, item.Deletions)
		item.RiskLevel = level.String()
		item.RiskReasons = reasons
		item.AutoMerge = risk.AutoMergeEligible(level, b.Risk)
	}
	return item
}

// riskRank orders known levels ahead of unclassified items.
func riskRank(level string) int {
	if l, err := risk.ParseLevel(level); err == nil {
		return int(l)
	}
	return 9
}

// RecommendedOrder sorts items for review: lowest risk first, then
// smallest diff, then task id as the tiebreaker. The input is not
// modified.
func RecommendedOrder(items []Item) []Item {
	ordered := make([]Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return lessItem(&ordered[i], &ordered[j])
	})
	return ordered
}

func lessItem(a, b *Item) bool {
	if ra, rb := riskRank(a.RiskLevel), riskRank(b.RiskLevel); ra != rb {
		return ra < rb
	}
	if a.DiffSize() != b.DiffSize() {
		return a.DiffSize() < b.DiffSize()
	}
	return a.TaskID < b.TaskID
}

// WritePacket renders the packet and writes it atomically.
func WritePacket(path, repo string, items []Item, now time.Time) error {
	return filelock.AtomicWrite(path, []byte(Render(repo, items, now)))
}
