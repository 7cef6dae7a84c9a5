package packet

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mbrennan/overseer/internal/models"
)

// Render produces the review packet markdown. repo is a display label for
// the header (an owner/name pair or a local path).
func Render(repo string, items []Item, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Review Packet\n\n")
	fmt.Fprintf(&sb, "- Repo: `%s`\n", repo)
	fmt.Fprintf(&sb, "- Generated: %s\n", now.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&sb, "- Completed tasks: %d\n", len(items))

	if len(items) == 0 {
		sb.WriteString("- Status Summary: n/a\n")
		sb.WriteString("- Risk Summary: n/a\n")
	} else {
		fmt.Fprintf(&sb, "- Status Summary: %s\n", statusSummary(items))
		fmt.Fprintf(&sb, "- Risk Summary: %s\n", riskSummary(items))
	}

	sb.WriteString("\n## Task Details\n\n")
	if len(items) == 0 {
		sb.WriteString("No completed tasks.\n")
	}
	for _, it := range items {
		fmt.Fprintf(&sb, "### %s — %s\n", it.TaskID, it.Status)
		fmt.Fprintf(&sb, "- Branch: `%s`\n", it.Branch)
		if it.RiskLevel != "" {
			fmt.Fprintf(&sb, "- Risk: **%s** (%s)\n", it.RiskLevel, reasonsOrNA(it.RiskReasons))
			if it.AutoMerge {
				sb.WriteString("- Merge: auto-merge eligible\n")
			} else {
				sb.WriteString("- Merge: needs human review\n")
			}
		} else {
			sb.WriteString("- Risk: n/a\n")
		}
		fmt.Fprintf(&sb, "- Diff: %d files, +%d / -%d\n", it.FilesChanged, it.Additions, it.Deletions)
		if len(it.ChangedFiles) > 0 {
			sb.WriteString("- Changed files: " + backtickList(it.ChangedFiles) + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Recommended Review Order\n\n")
	ordered := RecommendedOrder(items)
	if len(ordered) == 0 {
		sb.WriteString("No review candidates.\n")
	}
	for i, it := range ordered {
		level := it.RiskLevel
		if level == "" {
			level = "n/a"
		}
		fmt.Fprintf(&sb, "%d. %s (%s, %s, diff=%d files, +%d/-%d)\n",
			i+1, it.TaskID, level, it.Status, it.FilesChanged, it.Additions, it.Deletions)
	}

	sb.WriteString("\n## Next Actions (suggested)\n\n")
	sb.WriteString("- Review low-risk branches first unless dependency constraints override.\n")
	sb.WriteString("- Re-dispatch blocked tasks with a narrower scope or an updated allow-list.\n")
	sb.WriteString("- Delete merged worker branches to keep the clone tidy.\n")

	return sb.String()
}

func statusSummary(items []Item) string {
	order := map[string]int{models.StatusOK: 0, models.StatusNoChange: 1, models.StatusBlocked: 2}
	return countSummary(items, func(it *Item) string { return it.Status }, func(k string) int {
		if r, ok := order[k]; ok {
			return r
		}
		return 9
	})
}

func riskSummary(items []Item) string {
	return countSummary(items, func(it *Item) string {
		if it.RiskLevel == "" {
			return "n/a"
		}
		return it.RiskLevel
	}, riskRank)
}

func countSummary(items []Item, key func(*Item) string, rank func(string) int) string {
	counts := map[string]int{}
	for i := range items {
		counts[key(&items[i])]++
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if rank(keys[i]) != rank(keys[j]) {
			return rank(keys[i]) < rank(keys[j])
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

func reasonsOrNA(reasons []string) string {
	if len(reasons) == 0 {
		return "n/a"
	}
	return strings.Join(reasons, "; ")
}

func backtickList(paths []string) string {
	quoted := make([]string, 0, len(paths))
	for _, p := range paths {
		quoted = append(quoted, "`"+p+"`")
	}
	return strings.Join(quoted, ", ")
}
