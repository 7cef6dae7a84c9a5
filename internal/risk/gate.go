package risk

import (
	"fmt"
	"path"
	"strings"

	"github.com/mbrennan/overseer/internal/config"
	"github.com/mbrennan/overseer/internal/glob"
)

// FileStat describes one touched file in a change set.
type FileStat struct {
	Path      string
	Additions int
	Deletions int
}

// docExtensions are the suffixes of files considered documentation.
var docExtensions = map[string]bool{
	".md":  true,
	".txt": true,
	".rst": true,
}

// Classify computes the risk level of a change set and the reasons for it.
//
// It is a pure function over its inputs. Rules apply in strict priority
// order, first match wins:
//
//  1. Any configured block label present: L3, with that label as the only
//     reason. Nothing else is considered, even for an otherwise trivial
//     change.
//  2. Any protected path touched, or a file-count / addition / deletion
//     ceiling exceeded: L2, with every such reason accumulated.
//  3. Every touched path has a documentation extension: L0.
//  4. Otherwise: L1.
//
// The returned reason list is never empty.
func Classify(files []FileStat, labels []string, cfg *config.RiskConfig, additions, deletions int) (Level, []string) {
	for _, blocked := range cfg.BlockLabels {
		for _, label := range labels {
			if label == blocked {
				return L3, []string{fmt.Sprintf("blocked by label: %s", blocked)}
			}
		}
	}

	var reasons []string
	for _, f := range files {
		if glob.MatchAny(f.Path, cfg.ProtectedPaths) {
			reasons = append(reasons, fmt.Sprintf("touches protected path: %s", f.Path))
		}
	}
	if len(files) > cfg.MaxFilesChanged {
		reasons = append(reasons, fmt.Sprintf("too many files changed: %d > %d", len(files), cfg.MaxFilesChanged))
	}
	if additions > cfg.MaxAdditions {
		reasons = append(reasons, fmt.Sprintf("too many additions: %d > %d", additions, cfg.MaxAdditions))
	}
	if deletions > cfg.MaxDeletions {
		reasons = append(reasons, fmt.Sprintf("too many deletions: %d > %d", deletions, cfg.MaxDeletions))
	}
	if len(reasons) > 0 {
		return L2, reasons
	}

	if docsOnly(files) {
		return L0, []string{"docs-only change"}
	}

	return L1, []string{"small change; no protected paths"}
}

// docsOnly reports whether every touched path has a documentation
// extension. An empty change set is vacuously docs-only.
func docsOnly(files []FileStat) bool {
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Path))
		if !docExtensions[ext] {
			return false
		}
	}
	return true
}

// AutoMergeEligible reports whether a level is within the policy's
// auto-merge set.
func AutoMergeEligible(level Level, cfg *config.RiskConfig) bool {
	if cfg.MergeMode != config.MergeModeAuto {
		return false
	}
	for _, name := range cfg.AutoMergeLevels {
		allowed, err := ParseLevel(name)
		if err != nil {
			continue
		}
		if level == allowed {
			return true
		}
	}
	return false
}
