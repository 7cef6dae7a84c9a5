package dispatch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mbrennan/overseer/internal/models"
	"github.com/mbrennan/overseer/internal/queue"
)

// DefaultPollInterval is the sleep between backlog polls in loop mode.
const DefaultPollInterval = 10 * time.Second

// Defaults applied to every generated task definition.
const (
	defaultBaseRef         = "main"
	defaultMaxFilesChanged = 10
	defaultMaxAdditions    = 1000
	defaultMaxDeletions    = 1000
)

// Logger is the logging surface the dispatcher needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Dispatcher turns backlog entries into immutable task definitions on the
// queue. It is the supervisor-side half of the pipeline; the worker never
// sees the backlog, only the generated definitions.
type Dispatcher struct {
	Queue *queue.Queue
	Log   Logger

	// WorkspaceRoot becomes repo.path in generated definitions ("." when
	// empty).
	WorkspaceRoot string

	// BaseRef is the branch workers return to ("main" when empty).
	BaseRef string

	// Interval between polls in loop mode (0 = DefaultPollInterval).
	Interval time.Duration
}

// DispatchFile writes a definition for every backlog entry that has
// neither a definition nor a result record yet. Returns how many new
// definitions were written.
func (d *Dispatcher) DispatchFile(path string) (int, error) {
	entries, err := LoadBacklog(path)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, e := range entries {
		def := d.definitionFor(e)
		if d.Queue.HasDefinition(def.TaskID) || d.Queue.HasResult(def.TaskID) {
			d.Log.Debugf("task %s already dispatched", def.TaskID)
			continue
		}
		if err := d.Queue.WriteDefinition(def); err != nil {
			if errors.Is(err, queue.ErrDefinitionExists) {
				continue
			}
			return written, fmt.Errorf("dispatch %s: %w", def.TaskID, err)
		}
		d.Log.Infof("dispatched task %s: %s", def.TaskID, e.Title)
		written++
	}
	return written, nil
}

// Run polls the backlog file until ctx is cancelled. A failing poll is
// logged and retried; the backlog file being temporarily absent is not
// fatal.
func (d *Dispatcher) Run(ctx context.Context, path string) error {
	if err := d.Queue.EnsureDirs(); err != nil {
		return err
	}
	d.Log.Infof("supervisor loop started; backlog %s", path)

	interval := d.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		if _, err := d.DispatchFile(path); err != nil {
			d.Log.Warnf("backlog poll: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (d *Dispatcher) definitionFor(e BacklogEntry) *models.TaskDefinition {
	id := TaskID(e.Title)
	allow, deny := InferAllowedGlobs(e.Title, e.Body)

	base := d.BaseRef
	if base == "" {
		base = defaultBaseRef
	}
	root := d.WorkspaceRoot
	if root == "" {
		root = "."
	}

	return &models.TaskDefinition{
		TaskID:            id,
		Role:              "worker",
		CanonicalLanguage: "en",
		Repo: models.RepoSpec{
			Path:         root,
			BaseRef:      base,
			TargetBranch: "worker/" + id,
		},
		Scope: models.Scope{
			AllowedGlobs:    allow,
			DenyGlobs:       deny,
			MaxFilesChanged: defaultMaxFilesChanged,
			MaxAdditions:    defaultMaxAdditions,
			MaxDeletions:    defaultMaxDeletions,
		},
		Goal: models.Goal{
			Title:              e.Title,
			Description:        e.Body,
			AcceptanceCriteria: []string{"Check PR description"},
			TestPlan:           []string{"echo 'No automatic tests defined yet'"},
		},
		StopConditions: []string{"security-sensitive", "secrets-required"},
	}
}

var (
	allowedLineRe = regexp.MustCompile(`(?i)^allowed paths?:\s*(.+)$`)
	codeSpanRe    = regexp.MustCompile("`([^`]+)`")
	slugRe        = regexp.MustCompile(`[a-z0-9]+`)
)

// InferAllowedGlobs derives a task's allow-list from its backlog entry.
// An explicit "Allowed paths: a, b" line in the body wins; otherwise any
// backticked paths in the title are used; otherwise the broad default
// applies with the workflow directory denied.
func InferAllowedGlobs(title, body string) (allow, deny []string) {
	for _, line := range strings.Split(body, "\n") {
		m := allowedLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		for _, part := range strings.Split(m[1], ",") {
			if p := strings.Trim(strings.TrimSpace(part), "`"); p != "" {
				allow = append(allow, p)
			}
		}
		if len(allow) > 0 {
			return allow, nil
		}
	}

	for _, m := range codeSpanRe.FindAllStringSubmatch(title, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			allow = append(allow, p)
		}
	}
	if len(allow) > 0 {
		return allow, nil
	}

	return []string{"**/*"}, []string{".github/workflows/**"}
}

// TaskID derives a stable, filename-safe id from a backlog title. Titles
// that slugify to nothing get a random id instead.
func TaskID(title string) string {
	words := slugRe.FindAllString(strings.ToLower(title), -1)
	slug := strings.Join(words, "-")
	if len(slug) > 48 {
		slug = strings.Trim(slug[:48], "-")
	}
	if slug == "" {
		return "task-" + uuid.NewString()[:8]
	}
	return slug
}

// ParseOwnerRepo extracts owner and name from a GitHub repository
// reference in https, ssh, or plain "owner/name" form.
func ParseOwnerRepo(repo string) (owner, name string, err error) {
	s := strings.TrimSpace(repo)
	s = strings.TrimSuffix(s, ".git")
	for _, sep := range []string{"github.com/", "github.com:"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[i+len(sep):]
		}
	}
	s = strings.Trim(s, "/")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo %q: expected owner/name", repo)
	}
	return parts[0], parts[1], nil
}
