// Package dispatch converts a local backlog file into task definitions on
// the work queue. The backlog is either markdown, one task per "## Title"
// heading with the lines below it as the body, or JSON, a list of
// {"title", "body", "labels"} objects (optionally wrapped in {"tasks":[]}).
package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BacklogEntry is one task candidate from the backlog file.
type BacklogEntry struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

// LoadBacklog reads and parses a backlog file. The format is chosen by
// extension; an unknown extension tries JSON first, then markdown.
func LoadBacklog(path string) ([]BacklogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backlog %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSONBacklog(data)
	case ".md", ".markdown", ".txt":
		return ParseMarkdownBacklog(data)
	default:
		entries, jsonErr := parseJSONBacklog(data)
		if jsonErr == nil {
			return entries, nil
		}
		return ParseMarkdownBacklog(data)
	}
}

func parseJSONBacklog(data []byte) ([]BacklogEntry, error) {
	var entries []BacklogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		var wrapper struct {
			Tasks []BacklogEntry `json:"tasks"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Tasks == nil {
			return nil, errors.New(`invalid JSON backlog: expected a list or {"tasks": [...]}`)
		}
		entries = wrapper.Tasks
	}

	if len(entries) == 0 {
		return nil, errors.New("no tasks found in JSON backlog")
	}
	for _, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			return nil, errors.New("every backlog task requires a non-empty title")
		}
	}
	return entries, nil
}

// ParseMarkdownBacklog splits the document into one entry per heading of
// level two or deeper. The AST only locates the headings; titles and
// bodies are sliced from the raw source so inline markup like backticked
// paths survives verbatim. A heading inside a fenced code block is not a
// task boundary.
func ParseMarkdownBacklog(source []byte) ([]BacklogEntry, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	type span struct {
		lineStart int
		bodyStart int
	}
	var spans []span

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level < 2 || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := h.Lines().At(0)
		s := span{
			lineStart: bytes.LastIndexByte(source[:seg.Start], '\n') + 1,
			bodyStart: len(source),
		}
		if nl := bytes.IndexByte(source[seg.Stop:], '\n'); nl >= 0 {
			s.bodyStart = seg.Stop + nl + 1
		}
		spans = append(spans, s)
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, errors.New("no tasks found in markdown backlog; use a '## Title' heading per task")
	}

	entries := make([]BacklogEntry, 0, len(spans))
	for i, s := range spans {
		end := len(source)
		if i+1 < len(spans) {
			end = spans[i+1].lineStart
		}

		line := source[s.lineStart:]
		if nl := bytes.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		title := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(string(line)), "#"))
		if title == "" {
			return nil, errors.New("markdown backlog task title cannot be empty")
		}

		body := ""
		if s.bodyStart < end {
			body = strings.TrimSpace(string(source[s.bodyStart:end]))
		}
		entries = append(entries, BacklogEntry{Title: title, Body: body})
	}
	return entries, nil
}
