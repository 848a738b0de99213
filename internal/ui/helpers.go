package ui

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pdfchat/internal/models"
	"pdfchat/internal/styles"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

type suggestion struct {
	path  string
	isDir bool
}

// directories never searched for PDFs
var skipDirs = map[string]bool{"node_modules": true, "vendor": true, "__pycache__": true}

const maxWalkMatches = 20

// GetPDFSuggestions returns PDF files (and directories to descend into)
// matching prefix. A prefix containing "/" lists that directory; otherwise
// the tree under cwd is searched by filename.
func GetPDFSuggestions(cwd, prefix string) []string {
	var found []suggestion
	if strings.Contains(prefix, "/") || strings.HasPrefix(prefix, "~") {
		found = listDir(cwd, prefix)
	} else {
		found = searchTree(cwd, prefix)
	}
	return rankSuggestions(found)
}

// listDir completes the last element of prefix inside its directory.
func listDir(cwd, prefix string) []suggestion {
	dir, base := "", prefix
	switch {
	case prefix == "~":
		dir, base = "~/", ""
	case strings.Contains(prefix, "/"):
		cut := strings.LastIndex(prefix, "/") + 1
		dir, base = prefix[:cut], prefix[cut:]
	}

	root := cwd
	if dir != "" {
		root = resolvePath(cwd, dir)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	base = strings.ToLower(base)
	var out []suggestion
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, ".") && !strings.HasPrefix(base, "."):
		case !e.IsDir() && !isPDF(name):
		case strings.HasPrefix(strings.ToLower(name), base):
			out = append(out, suggestion{path: dir + name, isDir: e.IsDir()})
		}
	}
	return out
}

// searchTree walks cwd for PDFs whose name contains query.
func searchTree(cwd, query string) []suggestion {
	query = strings.ToLower(query)
	var out []suggestion
	_ = filepath.WalkDir(cwd, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return nil
		case d.IsDir():
			if path != cwd && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		case strings.HasPrefix(d.Name(), ".") || !isPDF(d.Name()):
			return nil
		}

		if strings.Contains(strings.ToLower(d.Name()), query) {
			rel, _ := filepath.Rel(cwd, path)
			out = append(out, suggestion{path: rel})
		}
		if len(out) >= maxWalkMatches {
			return filepath.SkipAll
		}
		return nil
	})
	return out
}

// rankSuggestions puts directories first, then shallower paths, then
// case-insensitive name order, and keeps at most MaxPathSuggestions.
func rankSuggestions(found []suggestion) []string {
	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.isDir != b.isDir {
			return a.isDir
		}
		if da, db := strings.Count(a.path, "/"), strings.Count(b.path, "/"); da != db {
			return da < db
		}
		return strings.ToLower(a.path) < strings.ToLower(b.path)
	})

	out := make([]string, 0, min(len(found), MaxPathSuggestions))
	for _, s := range found[:min(len(found), MaxPathSuggestions)] {
		out = append(out, s.path)
	}
	return out
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func resolvePath(cwd, path string) string {
	path = ExpandHome(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cwd, path)
}

// WrappedLineCount is the number of terminal rows value takes at width.
func WrappedLineCount(value string, width int) int {
	if width <= 0 {
		return 1
	}
	rows := 0
	for _, line := range strings.Split(value, "\n") {
		rows += max(1, (runewidth.StringWidth(line)+width-1)/width)
	}
	return rows
}

const previewRunes = 500

// PromptPreview collapses whitespace so s fits on one line.
func PromptPreview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > previewRunes {
		return string(r[:previewRunes])
	}
	return s
}

// TruncateRunes shortens s to max terminal cells, ending in an ellipsis.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	return runewidth.Truncate(s, max, "…")
}

var relTimeMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 min %s", DivBy: time.Minute},
	{D: time.Hour, Format: "%d mins %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hr %s", DivBy: time.Hour},
	{D: humanize.Day, Format: "%d hrs %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day %s", DivBy: humanize.Day},
	{D: 2 * humanize.Week, Format: "%d days %s", DivBy: humanize.Day},
	{D: 3 * humanize.Week, Format: "1 week %s", DivBy: humanize.Week},
	{D: math.MaxInt64, Format: "%d weeks %s", DivBy: humanize.Week},
}

// RelativeTime renders t like "5 mins ago"; the zero time renders as "".
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.CustomRelTime(t, time.Now(), "ago", "from now", relTimeMagnitudes)
}

// LastQuestion returns the most recent user message of a chat on one line.
func LastQuestion(c models.Chat) string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == models.RoleUser {
			return PromptPreview(c.Messages[i].Content)
		}
	}
	return ""
}

// SourcesLine lists an answer's citations, naming the document when the chat
// knows it: "Sources: report.pdf #1, report.pdf #4".
func SourcesLine(sources []models.Source, docs []models.Document) string {
	if len(sources) == 0 {
		return ""
	}
	names := make(map[models.ID]string, len(docs))
	for _, d := range docs {
		if d.ID != "" {
			names[d.ID] = d.Filename
		}
	}
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		name, ok := names[s.DocumentID]
		if !ok {
			name = "Doc " + s.DocumentID.String()
		}
		parts = append(parts, fmt.Sprintf("%s #%d", name, s.ChunkIndex+1))
	}
	return "Sources: " + strings.Join(parts, ", ")
}

// DescribeError turns a store error into a one-line notice.
func DescribeError(action string, err error) string {
	var re *models.RemoteError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrBusy):
		return "Still waiting for the previous answer in this chat"
	case errors.Is(err, models.ErrNotFound):
		return action + ": the chat no longer exists"
	case errors.Is(err, models.ErrInvalidArgument):
		return action + ": " + strings.TrimPrefix(err.Error(), models.ErrInvalidArgument.Error()+": ")
	case models.IsUnavailable(err):
		return action + ": the backend is unreachable"
	case errors.As(err, &re) && re.Detail != "":
		return action + ": " + re.Detail
	default:
		return fmt.Sprintf("%s: %v", action, err)
	}
}

func FormatUserMessage(content string, width int, isFirst bool) string {
	label := styles.QuestionLabelStyle.Render("YOU")
	msg := styles.QuestionStyle.Width(width - 4).Render(content)
	if isFirst {
		return fmt.Sprintf("\n%s\n%s", label, msg)
	}
	return fmt.Sprintf("%s\n%s", label, msg)
}

func FormatAIMessage(content, sources string) string {
	label := styles.AnswerLabelStyle.Render("ASSISTANT")
	msg := styles.AnswerStyle.Render(content)
	if sources == "" {
		return fmt.Sprintf("%s\n%s", label, msg)
	}
	return fmt.Sprintf("%s\n%s\n%s", label, msg, styles.SourcesStyle.Render(sources))
}

func FormatSystemMessage(content string) string {
	return styles.SystemMsgStyle.Render(content)
}
