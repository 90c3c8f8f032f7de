package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"tcode/model"
	"tcode/retrieval"
)

const defaultSystemPrompt = `You are a coding assistant working in the user's project directory.
Use the available tools to inspect and change files. Read a file before you modify it.
When you are done, answer with a short summary of what you did.`

// assembleContext returns the messages for the next backend call: a
// leading system message followed by the recent history in chronological
// order. Snippets are retrieved on every call, using query when it is a
// new user message and the latest user message in history otherwise. The
// project description is included only with a new user message.
func (e *Engine) assembleContext(ctx context.Context, convID, query string) ([]model.Message, error) {
	recent, err := e.store.GetMessages(ctx, convID, e.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	history := chronological(recent)

	var project string
	if query != "" {
		project = describeProject(e.executor.Root)
	} else {
		query = lastUserMessage(history)
	}

	var snippets []retrieval.Snippet
	if query != "" {
		snippets = e.findSnippets(ctx, query)
	}

	system := model.Message{
		Role:    model.RoleSystem,
		Content: buildSystemPrompt(e.opts.SystemPrompt, project, snippets),
	}
	return append([]model.Message{system}, history...), nil
}

// chronological reverses a newest-first window and drops tool results at
// its start whose assistant message fell outside the window.
func chronological(newestFirst []model.Message) []model.Message {
	out := make([]model.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	for len(out) > 0 && out[0].Role == model.RoleTool {
		out = out[1:]
	}
	return out
}

func lastUserMessage(history []model.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// findSnippets asks the retriever for context. Failures only cost context.
func (e *Engine) findSnippets(ctx context.Context, query string) []retrieval.Snippet {
	if e.opts.RetrievalTopK == 0 {
		return nil
	}
	snippets, err := e.retriever.FindRelevant(ctx, query, e.opts.RetrievalTopK)
	if err != nil {
		e.logger.Warn("retrieval failed", zap.Error(err))
		return nil
	}
	return snippets
}

func buildSystemPrompt(base, project string, snippets []retrieval.Snippet) string {
	if strings.TrimSpace(base) == "" {
		base = defaultSystemPrompt
	}

	var sb strings.Builder
	sb.WriteString(base)

	if project != "" {
		sb.WriteString("\n\n")
		sb.WriteString(project)
	}

	if len(snippets) > 0 {
		sb.WriteString("\n\n<relevant_code>\n")
		for _, s := range snippets {
			fmt.Fprintf(&sb, "--- %s:%d-%d (score %.2f)\n", s.FilePath, s.StartLine, s.EndLine, s.Score)
			sb.WriteString(s.Content)
			if !strings.HasSuffix(s.Content, "\n") {
				sb.WriteString("\n")
			}
		}
		sb.WriteString("</relevant_code>")
	}

	return sb.String()
}

// projectMarkers maps a root file to the project type it indicates, in
// detection order.
var projectMarkers = []struct {
	file string
	kind string
}{
	{"go.mod", "Go module"},
	{"Cargo.toml", "Rust crate"},
	{"package.json", "Node.js package"},
	{"pyproject.toml", "Python project"},
	{"requirements.txt", "Python project"},
	{"pom.xml", "Java (Maven) project"},
	{"build.gradle", "Java (Gradle) project"},
	{"build.gradle.kts", "Kotlin (Gradle) project"},
	{"Gemfile", "Ruby project"},
	{"composer.json", "PHP project"},
	{"CMakeLists.txt", "C/C++ (CMake) project"},
	{"Makefile", "Make project"},
}

func detectProjectType(root string) string {
	for _, m := range projectMarkers {
		if _, err := os.Stat(filepath.Join(root, m.file)); err == nil {
			return m.kind
		}
	}
	return "unknown"
}

func isGitRepository(dir string) bool {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// describeProject renders the environment block sent with a new message.
func describeProject(root string) string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", root)
	fmt.Fprintf(&sb, "Project type: %s\n", detectProjectType(root))
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepository(root))
	fmt.Fprintf(&sb, "Platform: %s\n", runtime.GOOS)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	sb.WriteString("</environment>")
	return sb.String()
}
