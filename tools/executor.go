package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxReadBytes caps how much of a file read_file returns.
const MaxReadBytes = 256 * 1024

// ChangeKind classifies a pending mutation for display.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeModify ChangeKind = "modify"
	ChangeDelete ChangeKind = "delete"
)

// Change describes the effect a mutating call would have on one file.
type Change struct {
	Path string
	Kind ChangeKind
	// Size is the length of the new content for creates and modifies.
	Size int
}

func (c Change) String() string {
	if c.Kind == ChangeDelete {
		return fmt.Sprintf("%s %s", c.Kind, c.Path)
	}
	return fmt.Sprintf("%s %s (%s)", c.Kind, c.Path, humanize.Bytes(uint64(c.Size)))
}

// Executor performs tool calls against the local file system. Relative
// paths are resolved against Root.
type Executor struct {
	Root string
}

// NewExecutor returns an executor rooted at dir, or at the process working
// directory if dir is empty.
func NewExecutor(dir string) (*Executor, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Executor{Root: abs}, nil
}

// Resolve returns the absolute path a tool argument refers to.
func (e *Executor) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.Root, path)
}

// Classify reports what a mutating call would do to its target.
func (e *Executor) Classify(call Call) Change {
	change := Change{Path: call.Target()}
	switch c := call.(type) {
	case DeleteFile:
		change.Kind = ChangeDelete
	case WriteFile:
		change.Size = len(c.Content)
		if _, err := os.Stat(e.Resolve(c.Path)); err == nil {
			change.Kind = ChangeModify
		} else {
			change.Kind = ChangeCreate
		}
	}
	return change
}

// Execute runs call and returns the text handed back to the model.
func (e *Executor) Execute(call Call) (string, error) {
	switch c := call.(type) {
	case ReadFile:
		return e.readFile(c.Path)
	case WriteFile:
		return e.writeFile(c.Path, c.Content)
	case ListDir:
		return e.listDir(c.Path)
	case DeleteFile:
		return e.deleteFile(c.Path)
	}
	return "", fmt.Errorf("%w: %T", ErrUnknownTool, call)
}

func (e *Executor) readFile(path string) (string, error) {
	resolved := e.Resolve(path)
	f, err := os.Open(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("read_file: %s is a directory", path)
	}

	buf := make([]byte, MaxReadBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 && info.Size() > 0 {
		return "", fmt.Errorf("read_file: %w", err)
	}

	content := string(buf[:n])
	if info.Size() > int64(n) {
		content += fmt.Sprintf("\n[truncated: showing %s of %s]",
			humanize.Bytes(uint64(n)), humanize.Bytes(uint64(info.Size())))
	}
	return content, nil
}

func (e *Executor) writeFile(path, content string) (string, error) {
	resolved := e.Resolve(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	return fmt.Sprintf("Wrote %s to %s", humanize.Bytes(uint64(len(content))), path), nil
}

func (e *Executor) listDir(path string) (string, error) {
	resolved := e.Resolve(path)
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("list_dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	if len(entries) == 0 {
		return "(empty directory)", nil
	}

	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&sb, "%s/\n", entry.Name())
			continue
		}
		size := ""
		if info, err := entry.Info(); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Fprintf(&sb, "%s  %s\n", entry.Name(), size)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (e *Executor) deleteFile(path string) (string, error) {
	resolved := e.Resolve(path)
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("delete_file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("delete_file: %s is a directory", path)
	}
	if err := os.Remove(resolved); err != nil {
		return "", fmt.Errorf("delete_file: %w", err)
	}
	return fmt.Sprintf("Deleted %s", path), nil
}
