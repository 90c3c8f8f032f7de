// Package tools is the fixed registry of local operations a model may
// request: reading, writing, listing and deleting files.
package tools

import (
	"errors"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"tcode/model"
)

// Tool names as declared to the model.
const (
	NameReadFile   = "read_file"
	NameWriteFile  = "write_file"
	NameListDir    = "list_dir"
	NameDeleteFile = "delete_file"
)

var (
	// ErrUnknownTool is returned by Parse for a name outside the registry.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned by Parse when required arguments are missing
	// or have the wrong type.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Call is one decoded tool invocation. The set of implementations is closed:
// ReadFile, WriteFile, ListDir and DeleteFile.
type Call interface {
	// Name is the registry name of the tool.
	Name() string
	// Target is the path the call operates on, as given by the model.
	Target() string
	isCall()
}

// ReadFile returns the content of a file.
type ReadFile struct {
	Path string
}

// WriteFile replaces (or creates) a file with Content.
type WriteFile struct {
	Path    string
	Content string
}

// ListDir lists the entries of a directory.
type ListDir struct {
	Path string
}

// DeleteFile removes a file.
type DeleteFile struct {
	Path string
}

func (ReadFile) Name() string   { return NameReadFile }
func (WriteFile) Name() string  { return NameWriteFile }
func (ListDir) Name() string    { return NameListDir }
func (DeleteFile) Name() string { return NameDeleteFile }

func (c ReadFile) Target() string   { return c.Path }
func (c WriteFile) Target() string  { return c.Path }
func (c ListDir) Target() string    { return c.Path }
func (c DeleteFile) Target() string { return c.Path }

func (ReadFile) isCall()   {}
func (WriteFile) isCall()  {}
func (ListDir) isCall()    {}
func (DeleteFile) isCall() {}

// Parse decodes a model tool call into its typed form.
func Parse(tc model.ToolCall) (Call, error) {
	switch tc.Name {
	case NameReadFile:
		path, err := requiredString(tc.Arguments, "path")
		if err != nil {
			return nil, err
		}
		return ReadFile{Path: path}, nil

	case NameWriteFile:
		path, err := requiredString(tc.Arguments, "path")
		if err != nil {
			return nil, err
		}
		content, ok := tc.Arguments["content"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: write_file requires string argument \"content\"", ErrInvalidArguments)
		}
		return WriteFile{Path: path, Content: content}, nil

	case NameListDir:
		path, _ := tc.Arguments["path"].(string)
		if strings.TrimSpace(path) == "" {
			path = "."
		}
		return ListDir{Path: path}, nil

	case NameDeleteFile:
		path, err := requiredString(tc.Arguments, "path")
		if err != nil {
			return nil, err
		}
		return DeleteFile{Path: path}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tc.Name)
}

func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: missing string argument %q", ErrInvalidArguments, key)
	}
	return v, nil
}

// IsMutation reports whether call changes the file system.
func IsMutation(call Call) bool {
	switch call.(type) {
	case WriteFile, DeleteFile:
		return true
	}
	return false
}

// IsMutationName is IsMutation for a raw tool name.
func IsMutationName(name string) bool {
	return name == NameWriteFile || name == NameDeleteFile
}

// Schemas returns the declared schema of every registered tool.
func Schemas() []mcptypes.Tool {
	return []mcptypes.Tool{
		mcptypes.NewTool(NameReadFile,
			mcptypes.WithDescription("Read the contents of a file in the project."),
			mcptypes.WithString("path",
				mcptypes.Required(),
				mcptypes.Description("Path of the file, relative to the working directory"),
			),
		),
		mcptypes.NewTool(NameWriteFile,
			mcptypes.WithDescription("Create or overwrite a file with the given content."),
			mcptypes.WithString("path",
				mcptypes.Required(),
				mcptypes.Description("Path of the file, relative to the working directory"),
			),
			mcptypes.WithString("content",
				mcptypes.Required(),
				mcptypes.Description("Complete new content of the file"),
			),
		),
		mcptypes.NewTool(NameListDir,
			mcptypes.WithDescription("List the entries of a directory."),
			mcptypes.WithString("path",
				mcptypes.Description("Directory to list"),
				mcptypes.DefaultString("."),
			),
		),
		mcptypes.NewTool(NameDeleteFile,
			mcptypes.WithDescription("Delete a file."),
			mcptypes.WithString("path",
				mcptypes.Required(),
				mcptypes.Description("Path of the file to delete"),
			),
		),
	}
}
