package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolve maps a model-supplied filename into root, rejecting anything that
// escapes it.
func resolve(root, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("file_path is required")
	}
	target := filepath.Join(root, name)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return target, nil
}

type ReadFileTool struct {
	Root string
}

func NewReadFileTool(root string) *ReadFileTool {
	absRoot, _ := filepath.Abs(root)
	return &ReadFileTool{Root: absRoot}
}

func (f *ReadFileTool) Name() string {
	return "read_file"
}

func (f *ReadFileTool) Description() string {
	return "Read a file from the working directory and return its full content."
}

func (f *ReadFileTool) Parameters() map[string]any {
	return objectSchema([]string{"file_path"},
		str("file_path", "Path of the file to read, relative to the working directory"),
	)
}

func (f *ReadFileTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		FilePath string `json:"file_path"`
	}
	if err := decodeArgs(f.Name(), input, &args); err != nil {
		return "", err
	}

	target, err := resolve(f.Root, args.FilePath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// WriteFileTool writes files inside Root only.
type WriteFileTool struct {
	Root string
}

func NewWriteFileTool(root string) *WriteFileTool {
	absRoot, _ := filepath.Abs(root)
	return &WriteFileTool{Root: absRoot}
}

func (f *WriteFileTool) Name() string {
	return "write_file"
}

func (f *WriteFileTool) Description() string {
	return "Write text to a file in the working directory, replacing it unless append is true."
}

func (f *WriteFileTool) Parameters() map[string]any {
	return objectSchema([]string{"file_path", "text"},
		str("file_path", "Path of the file to write, relative to the working directory"),
		str("text", "The content to write"),
		boolean("append", "Append instead of overwriting"),
	)
}

func (f *WriteFileTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		FilePath string `json:"file_path"`
		Text     string `json:"text"`
		Append   bool   `json:"append"`
	}
	if err := decodeArgs(f.Name(), input, &args); err != nil {
		return "", err
	}

	target, err := resolve(f.Root, args.FilePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if args.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	fh, err := os.OpenFile(target, flags, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	defer fh.Close()

	if _, err := fh.WriteString(args.Text); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("File written successfully to %s.", args.FilePath), nil
}
