package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const maxReadBytes = 1 << 20 // 1MB per file

// NewFileRegistry builds the local backend with the filesystem tool set,
// rooted at workspaceDir. Paths in tool arguments are resolved relative to
// the root and may not escape it.
func NewFileRegistry(workspaceDir string) (*Registry, error) {
	root, err := filepath.Abs(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace dir: %w", err)
	}

	r := NewRegistry("files")
	for _, t := range []Tool{
		SearchFilesTool(root),
		ReadFileTool(root),
		ReadFilesTool(root),
		WriteFileTool(root),
		WriteFilesTool(root),
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// resolvePath joins rel onto root and rejects escapes
func resolvePath(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	p := filepath.Join(root, filepath.Clean("/"+rel))
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	return p, nil
}

func readOne(root, rel string) (string, error) {
	p, err := resolvePath(root, rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", rel, err)
	}
	if info.Size() > maxReadBytes {
		return "", fmt.Errorf("file %q is too large (%d bytes)", rel, info.Size())
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", rel, err)
	}
	return string(data), nil
}

func writeOne(root, rel, content string) error {
	p, err := resolvePath(root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create parent dirs for %q: %w", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", rel, err)
	}
	return nil
}

// SearchFilesTool searches the workspace for files matching a glob pattern
func SearchFilesTool(root string) Tool {
	return Tool{
		Name:        "search_files",
		Description: "Searches the filesystem for matching files. Accepts a glob pattern and returns relative paths of files whose names match.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob pattern matched against file names, e.g. *.go",
				},
			},
			"required": []string{"pattern"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			pattern, _ := input["pattern"].(string)
			if pattern == "" {
				return "", fmt.Errorf("pattern is required")
			}

			var matches []string
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if d.IsDir() {
					return nil
				}
				ok, matchErr := filepath.Match(pattern, d.Name())
				if matchErr != nil {
					return matchErr
				}
				if ok {
					rel, _ := filepath.Rel(root, path)
					matches = append(matches, rel)
				}
				return nil
			})
			if err != nil {
				return "", fmt.Errorf("search files: %w", err)
			}
			if len(matches) == 0 {
				return "no files match " + pattern, nil
			}
			return strings.Join(matches, "\n"), nil
		},
	}
}

// ReadFileTool reads a single file from the workspace
func ReadFileTool(root string) Tool {
	return Tool{
		Name:        "read_file",
		Description: "Reads a file from the filesystem. Returns the full file content as text.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to read, relative to the workspace",
				},
			},
			"required": []string{"path"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			rel, _ := input["path"].(string)
			return readOne(root, rel)
		},
	}
}

// ReadFilesTool reads several files at once
func ReadFilesTool(root string) Tool {
	return Tool{
		Name:        "read_files",
		Description: "Reads multiple files from the filesystem. Returns each file's content labeled with its path.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Paths of the files to read, relative to the workspace",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			"required": []string{"paths"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			raw, _ := input["paths"].([]interface{})
			if len(raw) == 0 {
				return "", fmt.Errorf("paths is required")
			}

			var sb strings.Builder
			for _, v := range raw {
				rel, _ := v.(string)
				content, err := readOne(root, rel)
				if err != nil {
					return "", err
				}
				fmt.Fprintf(&sb, "=== %s ===\n%s\n", rel, content)
			}
			return sb.String(), nil
		},
	}
}

// WriteFileTool writes a single file into the workspace
func WriteFileTool(root string) Tool {
	return Tool{
		Name:        "write_file",
		Description: "Writes a file to the filesystem, creating parent directories as needed. Overwrites existing content.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to write, relative to the workspace",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Content to write",
				},
			},
			"required": []string{"path", "content"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			rel, _ := input["path"].(string)
			content, _ := input["content"].(string)
			if err := writeOne(root, rel, content); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), rel), nil
		},
	}
}

// WriteFilesTool writes several files in one call
func WriteFilesTool(root string) Tool {
	return Tool{
		Name:        "write_files",
		Description: "Writes multiple files to the filesystem in one call. Each entry has a path and the content to write.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"files": map[string]interface{}{
					"type":        "array",
					"description": "Files to write",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"path":    map[string]interface{}{"type": "string"},
							"content": map[string]interface{}{"type": "string"},
						},
						"required": []string{"path", "content"},
					},
				},
			},
			"required": []string{"files"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			raw, _ := input["files"].([]interface{})
			if len(raw) == 0 {
				return "", fmt.Errorf("files is required")
			}

			written := make([]string, 0, len(raw))
			for _, v := range raw {
				entry, ok := v.(map[string]interface{})
				if !ok {
					return "", fmt.Errorf("each file entry must be an object with path and content")
				}
				rel, _ := entry["path"].(string)
				content, _ := entry["content"].(string)
				if err := writeOne(root, rel, content); err != nil {
					return "", err
				}
				written = append(written, rel)
			}
			b, _ := json.Marshal(map[string]interface{}{"written": written})
			return string(b), nil
		},
	}
}
