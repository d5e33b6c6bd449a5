package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/literal"
	"github.com/ZanzyTHEbar/agent-actions/actcore/fscache"
)

const (
	ListFilesName = "list_files"
	FileInfoName  = "file_info"

	defaultListLimit = 100
)

// FileMetadata is what file_info reports back.
type FileMetadata struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Type        string `json:"type"` // "file" or "directory"
	Size        int64  `json:"size"`
	Permissions string `json:"permissions"`
	ModifiedAt  string `json:"modified_at"`
	IsHidden    bool   `json:"is_hidden"`
	Extension   string `json:"extension,omitempty"`
}

// FileTools serves the file tools from a shared fscache rooted at root.
type FileTools struct {
	cache *fscache.Cache
	root  string
}

func NewFileTools(cache *fscache.Cache, root string) *FileTools {
	return &FileTools{cache: cache, root: root}
}

func ListFilesSpec() executor.ToolSpec {
	limit := literal.IntValue(defaultListLimit)
	return executor.ToolSpec{
		Name:    ListFilesName,
		Summary: "List files under a directory of the workspace. Directories end with '/'.",
		Parameters: []executor.ParameterSpec{
			{Name: "path", Type: executor.TypeString, Required: true, Description: "directory or path prefix relative to the workspace root"},
			{Name: "limit", Type: executor.TypeInteger, Default: &limit, Description: "maximum number of entries"},
		},
	}
}

func FileInfoSpec() executor.ToolSpec {
	return executor.ToolSpec{
		Name:    FileInfoName,
		Summary: "Report size, type and modification time of one workspace path.",
		Parameters: []executor.ParameterSpec{
			{Name: "path", Type: executor.TypeString, Required: true, Description: "path relative to the workspace root"},
		},
	}
}

func (t *FileTools) ListFiles(_ context.Context, args executor.Args) (any, error) {
	limit := int(args.Int("limit"))
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	paths, err := t.cache.Find(t.root, args.String("path"), limit)
	if err != nil {
		return nil, err
	}
	if paths == nil {
		paths = []string{}
	}
	return paths, nil
}

func (t *FileTools) FileInfo(ctx context.Context, args executor.Args) (any, error) {
	info, err := t.cache.Stat(ctx, t.root, args.String("path"))
	if err != nil {
		return nil, err
	}

	name := filepath.Base(info.Path)
	meta := FileMetadata{
		Path:        info.Path,
		Name:        name,
		Type:        "file",
		Size:        info.Size,
		Permissions: info.Mode.Perm().String(),
		ModifiedAt:  info.ModTime.UTC().Format("2006-01-02T15:04:05Z"),
		IsHidden:    strings.HasPrefix(name, "."),
	}
	if info.IsDir {
		meta.Type = "directory"
	} else {
		meta.Extension = strings.TrimPrefix(filepath.Ext(name), ".")
	}
	return meta, nil
}
