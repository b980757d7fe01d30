package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/linkenthegreat/docex/internal/domain"
)

// FSResolver resolves a job's input reference to document text by searching a
// fixed list of directories, first match wins. The input is treated as a bare
// file name; anything that looks like a path is rejected.
type FSResolver struct {
	dirs []string
}

func NewFSResolver(dirs []string) *FSResolver {
	cleaned := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return &FSResolver{dirs: cleaned}
}

func (r *FSResolver) Resolve(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("resolver: empty input reference")
	}
	if strings.ContainsAny(input, "/\\") || strings.Contains(input, "..") {
		return "", fmt.Errorf("resolver: invalid input reference %q", input)
	}
	for _, dir := range r.dirs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path := filepath.Join(dir, input)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("resolver: read %s: %w", path, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("resolver: source for %q not found in any document directory", input)
}

var _ domain.InputResolver = (*FSResolver)(nil)
