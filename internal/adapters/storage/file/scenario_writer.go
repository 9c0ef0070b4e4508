package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"replay-proxy/internal/domain"
	"replay-proxy/internal/usecase"
)

// ScenarioWriter writes each finalized scenario to its own JSON file.
type ScenarioWriter struct {
	mu sync.Mutex
}

var _ usecase.ScenarioWriter = (*ScenarioWriter)(nil)

func NewScenarioWriter() *ScenarioWriter { return &ScenarioWriter{} }

// WriteScenario creates dir if needed and writes <slug>-<id>.json, returning the absolute path.
func (w *ScenarioWriter) WriteScenario(ctx context.Context, dir string, sc domain.Scenario) (string, error) {
	if dir == "" {
		return "", os.ErrInvalid
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("scenario writer: %w", err)
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("scenario writer: marshal: %w", err)
	}
	path := filepath.Join(dir, fileName(sc))
	// write then rename so readers never see a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("scenario writer: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("scenario writer: %w", err)
	}
	abs, _ := filepath.Abs(path)
	return abs, nil
}

func fileName(sc domain.Scenario) string {
	slug := slugify(sc.Title)
	if slug == "" {
		slug = "scenario"
	}
	id := sc.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return slug + ".json"
	}
	return slug + "-" + id + ".json"
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
