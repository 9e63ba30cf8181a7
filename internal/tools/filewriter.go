package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// PitchFileWriter writes the final pitch document to a local directory,
// one file per run.
type PitchFileWriter struct {
	Dir string
}

// Write stores content under the configured directory and returns the
// written path.
func (p *PitchFileWriter) Write(sessionID, content string) (string, error) {
	if p.Dir == "" {
		return "", fmt.Errorf("pitch directory not configured")
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create pitch dir: %w", err)
	}
	// uuid fragment keeps same-second runs from colliding
	name := fmt.Sprintf("pitch-%s-%s-%s.md", sessionID, time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(p.Dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write pitch: %w", err)
	}
	return path, nil
}
