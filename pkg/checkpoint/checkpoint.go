package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/models"
)

// Version is the checkpoint file format version
const Version = 1

// Checkpoint is the resumable state of one profile crawl
type Checkpoint struct {
	Target string `json:"target"`
	// Pages counts the pages merged into Partial
	Pages int `json:"pages"`
	// LastCursor is the last cursor whose page was merged
	LastCursor string                  `json:"last_cursor"`
	Partial    *models.AggregateResult `json:"partial"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
	Version    int                     `json:"version"`
}

// NextCursor is the cursor a resumed crawl starts from
func (c *Checkpoint) NextCursor() string {
	return c.Partial.Cursor()
}

// ResumePoint is the crawler's view of the checkpoint
func (c *Checkpoint) ResumePoint() crawler.ResumePoint {
	return crawler.ResumePoint{Partial: c.Partial, Pages: c.Pages, LastCursor: c.LastCursor}
}

// Manager handles checkpoint files in one directory
type Manager struct {
	dir    string
	logger logger.Logger
	now    func() time.Time
}

// NewManager creates a checkpoint manager rooted at dir. An empty dir selects
// the platform data directory.
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Manager{dir: dir, logger: log, now: time.Now}, nil
}

// Path returns the checkpoint file of target
func (m *Manager) Path(target string) string {
	return filepath.Join(m.dir, fileName(target)+".checkpoint.json")
}

// Load loads the checkpoint of target. It returns nil, nil when none exists.
func (m *Manager) Load(target string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.Path(target))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > Version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, Version)
	}
	if cp.Partial == nil {
		return nil, fmt.Errorf("checkpoint for %s has no partial result", target)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"target":      cp.Target,
		"pages":       cp.Pages,
		"posts":       len(cp.Partial.Posts),
		"next_cursor": cp.NextCursor(),
		"updated_at":  cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes cp atomically
func (m *Manager) Save(cp *Checkpoint) error {
	now := m.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	cp.Version = Version

	path := m.Path(cp.Target)
	tmp, err := os.CreateTemp(m.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	tempPath := tmp.Name()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"target":      cp.Target,
		"pages":       cp.Pages,
		"next_cursor": cp.NextCursor(),
	})
	return nil
}

// Delete removes the checkpoint of target
func (m *Manager) Delete(target string) error {
	if err := os.Remove(m.Path(target)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.WithField("target", target).Debug("Checkpoint deleted")
	return nil
}

// Exists checks if target has a checkpoint
func (m *Manager) Exists(target string) bool {
	_, err := os.Stat(m.Path(target))
	return err == nil
}

// Track returns a page hook that saves a checkpoint after every page that
// leaves the crawl Continuing. Save failures are logged, not returned.
func (m *Manager) Track() func(crawler.PageEvent) {
	return func(ev crawler.PageEvent) {
		if ev.State == crawler.Done {
			return
		}
		err := m.Save(&Checkpoint{
			Target:     ev.Target,
			Pages:      ev.Page,
			LastCursor: ev.Cursor,
			Partial:    ev.Aggregate.Clone(),
		})
		if err != nil {
			m.logger.WithError(err).WithField("target", ev.Target).Warn("Failed to save checkpoint")
		}
	}
}

// FromJobError builds a checkpoint from a failed profile crawl. It returns
// nil when the failure left nothing to resume.
func FromJobError(je *crawler.JobError) *Checkpoint {
	if je == nil || je.Partial == nil || !je.Partial.HasNextPage || je.Target == "" {
		return nil
	}
	return &Checkpoint{
		Target:     je.Target,
		Pages:      je.Page - 1,
		LastCursor: je.LastCursor,
		Partial:    je.Partial.Clone(),
	}
}

func fileName(target string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, target)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "igcrawler")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igcrawler")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igcrawler")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igcrawler")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return dataDir, nil
}
