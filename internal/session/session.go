package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/vo2scope/internal/explore"
	"github.com/KaramelBytes/vo2scope/internal/utils"
	"github.com/google/uuid"
)

const sessionFileName = "session.json"

// Session is a saved exploration: which files were loaded and the filter,
// bin count and brush that were active.
type Session struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	MetadataPath     string               `json:"metadata_path"`
	MeasurementsPath string               `json:"measurements_path"`
	Filter           *explore.FilterState `json:"filter,omitempty"`
	Bins             int                  `json:"bins,omitempty"`
	Brush            *explore.Range       `json:"brush,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`

	// Not serialized: on-disk location of session.json
	rootDir string
}

// New constructs an in-memory session under root/<slug(name)>. Call Save to
// persist. A nil Filter means "start from the data extents".
func New(name, metadataPath, measurementsPath, root string) *Session {
	now := time.Now()
	return &Session{
		ID:               uuid.NewString(),
		Name:             name,
		MetadataPath:     metadataPath,
		MeasurementsPath: measurementsPath,
		CreatedAt:        now,
		UpdatedAt:        now,
		rootDir:          filepath.Join(root, Slug(name)),
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a session name into a directory name.
func Slug(name string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "session"
	}
	return s
}

// Load reads session.json from dir.
func Load(dir string) (*Session, error) {
	path := filepath.Join(dir, sessionFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	s.rootDir = dir
	return &s, nil
}

// LoadByName resolves a session under root by name or slug.
func LoadByName(root, name string) (*Session, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("session name is required")
	}
	return Load(filepath.Join(root, Slug(name)))
}

// Exists reports whether a session file is present in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, sessionFileName))
	return err == nil
}

// RootDir returns the on-disk session directory.
func (s *Session) RootDir() string { return s.rootDir }

// Save writes session.json using atomic write.
func (s *Session) Save() error {
	if s.rootDir == "" {
		return errors.New("session directory not set")
	}
	if err := utils.EnsureDir(s.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	s.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.rootDir, sessionFileName), data)
}

// Capture records the current state of e.
func (s *Session) Capture(e *explore.Explorer) {
	f := e.Filter()
	s.Filter = &f
	s.Bins = e.Bins()
	s.Brush = nil
	if r, ok := e.Brush(); ok {
		s.Brush = &r
	}
}

// Apply restores the stored state onto e. Missing fields leave e unchanged.
func (s *Session) Apply(e *explore.Explorer) error {
	if s.Bins > 0 {
		if _, err := e.SetBins(s.Bins); err != nil {
			return err
		}
	}
	if s.Filter != nil {
		e.SetFilter(*s.Filter)
	}
	if s.Brush != nil {
		e.SelectRange(*s.Brush)
	}
	return nil
}

// List returns the sessions stored under root, sorted by name. Directories
// without a readable session.json are skipped.
func List(root string) ([]*Session, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}
	var out []*Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := Load(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
