package transform

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Progress records which pipeline steps finished so that a resumed run can
// skip them. Markers are opaque strings such as "load:staging_events" or
// "transform:users".
type Progress interface {
	Completed(marker string) (bool, error)
	Mark(marker string) error
	// Markers returns the completed markers in sorted order.
	Markers() ([]string, error)
	Reset() error
}

func LoadMarker(table string) string {
	return "load:" + table
}

func TransformMarker(table string) string {
	return "transform:" + table
}

// MemoryProgress keeps markers for the lifetime of the process.
type MemoryProgress struct {
	mu      sync.Mutex
	markers map[string]bool
}

func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{markers: make(map[string]bool)}
}

func (p *MemoryProgress) Completed(marker string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markers[marker], nil
}

func (p *MemoryProgress) Mark(marker string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markers[marker] = true
	return nil
}

func (p *MemoryProgress) Markers() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	markers := make([]string, 0, len(p.markers))
	for m := range p.markers {
		markers = append(markers, m)
	}
	sort.Strings(markers)
	return markers, nil
}

func (p *MemoryProgress) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markers = make(map[string]bool)
	return nil
}

type progressState struct {
	Updated   time.Time         `yaml:"updated"`
	Completed map[string]string `yaml:"completed"`
}

// FileProgress persists markers to a YAML file, rewriting it after every
// Mark. A missing file means nothing has completed yet.
type FileProgress struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileProgress(path string) *FileProgress {
	return &FileProgress{path: path, now: time.Now}
}

func (p *FileProgress) read() (progressState, error) {
	state := progressState{Completed: map[string]string{}}
	b, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("unable to read progress file %s: %w", p.path, err)
	}
	if err := yaml.Unmarshal(b, &state); err != nil {
		return state, fmt.Errorf("unable to parse progress file %s: %w", p.path, err)
	}
	if state.Completed == nil {
		state.Completed = map[string]string{}
	}
	return state, nil
}

func (p *FileProgress) write(state progressState) error {
	b, err := yaml.Marshal(state)
	if err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("unable to write progress file %s: %w", tmp, err)
	}
	return os.Rename(tmp, p.path)
}

func (p *FileProgress) Completed(marker string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, err := p.read()
	if err != nil {
		return false, err
	}
	_, ok := state.Completed[marker]
	return ok, nil
}

func (p *FileProgress) Mark(marker string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, err := p.read()
	if err != nil {
		return err
	}
	now := p.now().UTC()
	state.Completed[marker] = now.Format(time.RFC3339)
	state.Updated = now
	return p.write(state)
}

// Markers returns the completed markers in sorted order.
func (p *FileProgress) Markers() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, err := p.read()
	if err != nil {
		return nil, err
	}
	markers := make([]string, 0, len(state.Completed))
	for m := range state.Completed {
		markers = append(markers, m)
	}
	sort.Strings(markers)
	return markers, nil
}

func (p *FileProgress) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := os.Remove(p.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to remove progress file %s: %w", p.path, err)
	}
	return nil
}
