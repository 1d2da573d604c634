package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yachaflex/pairing/internal/model/biometric"
)

// exportFile is the on-disk layout of a health-data export. JSON exports are
// accepted as well since YAML is a superset.
type exportFile struct {
	Status  string                          `yaml:"status"`
	Granted []biometric.Kind                `yaml:"granted"`
	Failing []biometric.Kind                `yaml:"failing"`
	Records map[biometric.Kind][]recordLine `yaml:"records"`
}

type recordLine struct {
	Time  string  `yaml:"time"`
	Ago   string  `yaml:"ago"`
	Value float64 `yaml:"value"`
}

// FileProvider serves biometric reads from an export file that is re-read on
// every call, so edits show up without restarting the forwarder.
type FileProvider struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	granted Grants
}

// NewFileProvider creates a provider backed by the export at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{
		path:    path,
		now:     time.Now,
		granted: make(Grants),
	}
}

// Status reports unavailable when the export is missing or unreadable.
func (p *FileProvider) Status(_ context.Context) ProviderStatus {
	export, err := p.load()
	if err != nil {
		return StatusUnavailable
	}
	switch strings.ToLower(strings.TrimSpace(export.Status)) {
	case "", "available":
		return StatusAvailable
	case "update_required":
		return StatusUpdateRequired
	default:
		return StatusUnavailable
	}
}

// GrantedPermissions merges grants listed in the export with grants given at runtime.
func (p *FileProvider) GrantedPermissions(_ context.Context) (Grants, error) {
	export, err := p.load()
	if err != nil {
		return nil, err
	}

	grants := NewGrants(export.Granted...)
	p.mu.Lock()
	for k, ok := range p.granted {
		if ok {
			grants[k] = true
		}
	}
	p.mu.Unlock()
	return grants, nil
}

// Grant records a runtime authorisation for the given kinds.
func (p *FileProvider) Grant(kinds ...biometric.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range kinds {
		p.granted[k] = true
	}
}

// ReadWindow returns the samples of kind whose time falls in [start, end).
func (p *FileProvider) ReadWindow(ctx context.Context, kind biometric.Kind, start, end time.Time) ([]biometric.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grants, err := p.GrantedPermissions(ctx)
	if err != nil {
		return nil, err
	}
	if !grants[kind] {
		return nil, fmt.Errorf("read %s: %w", kind, ErrPermissionDenied)
	}

	export, err := p.load()
	if err != nil {
		return nil, err
	}
	for _, f := range export.Failing {
		if f == kind {
			return nil, fmt.Errorf("read %s: %w", kind, ErrProvider)
		}
	}

	now := p.now()
	var samples []biometric.Sample
	for i, line := range export.Records[kind] {
		at, err := line.resolve(now)
		if err != nil {
			return nil, fmt.Errorf("read %s record %d: %v: %w", kind, i, err, ErrProvider)
		}
		if at.Before(start) || !at.Before(end) {
			continue
		}
		samples = append(samples, biometric.Sample{Time: at, Value: line.Value})
	}
	return samples, nil
}

func (p *FileProvider) load() (*exportFile, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", p.path, ErrUnavailable)
		}
		return nil, fmt.Errorf("read %s: %v: %w", p.path, err, ErrProvider)
	}

	var export exportFile
	if err := yaml.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", p.path, err, ErrProvider)
	}
	return &export, nil
}

func (r recordLine) resolve(now time.Time) (time.Time, error) {
	if r.Time != "" {
		return time.Parse(time.RFC3339, r.Time)
	}
	if r.Ago != "" {
		d, err := time.ParseDuration(r.Ago)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(-d), nil
	}
	return time.Time{}, errors.New("record needs time or ago")
}

var _ Reader = (*FileProvider)(nil)
