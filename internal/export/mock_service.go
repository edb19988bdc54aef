package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kimhsiao/leadbook/internal/models"
)

// MockExporter is an Exporter for presentation layer tests. It records
// calls and writes nothing.
type MockExporter struct {
	mu            sync.Mutex
	shouldSucceed bool
	callCount     int
	lastFormat    Format
	lastPath      string
	lastLeads     []models.Lead
}

var _ Exporter = (*MockExporter)(nil)

// NewMockExporter creates a mock that succeeds until told otherwise.
func NewMockExporter() *MockExporter {
	return &MockExporter{shouldSucceed: true}
}

// Export records the call and returns a synthetic result.
func (m *MockExporter) Export(ctx context.Context, format Format, leads []models.Lead, path string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.lastFormat = format
	m.lastPath = path
	m.lastLeads = append([]models.Lead(nil), leads...)

	if !m.shouldSucceed {
		return nil, fmt.Errorf("mock export failed")
	}
	return &Result{
		Path:      path,
		Format:    format,
		Count:     len(leads),
		SizeBytes: 1024,
		Duration:  10 * time.Millisecond,
	}, nil
}

// ExportArchive records the call as an archive export.
func (m *MockExporter) ExportArchive(leads []models.Lead, path, password string) (*Result, error) {
	return m.Export(context.Background(), FormatArchive, leads, path)
}

// SetShouldSucceed controls whether the mock export will succeed.
func (m *MockExporter) SetShouldSucceed(shouldSucceed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldSucceed = shouldSucceed
}

// GetCallCount returns the number of times Export was called.
func (m *MockExporter) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// GetLastCall returns the format, path and leads of the last call.
func (m *MockExporter) GetLastCall() (Format, string, []models.Lead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFormat, m.lastPath, m.lastLeads
}
