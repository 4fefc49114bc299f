package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileEmitter writes serialized proposals as newline-delimited JSON. Used
// for offline runs and as the counterpart of the file source.
type FileEmitter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileEmitter creates or truncates the output file.
func NewFileEmitter(path string) (*FileEmitter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &FileEmitter{file: f, enc: json.NewEncoder(f)}, nil
}

// Emit appends one serialized proposal.
func (e *FileEmitter) Emit(_ context.Context, wire *WireProposal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(wire); err != nil {
		return fmt.Errorf("write proposal: %w", err)
	}
	return nil
}

// Close flushes and closes the output file.
func (e *FileEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file.Close()
}
