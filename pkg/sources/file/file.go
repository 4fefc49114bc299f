// Package file reads serialized change proposals from a newline-delimited
// JSON file, one proposal per line. Together with the file sink it forms the
// offline interchange format: a run's output can be replayed into another
// catalog verbatim.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
	"github.com/lodestar-data/lodestar/pkg/ingestion"
)

// maxLineBytes bounds a single serialized proposal. Aspect payloads are
// small; anything past this is a corrupt file, not a big aspect.
const maxLineBytes = 16 * 1024 * 1024

// Source streams raw work units out of a proposal file.
type Source struct {
	path   string
	logger *zap.Logger
}

// NewSource creates a file source for the given path.
func NewSource(path string, logger *zap.Logger) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file source requires a path")
	}
	return &Source{path: path, logger: logger}, nil
}

// Name identifies the source in job names and reports.
func (s *Source) Name() string { return "file" }

// WorkUnits reads the file line by line, registering each proposal's entity
// urn with the observer and handing the proposal downstream as a raw work
// unit. Lines are forwarded in file order.
func (s *Source) WorkUnits(ctx context.Context, observer ingestion.URNObserver, emit func(*ingestion.WorkUnit) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open proposal file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		wire := &emitter.WireProposal{}
		if err := json.Unmarshal(raw, wire); err != nil {
			return fmt.Errorf("%s:%d: decode proposal: %w", s.path, line, err)
		}
		if wire.EntityURN != "" {
			urn, err := domain.ParseURN(wire.EntityURN)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", s.path, line, err)
			}
			observer.Observe(urn)
		}

		unit, err := ingestion.NewRawWorkUnit(fmt.Sprintf("file-%s-%d", s.path, line), wire)
		if err != nil {
			return err
		}
		if err := emit(unit); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read proposal file: %w", err)
	}

	s.logger.Info("proposal file consumed",
		zap.String("path", s.path), zap.Int("lines", line))
	return nil
}
