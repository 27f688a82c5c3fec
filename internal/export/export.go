// Package export serializes hosts with their ports and findings as JSON,
// CSV or XML.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// loadConcurrency bounds parallel host detail queries.
const loadConcurrency = 4

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXML:
		return f, nil
	default:
		return "", errors.NewScanError(errors.CodeValidation,
			"unsupported export format, expected json, csv or xml").WithContext("format", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXML:
		return "application/xml"
	default:
		return "application/json"
	}
}

// Source loads host details.
type Source interface {
	GetHostDetails(ctx context.Context, id string) (*db.HostDetails, error)
	HostIDs(ctx context.Context, f db.HostFilter) ([]string, error)
}

// Document is the JSON export payload.
type Document struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Hosts       []db.HostDetails `json:"hosts"`
}

// Exporter writes inventory exports.
type Exporter struct {
	source Source
	now    func() time.Time
}

// New creates an exporter reading from source.
func New(source Source) *Exporter {
	return &Exporter{source: source, now: func() time.Time { return time.Now().UTC() }}
}

// Export writes the hosts named by ids to w. An empty ids exports every host.
// Unknown ids fail the export before anything is written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, format Format, ids []string) error {
	hosts, err := e.Load(ctx, ids)
	if err != nil {
		return err
	}
	doc := Document{GeneratedAt: e.now(), Hosts: hosts}

	switch format {
	case FormatJSON:
		return writeJSON(w, doc)
	case FormatCSV:
		return writeCSV(w, doc)
	case FormatXML:
		return writeXML(w, doc)
	default:
		_, err := ParseFormat(string(format))
		return err
	}
}

// Load fetches host details for ids concurrently, preserving their order.
func (e *Exporter) Load(ctx context.Context, ids []string) ([]db.HostDetails, error) {
	if len(ids) == 0 {
		all, err := e.source.HostIDs(ctx, db.HostFilter{})
		if err != nil {
			return nil, err
		}
		ids = all
	}

	out := make([]db.HostDetails, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			d, err := e.source.GetHostDetails(gctx, id)
			if err != nil {
				return fmt.Errorf("load host %s: %w", id, err)
			}
			out[i] = *d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
