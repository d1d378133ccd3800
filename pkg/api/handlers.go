package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ssargent/niflheim/pkg/cgf"
	"github.com/ssargent/niflheim/pkg/graph"
	"github.com/ssargent/niflheim/pkg/kfm"
	"github.com/ssargent/niflheim/pkg/nif"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/stream"
	"github.com/ssargent/niflheim/pkg/toaster"
)

// maxUploadBytes bounds upload bodies. Game assets run tens of
// megabytes at the outside; anything past this is not an asset.
const maxUploadBytes = 256 << 20

// Server holds the API server state
type Server struct {
	formats []toaster.Format
	config  ServerConfig
	metrics *Metrics
	started time.Time

	// Service counters behind /stats. Prometheus keeps its own.
	filesInspected   atomic.Int64
	filesDumped      atomic.Int64
	bytesParsed      atomic.Int64
	warningsObserved atomic.Int64
	parseFailures    atomic.Int64
}

// NewServer creates a new API server. Nil or empty formats mean the
// built-in trio with default options.
func NewServer(formats []toaster.Format, config ServerConfig, metrics *Metrics) *Server {
	if len(formats) == 0 {
		formats = toaster.Formats()
	}
	return &Server{
		formats: formats,
		config:  config,
		metrics: metrics,
		started: time.Now(),
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RecordHealthCheck(true)
	}
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleInspect godoc
//
//	@Summary		Inspect a container envelope
//	@Description	Upload container bytes and get the envelope identity back without decoding record bodies
//	@Tags			containers
//	@Accept			octet-stream
//	@Produce		json
//	@Param			format	query		string	false	"Restrict sniffing to one format (nif, cgf, kfm)"
//	@Param			body	body		[]byte	true	"Container bytes"
//	@Success		200		{object}	InspectResponse
//	@Failure		400		{object}	map[string]string
//	@Security		ApiKeyAuth
//	@Router			/inspect [post]
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	format, hdr, err := s.sniff(body, r.URL.Query().Get("format"))
	if err != nil {
		s.recordFailure()
		sendError(w, fmt.Sprintf("Unrecognized container: %v", err), http.StatusBadRequest)
		return
	}

	s.filesInspected.Add(1)
	s.bytesParsed.Add(int64(len(body)))
	if s.metrics != nil {
		s.metrics.RecordParse(format.Name(), "inspect", int64(len(body)), 0, time.Since(start))
	}
	sendSuccess(w, inspectResponse(hdr, int64(len(body))))
}

// handleDump godoc
//
//	@Summary		Dump a container record tree
//	@Description	Upload container bytes, decode them fully, and get the record tree with integrity warnings back
//	@Tags			containers
//	@Accept			octet-stream
//	@Produce		json
//	@Param			format	query		string	false	"Restrict sniffing to one format (nif, cgf, kfm)"
//	@Param			body	body		[]byte	true	"Container bytes"
//	@Success		200		{object}	DumpResponse
//	@Failure		400		{object}	map[string]string
//	@Security		ApiKeyAuth
//	@Router			/dump [post]
func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	format, hdr, err := s.sniff(body, r.URL.Query().Get("format"))
	if err != nil {
		s.recordFailure()
		sendError(w, fmt.Sprintf("Unrecognized container: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := format.Read(bytes.NewReader(body))
	if err != nil {
		s.recordFailure()
		sendError(w, fmt.Sprintf("Failed to decode container: %v", err), http.StatusBadRequest)
		return
	}

	warnings := doc.Warnings()
	resp := DumpResponse{
		Format:   hdr.Format,
		Version:  hdr.VersionTag,
		Vendor:   hdr.Vendor,
		Roots:    recordTree(doc),
		Warnings: warningInfos(warnings),
	}

	s.filesDumped.Add(1)
	s.bytesParsed.Add(int64(len(body)))
	s.warningsObserved.Add(int64(len(warnings)))
	if s.metrics != nil {
		s.metrics.RecordParse(format.Name(), "dump", int64(len(body)), len(warnings), time.Since(start))
	}
	sendSuccess(w, resp)
}

// handleFormats godoc
//
//	@Summary		List registered formats
//	@Description	Get the registered container formats, their file extensions, and their supported versions
//	@Tags			containers
//	@Accept			json
//	@Produce		json
//	@Success		200	{array}	FormatInfo
//	@Router			/formats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	infos := make([]FormatInfo, 0, len(s.formats))
	for _, f := range s.formats {
		infos = append(infos, FormatInfo{
			Name:       f.Name(),
			Extensions: f.Extensions(),
			Versions:   f.Versions(),
		})
	}
	sendSuccess(w, infos)
}

// handleStats godoc
//
//	@Summary		Get service statistics
//	@Description	Get counters for uploads parsed, bytes seen, and warnings observed since the service started
//	@Tags			diagnostics
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Router			/stats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, StatsResponse{
		UptimeSeconds:    int64(time.Since(s.started).Seconds()),
		FilesInspected:   s.filesInspected.Load(),
		FilesDumped:      s.filesDumped.Load(),
		BytesParsed:      s.bytesParsed.Load(),
		WarningsObserved: s.warningsObserved.Load(),
		ParseFailures:    s.parseFailures.Load(),
	})
}

// readBody drains the request body, bounded by maxUploadBytes. A false
// return means the error response has already been sent.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to read request body: %v", err), http.StatusBadRequest)
		return nil, false
	}
	if len(body) == 0 {
		sendError(w, "Request body is required", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// sniff finds the first format whose Inspect accepts the payload. A
// non-empty name restricts the attempt to that format alone.
func (s *Server) sniff(body []byte, name string) (toaster.Format, *toaster.Header, error) {
	var lastErr error
	known := false
	for _, f := range s.formats {
		if name != "" && f.Name() != name {
			continue
		}
		known = true
		hdr, err := f.Inspect(bytes.NewReader(body))
		if err == nil {
			return f, hdr, nil
		}
		lastErr = err
	}
	if name != "" && !known {
		return nil, nil, fmt.Errorf("unknown format %q", name)
	}
	if name != "" {
		return nil, nil, fmt.Errorf("%s: %w", name, lastErr)
	}
	return nil, nil, fmt.Errorf("no registered format accepts the payload")
}

func (s *Server) recordFailure() {
	s.parseFailures.Add(1)
	if s.metrics != nil {
		s.metrics.RecordParseFailure()
	}
}

func inspectResponse(hdr *toaster.Header, size int64) InspectResponse {
	resp := InspectResponse{
		Format:     hdr.Format,
		Version:    hdr.VersionTag,
		Vendor:     hdr.Vendor,
		NumRecords: hdr.NumRecords,
		SizeBytes:  size,
	}
	if len(hdr.RecordTypes) > 0 {
		resp.RecordTypes = make(map[string]int, len(hdr.RecordTypes))
		for _, t := range hdr.RecordTypes {
			resp.RecordTypes[t]++
		}
	}
	return resp
}

// recordTree renders the document's reachable records as a tree. A
// record referenced from two places appears under both parents; only
// the first appearance descends into children.
func recordTree(doc toaster.Document) []RecordNode {
	sizer := recordSizer(doc)
	seen := make(map[*object.Record]bool)
	var build func(rec *object.Record) RecordNode
	build = func(rec *object.Record) RecordNode {
		node := RecordNode{Type: rec.Type().Name}
		if name, ok := rec.GetString("name"); ok && name != "" {
			node.Name = name
		}
		if sizer != nil {
			node.Size = sizer(rec)
		}
		if seen[rec] {
			return node
		}
		seen[rec] = true
		for _, child := range graph.Children(rec) {
			node.Children = append(node.Children, build(child))
		}
		return node
	}
	roots := doc.Roots()
	out := make([]RecordNode, 0, len(roots))
	for _, rec := range roots {
		out = append(out, build(rec))
	}
	return out
}

// recordSizer returns the per-record encoded-size function for the
// concrete container behind doc, nil when it has none. Sizing failures
// degrade to zero; the tree is diagnostics, not a wire format.
func recordSizer(doc toaster.Document) func(*object.Record) int64 {
	switch d := doc.Container().(type) {
	case *nif.Data:
		return func(rec *object.Record) int64 {
			n, err := d.BlockSize(rec)
			if err != nil {
				return 0
			}
			return n
		}
	case *cgf.Data:
		index := make(map[*object.Record]int, len(d.Chunks))
		for i, rec := range d.Chunks {
			index[rec] = i
		}
		return func(rec *object.Record) int64 {
			i, ok := index[rec]
			if !ok {
				return 0
			}
			n, err := d.ChunkSize(i)
			if err != nil {
				return 0
			}
			return n
		}
	case *kfm.Data:
		return func(rec *object.Record) int64 {
			n, err := d.RecordSize(rec)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return nil
}

func warningInfos(ws []stream.Warning) []WarningInfo {
	if len(ws) == 0 {
		return nil
	}
	out := make([]WarningInfo, len(ws))
	for i, w := range ws {
		out[i] = WarningInfo{
			Kind:    w.Kind.String(),
			Block:   w.Block,
			Field:   w.Field,
			Message: w.Msg,
		}
	}
	return out
}
