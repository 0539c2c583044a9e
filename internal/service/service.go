// Package service exposes table operations over a Unix socket, following
// the docker plugin HTTP convention: POST requests with JSON bodies, one
// path per operation.
package service

import (
	"net/http"
	"sync"

	"github.com/docker/go-plugins-helpers/sdk"

	"github.com/kriansa/fstabctl/internal/log"
	"github.com/kriansa/fstabctl/pkg/fstab"
)

const manifest = `{"Implements": ["FsTabService"]}`

// Paths served by the handler.
const (
	listPath     = "/FsTab.List"
	addPath      = "/FsTab.Add"
	addBatchPath = "/FsTab.AddBatch"
	removePath   = "/FsTab.Remove"
)

// Service serves table operations for one fstab file. The mutex serializes
// requests so read-modify-write cycles never interleave.
type Service struct {
	mu         sync.Mutex
	table      *fstab.File
	afterWrite func()
}

// Option is a functional option for Service
type Option func(*Service)

// WithAfterWrite registers fn to run after every mutation that rewrote the
// table, before the response is sent.
func WithAfterWrite(fn func()) Option {
	return func(s *Service) {
		s.afterWrite = fn
	}
}

// New creates a service operating on the given table.
func New(table *fstab.File, opts ...Option) *Service {
	s := &Service{table: table}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with all operations registered.
func (s *Service) Handler() sdk.Handler {
	h := sdk.NewHandler(manifest)
	h.HandleFunc(listPath, s.list)
	h.HandleFunc(addPath, s.add)
	h.HandleFunc(addBatchPath, s.addBatch)
	h.HandleFunc(removePath, s.remove)
	return h
}

func (s *Service) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debug("listing entries")

	entries, err := s.table.Entries()
	if err != nil {
		sdk.EncodeResponse(w, &ListResponse{Err: err.Error()}, true)
		return
	}

	payload := make([]EntryPayload, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, FromEntry(e))
	}
	sdk.EncodeResponse(w, &ListResponse{Entries: payload}, false)
}

func (s *Service) add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := sdk.DecodeRequest(w, r, &req); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debug("adding entry", "device", req.Entry.Device)

	created, err := s.table.AddEntry(req.Entry.Entry())
	if err != nil {
		sdk.EncodeResponse(w, &AddResponse{Err: err.Error()}, true)
		return
	}
	s.notifyWrite()

	log.Info("entry added", "device", req.Entry.Device, "created", created)
	sdk.EncodeResponse(w, &AddResponse{Created: created}, false)
}

func (s *Service) addBatch(w http.ResponseWriter, r *http.Request) {
	var req AddBatchRequest
	if err := sdk.DecodeRequest(w, r, &req); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debug("adding entry batch", "count", len(req.Entries))

	entries := make([]fstab.Entry, 0, len(req.Entries))
	for _, p := range req.Entries {
		entries = append(entries, p.Entry())
	}

	if err := s.table.AddEntries(entries); err != nil {
		sdk.EncodeResponse(w, &AddBatchResponse{Err: err.Error()}, true)
		return
	}
	s.notifyWrite()

	log.Info("entry batch added", "count", len(entries))
	sdk.EncodeResponse(w, &AddBatchResponse{}, false)
}

func (s *Service) remove(w http.ResponseWriter, r *http.Request) {
	var req RemoveRequest
	if err := sdk.DecodeRequest(w, r, &req); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debug("removing entry", "device", req.Device)

	removed, err := s.table.RemoveEntry(req.Device)
	if err != nil {
		sdk.EncodeResponse(w, &RemoveResponse{Err: err.Error()}, true)
		return
	}
	if removed {
		s.notifyWrite()
	}

	log.Info("entry removal finished", "device", req.Device, "removed", removed)
	sdk.EncodeResponse(w, &RemoveResponse{Removed: removed}, false)
}

func (s *Service) notifyWrite() {
	if s.afterWrite != nil {
		s.afterWrite()
	}
}
