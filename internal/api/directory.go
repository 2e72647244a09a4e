package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/gridswitch/internal/directory"
	"github.com/nerrad567/gridswitch/internal/grid"
)

const timeFormat = time.RFC3339

// DirectoryResponse is the body of GET /directory and POST /directory/refresh.
type DirectoryResponse struct {
	Prefix      string            `json:"prefix"`
	RefreshedAt string            `json:"refreshed_at,omitempty"`
	Count       int               `json:"count"`
	Entries     map[string]string `json:"entries"`
}

// GridCell is one position of the grid view.
type GridCell struct {
	ID      string `json:"id"`
	Address string `json:"address,omitempty"`
}

// GridResponse is the body of GET /grid.
type GridResponse struct {
	Rows     int          `json:"rows"`
	Columns  int          `json:"columns"`
	Resolved int          `json:"resolved"`
	Cells    [][]GridCell `json:"cells"`
}

func (s *Server) directoryResponse(snap directory.Snapshot) DirectoryResponse {
	resp := DirectoryResponse{
		Prefix:  s.directory.Prefix(),
		Count:   snap.Len(),
		Entries: snap.Entries(),
	}
	if !snap.RefreshedAt().IsZero() {
		resp.RefreshedAt = snap.RefreshedAt().UTC().Format(timeFormat)
	}
	return resp
}

// handleGetDirectory returns the current snapshot.
func (s *Server) handleGetDirectory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.directoryResponse(s.directory.Snapshot()))
}

// handleRefreshDirectory rebuilds the snapshot now. On a store failure the
// previous snapshot stays in place and 503 is returned.
func (s *Server) handleRefreshDirectory(w http.ResponseWriter, r *http.Request) {
	snap, err := s.directory.Refresh(r.Context())
	if err != nil {
		s.logger.Warn("manual directory refresh failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.directoryResponse(snap))
}

// handleGetGrid lays the snapshot out as rows x columns.
func (s *Server) handleGetGrid(w http.ResponseWriter, _ *http.Request) {
	snap := s.directory.Snapshot()
	rows, cols := s.resolver.Rows(), s.resolver.Columns()

	resp := GridResponse{
		Rows:    rows,
		Columns: cols,
		Cells:   make([][]GridCell, rows),
	}
	for row := range rows {
		resp.Cells[row] = make([]GridCell, cols)
		for col := range cols {
			id := grid.ID(row, col)
			addr, _ := snap.Lookup(id)
			if addr != "" {
				resp.Resolved++
			}
			resp.Cells[row][col] = GridCell{ID: id, Address: addr}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
