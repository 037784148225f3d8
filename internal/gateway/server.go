// Package gateway exposes the daemon over HTTP: a websocket event feed and a
// small JSON API for inspecting tasks.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muxworks/mux/internal/bus"
	"github.com/muxworks/mux/internal/config"
)

// Server is the HTTP/websocket front of the daemon.
type Server struct {
	port     int
	store    *config.Store
	events   *bus.Bus
	upgrader websocket.Upgrader
}

// NewServer builds the gateway on the given port.
func NewServer(port int, store *config.Store, events *bus.Bus) *Server {
	return &Server{
		port:   port,
		store:  store,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Local-only daemon; clients connect from the same machine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/health", s.handleHealth)

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// handleWebsocket streams every bus event to the client as JSON frames of
// the form {"kind": ..., "event": ...}.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.events.Subscribe(bus.DefaultBuffer)
	defer cancel()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range ch {
		frame := map[string]any{"kind": ev.Kind(), "event": ev}
		if err := conn.WriteJSON(frame); err != nil {
			slog.Debug("websocket write, dropping client", "err", err)
			return
		}
	}
}

// taskView is the API shape of one task workspace.
type taskView struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Title             string `json:"title,omitempty"`
	Status            string `json:"status"`
	AgentType         string `json:"agentType"`
	ParentWorkspaceID string `json:"parentWorkspaceId"`
	Description       string `json:"description,omitempty"`
	QueuedAt          string `json:"queuedAt,omitempty"`
	StartedAt         string `json:"startedAt,omitempty"`
	ReportedAt        string `json:"reportedAt,omitempty"`
	ReportTitle       string `json:"reportTitle,omitempty"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	views := []taskView{}
	for _, ws := range s.store.AllWorkspaces() {
		st := ws.TaskState
		if st == nil {
			continue
		}
		views = append(views, taskView{
			ID:                ws.ID,
			Name:              ws.Name,
			Title:             ws.Title,
			Status:            string(st.Status),
			AgentType:         st.AgentType,
			ParentWorkspaceID: st.ParentWorkspaceID,
			Description:       st.Description,
			QueuedAt:          st.QueuedAt,
			StartedAt:         st.StartedAt,
			ReportedAt:        st.ReportedAt,
			ReportTitle:       st.ReportTitle,
		})
	}
	writeJSON(w, map[string]any{"tasks": views})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "subscribers": s.events.SubscriberCount()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}
