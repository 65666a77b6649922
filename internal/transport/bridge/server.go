// Package bridge exposes the local control surface: a WebSocket feed of
// session snapshots for overlay UIs, a WebSocket inlet for browser widgets
// relaying YouTube chat, and a small HTTP API for operator controls.
package bridge

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/louisbranch/crowdplay/internal/chat"
	"github.com/louisbranch/crowdplay/internal/session/app"
)

// observerSendBuffer bounds each observer's outbound queue. Observers that
// cannot keep up are disconnected rather than backpressuring the session.
const observerSendBuffer = 16

// Controller is the slice of the session coordinator the bridge drives.
type Controller interface {
	HandleChatEvent(event chat.Event)
	Pause()
	Resume()
	LastSnapshot() app.Snapshot
}

// widgetMessage is one relayed chat line from a browser widget.
type widgetMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}

type observer struct {
	conn *websocket.Conn
	send chan []byte
}

// Server bridges local WebSocket and HTTP clients to the session coordinator.
type Server struct {
	controller Controller
	upgrader   websocket.Upgrader

	mu        sync.Mutex
	observers map[*observer]struct{}
}

// NewServer creates a bridge server around controller.
func NewServer(controller Controller) *Server {
	return &Server{
		controller: controller,
		upgrader: websocket.Upgrader{
			// The bridge binds to localhost; cross-origin checks would only
			// block the file:// overlay pages it exists to serve.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		observers: map[*observer]struct{}{},
	}
}

// Handler returns the bridge's HTTP routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws/observe", s.handleObserve).Methods(http.MethodGet)
	router.HandleFunc("/ws/widget", s.handleWidget).Methods(http.MethodGet)
	router.HandleFunc("/api/pause", s.handlePause).Methods(http.MethodPost)
	router.HandleFunc("/api/resume", s.handleResume).Methods(http.MethodPost)
	router.HandleFunc("/api/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return router
}

// Broadcast fans a snapshot out to every connected observer.
func (s *Server) Broadcast(snapshot app.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("marshal snapshot: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for obs := range s.observers {
		select {
		case obs.send <- payload:
		default:
			// Slow consumer; drop it so the rest keep flowing.
			delete(s.observers, obs)
			close(obs.send)
		}
	}
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade observer: %v", err)
		return
	}

	obs := &observer{conn: conn, send: make(chan []byte, observerSendBuffer)}
	s.mu.Lock()
	s.observers[obs] = struct{}{}
	s.mu.Unlock()

	// Seed the new observer with current state so overlays render
	// immediately instead of waiting for the next transition.
	if payload, err := json.Marshal(s.controller.LastSnapshot()); err == nil {
		select {
		case obs.send <- payload:
		default:
		}
	}

	go s.writeObserver(obs)
	s.readObserver(obs)
}

// writeObserver drains the observer's queue onto its connection.
func (s *Server) writeObserver(obs *observer) {
	for payload := range obs.send {
		if err := obs.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	obs.conn.Close()
}

// readObserver consumes (and discards) inbound frames until the connection
// drops, then unregisters the observer.
func (s *Server) readObserver(obs *observer) {
	for {
		if _, _, err := obs.conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	if _, ok := s.observers[obs]; ok {
		delete(s.observers, obs)
		close(obs.send)
	}
	s.mu.Unlock()
	obs.conn.Close()
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade widget: %v", err)
		return
	}
	defer conn.Close()

	for {
		var msg widgetMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		event, ok := widgetEvent(msg)
		if !ok {
			continue
		}
		s.controller.HandleChatEvent(event)
	}
}

// widgetEvent maps a relayed widget line to a chat event. Widget senders are
// never privileged; operator commands go through the HTTP API instead.
func widgetEvent(msg widgetMessage) (chat.Event, bool) {
	user := strings.TrimSpace(msg.User)
	text := strings.TrimSpace(msg.Text)
	if user == "" || text == "" {
		return chat.Event{}, false
	}
	return chat.Event{
		Source: chat.SourceYouTube,
		User:   user,
		Text:   text,
	}, true
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.controller.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.controller.Resume()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.controller.LastSnapshot()); err != nil {
		log.Printf("encode snapshot: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
