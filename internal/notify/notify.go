// Package notify pushes new-article notices to UDP clients that registered
// interest in some categories.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"newslens/internal/events"
	"newslens/pkg/models"
)

const (
	RegisterMessageType   = "register"
	UnregisterMessageType = "unregister"
	NewArticleMessageType = "new_article"
)

// RegisterMessage is what a client sends. No categories means all of them.
type RegisterMessage struct {
	Type       string   `json:"type"`
	UserID     string   `json:"user_id"`
	Categories []string `json:"categories,omitempty"`
}

type NewArticleMessage struct {
	Type      string           `json:"type"`
	ArticleID string           `json:"article_id"`
	Title     string           `json:"title"`
	URL       string           `json:"url"`
	Source    string           `json:"source"`
	Category  models.Category  `json:"category"`
	BiasLabel models.BiasLabel `json:"bias_label"`
}

type Client struct {
	UserID     string
	Addr       *net.UDPAddr
	Categories map[models.Category]struct{}
}

func (c Client) wants(cat models.Category) bool {
	if len(c.Categories) == 0 {
		return true
	}
	_, ok := c.Categories[cat]
	return ok
}

type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(userID string, addr *net.UDPAddr, categories []models.Category) {
	if userID == "" || addr == nil {
		return
	}
	set := make(map[models.Category]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	r.mu.Lock()
	r.clients[userID] = Client{UserID: userID, Addr: addr, Categories: set}
	r.mu.Unlock()
}

func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	delete(r.clients, userID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Server reads registrations and fans article.ingested events out to
// matching clients. It implements events.Publisher.
type Server struct {
	addr     string
	registry *Registry
	logger   zerolog.Logger

	mu   sync.Mutex
	conn *net.UDPConn
}

var _ events.Publisher = (*Server)(nil)

func NewServer(addr string, registry *Registry, logger zerolog.Logger) *Server {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Server{addr: addr, registry: registry, logger: logger.With().Str("component", "notify").Logger()}
}

func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) Run() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	s.logger.Info().Str("addr", conn.LocalAddr().String()).Msg("UDP notify server listening")

	buffer := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		msg, err := parseRegisterMessage(buffer[:n])
		if err != nil {
			s.logger.Debug().Err(err).Str("from", addr.String()).Msg("invalid UDP message")
			continue
		}

		switch msg.Type {
		case RegisterMessageType:
			cats := make([]models.Category, 0, len(msg.Categories))
			for _, name := range msg.Categories {
				if c, ok := models.ParseCategory(name); ok {
					cats = append(cats, c)
				}
			}
			s.registry.Register(msg.UserID, addr, cats)
			s.logger.Info().Str("user_id", msg.UserID).Str("addr", addr.String()).Int("categories", len(cats)).Msg("registered UDP client")
		case UnregisterMessageType:
			s.registry.Remove(msg.UserID)
		}
	}
}

// LocalAddr is nil until Run has bound the socket.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Publish notifies clients about newly ingested articles. Other event types
// are ignored.
func (s *Server) Publish(_ context.Context, evt events.Event) error {
	if evt.Type != events.TypeArticleIngested || evt.Article == nil {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	a := evt.Article
	payload, err := json.Marshal(NewArticleMessage{
		Type:      NewArticleMessageType,
		ArticleID: a.ID,
		Title:     a.Title,
		URL:       a.URL,
		Source:    a.Source,
		Category:  a.Category,
		BiasLabel: a.Bias.Label,
	})
	if err != nil {
		return err
	}

	for _, client := range s.registry.Snapshot() {
		if client.wants(a.Category) {
			s.sendWithRetry(conn, client, payload)
		}
	}
	return nil
}

func (s *Server) sendWithRetry(conn *net.UDPConn, client Client, payload []byte) {
	if err := sendOnce(conn, client, payload); err == nil {
		return
	}
	if err := sendOnce(conn, client, payload); err != nil {
		s.logger.Warn().Err(err).Str("user_id", client.UserID).Msg("notify failed, dropping client")
		s.registry.Remove(client.UserID)
	}
}

func sendOnce(conn *net.UDPConn, client Client, payload []byte) error {
	if client.Addr == nil {
		return errors.New("missing client address")
	}
	_, err := conn.WriteToUDP(payload, client.Addr)
	return err
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.UserID == "" || msg.Type == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}
