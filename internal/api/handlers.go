package api

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/poller"
	"github.com/rileyhilliard/rackwatch/internal/store"
)

// HostView is the summary of one host in listings.
type HostView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Address   string       `json:"address"`
	State     string       `json:"state"`
	Loaded    bool         `json:"loaded"`
	LastRun   *time.Time   `json:"lastRun,omitempty"`
	LastError string       `json:"lastError,omitempty"`
	Rates     *store.Rates `json:"rates,omitempty"`
}

// HostDetail is a HostView plus every stored field.
type HostDetail struct {
	HostView
	Metrics *store.Entry `json:"metrics"`
}

// FieldView is one named field. Observed is false when the value is the
// field's documented fallback rather than a reading.
type FieldView struct {
	Host     string `json:"host"`
	Field    string `json:"field"`
	Value    any    `json:"value"`
	Observed bool   `json:"observed"`
}

// ErrorView is the body of every non-2xx response.
type ErrorView struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) view(p *poller.Poller) HostView {
	return NewHostView(p, s.history)
}

// NewHostView summarizes p. history is optional and supplies rates.
func NewHostView(p *poller.Poller, history *store.History) HostView {
	h := p.Host()
	v := HostView{
		ID:      h.ID,
		Name:    h.Label(),
		Address: h.Address,
		State:   p.State().String(),
		Loaded:  p.Loaded(),
	}
	if t := p.LastRun(); !t.IsZero() {
		v.LastRun = &t
	}
	if err := p.LastError(); err != nil {
		v.LastError = errors.Brief(err)
	}
	if history != nil {
		if r, ok := history.Rates(h.ID); ok {
			v.Rates = &r
		}
	}
	return v
}

func (s *Server) views() []HostView {
	pollers := s.registry.Pollers()
	out := make([]HostView, len(pollers))
	for i, p := range pollers {
		out[i] = s.view(p)
	}
	return out
}

func respondError(c *gin.Context, status int, err error) {
	body := ErrorView{Error: errors.Brief(err)}
	var rwErr *errors.Error
	if stderrors.As(err, &rwErr) {
		body.Code = rwErr.Code
	}
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) lookup(c *gin.Context) (*poller.Poller, bool) {
	id := c.Param("id")
	p, ok := s.registry.Poller(id)
	if !ok {
		respondError(c, http.StatusNotFound, errors.New(errors.ErrAPI, "Unknown host "+id, ""))
		return nil, false
	}
	return p, true
}

func (s *Server) listHosts(c *gin.Context) {
	c.JSON(http.StatusOK, s.views())
}

func (s *Server) getHost(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	detail := HostDetail{HostView: s.view(p)}
	if e, ok := s.store.Get(p.ID()); ok {
		detail.Metrics = &e
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) getField(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	name := c.Param("field")
	field, ok := store.ParseField(name)
	if !ok {
		respondError(c, http.StatusBadRequest, errors.New(errors.ErrAPI, "Unknown field "+name, ""))
		return
	}

	v, observed := s.store.Field(p.ID(), field)
	if !observed {
		v = store.Fallback(field)
	}
	c.JSON(http.StatusOK, FieldView{
		Host:     p.ID(),
		Field:    name,
		Value:    v,
		Observed: observed,
	})
}

func (s *Server) pollHost(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	res, err := p.PollNow(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusConflict, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) removeHost(c *gin.Context) {
	id := c.Param("id")
	if !s.registry.RemoveHost(id) {
		respondError(c, http.StatusNotFound, errors.New(errors.ErrAPI, "Unknown host "+id, ""))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) connectAll(c *gin.Context) {
	if err := s.registry.ConnectAll(c.Request.Context()); err != nil {
		s.log.Debug("connect all: %s", errors.Brief(err))
	}
	c.JSON(http.StatusOK, s.views())
}

func (s *Server) disconnectAll(c *gin.Context) {
	s.registry.DisconnectAll()
	c.JSON(http.StatusOK, s.views())
}

func (s *Server) healthz(c *gin.Context) {
	active := 0
	pollers := s.registry.Pollers()
	for _, p := range pollers {
		if p.State() == poller.Active {
			active++
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "hosts": len(pollers), "active": active})
}
