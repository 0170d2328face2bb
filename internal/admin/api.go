// Package admin serves the event manager's introspection and display
// controls over HTTP.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dshills/appevent/internal/event"
)

// StatsFunc reports the counters of a collaborator for GET /v1/stats.
type StatsFunc func() any

// API wires HTTP handlers for one event manager.
type API struct {
	log   *slog.Logger
	mgr   *event.Manager
	stats map[string]StatsFunc
}

// Option configures an API.
type Option func(*API)

// WithStats adds a section to the GET /v1/stats response.
func WithStats(name string, fn StatsFunc) Option {
	return func(a *API) {
		if name != "" && fn != nil {
			a.stats[name] = fn
		}
	}
}

// New constructs the API.
func New(log *slog.Logger, m *event.Manager, opts ...Option) *API {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	a := &API{log: log, mgr: m, stats: make(map[string]StatsFunc)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes configures the router with v1 endpoints.
func (a *API) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", a.handleEventsList)
		r.Get("/events/{name}", a.handleEventGet)
		r.Put("/events/{name}/log", a.handleToggle(toggleLog))
		r.Put("/events/{name}/profile", a.handleToggle(toggleProfile))

		r.Get("/listeners", a.handleListenersList)
		r.Get("/stats", a.handleStats)
	})
}

type typeResponse struct {
	ID         event.TypeID `json:"id"`
	Name       string       `json:"name"`
	Flags      string       `json:"flags"`
	Size       int64        `json:"size"`
	Log        bool         `json:"log"`
	Profile    bool         `json:"profile"`
	HasLog     bool         `json:"has_log"`
	HasProfile bool         `json:"has_profile"`
	Listeners  int          `json:"listeners"`
	Unhandled  uint64       `json:"unhandled"`

	Subscribers []subscriberResponse `json:"subscribers,omitempty"`
}

type subscriberResponse struct {
	Listener string `json:"listener,omitempty"`
	Type     string `json:"type,omitempty"`
	Priority string `json:"priority"`
}

func (a *API) typeToResponse(t *event.Type) typeResponse {
	_, hasProfile := t.ProfileInfo()
	return typeResponse{
		ID:         t.ID(),
		Name:       t.Name(),
		Flags:      t.Flags().String(),
		Size:       t.Size(),
		Log:        t.LogEnabled(),
		Profile:    t.ProfileEnabled(),
		HasLog:     t.HasLog(),
		HasProfile: hasProfile,
		Listeners:  len(a.mgr.Table().Subscribers(t)),
		Unhandled:  t.Unhandled(),
	}
}

func (a *API) handleEventsList(w http.ResponseWriter, r *http.Request) {
	types := a.mgr.Table().Types()
	resp := make([]typeResponse, 0, len(types))
	for _, t := range types {
		resp = append(resp, a.typeToResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) lookup(w http.ResponseWriter, r *http.Request) (*event.Type, bool) {
	name := chi.URLParam(r, "name")
	t, ok := a.mgr.Table().TypeByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown event type "+name)
	}
	return t, ok
}

func (a *API) handleEventGet(w http.ResponseWriter, r *http.Request) {
	t, ok := a.lookup(w, r)
	if !ok {
		return
	}
	resp := a.typeToResponse(t)
	for _, sub := range a.mgr.Table().Subscribers(t) {
		resp.Subscribers = append(resp.Subscribers, subscriberResponse{
			Listener: sub.Listener.Name(),
			Priority: sub.Priority.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type toggle int

const (
	toggleLog toggle = iota
	toggleProfile
)

func (a *API) handleToggle(which toggle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := a.lookup(w, r)
		if !ok {
			return
		}

		var payload struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Enabled == nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		on := *payload.Enabled

		switch which {
		case toggleLog:
			t.SetLogEnabled(on)
		case toggleProfile:
			if _, ok := t.ProfileInfo(); on && !ok {
				writeError(w, http.StatusConflict, "event type "+t.Name()+" has no profiler descriptor")
				return
			}
			t.SetProfileEnabled(on)
		}

		a.log.Info("event display changed",
			slog.String("type", t.Name()),
			slog.Bool("log", t.LogEnabled()),
			slog.Bool("profile", t.ProfileEnabled()),
		)
		writeJSON(w, http.StatusOK, a.typeToResponse(t))
	}
}

type listenerResponse struct {
	Name          string               `json:"name"`
	Subscriptions []subscriberResponse `json:"subscriptions"`
}

func (a *API) handleListenersList(w http.ResponseWriter, r *http.Request) {
	tab := a.mgr.Table()
	listeners := tab.Listeners()
	resp := make([]listenerResponse, 0, len(listeners))
	for _, l := range listeners {
		lr := listenerResponse{Name: l.Name(), Subscriptions: []subscriberResponse{}}
		for _, sub := range tab.SubscriptionsOf(l) {
			lr.Subscriptions = append(lr.Subscriptions, subscriberResponse{
				Type:     sub.Type.Name(),
				Priority: sub.Priority.String(),
			})
		}
		resp = append(resp, lr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"manager": a.mgr.Stats()}
	for name, fn := range a.stats {
		resp[name] = fn()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
