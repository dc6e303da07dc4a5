package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"go-codeagent/internal/agents"
	planner "go-codeagent/internal/agents/planner/actor"
	selector "go-codeagent/internal/agents/selector/actor"
	"go-codeagent/pkg/logger"
	"go-codeagent/pkg/messages"
	"go-codeagent/pkg/models"
)

type command struct {
	Goal string `json:"goal"`
}

type userMessage struct {
	Content string `json:"content"`
}

type getStatus struct {
	Status models.Status `json:"status"`
}

type created struct {
	Id string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type Options struct {
	Addr   string
	Agents agents.Config
	// Timeout bounds every request made to an actor.
	Timeout time.Duration
}

type Server struct {
	ac       *actor.RootContext
	server   *http.Server
	runs     *requestsCache
	sessions *requestsCache
	agents   agents.Config
	timeout  time.Duration
}

func New(ac *actor.RootContext, opts Options) *Server {
	s := &Server{
		ac:       ac,
		runs:     newRequestsCache(),
		sessions: newRequestsCache(),
		agents:   opts.Agents,
		timeout:  opts.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}

	r := chi.NewRouter()
	r.Use(logMiddleware())

	r.Post("/new", s.newGoal)
	r.Get("/status/{id}", s.status)
	r.Delete("/status/{id}", s.cancel)

	r.Post("/sessions", s.newSession)
	r.Get("/sessions/{id}", s.session)
	r.Post("/sessions/{id}/messages", s.message)
	r.Delete("/sessions/{id}", s.closeSession)

	s.server = &http.Server{
		Addr:    opts.Addr,
		Handler: r,
	}
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) newGoal(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("new request")
	cmd := command{}
	err := unmarshalRequestBody(r, &cmd)
	if err != nil || strings.TrimSpace(cmd.Goal) == "" {
		log.Debug().Msg("cannot parse body")
		badRequest(w, r, "unable to parse body")
		return
	}

	decider := func(reason interface{}) actor.Directive {
		log.Error().Msgf("handling failure for child. reason: %v", reason)
		return actor.StopDirective
	}
	strategy := actor.NewOneForOneStrategy(3, 10000, decider)

	// todo allow for the configuration of remote actors
	props := actor.PropsFromProducer(planner.New(s.agents), actor.WithSupervisor(strategy))
	pid := s.ac.Spawn(props)

	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	s.runs.add(id, entry{pid: pid, cancel: cancel})
	s.ac.Send(pid, messages.NewGoal{RequestID: id, Goal: cmd.Goal, Context: ctx})

	log.Debug().Str(logger.RequestTaskID, id.String()).Msg("agent job has been started")
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, created{id.String()})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("status request")
	id, e, ok := s.lookup(w, r, s.runs)
	if !ok {
		return
	}

	res, err := s.ac.RequestFuture(e.pid, messages.GetStatus{}, s.timeout).Result() // blocking
	if err != nil {
		log.Error().Str(logger.RequestTaskID, id.String()).Err(err).Msg("unable to get status from actor")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "unable to get status"})
		return
	}

	status, ok := res.(models.Status)
	if !ok {
		log.Error().Str(logger.RequestTaskID, id.String()).Msgf("unknown status from actor: %T", res)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if status.Planner.State.Terminal() {
		s.evict(id, e)
	}
	render.JSON(w, r, getStatus{status})
}

// evict forgets a run once its terminal status has been served and stops its
// planner. Later lookups of id answer 404.
func (s *Server) evict(id uuid.UUID, e entry) {
	log.Debug().Str(logger.RequestTaskID, id.String()).Msg("run finished, evicting")
	s.runs.remove(id)
	e.cancel()
	s.ac.Stop(e.pid)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r, s.runs)
	if !ok {
		return
	}
	log.Info().Str(logger.RequestTaskID, id.String()).Msg("cancelling run")
	e.cancel()
	s.ac.Send(e.pid, messages.Cancel{})
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, created{id.String()})
}

func (s *Server) newSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	pid := s.ac.Spawn(actor.PropsFromProducer(selector.New(id, s.agents)))
	s.sessions.add(id, entry{pid: pid, cancel: func() {}})

	log.Debug().Str(logger.SessionIDField, id.String()).Msg("session started")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, created{id.String()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r, s.sessions)
	if !ok {
		return
	}
	res, err := s.ac.RequestFuture(e.pid, messages.GetSession{}, s.timeout).Result()
	if err != nil {
		log.Error().Str(logger.SessionIDField, id.String()).Err(err).Msg("unable to get session from actor")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "unable to get session"})
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r, s.sessions)
	if !ok {
		return
	}
	msg := userMessage{}
	if err := unmarshalRequestBody(r, &msg); err != nil || strings.TrimSpace(msg.Content) == "" {
		badRequest(w, r, "unable to parse body")
		return
	}

	res, err := s.ac.RequestFuture(e.pid, messages.UserMessage{Content: msg.Content}, s.timeout).Result()
	if err != nil {
		log.Error().Str(logger.SessionIDField, id.String()).Err(err).Msg("no reply from session actor")
		render.Status(r, http.StatusGatewayTimeout)
		render.JSON(w, r, errorResponse{Error: "no reply from session"})
		return
	}
	if err, ok := res.(error); ok {
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, errorResponse{Error: err.Error(), Kind: string(models.KindOf(err))})
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r, s.sessions)
	if !ok {
		return
	}
	s.sessions.remove(id)
	s.ac.Send(e.pid, messages.CloseSession{})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, cache *requestsCache) (uuid.UUID, entry, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		log.Debug().Msg("cannot parse id")
		badRequest(w, r, "unable to parse id")
		return uuid.Nil, entry{}, false
	}
	e, ok := cache.get(id)
	if !ok {
		log.Debug().Str(logger.RequestTaskID, idParam).Msg("cannot find id")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: "unknown id"})
		return uuid.Nil, entry{}, false
	}
	return id, e, true
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	err := s.server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the http server down, then cancels every run and stops every
// agent.
func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	for _, e := range s.runs.drain() {
		e.cancel()
		s.ac.Stop(e.pid)
	}
	for _, e := range s.sessions.drain() {
		s.ac.Stop(e.pid)
	}
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{Error: msg})
}

func logMiddleware() func(http.Handler) http.Handler {
	c := alice.New()
	c = c.Append(hlog.NewHandler(log.Logger))
	c = c.Append(hlog.RemoteAddrHandler("ip"))
	c = c.Append(hlog.UserAgentHandler("agent"))
	c = c.Append(hlog.RefererHandler("referer"))
	c = c.Append(hlog.RequestIDHandler("req_id", "Request-Id"))
	c = c.Append(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("verb", r.Method).
			Stringer("url", r.URL).
			Int("size", size).
			Int("status", status).
			Int64("duration", duration.Milliseconds()).
			Msg("REQ")
	}))

	return c.Then
}

func unmarshalRequestBody(req *http.Request, output interface{}) error {
	if req.Body == nil {
		return errors.New("invalid body in request")
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	if err = req.Body.Close(); err != nil {
		return err
	}
	return json.Unmarshal(body, output)
}
