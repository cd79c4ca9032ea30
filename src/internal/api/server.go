package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service/auth"
	"logseqbridge/src/internal/service/cli"
)

// Commander runs logseq CLI commands.
type Commander interface {
	Execute(ctx context.Context, command string, args ...string) (domain.CommandResult, error)
	Append(ctx context.Context, content, token string) error
}

// Journal appends to today's journal through the Logseq desktop API.
type Journal interface {
	AppendToJournal(ctx context.Context, content, token string) (domain.JournalResult, error)
}

type Api struct {
	ctx     *domain.Context
	cli     Commander
	journal Journal
	tokens  *auth.Resolver
	logger  *slog.Logger
	handler http.Handler
	server  *http.Server

	// Serialises outbound calls: one subprocess or journal request at a time.
	mu sync.Mutex
}

func Create(ctx *domain.Context, commander Commander, journal Journal) *Api {
	a := &Api{
		ctx:     ctx,
		cli:     commander,
		journal: journal,
		tokens:  auth.NewResolver(ctx.Config.APIToken),
		logger:  ctx.Logger,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.handler = a.routes()
	a.server = &http.Server{
		Addr:              a.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

func (a *Api) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors)
	r.Use(a.trace)
	r.Use(a.recoverer)
	r.Use(decodeBody)

	r.Get("/health", a.handleHealth)
	r.Get("/version", a.handleVersion)
	r.Get("/list", a.handleList)
	r.Get("/show", a.handleShow)
	r.Get("/search", a.handleSearch)
	r.Get("/ws", a.handleSocket)

	r.Post("/query", a.handleQuery)
	r.Post("/append-to-journal", a.handleAppendToJournal)
	r.Post("/append", a.handleAppend)

	r.NotFound(a.handleNotFound)
	r.MethodNotAllowed(a.handleNotFound)
	return r
}

func (a *Api) Handler() http.Handler {
	return a.handler
}

func (a *Api) Addr() string {
	return net.JoinHostPort(a.ctx.Config.Host, strconv.Itoa(a.ctx.Config.Port))
}

// Run listens on the configured address and blocks until Shutdown.
func (a *Api) Run() error {
	l, err := net.Listen("tcp", a.Addr())
	if err != nil {
		return err
	}
	return a.Serve(l)
}

func (a *Api) Serve(l net.Listener) error {
	if err := a.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Api) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *Api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.HealthResponse{
		Status:  "healthy",
		Message: "Logseq HTTP Server is running",
	})
}

func (a *Api) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.VersionResponse{Version: a.ctx.Config.Version})
}

func (a *Api) handleList(w http.ResponseWriter, r *http.Request) {
	a.runCommand(w, r, "list")
}

func (a *Api) handleShow(w http.ResponseWriter, r *http.Request) {
	graph := r.URL.Query().Get("graph")
	if graph == "" {
		writeError(w, domain.MissingParam("graph"))
		return
	}
	a.runCommand(w, r, "show", graph)
}

func (a *Api) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := params.Get("q")
	if q == "" {
		writeError(w, domain.MissingParam("q"))
		return
	}
	graph := params.Get("graph")
	if graph == "" {
		writeError(w, domain.MissingField("graph"))
		return
	}
	a.runCommand(w, r, "query", cli.SearchQuery(q), "-g", graph)
}

func (a *Api) handleQuery(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r)
	if body.Graph == "" {
		writeError(w, domain.MissingField("graph"))
		return
	}
	if body.Query == "" {
		writeError(w, domain.MissingField("query"))
		return
	}
	a.runCommand(w, r, "query", body.Query, "-g", body.Graph)
}

func (a *Api) handleAppendToJournal(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r)
	if body.Content == "" {
		writeError(w, domain.MissingField("content"))
		return
	}
	token, err := a.tokens.Resolve(body.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	var res domain.JournalResult
	err = a.outbound(func() (err error) {
		res, err = a.journal.AppendToJournal(r.Context(), body.Content, token)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.MessageResponse{
		Success: true,
		Message: "Content appended to journal successfully",
		Data:    res.Data,
	})
}

func (a *Api) handleAppend(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r)
	if body.Content == "" {
		writeError(w, domain.MissingField("content"))
		return
	}
	token, err := a.tokens.Resolve(body.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	err = a.outbound(func() error {
		return a.cli.Append(r.Context(), body.Content, token)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.MessageResponse{
		Success: true,
		Message: "Content appended successfully",
	})
}

func (a *Api) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, &domain.NotFoundError{Path: r.URL.Path})
}

// runCommand executes one CLI command and writes its result. A process that
// ran but failed still reports stdout, stderr and returncode.
func (a *Api) runCommand(w http.ResponseWriter, r *http.Request, command string, args ...string) {
	var res domain.CommandResult
	err := a.outbound(func() (err error) {
		res, err = a.cli.Execute(r.Context(), command, args...)
		return err
	})

	if err != nil {
		if res.Invoked() {
			writeJSON(w, domain.StatusFor(err), res)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// outbound runs fn while holding the outbound lock. The lock is released even
// if fn panics.
func (a *Api) outbound(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn()
}
