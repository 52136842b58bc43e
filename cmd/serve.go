package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deal-briefing/internal/briefing"
	"github.com/sells-group/deal-briefing/internal/config"
	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/internal/notify"
	"github.com/sells-group/deal-briefing/internal/store"
)

// runner runs one briefing.
type runner interface {
	Run(ctx context.Context, req briefing.Request) (*model.Analysis, error)
}

// callbackSender delivers async results.
type callbackSender interface {
	Send(ctx context.Context, url string, ev notify.Event) error
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP task server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initBriefing(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		s := newServer(ctx, env.Service, env.Store, env.Notifier, serverOptions{
			Defaults:       cfg.Briefing,
			DefaultWebhook: cfg.Notify.WebhookURL,
			Timeout:        runTimeout(),
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return s.serve(ctx, srv, ln)
	},
}

type serverOptions struct {
	Defaults       config.BriefingConfig
	DefaultWebhook string
	Timeout        time.Duration
}

type server struct {
	ctx      context.Context
	runner   runner
	store    store.Store
	notifier callbackSender
	opts     serverOptions
	wg       sync.WaitGroup
}

// newServer builds the task server. ctx bounds async runs; st may be nil.
func newServer(ctx context.Context, r runner, st store.Store, n callbackSender, opts serverOptions) *server {
	return &server{ctx: ctx, runner: r, store: st, notifier: n, opts: opts}
}

// wait blocks until every async run has finished.
func (s *server) wait() {
	s.wg.Wait()
}

// serve runs srv on ln until ctx is done. It returns once in-flight
// requests have completed and every async run they started has finished.
func (s *server) serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown incomplete", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server serve")
	}

	// Serve returns as soon as Shutdown begins; handlers may still be
	// starting async runs until Shutdown returns.
	<-drained
	s.wait()
	return nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/tasks/deal-priorities", s.handleDealPriorities)
	r.Get("/briefings", s.handleListBriefings)
	r.Get("/briefings/{id}", s.handleGetBriefing)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// taskRequest is the body of POST /tasks/deal-priorities. Omitted bounds
// take the configured defaults.
type taskRequest struct {
	Limit       *int   `json:"limit"`
	EmailDays   *int   `json:"email_days"`
	MaxEmails   *int   `json:"max_emails"`
	Verbose     bool   `json:"verbose"`
	Async       bool   `json:"async"`
	CallbackURL string `json:"callback_url"`
}

func (t taskRequest) toRequest(d config.BriefingConfig) briefing.Request {
	req := briefing.Request{Limit: d.Limit, EmailDays: d.EmailDays, MaxEmails: d.MaxEmails, Verbose: t.Verbose}
	if t.Limit != nil {
		req.Limit = *t.Limit
	}
	if t.EmailDays != nil {
		req.EmailDays = *t.EmailDays
	}
	if t.MaxEmails != nil {
		req.MaxEmails = *t.MaxEmails
	}
	return req
}

func (s *server) handleDealPriorities(w http.ResponseWriter, r *http.Request) {
	var body taskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", briefing.KindInvalidRequest)
		return
	}

	req := body.toRequest(s.opts.Defaults)
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), briefing.KindInvalidRequest)
		return
	}

	if !body.Async {
		a, err := runBriefing(r.Context(), s.runner, s.store, req, s.opts.Timeout)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
		return
	}

	if body.CallbackURL == "" && s.opts.DefaultWebhook == "" {
		writeError(w, http.StatusBadRequest, "callback_url is required for async tasks", briefing.KindInvalidRequest)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runAsync(req, body.CallbackURL)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *server) runAsync(req briefing.Request, callbackURL string) {
	a, err := runBriefing(s.ctx, s.runner, s.store, req, s.opts.Timeout)

	ev := notify.Event{Status: notify.StatusComplete, Analysis: a}
	if a != nil {
		ev.RunID = a.RunID
	}
	if err != nil {
		ev.Status = notify.StatusFailed
		ev.Error = err.Error()
		if kind, ok := briefing.KindOf(err); ok {
			ev.Kind = string(kind)
		}
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), time.Minute)
	defer cancel()
	if err := s.notifier.Send(sendCtx, callbackURL, ev); err != nil {
		zap.L().Error("async briefing callback failed", zap.Error(err))
	}
}

func (s *server) handleListBriefings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "run history is disabled", "")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{Status: model.RunStatus(q.Get("status"))}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list briefings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list briefings failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) handleGetBriefing(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "run history is disabled", "")
		return
	}

	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "briefing not found", "")
	case err != nil:
		zap.L().Error("get briefing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get briefing failed", "")
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

// statusForKind maps a failure kind onto the HTTP status returned to callers.
func statusForKind(kind briefing.Kind) int {
	switch kind {
	case briefing.KindInvalidRequest:
		return http.StatusBadRequest
	case briefing.KindCredential:
		return http.StatusUnauthorized
	case briefing.KindUpstream, briefing.KindModelCall, briefing.KindModelResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	kind, _ := briefing.KindOf(err)
	writeError(w, statusForKind(kind), err.Error(), kind)
}

func writeError(w http.ResponseWriter, status int, msg string, kind briefing.Kind) {
	body := map[string]string{"error": msg}
	if kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
