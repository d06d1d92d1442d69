package main

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/function61/gokit/httputils"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/gokit/taskrunner"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/function61/lambda-heartbeat/pkg/hbping"
	"github.com/function61/lambda-heartbeat/pkg/hbstore"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"log"
	"net/http"
	"strings"
	"time"
)

type restApi struct {
	handler *hbping.Handler
	keys    hbstore.KeyStore
	logl    *logex.Leveled
	now     func() time.Time
}

func newRestApi(handler *hbping.Handler, keys hbstore.KeyStore, logger *log.Logger) *mux.Router {
	api := &restApi{
		handler: handler,
		keys:    keys,
		logl:    logex.Levels(logger),
		now:     time.Now,
	}

	return api.routes()
}

func (a *restApi) routes() *mux.Router {
	router := mux.NewRouter()

	// /heartbeat/nightly-backup?interval=24h
	router.HandleFunc("/heartbeat/{slug}", a.authenticated(func(w http.ResponseWriter, r *http.Request) {
		sum, err := a.handler.Ping(r.Context(), mux.Vars(r)["slug"], r.URL.Query().Get("interval"), a.now())
		a.respond(w, sum, err)
	})).Methods(http.MethodGet, http.MethodPost)

	router.HandleFunc("/heartbeat/{slug}/fail", a.authenticated(func(w http.ResponseWriter, r *http.Request) {
		sum, err := a.handler.Fail(r.Context(), mux.Vars(r)["slug"], a.now())
		a.respond(w, sum, err)
	})).Methods(http.MethodPost)

	router.HandleFunc("/monitors", a.authenticated(func(w http.ResponseWriter, r *http.Request) {
		summaries, err := a.handler.List(r.Context(), a.now())
		a.respond(w, summaries, err)
	})).Methods(http.MethodGet)

	router.HandleFunc("/monitors/{slug}", a.authenticated(func(w http.ResponseWriter, r *http.Request) {
		err := a.handler.Delete(r.Context(), mux.Vars(r)["slug"])
		a.respond(w, map[string]bool{"ok": true}, err)
	})).Methods(http.MethodDelete)

	router.HandleFunc("/monitors/{slug}/pause", a.authenticated(func(w http.ResponseWriter, r *http.Request) {
		sum, err := a.handler.Pause(r.Context(), mux.Vars(r)["slug"], a.now())
		a.respond(w, sum, err)
	})).Methods(http.MethodPost)

	router.HandleFunc("/monitors/{slug}/unpause", a.authenticated(func(w http.ResponseWriter, r *http.Request) {
		sum, err := a.handler.Unpause(r.Context(), mux.Vars(r)["slug"], a.now())
		a.respond(w, sum, err)
	})).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.respond(w, nil, hbdomain.ErrNotFound)
	})

	return router
}

// Authorization: Bearer <api key>
func (a *restApi) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if apiKey == "" || apiKey == r.Header.Get("Authorization") {
			a.respond(w, nil, hbdomain.ErrUnauthorized)
			return
		}

		if _, err := a.keys.LookupKey(r.Context(), apiKey); err != nil {
			if errors.Is(err, hbdomain.ErrNotFound) {
				err = hbdomain.ErrUnauthorized
			}

			a.respond(w, nil, err)
			return
		}

		next(w, r)
	}
}

func (a *restApi) respond(w http.ResponseWriter, output interface{}, err error) {
	noCacheHeaders(w)

	if err != nil {
		status := errorStatus(err)

		msg := err.Error()
		if status == http.StatusInternalServerError {
			a.logl.Error.Println(msg)
			msg = hbdomain.ErrStoreUnavailable.Error() // details only to log
		}

		handleJsonOutput(w, status, map[string]string{"error": msg})
		return
	}

	handleJsonOutput(w, http.StatusOK, output)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, hbdomain.ErrInvalidSlug), errors.Is(err, hbdomain.ErrInvalidInterval):
		return http.StatusBadRequest
	case errors.Is(err, hbdomain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, hbdomain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func handleJsonOutput(w http.ResponseWriter, status int, output interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(output); err != nil {
		panic(err)
	}
}

func noCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, must-revalidate")
}

func restApiCliEntry() *cobra.Command {
	addr := envOr("LISTEN_ADDR", ":80")
	checkInterval := 1 * time.Minute

	cmd := &cobra.Command{
		Use:   "restapi",
		Short: "Start REST API and overdue checker (standalone, i.e. outside of Lambda)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := logex.StandardLogger()

			exitIfError(runStandaloneRestApi(
				ossignal.InterruptOrTerminateBackgroundCtx(logger),
				addr,
				checkInterval,
				logger))
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "", addr, "Address to listen on")
	cmd.Flags().DurationVarP(&checkInterval, "check-interval", "", checkInterval, "How often to scan for overdue monitors (0 = never)")

	return cmd
}

func runStandaloneRestApi(
	ctx context.Context,
	addr string,
	checkInterval time.Duration,
	logger *log.Logger,
) error {
	app, err := getApp(ctx, logger)
	if err != nil {
		return err
	}
	defer app.close()

	router := newRestApi(app.handler, app.keys, logex.Prefix("restapi", logger))
	router.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // a ping may wait on a recovery notification
	}

	tasks := taskrunner.New(ctx, logger)

	tasks.Start("listener "+srv.Addr, func(_ context.Context, _ string) error {
		return httputils.RemoveGracefulServerClosedError(srv.ListenAndServe())
	})

	tasks.Start("listenershutdowner", httputils.ServerShutdownTask(srv))

	if checkInterval > 0 {
		tasks.Start("checker", func(ctx context.Context, _ string) error {
			return runCheckerLoop(ctx, app, checkInterval)
		})
	}

	return tasks.Wait()
}
