package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/rolls"
	"github.com/cory-johannsen/multiroll/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dice animation hub and the item use endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		o := opts
		o.withHub = true
		a, err := newApp(ctx, o)
		if err != nil {
			return err
		}
		defer a.close()

		srv := &http.Server{
			Addr:              a.cfg.Animation.Addr(),
			Handler:           a.routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		lc := server.NewLifecycle(a.logger)
		lc.Add("http", &server.FuncService{
			StartFn: func() error {
				a.logger.Info("listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			},
			StopFn: func() {
				a.hub.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			},
		})
		return lc.Run(ctx)
	},
}

// useRequest is the body of POST /use.
type useRequest struct {
	Item       string `json:"item"`
	Shift      bool   `json:"shiftKey"`
	Alt        bool   `json:"altKey"`
	Ctrl       bool   `json:"ctrlKey"`
	Meta       bool   `json:"metaKey"`
	ClientX    int    `json:"clientX"`
	ClientY    int    `json:"clientY"`
	SpellLevel *int   `json:"spellLevel,omitempty"`
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", a.hub)
	mux.HandleFunc("POST /use", a.handleUse())
	mux.HandleFunc("GET /healthz", a.handleHealth)
	return mux
}

// handleHealth runs every store check and answers 503 when any fails.
func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(a.checks))
	for _, c := range a.checks {
		if err := c.check(r.Context()); err != nil {
			a.logger.Warn("health check failed", zap.String("check", c.name), zap.Error(err))
			checks[c.name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.name] = "ok"
	}
	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleUse uses an item on behalf of a client. Uses are serialized because
// the modifier snapshot is process-wide.
func (a *app) handleUse() http.HandlerFunc {
	var mu sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		var req useRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		it, err := a.item(req.Item)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		a.keys.Set(rolls.Modifiers{
			Shift: req.Shift, Alt: req.Alt, Ctrl: req.Ctrl, Meta: req.Meta,
			ClientX: req.ClientX, ClientY: req.ClientY,
		})
		card, err := a.patcher.RollItem(r.Context(), it, rolls.ItemRollRequest{SpellLevel: req.SpellLevel})
		if err != nil {
			a.logger.Error("item use failed", zap.String("item", it.ID), zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"card": card.ID()})
	}
}
