// Command captured is the owner-process binary: it hosts the External
// Event Hub, the Probe Lease Coordinator, and the controller-context
// runner behind a small HTTP surface (SPEC_FULL.md §6.5). Shaped after
// the teacher's cmd/ai/main.go (build dependencies, call Run), minus
// mxmain.BridgeMain — there is no Matrix homeserver in this domain, so
// this main owns its own signal-handled context instead (see
// DESIGN.md for the drop justification).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/captured/llm-capture/internal/adapter"
	"github.com/captured/llm-capture/internal/adapter/chatgpt"
	"github.com/captured/llm-capture/internal/adapter/gemini"
	"github.com/captured/llm-capture/internal/adapter/grok"
	"github.com/captured/llm-capture/internal/calibration"
	"github.com/captured/llm-capture/internal/httpx"
	"github.com/captured/llm-capture/internal/hub"
	"github.com/captured/llm-capture/internal/interceptor"
	"github.com/captured/llm-capture/internal/probelease"
	"github.com/captured/llm-capture/internal/protocol"
	"github.com/captured/llm-capture/internal/runner"
)

// Information to find out exactly which commit the binary was built
// from. Filled at build time with the -X linker flag.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const externalEventsPortName = "external-events"

func main() {
	addr := flag.String("addr", "127.0.0.1:8787", "address to listen on")
	statePath := flag.String("state", "captured-state.json", "path to the hub's persisted state file")
	calibrationPath := flag.String("calibration", "calibration.yaml", "path to the calibration overrides file")
	debounceMs := flag.Int("debounce-ms", hub.DefaultDebounceMs, "hub persistence debounce delay in milliseconds")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("tag", Tag).Str("commit", Commit).Logger()

	profiles, err := calibration.Load(*calibrationPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load calibration profiles")
	}

	registry := adapter.NewRegistry(chatgpt.New(), gemini.New(), grok.New())

	now := func() int64 { return time.Now().UnixMilli() }

	h := hub.New(hub.Options{
		Store:      hub.NewFileStore(*statePath),
		PortName:   externalEventsPortName,
		Now:        now,
		DebounceMs: *debounceMs,
		Log:        log,
	})

	leaseStore := probelease.NewStore()
	leaseClient := probelease.NewClient(probelease.NewLocalTransport(leaseStore, now), log, now)

	warm := runner.NewWarmFetch(httpx.New(15*time.Second), registry, profiles, nil, log)

	run := runner.New(registry, profiles, h, leaseClient, warm, now, log)

	// hook stands in for the page context's fetch/XHR interception
	// (SPEC_FULL.md §4.9): with no real browser in this reimplementation,
	// a companion that wants its outbound platform traffic classified
	// routes it through /v1/proxy, which serves it with hook as the
	// RoundTripper. hook.Events() is exactly the channel spec.md §2
	// describes the runner as draining, in place of postMessage.
	hook := interceptor.New(nil, registry, protocol.NewSessionToken(), log)
	log.Info().Msg("captured owner process starting")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go run.Run(ctx, hook.Events())

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/external", externalHandler(h))
	mux.HandleFunc("/ws", wsHandler(h, log))
	mux.HandleFunc("/v1/proxy", proxyHandler(hook, log))

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("failed to bind listener")
	}

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}()
	log.Info().Str("addr", *addr).Msg("listening")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

// externalHandler implements SPEC_FULL.md §6.5's POST /v1/external
// JSON-RPC-shaped binding of handleExternalRequest.
func externalHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req hub.ExternalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		resp := h.HandleExternalRequest(req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// wsHandler accepts a subscriber connection and hands it to the hub's
// broadcaster, gated on the negotiated subprotocol matching the
// configured external-events port name (spec.md §6.3/§6.5).
func wsHandler(h *hub.Hub, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{externalEventsPortName},
		})
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		if err := h.Subscribe(conn, conn.Subprotocol()); err != nil {
			log.Warn().Err(err).Msg("subscriber rejected")
		}
	}
}

// proxyHandler forwards the request body to the URL named by the
// X-Capture-Target header through hook, so its response is classified
// and emitted as envelopes the same way an in-page fetch would be
// (SPEC_FULL.md §4.9). It is the one piece of real network surface a
// companion process needs: everything else is local channel wiring.
func proxyHandler(hook *interceptor.Hook, log zerolog.Logger) http.HandlerFunc {
	client := &http.Client{Transport: hook}
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.Header.Get("X-Capture-Target")
		if target == "" {
			http.Error(w, "missing X-Capture-Target header", http.StatusBadRequest)
			return
		}
		outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid target: %v", err), http.StatusBadRequest)
			return
		}
		outReq.Header = r.Header.Clone()
		outReq.Header.Del("X-Capture-Target")

		resp, err := client.Do(outReq)
		if err != nil {
			log.Warn().Err(err).Str("target", target).Msg("proxied request failed")
			http.Error(w, fmt.Sprintf("upstream error: %v", err), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}
