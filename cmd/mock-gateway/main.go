// mock-gateway stands in for the external payment processor during local
// runs. It accepts most payments, declines amounts ending in .99 and fails
// transiently at a configurable rate so the retry path gets exercised.
package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/paygrid/intent-service/internal/logging"
)

type processRequest struct {
	IntentID string `json:"intent_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func main() {
	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	failureRate := 0.0
	if v := os.Getenv("FAILURE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			failureRate = f
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})

	mux.HandleFunc("POST /process", func(w http.ResponseWriter, r *http.Request) {
		var req processRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if rand.Float64() < failureRate {
			slog.Info("simulating transient failure", "intent_id", req.IntentID)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if strings.HasSuffix(req.Amount, ".99") {
			slog.Info("declining payment", "intent_id", req.IntentID, "amount", req.Amount)
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}

		slog.Info("accepting payment", "intent_id", req.IntentID, "amount", req.Amount, "currency", req.Currency)
		w.WriteHeader(http.StatusAccepted)
	})

	slog.Info("mock gateway started", "addr", ":8081", "failure_rate", failureRate)
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
