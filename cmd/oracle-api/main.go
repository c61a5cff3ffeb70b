// Command oracle-api serves a read-only HTTP view over the oracle's last
// observed state: submission status by batch id, and the attestation
// trail recorded for confirmed batches. It holds no pricing logic of its
// own — that lives in oracled — and never signs or submits anything.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/r3e-network/price-oracle/internal/attestation"
	"github.com/r3e-network/price-oracle/internal/submitter"
)

// Server exposes the status table and attestation store over HTTP.
type Server struct {
	router *mux.Router
	status *submitter.StatusTable
	attest *attestation.Store
	log    zerolog.Logger
}

// NewServer wires routes against the given status table and attestation
// store; the server only reads them. main passes a fresh StatusTable that
// nothing in this process writes, so in this binary the batch-status route
// reports Unknown for every batch.
func NewServer(status *submitter.StatusTable, attest *attestation.Store, log zerolog.Logger) *Server {
	s := &Server{router: mux.NewRouter(), status: status, attest: attest, log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/batches/{batchId}", s.handleGetBatchStatus()).Methods("GET")
	s.router.HandleFunc("/api/v1/batches/{batchId}/attestation", s.handleGetAttestation()).Methods("GET")
	s.router.HandleFunc("/api/v1/health", s.handleHealth()).Methods("GET")
}

func (s *Server) handleGetBatchStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := mux.Vars(r)["batchId"]
		info := s.status.Get(batchID)
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleGetAttestation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := mux.Vars(r)["batchId"]
		rec, found, err := s.attest.Get(batchID)
		if err != nil {
			s.log.Error().Err(err).Str("batchId", batchID).Msg("attestation lookup failed")
			http.Error(w, "failed to read attestation", http.StatusInternalServerError)
			return
		}
		if !found {
			http.Error(w, "no attestation recorded for this batch", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("component", "oracle-api").Logger()

	attestPath := os.Getenv("ATTESTATION_DB")
	if attestPath == "" {
		attestPath = "attestations.db"
	}
	attest, err := attestation.Open(attestPath, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open attestation store")
	}
	defer attest.Close()

	status := submitter.NewStatusTable()
	server := NewServer(status, attest, log)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"*"},
	})
	handler := c.Handler(server.router)

	log.Info().Str("port", port).Msg("oracle-api starting")
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal().Err(err).Msg("oracle-api server failed")
	}
}
