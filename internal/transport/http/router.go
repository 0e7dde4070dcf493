package http

import (
	"net/http"

	"srp-quiz-service/internal/app"
	"srp-quiz-service/internal/logger"
)

// NewRouter wires every endpoint of the service.
func NewRouter(service *app.QuizService, log *logger.Logger) (http.Handler, error) {
	api, err := NewAPIHandler(service, log)
	if err != nil {
		return nil, err
	}
	wsHandler := NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/api/ingest", api.Ingest)
	mux.HandleFunc("/api/status", api.Status)
	mux.HandleFunc("/api/catalog", api.Catalog)
	return mux, nil
}
