package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"srp-quiz-service/internal/app"
	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/logger"
	"github.com/xeipuuv/gojsonschema"
)

const maxIngestBytes = 2 << 20

const resultSchema = `{
  "type": "object",
  "required": ["student_number", "week", "trials"],
  "properties": {
    "session_id": {"type": "string"},
    "student_number": {"type": "string", "pattern": "^[0-9]{8}$"},
    "week": {"type": "integer"},
    "topics_run": {"type": "array", "items": {"type": "string"}},
    "started_at": {"type": "string"},
    "completed_at": {"type": "string", "format": "date-time"},
    "visibility_blurs": {"type": "integer", "minimum": 0},
    "reattempt": {"type": "boolean"},
    "device": {
      "type": "object",
      "properties": {
        "w": {"type": "integer"},
        "h": {"type": "integer"},
        "ua": {"type": "string"}
      }
    },
    "trials": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["trial_index", "topic", "phase"],
        "properties": {
          "trial_index": {"type": "integer", "minimum": 1},
          "id": {"type": "string"},
          "topic": {"type": "string"},
          "week": {"type": "integer"},
          "phase": {"enum": ["first_pass", "mastery", "meta"]},
          "attempt": {"type": "integer", "minimum": 0},
          "rt_ms": {"type": "integer", "minimum": 0},
          "answer_raw": {"type": "string"},
          "answer_norm": {"type": "string"},
          "correct": {"type": ["boolean", "null"]},
          "predicted_correct": {"type": "integer", "minimum": 0},
          "ts": {"type": "string"}
        }
      }
    }
  }
}`

// APIHandler serves the JSON endpoints next to the websocket.
type APIHandler struct {
	service *app.QuizService
	log     *logger.Logger
	schema  *gojsonschema.Schema
}

func NewAPIHandler(service *app.QuizService, log *logger.Logger) (*APIHandler, error) {
	if log == nil {
		log = logger.Nop()
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resultSchema))
	if err != nil {
		return nil, err
	}
	return &APIHandler{service: service, log: log.With("handler", "api"), schema: schema}, nil
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// Ingest stores a result document produced by a client that ran the session itself.
func (h *APIHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}

	validation, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body is not valid JSON"})
		return
	}
	if !validation.Valid() {
		details := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			details = append(details, e.String())
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidResult.Error(), Details: details})
		return
	}

	var result domain.SessionResult
	if err := json.Unmarshal(body, &result); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidResult.Error()})
		return
	}

	res, err := h.service.Ingest(r.Context(), result)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, domain.ErrInvalidResult):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.log.Error("ingest failed", "student_number", result.StudentNumber, "week", result.Week, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
}

// Status reports whether a first attempt is stored for ?studentId=&week=.
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(r.URL.Query().Get("week"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidWeek.Error()})
		return
	}
	status, err := h.service.Status(r.Context(), r.URL.Query().Get("studentId"), week)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, status)
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
}

// Catalog lists the configured weeks and their topics.
func (h *APIHandler) Catalog(w http.ResponseWriter, _ *http.Request) {
	type weekTopics struct {
		Week   int      `json:"week"`
		Topics []string `json:"topics"`
	}
	catalog := h.service.Catalog()
	out := make([]weekTopics, 0)
	for _, week := range catalog.Weeks() {
		out = append(out, weekTopics{Week: week, Topics: catalog.Topics(week)})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
