package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"srp-quiz-service/internal/app"
	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/logger"
	"srp-quiz-service/internal/mastery"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		service: service,
		log:     log.With("handler", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type beginPayload struct {
	Estimate *int `json:"estimate"`
}

type answerPayload struct {
	ItemID string `json:"itemId"`
	Answer string `json:"answer"`
	RTMs   int64  `json:"rtMs"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type startedPayload struct {
	SessionID string                  `json:"sessionId"`
	Prior     domain.SubmissionStatus `json:"prior"`
}

type topicPayload struct {
	Topic   string   `json:"topic"`
	Label   string   `json:"label"`
	Goal    int      `json:"goal"`
	Size    int      `json:"size"`
	Skipped []string `json:"skipped,omitempty"`
}

type itemPayload struct {
	ID           string              `json:"id"`
	Image        string              `json:"image"`
	QuestionType domain.QuestionType `json:"questionType"`
	Template     string              `json:"template,omitempty"`
	Phase        domain.Phase        `json:"phase"`
	Attempt      int                 `json:"attempt"`
}

type feedbackPayload struct {
	Correct       bool               `json:"correct"`
	Canonical     string             `json:"canonical,omitempty"`
	Trial         domain.TrialRecord `json:"trial"`
	TopicComplete bool               `json:"topicComplete"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func message(typ string, payload any) outboundMessage[any] {
	return outboundMessage[any]{Type: typ, Payload: payload}
}

func errorMessage(err error) outboundMessage[any] {
	return message("error", errorPayload{Message: err.Error()})
}

func newItemPayload(p app.Presentation) itemPayload {
	return itemPayload{
		ID:           p.Item.ID,
		Image:        p.Item.Image,
		QuestionType: p.Item.QuestionType,
		Template:     p.Item.UnfilledTemplate,
		Phase:        p.Phase,
		Attempt:      p.Attempt,
	}
}

// ServeWS validates the start parameters, starts a practice session and runs
// its message loop. Invalid parameters are rejected before the upgrade.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	week, err := strconv.Atoi(q.Get("week"))
	if err != nil {
		http.Error(w, domain.ErrInvalidWeek.Error(), http.StatusBadRequest)
		return
	}
	reattempt, _ := strconv.ParseBool(q.Get("reattempt"))
	width, _ := strconv.Atoi(q.Get("w"))
	height, _ := strconv.Atoi(q.Get("h"))

	started, err := h.service.Start(r.Context(), app.StartRequest{
		StudentID: q.Get("studentId"),
		Week:      week,
		Reattempt: reattempt,
		Device:    domain.Device{W: width, H: height, UA: r.UserAgent()},
	})
	switch {
	case err == nil:
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrItemsUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sessionID := started.Session.ID()
	defer h.service.Leave(r.Context(), sessionID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer goroutine; gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write error", "session_id", sessionID, "error", err)
				return
			}
		}
	}()

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	emit(message("started", startedPayload{SessionID: sessionID, Prior: started.Prior}))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if done := h.dispatch(r, sessionID, inbound, emit); done {
			break
		}
	}

	close(send)
	<-writerDone
}

// dispatch handles one client message and reports whether the loop should stop.
func (h *WSHandler) dispatch(r *http.Request, sessionID string, inbound inboundMessage, emit func(outboundMessage[any])) bool {
	ctx := r.Context()
	switch inbound.Type {
	case "begin":
		var payload beginPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(message("error", errorPayload{Message: "invalid begin payload"}))
				return false
			}
		}
		step, err := h.service.Advance(ctx, sessionID)
		if err != nil {
			emit(errorMessage(err))
			return false
		}
		if step.Done {
			emit(message("summary", step.Summary))
			switch {
			case step.Submission != nil:
				emit(message("submitted", step.Submission))
			case step.SubmitError != "":
				emit(message("error", errorPayload{Message: step.SubmitError}))
			}
			return false
		}
		emit(message("topic", topicPayload{Topic: step.Topic, Label: step.Label, Goal: step.Goal, Size: step.Size, Skipped: step.Skipped}))
		if payload.Estimate != nil {
			if _, err := h.service.Estimate(ctx, sessionID, *payload.Estimate); err != nil {
				emit(errorMessage(err))
			}
		}
		if step.First != nil {
			emit(message("item", newItemPayload(*step.First)))
		}

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			emit(message("error", errorPayload{Message: "invalid answer payload"}))
			return false
		}
		fb, err := h.service.SubmitAnswer(ctx, sessionID, mastery.Answer{
			ItemID:       payload.ItemID,
			Raw:          payload.Answer,
			ReactionTime: time.Duration(payload.RTMs) * time.Millisecond,
		})
		if err != nil {
			emit(errorMessage(err))
			return false
		}
		emit(message("feedback", feedbackPayload{
			Correct:       fb.Correct,
			Canonical:     fb.Canonical,
			Trial:         fb.Trial,
			TopicComplete: fb.Effect == mastery.EffectTopicComplete,
		}))
		if fb.Next != nil {
			emit(message("item", newItemPayload(*fb.Next)))
		}

	case "blur":
		if err := h.service.Blur(ctx, sessionID); err != nil {
			emit(errorMessage(err))
		}

	case "submit":
		res, err := h.service.Finish(ctx, sessionID)
		if err != nil {
			// The session is kept; the client may retry.
			emit(errorMessage(err))
			return false
		}
		emit(message("submitted", res))

	case "reset":
		if err := h.service.Reset(ctx, sessionID); err != nil {
			emit(errorMessage(err))
			return false
		}
		emit(message("reset", struct{}{}))
		return true

	default:
		emit(message("error", errorPayload{Message: "unsupported message type"}))
	}
	return false
}
