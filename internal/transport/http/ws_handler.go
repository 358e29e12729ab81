package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"competition-grader/internal/app"
)

// WSHandler gives one grader an interactive channel on one submission:
// record overrides, run code answers and finalize the grade.
type WSHandler struct {
	service  *app.GradingService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GradingService) *WSHandler {
	return &WSHandler{
		service: service,
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

type overridePayload struct {
	QuestionID string `json:"questionId"`
	IsCorrect  *bool  `json:"isCorrect"`
}

type runPayload struct {
	QuestionID string `json:"questionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and serves messages for ?submissionId=.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	submissionID := r.URL.Query().Get("submissionId")
	if submissionID == "" {
		http.Error(w, "missing submissionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	view, err := h.service.Submission(ctx, submissionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "submission", Payload: view}

	fail := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
	}
	invalid := func(msg string) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: codeFromStatus(http.StatusBadRequest), Message: msg}}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "override":
			var payload overridePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" || payload.IsCorrect == nil {
				invalid("invalid override payload")
				continue
			}
			overrides, err := h.service.SetOverride(ctx, submissionID, payload.QuestionID, *payload.IsCorrect)
			if err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage[any]{Type: "overrides", Payload: overrides}
		case "finalize":
			var payload manualGradesRequest
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					invalid("invalid finalize payload")
					continue
				}
			}
			grades, msg := toGrades(payload.Grades)
			if msg != "" {
				invalid(msg)
				continue
			}
			res, err := h.service.SubmitManualGrades(ctx, submissionID, grades)
			if err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage[any]{Type: "result", Payload: res}
		case "run":
			var payload runPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
				invalid("invalid run payload")
				continue
			}
			out, err := h.service.RunCode(ctx, submissionID, payload.QuestionID)
			if err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage[any]{Type: "execution", Payload: out}
		default:
			invalid("unsupported message type")
		}
	}

	close(send)
	<-writerDone
}

func toErrorPayload(err error) errorPayload {
	status := statusFromError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	return errorPayload{Code: codeFromStatus(status), Message: msg}
}
