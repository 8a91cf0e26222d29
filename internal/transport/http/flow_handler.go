package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"llnd-portal/internal/app"
	"llnd-portal/internal/domain"
	"llnd-portal/internal/quiz"
	"llnd-portal/internal/validation"
)

// maxEventBytes bounds JSON request bodies; uploads use validation.MaxUploadBytes.
const maxEventBytes = 1 << 20

// FlowHandler serves the quiz and enrollment flows.
type FlowHandler struct {
	service *app.FlowService
}

func NewFlowHandler(service *app.FlowService) *FlowHandler {
	return &FlowHandler{service: service}
}

// flowView is a public snapshot plus the question on screen, without its answer.
type flowView struct {
	app.Snapshot
	Question *domain.Question `json:"question,omitempty"`
}

func (h *FlowHandler) view(r *http.Request, snap app.Snapshot) flowView {
	v := flowView{Snapshot: snap}
	if q, ok := h.service.CurrentQuestion(r.Context(), snap); ok {
		pub := q.Public()
		v.Question = &pub
	}
	return v
}

type startQuizRequest struct {
	Variant quiz.Variant    `json:"variant"`
	Student *domain.Student `json:"student,omitempty"`
}

// StartQuiz handles POST /v1/flows/quiz
func (h *FlowHandler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Variant == "" {
		req.Variant = quiz.VariantGuest
	}
	snap, err := h.service.StartQuiz(r.Context(), req.Variant, req.Student)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Assessment started", h.view(r, snap))
}

// StartWizard handles POST /v1/flows/wizard
func (h *FlowHandler) StartWizard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.StartWizard(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Enrollment started", h.view(r, snap))
}

// Get handles GET /v1/flows/{id}
func (h *FlowHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, h.view(r, snap))
}

type eventRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Apply handles POST /v1/flows/{id}/events
func (h *FlowHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil || req.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid event")
		return
	}
	snap, err := h.service.Apply(r.Context(), mux.Vars(r)["id"], req.Type, req.Payload)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, h.view(r, snap))
}

// Submit handles POST /v1/flows/{id}/submit
func (h *FlowHandler) Submit(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Submit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Submitted successfully", h.view(r, snap))
}

// Cancel handles POST /v1/flows/{id}/cancel
func (h *FlowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, h.view(r, snap))
}

// Release handles DELETE /v1/flows/{id}. Open flows are kept.
func (h *FlowHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.service.Release(r.Context(), mux.Vars(r)["id"])
	writeOK(w, nil)
}

// PaymentProof handles POST /v1/flows/{id}/payment-proof (multipart: transactionId, amount, receipt).
func (h *FlowHandler) PaymentProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxUploadBytes+maxEventBytes)
	if err := r.ParseMultipartForm(validation.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, validation.MsgFileSize)
		return
	}
	proof := validation.PaymentProof{TransactionID: r.FormValue("transactionId")}
	if raw := r.FormValue("amount"); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, validation.MsgAmount, []validation.FieldError{{Field: "amount", Message: validation.MsgAmount}})
			return
		}
		proof.Amount = amount
	}
	if file, header, err := r.FormFile("receipt"); err == nil {
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read receipt")
			return
		}
		proof.Receipt = validation.Upload{Filename: header.Filename, Data: data}
	}

	snap, err := h.service.PayByProof(r.Context(), mux.Vars(r)["id"], proof)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, h.view(r, snap))
}

// Catalog handles GET /v1/catalog
func (h *FlowHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Catalog(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, c.Public())
}

// decodeJSON reads a bounded JSON body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}
