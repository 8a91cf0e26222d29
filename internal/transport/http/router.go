package http

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Flows   *FlowHandler
	Admin   *AdminHandler
	Courses *CourseHandler
	WS      *WSHandler
}

// NewRouter creates the API router with all endpoints, wrapped in CORS and panic recovery.
func NewRouter(h Handlers, corsOrigins []string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/catalog", h.Flows.Catalog).Methods(http.MethodGet)
	v1.HandleFunc("/flows/quiz", h.Flows.StartQuiz).Methods(http.MethodPost)
	v1.HandleFunc("/flows/wizard", h.Flows.StartWizard).Methods(http.MethodPost)
	v1.HandleFunc("/flows/{id}", h.Flows.Get).Methods(http.MethodGet)
	v1.HandleFunc("/flows/{id}", h.Flows.Release).Methods(http.MethodDelete)
	v1.HandleFunc("/flows/{id}/events", h.Flows.Apply).Methods(http.MethodPost)
	v1.HandleFunc("/flows/{id}/payment-proof", h.Flows.PaymentProof).Methods(http.MethodPost)
	v1.HandleFunc("/flows/{id}/submit", h.Flows.Submit).Methods(http.MethodPost)
	v1.HandleFunc("/flows/{id}/cancel", h.Flows.Cancel).Methods(http.MethodPost)

	if h.WS != nil {
		v1.HandleFunc("/ws/flows/{id}", h.WS.ServeWS).Methods(http.MethodGet)
	}

	if h.Courses != nil {
		v1.HandleFunc("/courses", h.Courses.Courses).Methods(http.MethodGet)
		v1.HandleFunc("/courses/{id}/dates", h.Courses.CourseDates).Methods(http.MethodGet)
	}

	if h.Admin != nil {
		adminRoutes := v1.PathPrefix("/admin").Subrouter()
		adminRoutes.HandleFunc("/overview", h.Admin.Overview).Methods(http.MethodGet)

		adminRoutes.HandleFunc("/students", h.Admin.Students).Methods(http.MethodGet)
		adminRoutes.HandleFunc("/students", h.Admin.CreateStudent).Methods(http.MethodPost)
		adminRoutes.HandleFunc("/students/{id}", h.Admin.Student).Methods(http.MethodGet)
		adminRoutes.HandleFunc("/students/{id}", h.Admin.UpdateStudent).Methods(http.MethodPut)
		adminRoutes.HandleFunc("/students/{id}", h.Admin.DeleteStudent).Methods(http.MethodDelete)
		adminRoutes.HandleFunc("/students/{id}/toggle-status", h.Admin.ToggleStudent).Methods(http.MethodPatch)

		adminRoutes.HandleFunc("/attempts", h.Admin.Attempts).Methods(http.MethodGet)
		adminRoutes.HandleFunc("/attempts/{id}", h.Admin.Attempt).Methods(http.MethodGet)

		adminRoutes.HandleFunc("/enrollments", h.Admin.Enroll).Methods(http.MethodPost)
		adminRoutes.HandleFunc("/enrollments/{id}/cancel", h.Admin.CancelEnrollment).Methods(http.MethodPatch)

		adminRoutes.HandleFunc("/enrollment-forms", h.Admin.Forms).Methods(http.MethodGet)
		adminRoutes.HandleFunc("/enrollment-forms", h.Admin.SubmitForm).Methods(http.MethodPost)
		adminRoutes.HandleFunc("/enrollment-forms/{id}", h.Admin.Form).Methods(http.MethodGet)
		adminRoutes.HandleFunc("/enrollment-forms/{id}/review", h.Admin.Review).Methods(http.MethodPatch)
		adminRoutes.HandleFunc("/enrollment-forms/{id}/documents", h.Admin.UploadDocument).Methods(http.MethodPost)
		adminRoutes.HandleFunc("/enrollment-forms/{id}/{format:pdf|html}", h.Admin.FormDocument).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(cors(r))
}
