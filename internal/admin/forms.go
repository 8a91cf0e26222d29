package admin

import (
	"context"
	"time"

	"llnd-portal/internal/portalapi"
	"llnd-portal/internal/validation"
)

// FormAPI is the enrollment form half of the portal API.
type FormAPI interface {
	ListEnrollmentForms(ctx context.Context, f portalapi.FormFilter) (portalapi.Page[portalapi.EnrollmentFormRecord], error)
	GetEnrollmentForm(ctx context.Context, id string) (portalapi.EnrollmentFormRecord, error)
	SubmitEnrollmentForm(ctx context.Context, in portalapi.EnrollmentFormInput) (portalapi.EnrollmentFormRecord, error)
	UploadDocument(ctx context.Context, formID, documentType string, file validation.Upload) (portalapi.Document, error)
	FormDocument(ctx context.Context, formID string, format portalapi.DocumentFormat) ([]byte, string, error)
}

// formFilter holds the query rules for the forms list.
type formFilter struct {
	Status    string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	SortBy    string `json:"sortBy" validate:"omitempty,oneof=submittedAt reviewedAt status"`
	SortOrder string `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

var (
	filterMessages = validation.Messages{
		"status":    "status must be one of {param}",
		"sortBy":    "sortBy must be one of {param}",
		"sortOrder": "sortOrder must be asc or desc",
	}
	submitMessages = validation.Messages{
		"studentId": "Please choose a student",
	}
	formatMessages = validation.Messages{
		"format": "format must be pdf or html",
	}
)

type Forms struct {
	api FormAPI
	now func() time.Time
}

func NewForms(api FormAPI) *Forms {
	return &Forms{api: api, now: time.Now}
}

func (f *Forms) List(ctx context.Context, filter portalapi.FormFilter) (portalapi.Page[portalapi.EnrollmentFormRecord], error) {
	var c validation.Collector
	c.Struct(ctx, formFilter{Status: string(filter.Status), SortBy: filter.SortBy, SortOrder: filter.SortOrder}, filterMessages)
	if err := c.Err(); err != nil {
		return portalapi.Page[portalapi.EnrollmentFormRecord]{}, err
	}
	return f.api.ListEnrollmentForms(ctx, filter)
}

func (f *Forms) Get(ctx context.Context, id string) (portalapi.EnrollmentFormRecord, error) {
	return f.api.GetEnrollmentForm(ctx, id)
}

// Submit files a form for a student who completed it on paper. The form
// goes through the same checks as the wizard's form step.
func (f *Forms) Submit(ctx context.Context, in portalapi.EnrollmentFormInput) (portalapi.EnrollmentFormRecord, error) {
	var c validation.Collector
	c.Struct(ctx, in, submitMessages)
	c.Merge(validation.EnrollmentForm(in.Form, f.now()))
	if err := c.Err(); err != nil {
		return portalapi.EnrollmentFormRecord{}, err
	}
	return f.api.SubmitEnrollmentForm(ctx, in)
}

// Upload attaches a supporting document; the client checks the file first.
func (f *Forms) Upload(ctx context.Context, formID, documentType string, file validation.Upload) (portalapi.Document, error) {
	return f.api.UploadDocument(ctx, formID, documentType, file)
}

// Document returns the rendered form and its content type.
func (f *Forms) Document(ctx context.Context, formID string, format portalapi.DocumentFormat) ([]byte, string, error) {
	var c validation.Collector
	c.Var(ctx, "format", string(format), "oneof=pdf html", formatMessages)
	if err := c.Err(); err != nil {
		return nil, "", err
	}
	return f.api.FormDocument(ctx, formID, format)
}
