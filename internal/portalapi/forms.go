package portalapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/imroc/req/v3"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/validation"
)

// FormStatus is the review state of an enrollment form.
type FormStatus string

const (
	FormPending  FormStatus = "pending"
	FormApproved FormStatus = "approved"
	FormRejected FormStatus = "rejected"
)

type EnrollmentFormRecord struct {
	ID          string                `json:"id"`
	StudentID   string                `json:"studentId"`
	Status      FormStatus            `json:"status"`
	Form        domain.EnrollmentForm `json:"form"`
	ReviewNotes string                `json:"reviewNotes,omitempty"`
	ReviewedAt  *time.Time            `json:"reviewedAt,omitempty"`
	SubmittedAt time.Time             `json:"submittedAt"`
}

type EnrollmentFormInput struct {
	StudentID string                `json:"studentId" validate:"notblank"`
	Form      domain.EnrollmentForm `json:"form" validate:"-"`
}

// FormFilter narrows ListEnrollmentForms. SortOrder is "asc" or "desc".
type FormFilter struct {
	Page      int
	Limit     int
	Search    string
	Status    FormStatus
	SortBy    string
	SortOrder string
}

// Review is an admin decision on a form.
type Review struct {
	Status FormStatus `json:"status" validate:"oneof=approved rejected"`
	Notes  string     `json:"notes,omitempty" validate:"required_if=Status rejected"`
}

type FormStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// EnrollmentStatus reports whether a student has submitted their form.
type EnrollmentStatus struct {
	StudentID string     `json:"studentId"`
	Completed bool       `json:"completed"`
	FormID    string     `json:"formId,omitempty"`
	Status    FormStatus `json:"status,omitempty"`
}

type Document struct {
	ID           string `json:"id"`
	FormID       string `json:"formId"`
	DocumentType string `json:"documentType"`
	Filename     string `json:"filename"`
	ContentType  string `json:"contentType"`
	Size         int    `json:"size"`
}

// DocumentFormat selects the rendering of a generated enrollment document.
type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatHTML DocumentFormat = "html"
)

func formPath(id string) string {
	return "/enrollment-forms/" + url.PathEscape(id)
}

func (c *Client) SubmitEnrollmentForm(ctx context.Context, in EnrollmentFormInput) (EnrollmentFormRecord, error) {
	var out EnrollmentFormRecord
	err := c.send(ctx, http.MethodPost, "/enrollment-forms", &out, withBody(in))
	return out, err
}

func (c *Client) GetEnrollmentForm(ctx context.Context, id string) (EnrollmentFormRecord, error) {
	var out EnrollmentFormRecord
	err := c.get(ctx, formPath(id), &out, nil)
	return out, err
}

func (c *Client) ListEnrollmentForms(ctx context.Context, f FormFilter) (Page[EnrollmentFormRecord], error) {
	var out Page[EnrollmentFormRecord]
	err := c.get(ctx, "/enrollment-forms", &out, func(r *req.Request) {
		setPaging(r, f.Page, f.Limit)
		if f.Search != "" {
			r.SetQueryParam("search", f.Search)
		}
		if f.Status != "" {
			r.SetQueryParam("status", string(f.Status))
		}
		if f.SortBy != "" {
			r.SetQueryParam("sortBy", f.SortBy)
		}
		if f.SortOrder != "" {
			r.SetQueryParam("sortOrder", f.SortOrder)
		}
	})
	return out, err
}

// ReviewEnrollmentForm approves or rejects a form.
func (c *Client) ReviewEnrollmentForm(ctx context.Context, id string, review Review) (EnrollmentFormRecord, error) {
	var out EnrollmentFormRecord
	err := c.send(ctx, http.MethodPatch, formPath(id)+"/review", &out, withBody(review))
	return out, err
}

func (c *Client) EnrollmentFormStats(ctx context.Context) (FormStats, error) {
	var out FormStats
	err := c.get(ctx, "/enrollment-forms/stats", &out, nil)
	return out, err
}

func (c *Client) EnrollmentStatus(ctx context.Context, studentID string) (EnrollmentStatus, error) {
	var out EnrollmentStatus
	err := c.get(ctx, "/enrollment-forms/status/"+url.PathEscape(studentID), &out, nil)
	return out, err
}

// UploadDocument attaches a supporting document to a form. The file is
// checked locally before anything is sent.
func (c *Client) UploadDocument(ctx context.Context, formID, documentType string, file validation.Upload) (Document, error) {
	if err := validation.Document(documentType, file); err != nil {
		return Document{}, err
	}
	var out Document
	err := c.send(ctx, http.MethodPost, formPath(formID)+"/documents", &out, func(r *req.Request) {
		r.SetFormData(map[string]string{"documentType": documentType})
		r.SetFileBytes("file", file.Filename, file.Data)
	})
	return out, err
}

// FormDocument fetches the generated PDF or HTML rendering of a form. These
// endpoints return the document itself rather than an envelope.
func (c *Client) FormDocument(ctx context.Context, formID string, format DocumentFormat) ([]byte, string, error) {
	path := formPath(formID) + "/" + string(format)
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", path, err)
	}
	body, err := resp.ToBytes()
	if err != nil {
		return nil, "", fmt.Errorf("read GET %s: %w", path, err)
	}
	if status := resp.GetStatusCode(); status < 200 || status >= 300 {
		return nil, "", &APIError{Method: http.MethodGet, Path: path, Status: status, Message: http.StatusText(status)}
	}
	return body, resp.GetContentType(), nil
}
