package admin

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"llnd-portal/internal/portalapi"
	"llnd-portal/internal/validation"
)

const MsgRejectionNotes = "Please add notes explaining the rejection"

// FormReviewer is the review call of the portal API.
type FormReviewer interface {
	ReviewEnrollmentForm(ctx context.Context, id string, review portalapi.Review) (portalapi.EnrollmentFormRecord, error)
}

type Reviewer struct {
	api FormReviewer
}

func NewReviewer(api FormReviewer) *Reviewer {
	return &Reviewer{api: api}
}

var reviewMessages = validation.Messages{
	"status": "Please choose approve or reject",
	"notes":  MsgRejectionNotes,
}

// ValidateReview requires notes on rejections. Blank notes count as none.
func ValidateReview(r portalapi.Review) error {
	r.Notes = strings.TrimSpace(r.Notes)
	var c validation.Collector
	c.Struct(context.Background(), r, reviewMessages)
	return c.Err()
}

// Review records an admin decision on a form.
func (rv *Reviewer) Review(ctx context.Context, formID string, r portalapi.Review) (portalapi.EnrollmentFormRecord, error) {
	r.Notes = strings.TrimSpace(r.Notes)
	if err := ValidateReview(r); err != nil {
		return portalapi.EnrollmentFormRecord{}, err
	}
	return rv.api.ReviewEnrollmentForm(ctx, formID, r)
}

func (rv *Reviewer) Approve(ctx context.Context, formID, notes string) (portalapi.EnrollmentFormRecord, error) {
	return rv.Review(ctx, formID, portalapi.Review{Status: portalapi.FormApproved, Notes: notes})
}

func (rv *Reviewer) Reject(ctx context.Context, formID, notes string) (portalapi.EnrollmentFormRecord, error) {
	return rv.Review(ctx, formID, portalapi.Review{Status: portalapi.FormRejected, Notes: notes})
}

// StatsSource provides the dashboard counters.
type StatsSource interface {
	StudentStats(ctx context.Context) (portalapi.StudentStats, error)
	EnrollmentFormStats(ctx context.Context) (portalapi.FormStats, error)
}

// Overview is the admin dashboard header.
type Overview struct {
	Students portalapi.StudentStats `json:"students"`
	Forms    portalapi.FormStats    `json:"forms"`
}

// LoadOverview fetches both counters in parallel; either failure fails the overview.
func LoadOverview(ctx context.Context, src StatsSource) (Overview, error) {
	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Students, err = src.StudentStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Forms, err = src.EnrollmentFormStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}
