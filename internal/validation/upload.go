package validation

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadBytes bounds payment receipts and enrollment documents.
const MaxUploadBytes = 5 << 20

const (
	MsgFileRequired      = "Please choose a file to upload"
	MsgFileType          = "Only JPEG, PNG or PDF files are allowed"
	MsgFileSize          = "File must be 5 MB or smaller"
	MsgTransactionID     = "Please enter the transaction ID"
	MsgDocumentTypeEmpty = "Please choose a document type"
)

var allowedUploadTypes = []string{"image/jpeg", "image/png", "application/pdf"}

// Upload is a file as received from a multipart form.
type Upload struct {
	Filename string
	Data     []byte
}

// File enforces the JPEG/PNG/PDF and 5 MB constraints. Content is sniffed; the filename is not trusted.
func File(field string, u Upload) error {
	var c Collector
	if len(u.Data) == 0 {
		c.Add(field, MsgFileRequired)
		return c.Err()
	}
	c.Check(len(u.Data) <= MaxUploadBytes, field, MsgFileSize)

	mt := mimetype.Detect(u.Data)
	allowed := false
	for _, t := range allowedUploadTypes {
		if mt.Is(t) {
			allowed = true
			break
		}
	}
	c.Check(allowed, field, MsgFileType)
	return c.Err()
}

// PaymentProof is a bank-transfer receipt submitted instead of a card payment.
type PaymentProof struct {
	TransactionID string  `json:"transactionId" validate:"notblank"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	Receipt       Upload  `json:"-" validate:"-"`
}

var proofMessages = Messages{
	"transactionId": MsgTransactionID,
	"amount":        MsgAmount,
}

// ProofDetails validates the typed fields of a payment proof.
func ProofDetails(p PaymentProof) error {
	var c Collector
	c.Struct(context.Background(), p, proofMessages)
	return c.Err()
}

// PaymentProofForm validates a payment-proof submission, receipt included.
func PaymentProofForm(p PaymentProof) error {
	var c Collector
	c.Merge(ProofDetails(p))
	c.Merge(File("receipt", p.Receipt))
	return c.Err()
}

// Document validates an enrollment document upload.
func Document(documentType string, u Upload) error {
	var c Collector
	c.Var(context.Background(), "documentType", documentType, "notblank", Messages{"documentType": MsgDocumentTypeEmpty})
	c.Merge(File("file", u))
	return c.Err()
}

// HumanSize renders a byte count for messages and logs.
func HumanSize(n int) string {
	if n < 1<<20 {
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
}
