// Package queue defines message payloads exchanged over the message broker.
package queue

// InvoicePaidEvent is published when a payment webhook confirms an invoice.
// It contains enough information for downstream consumers to notify or
// reconcile without querying the primary database.
type InvoicePaidEvent struct {
	InvoiceID     string  `json:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number"`
	StudentID     string  `json:"student_id"`
	PaymentID     string  `json:"payment_id"`
	Amount        float64 `json:"amount"`
	PaidAt        string  `json:"paid_at"`
}

// AllocationCreatedEvent is published when a student is allocated a dormitory
// bed.
type AllocationCreatedEvent struct {
	AllocationID string `json:"allocation_id"`
	StudentID    string `json:"student_id"`
	DormitoryID  string `json:"dormitory_id"`
	RoomID       string `json:"room_id"`
	CreatedAt    string `json:"created_at"`
}

// Queue names. Durable queues, one per event type.
const (
	QueueInvoicePaid       = "invoice.paid"
	QueueAllocationCreated = "allocation.created"
)
