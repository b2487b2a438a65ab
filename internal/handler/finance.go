package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/payment"
	"github.com/iliyamo/school-management/internal/queue"
	"github.com/iliyamo/school-management/internal/service"
	"github.com/iliyamo/school-management/internal/store"
)

// FinanceHandler manages fee types, invoices and payments.
type FinanceHandler struct {
	Store   store.Store
	Gateway payment.Gateway
	Events  *service.EventPublisher
}

func NewFinanceHandler(db store.Store, gw payment.Gateway, events *service.EventPublisher) *FinanceHandler {
	return &FinanceHandler{Store: db, Gateway: gw, Events: events}
}

type createFeeTypeReq struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Frequency   string  `json:"frequency"`
}

type createInvoiceReq struct {
	StudentID string  `json:"student_id"`
	FeeTypeID string  `json:"fee_type_id"`
	Amount    float64 `json:"amount"`
	DueDate   string  `json:"due_date"`
	Notes     string  `json:"notes"`
}

type createPaymentReq struct {
	InvoiceID string `json:"invoice_id"`
	Method    string `json:"method"`
}

type webhookReq struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

func refCode(prefix string) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(b)))
}

func (h *FinanceHandler) CreateFeeType(c echo.Context) error {
	var req createFeeTypeReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.Name == "" || req.Amount <= 0 {
		return httperr.Validation("name and positive amount required")
	}
	switch req.Frequency {
	case "":
		req.Frequency = "one_time"
	case "one_time", "monthly", "quarterly", "yearly":
	default:
		return httperr.Validation("invalid frequency")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	doc := store.Document{
		"id":          uuid.NewString(),
		"name":        req.Name,
		"description": req.Description,
		"amount":      req.Amount,
		"frequency":   req.Frequency,
		"is_active":   true,
		"created_at":  nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColFeeTypes, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *FinanceHandler) ListFeeTypes(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColFeeTypes, store.Query{}, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"fee_types": docs,
		"total":     len(docs),
		"skip":      skipParam(c),
		"limit":     limit,
	})
}

func (h *FinanceHandler) CreateInvoice(c echo.Context) error {
	var req createInvoiceReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.StudentID == "" || req.FeeTypeID == "" {
		return httperr.Validation("student_id and fee_type_id required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	feeType, err := h.Store.FindOne(ctx, model.ColFeeTypes, store.Query{"id": req.FeeTypeID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("fee type not found")
		}
		return httperr.Internal(err)
	}
	amount := req.Amount
	if amount <= 0 {
		amount, _ = feeType["amount"].(float64)
	}

	doc := store.Document{
		"id":             uuid.NewString(),
		"invoice_number": refCode("INV"),
		"student_id":     req.StudentID,
		"fee_type_id":    req.FeeTypeID,
		"amount":         amount,
		"due_date":       req.DueDate,
		"status":         "pending",
		"notes":          req.Notes,
		"created_at":     nowRFC3339(),
		"updated_at":     nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColInvoices, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *FinanceHandler) ListInvoices(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("student_id"); v != "" {
		query["student_id"] = v
	}
	if v := c.QueryParam("status"); v != "" {
		query["status"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColInvoices, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"invoices": docs,
		"total":    len(docs),
		"skip":     skipParam(c),
		"limit":    limit,
	})
}

// CreatePayment starts a checkout for a pending invoice via the gateway.
func (h *FinanceHandler) CreatePayment(c echo.Context) error {
	var req createPaymentReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.InvoiceID == "" {
		return httperr.Validation("invoice_id required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	invoice, err := h.Store.FindOne(ctx, model.ColInvoices, store.Query{"id": req.InvoiceID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("invoice not found")
		}
		return httperr.Internal(err)
	}
	if invoice["status"] == "paid" {
		return httperr.Conflict("invoice already paid")
	}

	checkout, err := h.Gateway.CreatePayment(ctx, invoice)
	if err != nil {
		return httperr.Dependency("payment gateway unavailable", err)
	}

	doc := store.Document{
		"id":             uuid.NewString(),
		"payment_number": refCode("PAY"),
		"invoice_id":     req.InvoiceID,
		"amount":         invoice["amount"],
		"method":         req.Method,
		"transaction_id": checkout.TransactionID,
		"status":         "pending",
		"created_at":     nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColPayments, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"payment":     doc,
		"payment_url": checkout.PaymentURL,
	})
}

// PaymentWebhook is called by the gateway once a checkout settles. The
// signature header must verify against the raw body before anything is trusted.
func (h *FinanceHandler) PaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httperr.Validation("unreadable body")
	}
	if !h.Gateway.VerifyWebhook(body, c.Request().Header.Get("X-Signature")) {
		return httperr.Unauthenticated("invalid webhook signature")
	}
	var req webhookReq
	if err := json.Unmarshal(body, &req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.TransactionID == "" {
		return httperr.Validation("transaction_id required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	pay, err := h.Store.FindOne(ctx, model.ColPayments, store.Query{"transaction_id": req.TransactionID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("payment not found")
		}
		return httperr.Internal(err)
	}
	if req.Status != "completed" {
		_, _ = h.Store.UpdateOne(ctx, model.ColPayments, store.Query{"id": pay["id"]}, store.Document{"status": req.Status})
		return c.JSON(http.StatusOK, echo.Map{"message": "payment updated"})
	}

	ok, err := h.Store.UpdateOne(ctx, model.ColPayments, store.Query{"id": pay["id"], "status": "pending"}, store.Document{
		"status":  "completed",
		"paid_at": nowRFC3339(),
	})
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		// duplicate delivery, already settled
		return c.JSON(http.StatusOK, echo.Map{"message": "payment updated"})
	}

	invoiceID, _ := pay["invoice_id"].(string)
	paidAt := nowRFC3339()
	_, _ = h.Store.UpdateOne(ctx, model.ColInvoices, store.Query{"id": invoiceID}, store.Document{
		"status":     "paid",
		"paid_at":    paidAt,
		"updated_at": paidAt,
	})

	event := queue.InvoicePaidEvent{
		InvoiceID: invoiceID,
		PaymentID: pay["id"].(string),
		PaidAt:    paidAt,
	}
	event.Amount, _ = pay["amount"].(float64)
	if inv, err := h.Store.FindOne(ctx, model.ColInvoices, store.Query{"id": invoiceID}); err == nil {
		event.InvoiceNumber, _ = inv["invoice_number"].(string)
		event.StudentID, _ = inv["student_id"].(string)
	}
	_ = h.Events.Publish(ctx, queue.QueueInvoicePaid, event)
	return c.JSON(http.StatusOK, echo.Map{"message": "payment completed"})
}
