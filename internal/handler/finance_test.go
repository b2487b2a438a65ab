package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/payment"
	"github.com/iliyamo/school-management/internal/store"
)

// fakeGateway approves every checkout and accepts only one signature.
type fakeGateway struct {
	signature string
	created   int
}

func (f *fakeGateway) CreatePayment(_ context.Context, invoice map[string]any) (*payment.Checkout, error) {
	f.created++
	return &payment.Checkout{
		TransactionID: "txn-1",
		PaymentURL:    "https://pay.example/txn-1",
	}, nil
}

func (f *fakeGateway) VerifyWebhook(_ []byte, signature string) bool {
	return signature == f.signature
}

func newFinanceEnv(t *testing.T) (*FinanceHandler, *fakeGateway, *store.MemoryStore, *echo.Echo) {
	t.Helper()
	db := store.NewMemoryStore()
	gw := &fakeGateway{signature: "good-signature"}
	return NewFinanceHandler(db, gw, nil), gw, db, echo.New()
}

func seedInvoice(t *testing.T, h *FinanceHandler, e *echo.Echo) map[string]any {
	t.Helper()
	c, rec := postJSON(t, e, `{"name":"Tuition","amount":1500,"frequency":"yearly"}`)
	require.NoError(t, h.CreateFeeType(c))
	var fee map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fee))

	c, rec = postJSON(t, e, `{"student_id":"s-1","fee_type_id":"`+fee["id"].(string)+`"}`)
	require.NoError(t, h.CreateInvoice(c))
	var invoice map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invoice))
	return invoice
}

func TestCreateInvoice_NumberAndDefaults(t *testing.T) {
	t.Parallel()
	h, _, _, e := newFinanceEnv(t)
	invoice := seedInvoice(t, h, e)

	num, _ := invoice["invoice_number"].(string)
	assert.Regexp(t, `^INV-\d{8}-[0-9A-F]{8}$`, num)
	assert.Equal(t, "pending", invoice["status"])
	assert.Equal(t, float64(1500), invoice["amount"], "amount defaults to the fee type")
}

func TestCreatePayment_Checkout(t *testing.T) {
	t.Parallel()
	h, gw, _, e := newFinanceEnv(t)
	invoice := seedInvoice(t, h, e)

	c, rec := postJSON(t, e, `{"invoice_id":"`+invoice["id"].(string)+`","method":"card"}`)
	require.NoError(t, h.CreatePayment(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, gw.created)

	var out struct {
		Payment    map[string]any `json:"payment"`
		PaymentURL string         `json:"payment_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "https://pay.example/txn-1", out.PaymentURL)
	assert.Equal(t, "txn-1", out.Payment["transaction_id"])
	num, _ := out.Payment["payment_number"].(string)
	assert.Regexp(t, `^PAY-\d{8}-[0-9A-F]{8}$`, num)
}

func webhook(t *testing.T, h *FinanceHandler, e *echo.Echo, body, signature string) (error, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Signature", signature)
	rec := httptest.NewRecorder()
	return h.PaymentWebhook(e.NewContext(req, rec)), rec
}

func TestPaymentWebhook_SettlesInvoice(t *testing.T) {
	t.Parallel()
	h, _, db, e := newFinanceEnv(t)
	invoice := seedInvoice(t, h, e)

	c, _ := postJSON(t, e, `{"invoice_id":"`+invoice["id"].(string)+`","method":"card"}`)
	require.NoError(t, h.CreatePayment(c))

	body := `{"transaction_id":"txn-1","status":"completed"}`

	// a bad signature is rejected before the body is trusted
	err, _ := webhook(t, h, e, body, "forged")
	require.Error(t, err)
	assert.Equal(t, httperr.KindUnauthenticated, errKind(t, err))

	err, rec := webhook(t, h, e, body, "good-signature")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	pay, ferr := db.FindOne(t.Context(), model.ColPayments, store.Query{"transaction_id": "txn-1"})
	require.NoError(t, ferr)
	assert.Equal(t, "completed", pay["status"])

	inv, ferr := db.FindOne(t.Context(), model.ColInvoices, store.Query{"id": invoice["id"]})
	require.NoError(t, ferr)
	assert.Equal(t, "paid", inv["status"])

	// a second attempt to pay the settled invoice conflicts
	c, _ = postJSON(t, e, `{"invoice_id":"`+invoice["id"].(string)+`","method":"card"}`)
	perr := h.CreatePayment(c)
	require.Error(t, perr)
	assert.Equal(t, httperr.KindConflict, errKind(t, perr))
}

func TestPaymentWebhook_FailedStatus(t *testing.T) {
	t.Parallel()
	h, _, db, e := newFinanceEnv(t)
	invoice := seedInvoice(t, h, e)

	c, _ := postJSON(t, e, `{"invoice_id":"`+invoice["id"].(string)+`","method":"card"}`)
	require.NoError(t, h.CreatePayment(c))

	err, _ := webhook(t, h, e, `{"transaction_id":"txn-1","status":"failed"}`, "good-signature")
	require.NoError(t, err)

	pay, ferr := db.FindOne(t.Context(), model.ColPayments, store.Query{"transaction_id": "txn-1"})
	require.NoError(t, ferr)
	assert.Equal(t, "failed", pay["status"])

	inv, ferr := db.FindOne(t.Context(), model.ColInvoices, store.Query{"id": invoice["id"]})
	require.NoError(t, ferr)
	assert.Equal(t, "pending", inv["status"], "invoice stays payable")
}
