package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/middleware"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/store"
)

const loanPeriodDays = 14

// LibraryHandler manages the catalogue and book loans.
type LibraryHandler struct {
	Store store.Store
}

func NewLibraryHandler(db store.Store) *LibraryHandler { return &LibraryHandler{Store: db} }

type createBookReq struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	Category    string `json:"category"`
	Publisher   string `json:"publisher"`
	TotalCopies int    `json:"total_copies"`
	ShelfCode   string `json:"shelf_code"`
}

type createLoanReq struct {
	BookID     string `json:"book_id"`
	BorrowerID string `json:"borrower_id"`
}

func (h *LibraryHandler) CreateBook(c echo.Context) error {
	var req createBookReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.Title == "" || req.Author == "" {
		return httperr.Validation("title and author required")
	}
	if req.TotalCopies <= 0 {
		req.TotalCopies = 1
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if req.ISBN != "" {
		_, err := h.Store.FindOne(ctx, model.ColBooks, store.Query{"isbn": req.ISBN})
		if err == nil {
			return httperr.Conflict("book with this ISBN already exists")
		}
		if !errors.Is(err, store.ErrNotFound) {
			return httperr.Internal(err)
		}
	}

	doc := store.Document{
		"id":               uuid.NewString(),
		"title":            req.Title,
		"author":           req.Author,
		"isbn":             req.ISBN,
		"category":         req.Category,
		"publisher":        req.Publisher,
		"total_copies":     req.TotalCopies,
		"available_copies": req.TotalCopies,
		"shelf_code":       req.ShelfCode,
		"created_at":       nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColBooks, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *LibraryHandler) ListBooks(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("category"); v != "" {
		query["category"] = v
	}
	if v := c.QueryParam("author"); v != "" {
		query["author"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColBooks, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"books": docs,
		"total": len(docs),
		"skip":  skipParam(c),
		"limit": limit,
	})
}

// CreateLoan checks out a copy. The availability decrement is a conditional
// write so the last copy cannot be lent twice.
func (h *LibraryHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.BookID == "" || req.BorrowerID == "" {
		return httperr.Validation("book_id and borrower_id required")
	}
	issuedBy, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Store.FindOne(ctx, model.ColBooks, store.Query{"id": req.BookID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("book not found")
		}
		return httperr.Internal(err)
	}

	ok, err := h.Store.AdjustOne(ctx, model.ColBooks, store.Query{"id": req.BookID}, "available_copies", -1, "")
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.Conflict("no copies available")
	}

	doc := store.Document{
		"id":          uuid.NewString(),
		"book_id":     req.BookID,
		"borrower_id": req.BorrowerID,
		"issued_by":   issuedBy,
		"issued_at":   nowRFC3339(),
		"due_date":    time.Now().UTC().AddDate(0, 0, loanPeriodDays).Format(time.RFC3339),
		"status":      "active",
	}
	if _, err := h.Store.InsertOne(ctx, model.ColLoans, doc); err != nil {
		_, _ = h.Store.AdjustOne(ctx, model.ColBooks, store.Query{"id": req.BookID}, "available_copies", 1, "total_copies")
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *LibraryHandler) ListLoans(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("borrower_id"); v != "" {
		query["borrower_id"] = v
	}
	if v := c.QueryParam("book_id"); v != "" {
		query["book_id"] = v
	}
	if v := c.QueryParam("status"); v != "" {
		query["status"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColLoans, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"loans": docs,
		"total": len(docs),
		"skip":  skipParam(c),
		"limit": limit,
	})
}

// ReturnLoan marks the loan returned and puts the copy back on the shelf.
func (h *LibraryHandler) ReturnLoan(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	loan, err := h.Store.FindOne(ctx, model.ColLoans, store.Query{"id": id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("loan not found")
		}
		return httperr.Internal(err)
	}
	if loan["status"] != "active" {
		return httperr.Conflict("loan already returned")
	}

	ok, err := h.Store.UpdateOne(ctx, model.ColLoans, store.Query{"id": id, "status": "active"}, store.Document{
		"status":      "returned",
		"returned_at": nowRFC3339(),
	})
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.Conflict("loan already returned")
	}
	bookID, _ := loan["book_id"].(string)
	_, _ = h.Store.AdjustOne(ctx, model.ColBooks, store.Query{"id": bookID}, "available_copies", 1, "total_copies")

	return c.JSON(http.StatusOK, echo.Map{"message": "book returned"})
}
