package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/store"
)

// TeacherHandler manages teacher employment profiles.
type TeacherHandler struct {
	Store store.Store
}

func NewTeacherHandler(db store.Store) *TeacherHandler { return &TeacherHandler{Store: db} }

type createTeacherReq struct {
	UserID         string   `json:"user_id"`
	EmployeeNumber string   `json:"employee_number"`
	Qualification  string   `json:"qualification"`
	Specialization []string `json:"specialization"`
	HireDate       string   `json:"hire_date"`
	EmploymentType string   `json:"employment_type"`
	Phone          string   `json:"phone"`
}

type updateTeacherReq struct {
	Qualification  *string   `json:"qualification"`
	Specialization *[]string `json:"specialization"`
	EmploymentType *string   `json:"employment_type"`
	Status         *string   `json:"status"`
	Phone          *string   `json:"phone"`
}

func (h *TeacherHandler) Create(c echo.Context) error {
	var req createTeacherReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.UserID == "" || req.EmployeeNumber == "" {
		return httperr.Validation("user_id and employee_number required")
	}
	if req.EmploymentType == "" {
		req.EmploymentType = "full_time"
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Store.FindOne(ctx, model.ColUsers, store.Query{"id": req.UserID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("user not found")
		}
		return httperr.Internal(err)
	}
	if _, err := h.Store.FindOne(ctx, model.ColTeachers, store.Query{"user_id": req.UserID}); err == nil {
		return httperr.Conflict("teacher profile already exists for this user")
	} else if !errors.Is(err, store.ErrNotFound) {
		return httperr.Internal(err)
	}

	doc := store.Document{
		"id":              uuid.NewString(),
		"user_id":         req.UserID,
		"employee_number": req.EmployeeNumber,
		"qualification":   req.Qualification,
		"specialization":  req.Specialization,
		"hire_date":       req.HireDate,
		"employment_type": req.EmploymentType,
		"phone":           req.Phone,
		"status":          "active",
		"created_at":      nowRFC3339(),
		"updated_at":      nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColTeachers, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *TeacherHandler) List(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("status"); v != "" {
		query["status"] = v
	}
	if v := c.QueryParam("employment_type"); v != "" {
		query["employment_type"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColTeachers, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"teachers": docs,
		"total":    len(docs),
		"skip":     skipParam(c),
		"limit":    limit,
	})
}

func (h *TeacherHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	doc, err := h.Store.FindOne(ctx, model.ColTeachers, store.Query{"id": c.Param("id")})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("teacher not found")
		}
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *TeacherHandler) Update(c echo.Context) error {
	var req updateTeacherReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	update := store.Document{}
	if req.Qualification != nil {
		update["qualification"] = *req.Qualification
	}
	if req.Specialization != nil {
		update["specialization"] = *req.Specialization
	}
	if req.EmploymentType != nil {
		update["employment_type"] = *req.EmploymentType
	}
	if req.Status != nil {
		switch *req.Status {
		case "active", "inactive", "on_leave", "retired":
		default:
			return httperr.Validation("invalid status")
		}
		update["status"] = *req.Status
	}
	if req.Phone != nil {
		update["phone"] = *req.Phone
	}
	if len(update) == 0 {
		return httperr.Validation("no fields to update")
	}
	update["updated_at"] = nowRFC3339()

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Store.UpdateOne(ctx, model.ColTeachers, store.Query{"id": c.Param("id")}, update)
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.NotFound("teacher not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "teacher updated successfully"})
}

func (h *TeacherHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Store.DeleteOne(ctx, model.ColTeachers, store.Query{"id": c.Param("id")})
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.NotFound("teacher not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "teacher deleted successfully"})
}
