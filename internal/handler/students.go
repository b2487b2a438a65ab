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

// StudentHandler manages student profiles linked to user accounts.
type StudentHandler struct {
	Store store.Store
}

func NewStudentHandler(db store.Store) *StudentHandler { return &StudentHandler{Store: db} }

type createStudentReq struct {
	UserID                string `json:"user_id"`
	StudentNumber         string `json:"student_number"`
	DateOfBirth           string `json:"date_of_birth"`
	Gender                string `json:"gender"`
	Address               string `json:"address"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
	EnrollmentDate        string `json:"enrollment_date"`
	CurrentGrade          string `json:"current_grade"`
	CurrentClassID        string `json:"current_class_id"`
}

type updateStudentReq struct {
	Address        *string `json:"address"`
	Status         *string `json:"status"`
	CurrentGrade   *string `json:"current_grade"`
	CurrentClassID *string `json:"current_class_id"`
	GraduationDate *string `json:"graduation_date"`
}

func (h *StudentHandler) Create(c echo.Context) error {
	var req createStudentReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.UserID == "" || req.StudentNumber == "" {
		return httperr.Validation("user_id and student_number required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// The profile must reference an existing user account.
	if _, err := h.Store.FindOne(ctx, model.ColUsers, store.Query{"id": req.UserID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("user not found")
		}
		return httperr.Internal(err)
	}
	if _, err := h.Store.FindOne(ctx, model.ColStudents, store.Query{"user_id": req.UserID}); err == nil {
		return httperr.Conflict("student profile already exists for this user")
	} else if !errors.Is(err, store.ErrNotFound) {
		return httperr.Internal(err)
	}

	doc := store.Document{
		"id":                      uuid.NewString(),
		"user_id":                 req.UserID,
		"student_number":          req.StudentNumber,
		"date_of_birth":           req.DateOfBirth,
		"gender":                  req.Gender,
		"address":                 req.Address,
		"emergency_contact_name":  req.EmergencyContactName,
		"emergency_contact_phone": req.EmergencyContactPhone,
		"enrollment_date":         req.EnrollmentDate,
		"current_grade":           req.CurrentGrade,
		"current_class_id":        req.CurrentClassID,
		"status":                  "active",
		"created_at":              nowRFC3339(),
		"updated_at":              nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColStudents, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *StudentHandler) List(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("grade"); v != "" {
		query["current_grade"] = v
	}
	if v := c.QueryParam("class_id"); v != "" {
		query["current_class_id"] = v
	}
	if v := c.QueryParam("status"); v != "" {
		query["status"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColStudents, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"students": docs,
		"total":    len(docs),
		"skip":     skipParam(c),
		"limit":    limit,
	})
}

func (h *StudentHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	doc, err := h.Store.FindOne(ctx, model.ColStudents, store.Query{"id": c.Param("id")})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("student not found")
		}
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *StudentHandler) Update(c echo.Context) error {
	var req updateStudentReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	update := store.Document{}
	if req.Address != nil {
		update["address"] = *req.Address
	}
	if req.Status != nil {
		switch *req.Status {
		case "active", "inactive", "graduated", "expelled":
		default:
			return httperr.Validation("invalid status")
		}
		update["status"] = *req.Status
	}
	if req.CurrentGrade != nil {
		update["current_grade"] = *req.CurrentGrade
	}
	if req.CurrentClassID != nil {
		update["current_class_id"] = *req.CurrentClassID
	}
	if req.GraduationDate != nil {
		update["graduation_date"] = *req.GraduationDate
	}
	if len(update) == 0 {
		return httperr.Validation("no fields to update")
	}
	update["updated_at"] = nowRFC3339()

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Store.UpdateOne(ctx, model.ColStudents, store.Query{"id": c.Param("id")}, update)
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.NotFound("student not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "student updated successfully"})
}

func (h *StudentHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Store.DeleteOne(ctx, model.ColStudents, store.Query{"id": c.Param("id")})
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.NotFound("student not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "student deleted successfully"})
}
