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

// AcademicHandler covers classes and subjects.
type AcademicHandler struct {
	Store store.Store
}

func NewAcademicHandler(db store.Store) *AcademicHandler { return &AcademicHandler{Store: db} }

type createClassReq struct {
	Name         string `json:"name"`
	GradeLevel   string `json:"grade_level"`
	Section      string `json:"section"`
	AcademicYear string `json:"academic_year"`
	TeacherID    string `json:"teacher_id"`
	RoomNumber   string `json:"room_number"`
	Capacity     int    `json:"capacity"`
}

type createSubjectReq struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Credits     int    `json:"credits"`
	Category    string `json:"category"`
	GradeLevel  string `json:"grade_level"`
}

func (h *AcademicHandler) CreateClass(c echo.Context) error {
	var req createClassReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.Name == "" || req.GradeLevel == "" || req.AcademicYear == "" {
		return httperr.Validation("name, grade_level and academic_year required")
	}
	if req.Capacity <= 0 {
		req.Capacity = 40
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	doc := store.Document{
		"id":            uuid.NewString(),
		"name":          req.Name,
		"grade_level":   req.GradeLevel,
		"section":       req.Section,
		"academic_year": req.AcademicYear,
		"teacher_id":    req.TeacherID,
		"room_number":   req.RoomNumber,
		"capacity":      req.Capacity,
		"student_ids":   []string{},
		"is_active":     true,
		"created_at":    nowRFC3339(),
		"updated_at":    nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColClasses, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *AcademicHandler) ListClasses(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("grade_level"); v != "" {
		query["grade_level"] = v
	}
	if v := c.QueryParam("academic_year"); v != "" {
		query["academic_year"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColClasses, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"classes": docs,
		"total":   len(docs),
		"skip":    skipParam(c),
		"limit":   limit,
	})
}

func (h *AcademicHandler) GetClass(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	doc, err := h.Store.FindOne(ctx, model.ColClasses, store.Query{"id": c.Param("id")})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("class not found")
		}
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *AcademicHandler) CreateSubject(c echo.Context) error {
	var req createSubjectReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.Code == "" || req.Name == "" {
		return httperr.Validation("code and name required")
	}
	if req.Credits <= 0 {
		req.Credits = 1
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// Subject codes are unique.
	if _, err := h.Store.FindOne(ctx, model.ColSubjects, store.Query{"code": req.Code}); err == nil {
		return httperr.Conflict("subject code already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return httperr.Internal(err)
	}

	doc := store.Document{
		"id":          uuid.NewString(),
		"code":        req.Code,
		"name":        req.Name,
		"description": req.Description,
		"credits":     req.Credits,
		"category":    req.Category,
		"grade_level": req.GradeLevel,
		"is_active":   true,
		"created_at":  nowRFC3339(),
		"updated_at":  nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColSubjects, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *AcademicHandler) ListSubjects(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("category"); v != "" {
		query["category"] = v
	}
	if v := c.QueryParam("grade_level"); v != "" {
		query["grade_level"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColSubjects, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"subjects": docs,
		"total":    len(docs),
		"skip":     skipParam(c),
		"limit":    limit,
	})
}
