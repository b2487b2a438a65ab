package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/middleware"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/store"
)

// GradeHandler records assessments and attendance.
type GradeHandler struct {
	Store store.Store
}

func NewGradeHandler(db store.Store) *GradeHandler { return &GradeHandler{Store: db} }

type createGradeReq struct {
	StudentID      string  `json:"student_id"`
	SubjectID      string  `json:"subject_id"`
	ClassID        string  `json:"class_id"`
	AssessmentType string  `json:"assessment_type"`
	AssessmentName string  `json:"assessment_name"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"max_score"`
	AcademicYear   string  `json:"academic_year"`
	Semester       string  `json:"semester"`
	Comments       string  `json:"comments"`
}

type markAttendanceReq struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	SubjectID string `json:"subject_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
}

// letterFor maps a percentage to the report-card letter.
func letterFor(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}

func (h *GradeHandler) CreateGrade(c echo.Context) error {
	var req createGradeReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.StudentID == "" || req.SubjectID == "" {
		return httperr.Validation("student_id and subject_id required")
	}
	if req.MaxScore <= 0 || req.Score < 0 || req.Score > req.MaxScore {
		return httperr.Validation("score must be between 0 and max_score")
	}
	teacherID, _ := c.Get(middleware.CtxUserID).(string)
	pct := req.Score / req.MaxScore * 100

	ctx, cancel := reqCtx(c)
	defer cancel()

	doc := store.Document{
		"id":              uuid.NewString(),
		"student_id":      req.StudentID,
		"subject_id":      req.SubjectID,
		"class_id":        req.ClassID,
		"assessment_type": req.AssessmentType,
		"assessment_name": req.AssessmentName,
		"score":           req.Score,
		"max_score":       req.MaxScore,
		"percentage":      pct,
		"grade_letter":    letterFor(pct),
		"academic_year":   req.AcademicYear,
		"semester":        req.Semester,
		"teacher_id":      teacherID,
		"comments":        req.Comments,
		"created_at":      nowRFC3339(),
		"updated_at":      nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColGrades, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *GradeHandler) ListGrades(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("student_id"); v != "" {
		query["student_id"] = v
	}
	if v := c.QueryParam("subject_id"); v != "" {
		query["subject_id"] = v
	}
	if v := c.QueryParam("semester"); v != "" {
		query["semester"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColGrades, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"grades": docs,
		"total":  len(docs),
		"skip":   skipParam(c),
		"limit":  limit,
	})
}

func (h *GradeHandler) MarkAttendance(c echo.Context) error {
	var req markAttendanceReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.StudentID == "" || req.ClassID == "" || req.Date == "" {
		return httperr.Validation("student_id, class_id and date required")
	}
	switch req.Status {
	case "present", "absent", "late", "excused":
	default:
		return httperr.Validation("invalid status")
	}
	markedBy, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := reqCtx(c)
	defer cancel()

	doc := store.Document{
		"id":         uuid.NewString(),
		"student_id": req.StudentID,
		"class_id":   req.ClassID,
		"subject_id": req.SubjectID,
		"date":       req.Date,
		"status":     req.Status,
		"notes":      req.Notes,
		"marked_by":  markedBy,
		"created_at": nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColAttendance, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *GradeHandler) ListAttendance(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("student_id"); v != "" {
		query["student_id"] = v
	}
	if v := c.QueryParam("class_id"); v != "" {
		query["class_id"] = v
	}
	if v := c.QueryParam("date"); v != "" {
		query["date"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColAttendance, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"attendance": docs,
		"total":      len(docs),
		"skip":       skipParam(c),
		"limit":      limit,
	})
}
