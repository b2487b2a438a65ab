package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/queue"
	"github.com/iliyamo/school-management/internal/service"
	"github.com/iliyamo/school-management/internal/store"
)

// DormitoryHandler manages buildings, rooms and bed allocations.
type DormitoryHandler struct {
	Store  store.Store
	Events *service.EventPublisher
}

func NewDormitoryHandler(db store.Store, events *service.EventPublisher) *DormitoryHandler {
	return &DormitoryHandler{Store: db, Events: events}
}

type createDormReq struct {
	Name        string `json:"name"`
	Building    string `json:"building"`
	Gender      string `json:"gender"`
	TotalRooms  int    `json:"total_rooms"`
	WardenName  string `json:"warden_name"`
	WardenPhone string `json:"warden_phone"`
}

type createRoomReq struct {
	DormitoryID string `json:"dormitory_id"`
	RoomNumber  string `json:"room_number"`
	Floor       int    `json:"floor"`
	Capacity    int    `json:"capacity"`
	RoomType    string `json:"room_type"`
}

type createAllocationReq struct {
	StudentID string `json:"student_id"`
	RoomID    string `json:"room_id"`
	BedNumber string `json:"bed_number"`
	StartDate string `json:"start_date"`
}

func (h *DormitoryHandler) CreateDormitory(c echo.Context) error {
	var req createDormReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.Name == "" {
		return httperr.Validation("name required")
	}
	switch req.Gender {
	case "male", "female", "mixed":
	default:
		return httperr.Validation("gender must be male, female or mixed")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	doc := store.Document{
		"id":           uuid.NewString(),
		"name":         req.Name,
		"building":     req.Building,
		"gender":       req.Gender,
		"total_rooms":  req.TotalRooms,
		"warden_name":  req.WardenName,
		"warden_phone": req.WardenPhone,
		"is_active":    true,
		"created_at":   nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColDormitories, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *DormitoryHandler) ListDormitories(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColDormitories, store.Query{}, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"dormitories": docs,
		"total":       len(docs),
		"skip":        skipParam(c),
		"limit":       limit,
	})
}

func (h *DormitoryHandler) CreateRoom(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.DormitoryID == "" || req.RoomNumber == "" {
		return httperr.Validation("dormitory_id and room_number required")
	}
	if req.Capacity <= 0 {
		req.Capacity = 4
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Store.FindOne(ctx, model.ColDormitories, store.Query{"id": req.DormitoryID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("dormitory not found")
		}
		return httperr.Internal(err)
	}

	doc := store.Document{
		"id":                uuid.NewString(),
		"dormitory_id":      req.DormitoryID,
		"room_number":       req.RoomNumber,
		"floor":             req.Floor,
		"capacity":          req.Capacity,
		"current_occupancy": 0,
		"room_type":         req.RoomType,
		"created_at":        nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColDormRooms, doc); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *DormitoryHandler) ListRooms(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("dormitory_id"); v != "" {
		query["dormitory_id"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColDormRooms, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"rooms": docs,
		"total": len(docs),
		"skip":  skipParam(c),
		"limit": limit,
	})
}

// CreateAllocation assigns a student a bed. The occupancy bump is a single
// conditional write so two concurrent requests cannot overfill a room.
func (h *DormitoryHandler) CreateAllocation(c echo.Context) error {
	var req createAllocationReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	if req.StudentID == "" || req.RoomID == "" {
		return httperr.Validation("student_id and room_id required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	room, err := h.Store.FindOne(ctx, model.ColDormRooms, store.Query{"id": req.RoomID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("room not found")
		}
		return httperr.Internal(err)
	}
	_, err = h.Store.FindOne(ctx, model.ColAllocations, store.Query{
		"student_id": req.StudentID,
		"status":     "active",
	})
	if err == nil {
		return httperr.Conflict("student already has an active allocation")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return httperr.Internal(err)
	}

	ok, err := h.Store.AdjustOne(ctx, model.ColDormRooms, store.Query{"id": req.RoomID}, "current_occupancy", 1, "capacity")
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.Conflict("room is full")
	}

	startDate := req.StartDate
	if startDate == "" {
		startDate = nowRFC3339()
	}
	doc := store.Document{
		"id":         uuid.NewString(),
		"student_id": req.StudentID,
		"room_id":    req.RoomID,
		"bed_number": req.BedNumber,
		"start_date": startDate,
		"status":     "active",
		"created_at": nowRFC3339(),
	}
	if _, err := h.Store.InsertOne(ctx, model.ColAllocations, doc); err != nil {
		// undo the bed we just took
		_, _ = h.Store.AdjustOne(ctx, model.ColDormRooms, store.Query{"id": req.RoomID}, "current_occupancy", -1, "")
		return httperr.Internal(err)
	}

	dormID, _ := room["dormitory_id"].(string)
	_ = h.Events.Publish(ctx, queue.QueueAllocationCreated, queue.AllocationCreatedEvent{
		AllocationID: doc["id"].(string),
		StudentID:    req.StudentID,
		DormitoryID:  dormID,
		RoomID:       req.RoomID,
		CreatedAt:    nowRFC3339(),
	})
	return c.JSON(http.StatusCreated, doc)
}

func (h *DormitoryHandler) ListAllocations(c echo.Context) error {
	query := store.Query{}
	if v := c.QueryParam("room_id"); v != "" {
		query["room_id"] = v
	}
	if v := c.QueryParam("student_id"); v != "" {
		query["student_id"] = v
	}
	if v := c.QueryParam("status"); v != "" {
		query["status"] = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColAllocations, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"allocations": docs,
		"total":       len(docs),
		"skip":        skipParam(c),
		"limit":       limit,
	})
}

// EndAllocation vacates the bed and frees the room slot.
func (h *DormitoryHandler) EndAllocation(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	alloc, err := h.Store.FindOne(ctx, model.ColAllocations, store.Query{"id": id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("allocation not found")
		}
		return httperr.Internal(err)
	}
	if alloc["status"] != "active" {
		return httperr.Conflict("allocation already ended")
	}

	ok, err := h.Store.UpdateOne(ctx, model.ColAllocations, store.Query{"id": id, "status": "active"}, store.Document{
		"status":   "ended",
		"end_date": nowRFC3339(),
	})
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.Conflict("allocation already ended")
	}
	roomID, _ := alloc["room_id"].(string)
	_, _ = h.Store.AdjustOne(ctx, model.ColDormRooms, store.Query{"id": roomID}, "current_occupancy", -1, "")

	return c.JSON(http.StatusOK, echo.Map{"message": "allocation ended"})
}
