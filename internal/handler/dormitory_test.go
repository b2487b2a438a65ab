package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/store"
)

func newDormEnv(t *testing.T) (*DormitoryHandler, *store.MemoryStore, *echo.Echo) {
	t.Helper()
	db := store.NewMemoryStore()
	return NewDormitoryHandler(db, nil), db, echo.New()
}

func postJSON(t *testing.T, e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func seedRoom(t *testing.T, h *DormitoryHandler, e *echo.Echo, capacity int) string {
	t.Helper()
	c, rec := postJSON(t, e, `{"name":"North Hall","gender":"female","total_rooms":10}`)
	require.NoError(t, h.CreateDormitory(c))
	var dorm map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dorm))

	c, rec = postJSON(t, e, `{"dormitory_id":"`+dorm["id"].(string)+`","room_number":"101","capacity":`+
		strconv.Itoa(capacity)+`}`)
	require.NoError(t, h.CreateRoom(c))
	var room map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &room))
	return room["id"].(string)
}

func TestCreateDormitory_Validation(t *testing.T) {
	t.Parallel()
	h, _, e := newDormEnv(t)

	c, _ := postJSON(t, e, `{"name":"North Hall","gender":"other"}`)
	err := h.CreateDormitory(c)
	require.Error(t, err)
	assert.Equal(t, httperr.KindValidation, errKind(t, err))
}

func TestCreateRoom_UnknownDormitory(t *testing.T) {
	t.Parallel()
	h, _, e := newDormEnv(t)

	c, _ := postJSON(t, e, `{"dormitory_id":"missing","room_number":"101"}`)
	err := h.CreateRoom(c)
	require.Error(t, err)
	assert.Equal(t, httperr.KindNotFound, errKind(t, err))
}

func TestCreateAllocation_FillsAndRefuses(t *testing.T) {
	t.Parallel()
	h, db, e := newDormEnv(t)
	roomID := seedRoom(t, h, e, 2)

	for _, student := range []string{"s-1", "s-2"} {
		c, rec := postJSON(t, e, `{"student_id":"`+student+`","room_id":"`+roomID+`"}`)
		require.NoError(t, h.CreateAllocation(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	// room is at capacity
	c, _ := postJSON(t, e, `{"student_id":"s-3","room_id":"`+roomID+`"}`)
	err := h.CreateAllocation(c)
	require.Error(t, err)
	assert.Equal(t, httperr.KindConflict, errKind(t, err))
	assert.Equal(t, "room is full", err.(*httperr.Error).Message)

	room, err2 := db.FindOne(t.Context(), model.ColDormRooms, store.Query{"id": roomID})
	require.NoError(t, err2)
	assert.Equal(t, float64(2), room["current_occupancy"])
}

func TestCreateAllocation_OnePerStudent(t *testing.T) {
	t.Parallel()
	h, _, e := newDormEnv(t)
	roomID := seedRoom(t, h, e, 4)

	c, _ := postJSON(t, e, `{"student_id":"s-1","room_id":"`+roomID+`"}`)
	require.NoError(t, h.CreateAllocation(c))

	c, _ = postJSON(t, e, `{"student_id":"s-1","room_id":"`+roomID+`"}`)
	err := h.CreateAllocation(c)
	require.Error(t, err)
	assert.Equal(t, httperr.KindConflict, errKind(t, err))
}

func TestCreateAllocation_ConcurrentLastBed(t *testing.T) {
	t.Parallel()
	h, db, e := newDormEnv(t)
	roomID := seedRoom(t, h, e, 1)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		student := "s-" + string(rune('a'+i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, _ := postJSON(t, e, `{"student_id":"`+student+`","room_id":"`+roomID+`"}`)
			results <- h.CreateAllocation(c)
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.Equal(t, httperr.KindConflict, errKind(t, err))
		conflicts++
	}
	assert.Equal(t, 1, wins, "exactly one student gets the last bed")
	assert.Equal(t, workers-1, conflicts)

	room, err := db.FindOne(t.Context(), model.ColDormRooms, store.Query{"id": roomID})
	require.NoError(t, err)
	assert.Equal(t, float64(1), room["current_occupancy"])
}

func TestEndAllocation_FreesBed(t *testing.T) {
	t.Parallel()
	h, db, e := newDormEnv(t)
	roomID := seedRoom(t, h, e, 1)

	c, rec := postJSON(t, e, `{"student_id":"s-1","room_id":"`+roomID+`"}`)
	require.NoError(t, h.CreateAllocation(c))
	var alloc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alloc))

	c, _ = postJSON(t, e, "")
	c.SetParamNames("id")
	c.SetParamValues(alloc["id"].(string))
	require.NoError(t, h.EndAllocation(c))

	room, err := db.FindOne(t.Context(), model.ColDormRooms, store.Query{"id": roomID})
	require.NoError(t, err)
	assert.Equal(t, float64(0), room["current_occupancy"])

	// ending twice conflicts
	c, _ = postJSON(t, e, "")
	c.SetParamNames("id")
	c.SetParamValues(alloc["id"].(string))
	err = h.EndAllocation(c)
	require.Error(t, err)
	assert.Equal(t, httperr.KindConflict, errKind(t, err))
}
