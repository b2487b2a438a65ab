package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/store"
)

func TestCreateClass_Defaults(t *testing.T) {
	t.Parallel()
	h := NewAcademicHandler(store.NewMemoryStore())
	e := echo.New()

	c, rec := postJSON(t, e, `{"name":"7A","grade_level":"7","academic_year":"2026-2027"}`)
	require.NoError(t, h.CreateClass(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var class map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &class))
	assert.Equal(t, 40, int(class["capacity"].(float64)))
	assert.Equal(t, true, class["is_active"])
}

func TestCreateClass_Validation(t *testing.T) {
	t.Parallel()
	h := NewAcademicHandler(store.NewMemoryStore())
	e := echo.New()

	c, _ := postJSON(t, e, `{"name":"7A"}`)
	err := h.CreateClass(c)
	require.Error(t, err)
	assert.Equal(t, httperr.KindValidation, errKind(t, err))
}

func TestCreateSubject_UniqueCode(t *testing.T) {
	t.Parallel()
	h := NewAcademicHandler(store.NewMemoryStore())
	e := echo.New()

	c, rec := postJSON(t, e, `{"code":"MATH-7","name":"Mathematics"}`)
	require.NoError(t, h.CreateSubject(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var subject map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subject))
	assert.Equal(t, 1, int(subject["credits"].(float64)), "credits default to 1")

	c, _ = postJSON(t, e, `{"code":"MATH-7","name":"Mathematics Again"}`)
	err := h.CreateSubject(c)
	require.Error(t, err)
	assert.Equal(t, httperr.KindConflict, errKind(t, err))
	assert.Equal(t, "subject code already exists", err.(*httperr.Error).Message)
}
