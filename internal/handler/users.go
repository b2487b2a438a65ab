package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/store"
)

// UserHandler exposes administrative user management.
type UserHandler struct {
	Store store.Store
}

func NewUserHandler(db store.Store) *UserHandler { return &UserHandler{Store: db} }

type userUpdateReq struct {
	Username   *string `json:"username"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Phone      *string `json:"phone"`
	Role       *string `json:"role"`
	IsActive   *bool   `json:"is_active"`
	IsVerified *bool   `json:"is_verified"`
}

// List returns users filtered by role and active flag. Sensitive fields are
// stripped from every record.
func (h *UserHandler) List(c echo.Context) error {
	query := store.Query{}
	if role := c.QueryParam("role"); role != "" {
		query["role"] = role
	}
	if s := c.QueryParam("is_active"); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			return httperr.Validation("is_active must be a boolean")
		}
		query["is_active"] = active
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := limitParam(c)
	docs, err := h.Store.FindMany(ctx, model.ColUsers, query, limit)
	if err != nil {
		return httperr.Internal(err)
	}
	for i := range docs {
		docs[i] = model.SanitizeDoc(docs[i])
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users": docs,
		"total": len(docs),
		"skip":  skipParam(c),
		"limit": limit,
	})
}

func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	doc, err := h.Store.FindOne(ctx, model.ColUsers, store.Query{"id": c.Param("id")})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("user not found")
		}
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, model.SanitizeDoc(doc))
}

// Update patches mutable profile fields. Credential fields cannot be set
// through this endpoint.
func (h *UserHandler) Update(c echo.Context) error {
	var req userUpdateReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	update := store.Document{}
	if req.Username != nil {
		if len(*req.Username) < 3 {
			return httperr.Validation("username must be at least 3 characters")
		}
		update["username"] = *req.Username
	}
	if req.FirstName != nil {
		update["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		update["last_name"] = *req.LastName
	}
	if req.Phone != nil {
		update["phone"] = *req.Phone
	}
	if req.Role != nil {
		if !model.ValidRole(*req.Role) {
			return httperr.Validation("invalid role")
		}
		update["role"] = *req.Role
	}
	if req.IsActive != nil {
		update["is_active"] = *req.IsActive
	}
	if req.IsVerified != nil {
		update["is_verified"] = *req.IsVerified
	}
	if len(update) == 0 {
		return httperr.Validation("no fields to update")
	}
	update["updated_at"] = nowRFC3339()

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Store.UpdateOne(ctx, model.ColUsers, store.Query{"id": c.Param("id")}, update)
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.NotFound("user not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user updated successfully"})
}

// Delete removes a user. Superadmin only; enforced at the route.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Store.DeleteOne(ctx, model.ColUsers, store.Query{"id": c.Param("id")})
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.NotFound("user not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted successfully"})
}
