package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
)

type userStatusRequest struct {
	Status *bool `json:"status"`
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

type roleAttributesRequest struct {
	Attributes map[string]bool `json:"attributes"`
}

type roleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roleAttributeResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       bool   `json:"value"`
	Mapped      bool   `json:"mapped"`
}

/*
====================================
USERS
====================================
*/

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) error {
	users, err := a.admin.ListUsers(r.Context())
	if err != nil {
		return storeError(err)
	}
	out := make([]profileResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toProfile(u))
	}
	middleware.WriteJSON(w, http.StatusOK, "Users retrieved successfully", out)
	return nil
}

// setUserStatus enables or disables an account. Disabling also revokes every
// session the user holds.
func (a *api) setUserStatus(w http.ResponseWriter, r *http.Request) error {
	userID := r.PathValue("id")
	var req userStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.Status == nil {
		return fmt.Errorf("%w: status is required", sessiongate.ErrInvalidInput)
	}

	if err := a.admin.SetUserEnabled(r.Context(), userID, *req.Status); err != nil {
		return notFoundOr(err)
	}
	if !*req.Status {
		if _, err := a.engine.RevokeAllSessions(r.Context(), userID); err != nil {
			a.logger.WarnContext(r.Context(), "revoking sessions of disabled user failed", "user_id", userID, "error", err)
		}
	}
	middleware.WriteJSON(w, http.StatusOK, "User status updated successfully", map[string]any{
		"id":     userID,
		"status": *req.Status,
	})
	return nil
}

func (a *api) assignRole(w http.ResponseWriter, r *http.Request) error {
	userID := r.PathValue("id")
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		return fmt.Errorf("%w: role is required", sessiongate.ErrInvalidInput)
	}

	if err := a.admin.AssignRole(r.Context(), userID, role); err != nil {
		return notFoundOr(err)
	}
	middleware.WriteJSON(w, http.StatusOK, "Role assigned successfully", map[string]any{
		"id":   userID,
		"role": role,
	})
	return nil
}

/*
====================================
ROLES
====================================
*/

func (a *api) listRoles(w http.ResponseWriter, r *http.Request) error {
	roles, err := a.admin.ListRoles(r.Context())
	if err != nil {
		return storeError(err)
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse{ID: role.ID, Name: role.Name, Description: role.Description})
	}
	middleware.WriteJSON(w, http.StatusOK, "Roles retrieved successfully", out)
	return nil
}

// roleAttributes lists the whole attribute catalogue for a role. Attributes
// without a mapping row are reported with value and mapped both false.
func (a *api) roleAttributes(w http.ResponseWriter, r *http.Request) error {
	role, err := a.admin.FindRoleByID(r.Context(), r.PathValue("id"))
	if err != nil {
		return notFoundOr(err)
	}
	rows, err := a.admin.ListAttributeMappingsForRole(r.Context(), role.ID)
	if err != nil {
		return storeError(err)
	}
	mapped := make(map[string]bool, len(rows))
	for _, row := range rows {
		mapped[row.Attribute] = row.Value
	}

	registry := a.engine.Registry()
	names := registry.Names()
	sort.Strings(names)
	out := make([]roleAttributeResponse, 0, len(names))
	for _, name := range names {
		value, ok := mapped[name]
		out = append(out, roleAttributeResponse{
			Name:        name,
			Description: registry.Description(name),
			Value:       value,
			Mapped:      ok,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, "Role attributes retrieved successfully", map[string]any{
		"role":       roleResponse{ID: role.ID, Name: role.Name, Description: role.Description},
		"attributes": out,
	})
	return nil
}

// setRoleAttributes upserts the given mappings. Every name must be a
// registered attribute; nothing is written otherwise.
func (a *api) setRoleAttributes(w http.ResponseWriter, r *http.Request) error {
	roleID := r.PathValue("id")
	var req roleAttributesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if len(req.Attributes) == 0 {
		return fmt.Errorf("%w: attributes are required", sessiongate.ErrInvalidInput)
	}

	registry := a.engine.Registry()
	names := make([]string, 0, len(req.Attributes))
	for name := range req.Attributes {
		if _, ok := registry.Bit(name); !ok {
			return fmt.Errorf("%w: unknown attribute %q", sessiongate.ErrInvalidInput, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := a.admin.SetRoleAttribute(r.Context(), roleID, name, req.Attributes[name]); err != nil {
			return notFoundOr(err)
		}
	}
	middleware.WriteJSON(w, http.StatusOK, "Role attributes updated successfully", map[string]any{
		"id":         roleID,
		"attributes": req.Attributes,
	})
	return nil
}

/*
====================================
ERRORS
====================================
*/

func storeError(err error) error {
	return fmt.Errorf("%w: %v", sessiongate.ErrStoreUnavailable, err)
}

// errUserNotFound is the admin routes' rendering of an unknown user id: 404
// here, not the 401 the gate uses for a token that outlived its user.
var errUserNotFound = &statusError{status: http.StatusNotFound, message: "user not found"}

// notFoundOr keeps the store sentinels that map to a client status and
// reports anything else as a store failure.
func notFoundOr(err error) error {
	if errors.Is(err, sessiongate.ErrUserNotFound) {
		return errUserNotFound
	}
	switch sessiongate.StatusCode(err) {
	case http.StatusBadRequest, http.StatusNotFound:
		return err
	}
	return storeError(err)
}
