package dto

import "github.com/spec-kit/announce-service/internal/domain"

// CreateUserRequest payload.
type CreateUserRequest struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Admin     bool   `json:"admin"`
	Whitelist bool   `json:"whitelist"`
}

// UpdateUserRequest payload. Absent fields are left untouched.
type UpdateUserRequest struct {
	Name      *string `json:"name"`
	Admin     *bool   `json:"admin"`
	Whitelist *bool   `json:"whitelist"`
}

// UserResponse is a user record. Timestamps are unix milliseconds.
type UserResponse struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Admin     bool   `json:"admin"`
	Whitelist bool   `json:"whitelist"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewUserResponse maps a user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		UserID:    u.UserID,
		Name:      u.Name,
		Admin:     u.Admin,
		Whitelist: u.Whitelist,
		CreatedAt: u.CreatedAt.UnixMilli(),
		UpdatedAt: u.UpdatedAt.UnixMilli(),
	}
}

// NewUserResponses maps users, never returning nil.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
