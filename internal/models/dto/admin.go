package dto

import "github.com/hongminglow/staff-portal/internal/models"

type RoleChangeRequest struct {
	Role string `json:"role"`
}

type InviteRequest struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	Title      string `json:"title"`
	Role       string `json:"role"`
}

type InviteResponse struct {
	Message string `json:"message"`
}

type RosterRow struct {
	models.UserRecord
	CanChangeRole bool `json:"can_change_role"`
	Pending       bool `json:"pending"`
}

type RosterResponse struct {
	State         string      `json:"state"`
	Users         []RosterRow `json:"users"`
	PendingUserID string      `json:"pending_user_id,omitempty"`
	Error         string      `json:"error,omitempty"`
}

type InviteFormResponse struct {
	Fields     InviteRequest `json:"fields"`
	Submitting bool          `json:"submitting"`
	Error      string        `json:"error,omitempty"`
	Success    string        `json:"success,omitempty"`
}
