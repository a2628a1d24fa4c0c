package models

// UserRecord is one backend account as returned by get_users_with_roles.
type UserRecord struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// InviteProfile is the metadata attached to an invitation. The backend copies
// it onto the profile row once the invitee signs up.
type InviteProfile struct {
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	Title      string `json:"title"`
	Role       Role   `json:"role"`
}

// InvitationRequest is a validated invitation ready to send.
type InvitationRequest struct {
	Email   string
	Profile InviteProfile
}
