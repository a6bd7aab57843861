package api

import "time"

// Department mirrors the server's department representation.
type Department struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// User is the account profile as returned by the server.
type User struct {
	ID                 string      `json:"id"`
	Username           string      `json:"username"`
	Email              string      `json:"email"`
	DateJoined         time.Time   `json:"date_joined"`
	Department         *Department `json:"department"`
	Gender             string      `json:"gender"`
	Position           string      `json:"position"`
	WorkStatus         string      `json:"work_status"`
	CurrentDestination string      `json:"current_destination"`
	DateOfJoining      *string     `json:"date_of_joining"`
	DateOfLeaving      *string     `json:"date_of_leaving"`
	PhoneNumber        string      `json:"phone_number"`
	EmergencyContact   string      `json:"emergency_contact"`
	Avatar             *string     `json:"avatar"`
	AvatarURL          *string     `json:"avatar_url"`
	IsStaff            bool        `json:"is_staff"`
}

// RegisterRequest carries the self-registration form. Empty optional
// fields are omitted from the request.
type RegisterRequest struct {
	Username           string `json:"username"`
	Email              string `json:"email"`
	Gender             string `json:"gender,omitempty"`
	Password           string `json:"password"`
	PasswordConfirm    string `json:"password_confirm"`
	Position           string `json:"position,omitempty"`
	WorkStatus         string `json:"work_status,omitempty"`
	CurrentDestination string `json:"current_destination,omitempty"`
	DateOfJoining      string `json:"date_of_joining,omitempty"`
	PhoneNumber        string `json:"phone_number,omitempty"`
	EmergencyContact   string `json:"emergency_contact,omitempty"`
	DepartmentID       *int64 `json:"department_id,omitempty"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access          string    `json:"access"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	User            *User     `json:"user,omitempty"`
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}
