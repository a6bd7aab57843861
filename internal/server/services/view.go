package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

// DepartmentView is the public shape of a department.
type DepartmentView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UserView is the public projection of a user. It never carries the
// password hash.
type UserView struct {
	ID                 string          `json:"id"`
	Username           string          `json:"username"`
	Email              string          `json:"email"`
	DateJoined         time.Time       `json:"date_joined"`
	Department         *DepartmentView `json:"department"`
	Gender             string          `json:"gender"`
	Position           string          `json:"position"`
	WorkStatus         string          `json:"work_status"`
	CurrentDestination string          `json:"current_destination"`
	DateOfJoining      *string         `json:"date_of_joining"`
	DateOfLeaving      *string         `json:"date_of_leaving"`
	PhoneNumber        string          `json:"phone_number"`
	EmergencyContact   string          `json:"emergency_contact"`
	Avatar             *string         `json:"avatar"`
	AvatarURL          *string         `json:"avatar_url"`
	IsStaff            bool            `json:"is_staff"`
}

func departmentView(d *models.Department) *DepartmentView {
	if d == nil {
		return nil
	}
	return &DepartmentView{ID: d.ID, Name: d.Name, Description: d.Description}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(models.DateLayout)
	return &s
}

// view projects u. A failing avatar URL is logged and left null.
func (s *UserService) view(ctx context.Context, u *models.User) *UserView {
	v := &UserView{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		DateJoined:         u.DateJoined,
		Department:         departmentView(u.Department),
		Gender:             string(u.Gender),
		Position:           u.Position,
		WorkStatus:         string(u.WorkStatus),
		CurrentDestination: u.CurrentDestination,
		DateOfJoining:      formatDate(u.DateOfJoining),
		DateOfLeaving:      formatDate(u.DateOfLeaving),
		PhoneNumber:        u.PhoneNumber,
		EmergencyContact:   u.EmergencyContact,
		IsStaff:            u.IsStaff,
	}

	if u.Avatar != "" {
		key := u.Avatar
		v.Avatar = &key
		if s.avatars != nil {
			url, err := s.avatars.URL(ctx, key)
			if err != nil {
				s.logger.Warn(ctx, "avatar url failed", "user_id", u.ID, "error", err)
			} else {
				v.AvatarURL = &url
			}
		}
	}

	return v
}
