// Package models defines server-side data models persisted in the database.
package models

import "time"

// Gender is the single-letter gender code stored with a user.
type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderUnknown Gender = "U"
)

// Valid reports whether g is one of the known codes.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderUnknown:
		return true
	}
	return false
}

// WorkStatus is the employment state of a user.
type WorkStatus string

const (
	WorkStatusActive       WorkStatus = "active"
	WorkStatusLeave        WorkStatus = "leave"
	WorkStatusBusinessTrip WorkStatus = "business_trip"
	WorkStatusInactive     WorkStatus = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s WorkStatus) Valid() bool {
	switch s {
	case WorkStatusActive, WorkStatusLeave, WorkStatusBusinessTrip, WorkStatusInactive:
		return true
	}
	return false
}

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// User is an account record. PasswordHash must never leave the server.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	Gender       Gender
	PhoneNumber  string

	// DepartmentID references Department.ID; nil when unassigned.
	DepartmentID *int64
	// Department is populated by reads that join departments.
	Department *Department

	Position           string
	WorkStatus         WorkStatus
	CurrentDestination string
	DateOfJoining      *time.Time
	DateOfLeaving      *time.Time
	EmergencyContact   string

	// Avatar is the object-storage key of the avatar image, empty if none.
	Avatar string

	DateJoined time.Time
}

// DepartmentName returns the name of the joined department, or nil.
func (u *User) DepartmentName() *string {
	if u.Department == nil {
		return nil
	}
	name := u.Department.Name
	return &name
}
