package models

// DepartmentNameMaxLen is the maximum length of a department name.
const DepartmentNameMaxLen = 50

// Department groups users. Names are unique.
type Department struct {
	ID          int64
	Name        string
	Description string
}
