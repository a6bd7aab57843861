package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
)

// UpdatableField names a user attribute an administrator may change.
type UpdatableField string

const (
	FieldWorkStatus         UpdatableField = "work_status"
	FieldCurrentDestination UpdatableField = "current_destination"
	FieldPosition           UpdatableField = "position"
	FieldDepartmentID       UpdatableField = "department_id"
	FieldDateOfLeaving      UpdatableField = "date_of_leaving"
	FieldAvatar             UpdatableField = "avatar"
)

// UpdatableFields is the complete allow-list, in the order fields are written.
var UpdatableFields = []UpdatableField{
	FieldWorkStatus,
	FieldCurrentDestination,
	FieldPosition,
	FieldDepartmentID,
	FieldDateOfLeaving,
	FieldAvatar,
}

// IsUpdatable reports whether name is on the allow-list.
func IsUpdatable(name string) bool {
	for _, f := range UpdatableFields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// Nullable distinguishes an absent value, an explicit null and a value.
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a set, non-null Nullable.
func Some[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: v} }

// None returns a set, null Nullable.
func None[T any]() Nullable[T] { return Nullable[T]{Set: true, Null: true} }

// Ptr returns nil for null, a pointer to the value otherwise.
func (n Nullable[T]) Ptr() *T {
	if n.Null {
		return nil
	}
	v := n.Value
	return &v
}

// UserPatch is a partial update restricted to UpdatableFields.
// Nil pointers and unset Nullables are left untouched.
type UserPatch struct {
	WorkStatus         *WorkStatus
	CurrentDestination *string
	Position           *string
	DepartmentID       Nullable[int64]
	DateOfLeaving      Nullable[time.Time]
	Avatar             Nullable[string]
}

// Fields returns the fields present in the patch, in allow-list order.
func (p *UserPatch) Fields() []UpdatableField {
	var out []UpdatableField
	if p.WorkStatus != nil {
		out = append(out, FieldWorkStatus)
	}
	if p.CurrentDestination != nil {
		out = append(out, FieldCurrentDestination)
	}
	if p.Position != nil {
		out = append(out, FieldPosition)
	}
	if p.DepartmentID.Set {
		out = append(out, FieldDepartmentID)
	}
	if p.DateOfLeaving.Set {
		out = append(out, FieldDateOfLeaving)
	}
	if p.Avatar.Set {
		out = append(out, FieldAvatar)
	}
	return out
}

// Empty reports whether the patch changes nothing.
func (p *UserPatch) Empty() bool { return len(p.Fields()) == 0 }

// Apply writes the patch onto u. The joined Department is dropped when the
// department reference changes; callers reload it.
func (p *UserPatch) Apply(u *User) {
	if p.WorkStatus != nil {
		u.WorkStatus = *p.WorkStatus
	}
	if p.CurrentDestination != nil {
		u.CurrentDestination = *p.CurrentDestination
	}
	if p.Position != nil {
		u.Position = *p.Position
	}
	if p.DepartmentID.Set {
		u.DepartmentID = p.DepartmentID.Ptr()
		u.Department = nil
	}
	if p.DateOfLeaving.Set {
		u.DateOfLeaving = p.DateOfLeaving.Ptr()
	}
	if p.Avatar.Set {
		if p.Avatar.Null {
			u.Avatar = ""
		} else {
			u.Avatar = p.Avatar.Value
		}
	}
}

var jsonNull = []byte("null")

// AvatarUploadRequired is reported when a request names an avatar value
// instead of uploading a file.
const AvatarUploadRequired = "Upload an image file to set the avatar; send null or an empty value to clear it."

// DecodeUserPatch builds a patch from raw request values keyed by field name.
// Keys outside the allow-list are ignored. Values may be JSON literals or, as
// produced from form posts, JSON strings; an empty string clears nullable
// fields. The avatar can only be cleared this way. All invalid values are reported in one *common.ValidationError.
func DecodeUserPatch(raw map[string]json.RawMessage) (*UserPatch, error) {
	p := &UserPatch{}
	verr := common.NewValidationError()

	for _, field := range UpdatableFields {
		v, ok := raw[string(field)]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		isNull := len(v) == 0 || bytes.Equal(v, jsonNull)

		switch field {
		case FieldWorkStatus:
			var s string
			if isNull || json.Unmarshal(v, &s) != nil {
				verr.Add(string(field), "must be one of active, leave, business_trip, inactive")
				continue
			}
			ws := WorkStatus(s)
			if !ws.Valid() {
				verr.Add(string(field), "must be one of active, leave, business_trip, inactive")
				continue
			}
			p.WorkStatus = &ws

		case FieldCurrentDestination, FieldPosition:
			var s string
			if !isNull {
				if err := json.Unmarshal(v, &s); err != nil {
					verr.Add(string(field), "must be a string")
					continue
				}
			}
			s = strings.TrimSpace(s)
			if field == FieldPosition {
				p.Position = &s
			} else {
				p.CurrentDestination = &s
			}

		case FieldDepartmentID:
			id, null, err := decodeID(v, isNull)
			if err != nil {
				verr.Add(string(field), "must be a department id")
				continue
			}
			if null {
				p.DepartmentID = None[int64]()
			} else {
				p.DepartmentID = Some(id)
			}

		case FieldDateOfLeaving:
			var s string
			if !isNull {
				if err := json.Unmarshal(v, &s); err != nil {
					verr.Add(string(field), "must be a date in YYYY-MM-DD format")
					continue
				}
			}
			if s == "" {
				p.DateOfLeaving = None[time.Time]()
				continue
			}
			d, err := time.Parse(DateLayout, s)
			if err != nil {
				verr.Add(string(field), "must be a date in YYYY-MM-DD format")
				continue
			}
			p.DateOfLeaving = Some(d)

		case FieldAvatar:
			// Only clearing is accepted here. A new avatar arrives as an
			// upload and the service stores it under a key it generates.
			var s string
			if !isNull && (json.Unmarshal(v, &s) != nil || strings.TrimSpace(s) != "") {
				verr.Add(string(field), AvatarUploadRequired)
				continue
			}
			p.Avatar = None[string]()
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return p, nil
}

// decodeID accepts a JSON number, a numeric JSON string, or null/"".
func decodeID(v []byte, isNull bool) (id int64, null bool, err error) {
	if isNull {
		return 0, true, nil
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, true, nil
		}
		id, err = strconv.ParseInt(s, 10, 64)
		return id, false, err
	}
	err = json.Unmarshal(v, &id)
	return id, false, err
}
