package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/google/uuid"
)

// constraint names from the init migration
var uniqueFields = map[string]string{
	"users_username_key": "username",
	"users_email_key":    "email",
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.WorkStatus == "" {
		user.WorkStatus = models.WorkStatusActive
	}

	// The department is joined in the same statement so the returned user
	// carries it like the rows read back by getOne.
	query :=
		`WITH ins AS (
		 INSERT INTO users (id, username, email, password_hash, is_active, is_staff, gender,
		 phone_number, department_id, position, work_status, current_destination,
		 date_of_joining, emergency_contact, avatar)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING date_joined, department_id)
		 SELECT ins.date_joined, d.name, d.description
		 FROM ins LEFT JOIN departments d ON d.id = ins.department_id`

	var deptName, deptDesc sql.NullString
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsActive, user.IsStaff, string(user.Gender),
		user.PhoneNumber, user.DepartmentID, user.Position, string(user.WorkStatus), user.CurrentDestination,
		user.DateOfJoining, user.EmergencyContact, user.Avatar,
	).Scan(&user.DateJoined, &deptName, &deptDesc)

	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			if field, known := uniqueFields[constraint]; known {
				return nil, &common.DuplicateFieldError{Field: field}
			}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Department = nil
	if user.DepartmentID != nil && deptName.Valid {
		user.Department = &models.Department{ID: *user.DepartmentID, Name: deptName.String, Description: deptDesc.String}
	}

	return user, nil
}

const selectUser = `SELECT u.id, u.username, u.email, u.password_hash, u.is_active, u.is_staff,
	u.gender, u.phone_number, u.department_id, d.name, d.description, u.position,
	u.work_status, u.current_destination, u.date_of_joining, u.date_of_leaving,
	u.emergency_contact, u.avatar, u.date_joined
	FROM users u LEFT JOIN departments d ON d.id = u.department_id`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if uuid.Validate(id) != nil {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, selectUser+` WHERE u.id = $1`, id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.username = $1`, username)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		user       models.User
		gender     string
		workStatus string
		deptID     sql.NullInt64
		deptName   sql.NullString
		deptDesc   sql.NullString
		joining    sql.NullTime
		leaving    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsActive, &user.IsStaff,
		&gender, &user.PhoneNumber, &deptID, &deptName, &deptDesc, &user.Position,
		&workStatus, &user.CurrentDestination, &joining, &leaving,
		&user.EmergencyContact, &user.Avatar, &user.DateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Gender = models.Gender(gender)
	user.WorkStatus = models.WorkStatus(workStatus)
	if deptID.Valid {
		id := deptID.Int64
		user.DepartmentID = &id
		user.Department = &models.Department{ID: id, Name: deptName.String, Description: deptDesc.String}
	}
	if joining.Valid {
		t := joining.Time
		user.DateOfJoining = &t
	}
	if leaving.Valid {
		t := leaving.Time
		user.DateOfLeaving = &t
	}

	return &user, nil
}

func (r *PostgresRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *PostgresRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// Update writes the patched columns in allow-list order. Columns outside the
// allow-list cannot be reached from here.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return r.GetByID(ctx, id)
	}
	if uuid.Validate(id) != nil {
		return nil, common.ErrorNotFound
	}

	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		args = append(args, patchValue(patch, f))
		sets = append(sets, fmt.Sprintf("%s = $%d", f, len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, common.ErrorNotFound
	}

	return r.GetByID(ctx, id)
}

func patchValue(p *models.UserPatch, f models.UpdatableField) any {
	switch f {
	case models.FieldWorkStatus:
		return string(*p.WorkStatus)
	case models.FieldCurrentDestination:
		return *p.CurrentDestination
	case models.FieldPosition:
		return *p.Position
	case models.FieldDepartmentID:
		return p.DepartmentID.Ptr()
	case models.FieldDateOfLeaving:
		return p.DateOfLeaving.Ptr()
	case models.FieldAvatar:
		if p.Avatar.Null {
			return ""
		}
		return p.Avatar.Value
	}
	return nil
}
