package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/repomanager"
)

// DepartmentService manages the department directory. Creation is limited
// to staff members; any authenticated user may list.
type DepartmentService struct {
	repos   repomanager.RepositoryManager
	creds   *CredentialStore
	logger  logging.Logger
	timeout time.Duration
}

func NewDepartmentService(repos repomanager.RepositoryManager, creds *CredentialStore, logger logging.Logger, timeout time.Duration) *DepartmentService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &DepartmentService{
		repos:   repos,
		creds:   creds,
		logger:  logger.With("module", "departments"),
		timeout: timeout,
	}
}

// Create adds a department. A taken name fails with a
// *common.ValidationError that also matches *common.DuplicateFieldError.
func (s *DepartmentService) Create(ctx context.Context, actorID, name, description string) (*DepartmentView, error) {
	if _, err := s.creds.staff(ctx, actorID); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	verr := common.NewValidationError()
	switch {
	case name == "":
		verr.Add("name", "This field is required.")
	case utf8.RuneCountInString(name) > models.DepartmentNameMaxLen:
		verr.Add("name", fmt.Sprintf("Ensure this field has no more than %d characters.", models.DepartmentNameMaxLen))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	d, err := callStore(ctx, s.timeout, func(ctx context.Context) (*models.Department, error) {
		return s.repos.Departments(s.repos.DB()).Create(ctx, &models.Department{
			Name:        name,
			Description: strings.TrimSpace(description),
		})
	})
	if err != nil {
		var dup *common.DuplicateFieldError
		if errors.As(err, &dup) {
			verr.AddDuplicate("name", "department with this name already exists.")
			return nil, verr
		}
		return nil, err
	}

	s.logger.Info(ctx, "department created", "department_id", d.ID, "actor_id", actorID)
	return departmentView(d), nil
}

// List returns all departments ordered by name.
func (s *DepartmentService) List(ctx context.Context) ([]*DepartmentView, error) {
	ds, err := callStore(ctx, s.timeout, func(ctx context.Context) ([]*models.Department, error) {
		return s.repos.Departments(s.repos.DB()).List(ctx)
	})
	if err != nil {
		return nil, err
	}

	out := make([]*DepartmentView, 0, len(ds))
	for _, d := range ds {
		out = append(out, departmentView(d))
	}
	return out, nil
}
