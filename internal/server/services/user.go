// Package services contains server-side business logic. This file implements
// UserService, which owns the session lifecycle: registration, login,
// refresh token rotation, logout and administrative status updates.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/auth"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/password"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/staffkeeper/internal/server/storage"
)

const (
	usernameMaxLen           = 150
	emailMaxLen              = 254
	phoneNumberMaxLen        = 15
	positionMaxLen           = 50
	currentDestinationMaxLen = 255
	emergencyContactMaxLen   = 100
)

// AvatarTooLargeMessage is reported on the avatar field for uploads over
// storage.MaxAvatarSize.
const AvatarTooLargeMessage = "Avatar must not exceed 5 MB."

// AvatarUpload is an image supplied with a registration or status update.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// RegisterInput carries the registration form. Optional string fields may be
// left empty.
type RegisterInput struct {
	Username           string
	Email              string
	Gender             string
	Password           string
	PasswordConfirm    string
	DepartmentID       *int64
	Position           string
	WorkStatus         string
	CurrentDestination string
	DateOfJoining      string
	PhoneNumber        string
	EmergencyContact   string
	Avatar             *AvatarUpload
}

// Session is the outcome of a login or refresh. The refresh token must only
// ever reach the client through an HttpOnly cookie.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *UserView
}

// UserServiceDeps wires a UserService.
type UserServiceDeps struct {
	Repos        repomanager.RepositoryManager
	Hasher       password.Hasher
	Policy       password.Policy
	Issuer       *auth.Issuer
	Revocations  revocations.Registry
	Avatars      storage.AvatarStore
	Logger       logging.Logger
	StoreTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type UserService struct {
	repos       repomanager.RepositoryManager
	creds       *CredentialStore
	policy      password.Policy
	issuer      *auth.Issuer
	revocations revocations.Registry
	avatars     storage.AvatarStore
	logger      logging.Logger
	timeout     time.Duration
	now         func() time.Time
}

func NewUserService(d UserServiceDeps) *UserService {
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = DefaultStoreTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Policy == (password.Policy{}) {
		d.Policy = password.DefaultPolicy
	}
	return &UserService{
		repos:       d.Repos,
		creds:       NewCredentialStore(d.Repos, d.Hasher, d.StoreTimeout),
		policy:      d.Policy,
		issuer:      d.Issuer,
		revocations: d.Revocations,
		avatars:     d.Avatars,
		logger:      d.Logger.With("module", "users"),
		timeout:     d.StoreTimeout,
		now:         d.Now,
	}
}

// Register validates in and creates an active, non-staff user. Every
// violated field is reported in one *common.ValidationError; username and
// email collisions also match *common.DuplicateFieldError.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*UserView, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	u, verr, err := s.validateRegistration(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if in.Avatar != nil {
		key, err := s.putAvatar(ctx, in.Avatar)
		if err != nil {
			return nil, err
		}
		u.Avatar = key
	}

	created, err := s.creds.CreateUser(ctx, u, in.Password)
	if err != nil {
		s.dropAvatar(ctx, u.Avatar)
		var dup *common.DuplicateFieldError
		if errors.As(err, &dup) {
			verr := common.NewValidationError()
			verr.AddDuplicate(dup.Field, fmt.Sprintf("A user with that %s already exists.", dup.Field))
			return nil, verr
		}
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID, "username", created.Username)
	return s.view(ctx, created), nil
}

// validateRegistration returns a non-nil error only when the store could not
// answer a uniqueness or department check.
func (s *UserService) validateRegistration(ctx context.Context, in RegisterInput) (*models.User, *common.ValidationError, error) {
	verr := common.NewValidationError()
	u := &models.User{
		Username:           in.Username,
		Email:              in.Email,
		Gender:             models.Gender(in.Gender),
		PhoneNumber:        strings.TrimSpace(in.PhoneNumber),
		DepartmentID:       in.DepartmentID,
		Position:           strings.TrimSpace(in.Position),
		WorkStatus:         models.WorkStatusActive,
		CurrentDestination: strings.TrimSpace(in.CurrentDestination),
		EmergencyContact:   strings.TrimSpace(in.EmergencyContact),
		IsActive:           true,
	}

	switch {
	case in.Username == "":
		verr.Add("username", "This field is required.")
	case utf8.RuneCountInString(in.Username) > usernameMaxLen:
		verr.Add("username", fmt.Sprintf("Ensure this field has no more than %d characters.", usernameMaxLen))
	case !validUsername(in.Username):
		verr.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	default:
		taken, err := s.creds.usernameTaken(ctx, in.Username)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			verr.AddDuplicate("username", "A user with that username already exists.")
		}
	}

	switch {
	case in.Email == "":
		verr.Add("email", "This field is required.")
	case len(in.Email) > emailMaxLen || !validEmail(in.Email):
		verr.Add("email", "Enter a valid email address.")
	default:
		taken, err := s.creds.emailTaken(ctx, in.Email)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			verr.AddDuplicate("email", "A user with that email already exists.")
		}
	}

	if in.Gender == "" {
		verr.Add("gender", "This field is required.")
	} else if !u.Gender.Valid() {
		verr.Add("gender", fmt.Sprintf("%q is not a valid choice.", in.Gender))
	}

	switch {
	case in.Password == "":
		verr.Add("password", "This field is required.")
	default:
		for _, msg := range s.policy.Validate(in.Password,
			password.Attribute{Name: "username", Value: in.Username},
			password.Attribute{Name: "email address", Value: in.Email},
		) {
			verr.Add("password", msg)
		}
	}
	if in.PasswordConfirm == "" {
		verr.Add("password_confirm", "This field is required.")
	} else if in.Password != "" && in.Password != in.PasswordConfirm {
		verr.Add("password", "The two password fields didn't match.")
	}

	if in.WorkStatus != "" {
		ws := models.WorkStatus(in.WorkStatus)
		if ws.Valid() {
			u.WorkStatus = ws
		} else {
			verr.Add("work_status", fmt.Sprintf("%q is not a valid choice.", in.WorkStatus))
		}
	}

	if in.DateOfJoining != "" {
		d, err := time.Parse(models.DateLayout, strings.TrimSpace(in.DateOfJoining))
		if err != nil {
			verr.Add("date_of_joining", "Date has wrong format. Use YYYY-MM-DD.")
		} else {
			u.DateOfJoining = &d
		}
	}

	if in.DepartmentID != nil {
		if _, err := s.creds.department(ctx, *in.DepartmentID); err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				return nil, nil, err
			}
			verr.Add("department_id", fmt.Sprintf("Invalid pk %q - object does not exist.", fmt.Sprint(*in.DepartmentID)))
		}
	}

	checkLen(verr, "phone_number", u.PhoneNumber, phoneNumberMaxLen)
	checkLen(verr, "position", u.Position, positionMaxLen)
	checkLen(verr, "current_destination", u.CurrentDestination, currentDestinationMaxLen)
	checkLen(verr, "emergency_contact", u.EmergencyContact, emergencyContactMaxLen)

	if in.Avatar != nil {
		validateAvatar(verr, in.Avatar)
	}

	return u, verr, nil
}

// Login verifies credentials and opens a session.
func (s *UserService) Login(ctx context.Context, username, plain string) (*Session, error) {
	if strings.TrimSpace(username) == "" || plain == "" {
		verr := common.NewValidationError()
		if strings.TrimSpace(username) == "" {
			verr.Add("username", "This field is required.")
		}
		if plain == "" {
			verr.Add("password", "This field is required.")
		}
		return nil, verr
	}

	u, err := s.creds.VerifyCredentials(ctx, strings.TrimSpace(username), plain)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) || errors.Is(err, common.ErrAccountDisabled) {
			s.logger.Info(ctx, "login rejected", "reason", err.Error())
		}
		return nil, err
	}

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	sess.User = s.view(ctx, u)

	s.logger.Info(ctx, "user logged in", "user_id", u.ID)
	return sess, nil
}

// Refresh rotates refreshToken: its jti is claimed in the registry and a new
// pair is issued. Of concurrent refreshes with one token exactly one wins;
// the rest fail with common.ErrTokenRevoked.
//
// The user is loaded before the claim so a store failure leaves the token
// usable for a retry. Nothing after the claim touches the store.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, common.ErrMissingToken
	}

	claims, err := s.verify(ctx, refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	u, err := s.creds.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, common.ErrAccountDisabled
	}

	won, err := callStore(ctx, s.timeout, func(ctx context.Context) (bool, error) {
		return s.revocations.RevokeOnce(ctx, claims.ID, claims.ExpiresAt.Time)
	})
	if err != nil {
		return nil, err
	}
	if !won {
		s.logger.Warn(ctx, "refresh token reused", "user_id", claims.UserID, "code", common.TokenErrorCode(common.ErrTokenRevoked))
		return nil, common.ErrTokenRevoked
	}

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	sess.User = s.view(ctx, u)
	return sess, nil
}

// Logout revokes refreshToken even when it has already expired. Only an
// absent or structurally invalid token is an error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return common.ErrMissingToken
	}

	claims, err := s.issuer.Inspect(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		s.logger.Info(ctx, "logout with unusable token", "code", common.TokenErrorCode(err))
		return err
	}

	if err := callStoreErr(ctx, s.timeout, func(ctx context.Context) error {
		return s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	}); err != nil {
		return err
	}

	s.logger.Info(ctx, "user logged out", "user_id", claims.UserID)
	return nil
}

// Authenticate verifies an access token.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	if accessToken == "" {
		return nil, common.ErrMissingToken
	}
	return s.verify(ctx, accessToken, auth.TokenTypeAccess)
}

// Profile returns the projection of the authenticated user. A user that
// vanished or was deactivated after the token was issued is treated as an
// invalid token.
func (s *UserService) Profile(ctx context.Context, userID string) (*UserView, error) {
	u, err := s.creds.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, common.ErrInvalidToken
	}
	return s.view(ctx, u), nil
}

// UpdateStatus applies patch to the target user on behalf of actorID, who
// must be an active staff member. Only allow-listed fields can be changed.
// An avatar upload replaces the stored avatar.
func (s *UserService) UpdateStatus(ctx context.Context, actorID, targetID string, patch *models.UserPatch, avatar *AvatarUpload) (*UserView, error) {
	if _, err := s.creds.staff(ctx, actorID); err != nil {
		if errors.Is(err, common.ErrForbidden) {
			s.logger.Warn(ctx, "status update forbidden", "actor_id", actorID, "target_id", targetID)
		}
		return nil, err
	}

	target, err := s.creds.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if patch == nil {
		patch = &models.UserPatch{}
	}

	verr := common.NewValidationError()
	if patch.Position != nil {
		checkLen(verr, string(models.FieldPosition), *patch.Position, positionMaxLen)
	}
	if patch.CurrentDestination != nil {
		checkLen(verr, string(models.FieldCurrentDestination), *patch.CurrentDestination, currentDestinationMaxLen)
	}
	if patch.DepartmentID.Set && !patch.DepartmentID.Null {
		if _, err := s.creds.department(ctx, patch.DepartmentID.Value); err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				return nil, err
			}
			verr.Add(string(models.FieldDepartmentID), fmt.Sprintf("Invalid pk %q - object does not exist.", fmt.Sprint(patch.DepartmentID.Value)))
		}
	}
	if avatar != nil {
		validateAvatar(verr, avatar)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if avatar != nil {
		key, err := s.putAvatar(ctx, avatar)
		if err != nil {
			return nil, err
		}
		patch.Avatar = models.Some(key)
	}

	if patch.Empty() {
		return s.view(ctx, target), nil
	}

	var updated *models.User
	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		updated, err = callStore(ctx, s.timeout, func(ctx context.Context) (*models.User, error) {
			return s.repos.Users(tx).Update(ctx, targetID, patch)
		})
		return err
	})
	if err != nil {
		if avatar != nil {
			s.dropAvatar(ctx, patch.Avatar.Value)
		}
		return nil, storeErr(err)
	}

	if patch.Avatar.Set && target.Avatar != "" && target.Avatar != updated.Avatar {
		s.dropAvatar(ctx, target.Avatar)
	}

	s.logger.Info(ctx, "user status updated", "actor_id", actorID, "target_id", targetID, "fields", patch.Fields())
	return s.view(ctx, updated), nil
}

// EnsureStaffUser creates an active staff account unless username exists.
// It bypasses the password policy; the password comes from configuration.
func (s *UserService) EnsureStaffUser(ctx context.Context, username, email, plain string) error {
	return s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		exists, err := callStore(ctx, s.timeout, func(ctx context.Context) (bool, error) {
			return s.repos.Users(tx).ExistsByUsername(ctx, username)
		})
		if err != nil {
			return err
		}
		if exists {
			s.logger.Debug(ctx, "staff user already present", "username", username)
			return nil
		}

		hash, err := s.creds.hasher.Hash(plain)
		if err != nil {
			return err
		}
		u := &models.User{
			Username:     username,
			Email:        strings.ToLower(email),
			PasswordHash: hash,
			Gender:       models.GenderUnknown,
			WorkStatus:   models.WorkStatusActive,
			IsActive:     true,
			IsStaff:      true,
		}
		created, err := callStore(ctx, s.timeout, func(ctx context.Context) (*models.User, error) {
			return s.repos.Users(tx).Create(ctx, u)
		})
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "staff user created", "user_id", created.ID, "username", username)
		return nil
	})
}

func (s *UserService) issue(u *models.User) (*Session, error) {
	access, err := s.issuer.IssueAccessToken(u)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.IssueRefreshToken(u)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Session{
		AccessToken:      access.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// verify logs the specific token error code; callers only see it wrapped in
// common.ErrInvalidToken.
func (s *UserService) verify(ctx context.Context, token, tokenType string) (*auth.Claims, error) {
	claims, err := callStore(ctx, s.timeout, func(ctx context.Context) (*auth.Claims, error) {
		return s.issuer.Verify(ctx, token, tokenType)
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			s.logger.Info(ctx, "token rejected", "type", tokenType, "code", common.TokenErrorCode(err))
		}
		return nil, err
	}
	return claims, nil
}

func (s *UserService) putAvatar(ctx context.Context, a *AvatarUpload) (string, error) {
	if s.avatars == nil {
		return "", errors.New("avatar storage is not configured")
	}
	key := storage.NewAvatarKey(s.now(), a.Filename)
	if err := s.avatars.Put(ctx, key, a.Body, a.Size, a.ContentType); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	return key, nil
}

func (s *UserService) dropAvatar(ctx context.Context, key string) {
	if key == "" || s.avatars == nil {
		return
	}
	if err := s.avatars.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "avatar cleanup failed", "key", key, "error", err)
	}
}

func validateAvatar(verr *common.ValidationError, a *AvatarUpload) {
	if a.Size > storage.MaxAvatarSize {
		verr.Add("avatar", AvatarTooLargeMessage)
	}
	if !strings.HasPrefix(strings.ToLower(a.ContentType), "image/") {
		verr.Add("avatar", "Only image files can be uploaded.")
	}
}

func checkLen(verr *common.ValidationError, field, v string, max int) {
	if utf8.RuneCountInString(v) > max {
		verr.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
	}
}

func validUsername(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case '@', '.', '+', '-', '_':
			continue
		}
		return false
	}
	return true
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndexByte(s, '@')+1:], ".")
}
