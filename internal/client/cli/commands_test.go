package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/staffkeeper/internal/client/api"
)

type fakeAPI struct {
	loggedIn bool

	registered *api.RegisterRequest
	loginUser  string
	loginPass  string
	loginErr   error
	refreshErr error
	logoutErr  error
	logouts    int

	statusUser   string
	statusFields map[string]string
	statusAvatar string

	deptName string
	depts    []api.Department
}

func (f *fakeAPI) Register(_ context.Context, in api.RegisterRequest) (*api.User, error) {
	f.registered = &in
	return &api.User{ID: "u-1", Username: in.Username}, nil
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (*api.User, error) {
	f.loginUser, f.loginPass = username, password
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.loggedIn = true
	return &api.User{ID: "u-1", Username: username}, nil
}

func (f *fakeAPI) Refresh(context.Context) error {
	if f.refreshErr != nil {
		f.loggedIn = false
	}
	return f.refreshErr
}

func (f *fakeAPI) Logout(context.Context) error {
	f.logouts++
	f.loggedIn = false
	return f.logoutErr
}

func (f *fakeAPI) Profile(context.Context) (*api.User, error) {
	return &api.User{ID: "u-1", Username: "alice", WorkStatus: "active",
		Department: &api.Department{ID: 1, Name: "Engineering"}}, nil
}

func (f *fakeAPI) Departments(context.Context) ([]api.Department, error) {
	return f.depts, nil
}

func (f *fakeAPI) CreateDepartment(_ context.Context, name, _ string) (*api.Department, error) {
	f.deptName = name
	return &api.Department{ID: 7, Name: name}, nil
}

func (f *fakeAPI) UpdateStatus(_ context.Context, userID string, fields map[string]string, avatarPath string) (*api.User, error) {
	f.statusUser, f.statusFields, f.statusAvatar = userID, fields, avatarPath
	return &api.User{ID: userID, WorkStatus: fields["work_status"]}, nil
}

func (f *fakeAPI) LoggedIn() bool { return f.loggedIn }

func (f *fakeAPI) AccessExpiresAt() time.Time { return time.Unix(1772356500, 0) }

// stubInputs answers text prompts from texts in order and password prompts
// from passwords in order.
func stubInputs(t *testing.T, texts []string, passwords ...string) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, prompt string, _ io.Writer) (string, error) {
		if len(texts) == 0 {
			return "", errors.New("unexpected prompt: " + prompt)
		}
		s := texts[0]
		texts = texts[1:]
		return s, nil
	}
	getPassword = func(_ *bufio.Reader, prompt string, _ io.Writer) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, errors.New("unexpected password prompt: " + prompt)
		}
		p := passwords[0]
		passwords = passwords[1:]
		return []byte(p), nil
	}
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func newTestApp(f *fakeAPI) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{api: f, out: &out, reader: bufio.NewReader(strings.NewReader(""))}, &out
}

func TestApp_Register(t *testing.T) {
	f := &fakeAPI{}
	a, out := newTestApp(f)
	stubInputs(t, []string{"alice", "alice@example.com", "F", "Engineer", "+12025550123", "3"},
		"Str0ng-Passw0rd!", "Str0ng-Passw0rd!")

	require.NoError(t, a.Register(context.Background()))

	require.NotNil(t, f.registered)
	assert.Equal(t, "alice", f.registered.Username)
	assert.Equal(t, "alice@example.com", f.registered.Email)
	assert.Equal(t, "F", f.registered.Gender)
	assert.Equal(t, "Engineer", f.registered.Position)
	require.NotNil(t, f.registered.DepartmentID)
	assert.Equal(t, int64(3), *f.registered.DepartmentID)
	assert.Equal(t, "Str0ng-Passw0rd!", f.registered.Password)
	assert.Equal(t, "Str0ng-Passw0rd!", f.registered.PasswordConfirm)
	assert.Contains(t, out.String(), "Registered alice")
	assert.False(t, a.isLoggedIn())
}

func TestApp_RegisterBadDepartment(t *testing.T) {
	f := &fakeAPI{}
	a, _ := newTestApp(f)
	stubInputs(t, []string{"alice", "alice@example.com", "", "", "", "sales"})

	err := a.Register(context.Background())
	require.Error(t, err)
	assert.Nil(t, f.registered)
}

func TestApp_Login(t *testing.T) {
	f := &fakeAPI{}
	a, out := newTestApp(f)
	stubInputs(t, []string{"alice"}, "Str0ng-Passw0rd!")

	require.NoError(t, a.Login(context.Background()))

	assert.Equal(t, "alice", f.loginUser)
	assert.Equal(t, "Str0ng-Passw0rd!", f.loginPass)
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(alice online)", a.getStatus())
	assert.Contains(t, out.String(), "Login successful")

	assert.ErrorIs(t, a.Login(context.Background()), errAlreadyLoggedIn)
}

func TestApp_LoginFailure(t *testing.T) {
	f := &fakeAPI{loginErr: &api.Error{Status: 400, Code: "invalid_credentials"}}
	a, _ := newTestApp(f)
	stubInputs(t, []string{"alice"}, "wrong")

	err := a.Login(context.Background())
	require.Error(t, err)
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "", a.getStatus())
}

func TestApp_RefreshRejectedForgetsUser(t *testing.T) {
	f := &fakeAPI{}
	a, _ := newTestApp(f)
	stubInputs(t, []string{"alice"}, "Str0ng-Passw0rd!")
	require.NoError(t, a.Login(context.Background()))

	f.refreshErr = api.ErrUnauthorized
	require.Error(t, a.Refresh(context.Background()))
	assert.Equal(t, "(online)", a.getStatus())
}

func TestApp_RefreshPrintsExpiry(t *testing.T) {
	f := &fakeAPI{loggedIn: true}
	a, out := newTestApp(f)

	require.NoError(t, a.Refresh(context.Background()))
	assert.Contains(t, out.String(), "Session refreshed")
}

func TestApp_Logout(t *testing.T) {
	f := &fakeAPI{}
	a, out := newTestApp(f)
	stubInputs(t, []string{"alice"}, "Str0ng-Passw0rd!")
	require.NoError(t, a.Login(context.Background()))

	require.NoError(t, a.Logout(context.Background()))
	assert.Equal(t, 1, f.logouts)
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "Logged out")
}

func TestApp_ProfileAndDepartments(t *testing.T) {
	f := &fakeAPI{depts: []api.Department{{ID: 1, Name: "Engineering", Description: "Builds things"}}}
	a, out := newTestApp(f)

	require.NoError(t, a.Profile(context.Background()))
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "Engineering")
	assert.NotContains(t, out.String(), "Staff:")

	out.Reset()
	require.NoError(t, a.Departments(context.Background()))
	assert.Contains(t, out.String(), "Builds things")

	out.Reset()
	f.depts = nil
	require.NoError(t, a.Departments(context.Background()))
	assert.Equal(t, "No departments\n", out.String())
}

func TestApp_AddDepartment(t *testing.T) {
	f := &fakeAPI{}
	a, out := newTestApp(f)
	stubInputs(t, []string{"Logistics", ""})

	require.NoError(t, a.AddDepartment(context.Background()))
	assert.Equal(t, "Logistics", f.deptName)
	assert.Contains(t, out.String(), "Created department 7 Logistics")
}

func TestApp_Status(t *testing.T) {
	f := &fakeAPI{}
	a, out := newTestApp(f)
	a.reader = bufio.NewReader(strings.NewReader("work_status=business_trip\ncurrent_destination=Riga\navatar=/tmp/face.png\n\n"))
	stubInputs(t, []string{"u-2"})

	require.NoError(t, a.Status(context.Background()))

	assert.Equal(t, "u-2", f.statusUser)
	assert.Equal(t, map[string]string{"work_status": "business_trip", "current_destination": "Riga"}, f.statusFields)
	assert.Equal(t, "/tmp/face.png", f.statusAvatar)
	assert.Contains(t, out.String(), "business_trip")
}

func TestApp_StatusClearsAvatar(t *testing.T) {
	f := &fakeAPI{}
	a, _ := newTestApp(f)
	a.reader = bufio.NewReader(strings.NewReader("avatar=\n\n"))
	stubInputs(t, []string{"u-2"})

	require.NoError(t, a.Status(context.Background()))
	assert.Equal(t, map[string]string{"avatar": ""}, f.statusFields)
	assert.Empty(t, f.statusAvatar)
}

func TestApp_StatusNeedsUserID(t *testing.T) {
	f := &fakeAPI{}
	a, _ := newTestApp(f)
	stubInputs(t, []string{""})

	require.Error(t, a.Status(context.Background()))
	assert.Empty(t, f.statusUser)
}
