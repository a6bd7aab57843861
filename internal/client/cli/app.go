package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/client/api"
	"github.com/dmitrijs2005/staffkeeper/internal/client/config"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// accountAPI is the part of *api.Client the commands use.
type accountAPI interface {
	Register(ctx context.Context, in api.RegisterRequest) (*api.User, error)
	Login(ctx context.Context, username, password string) (*api.User, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*api.User, error)
	Departments(ctx context.Context) ([]api.Department, error)
	CreateDepartment(ctx context.Context, name, description string) (*api.Department, error)
	UpdateStatus(ctx context.Context, userID string, fields map[string]string, avatarPath string) (*api.User, error)
	LoggedIn() bool
	AccessExpiresAt() time.Time
}

type healthChecker interface {
	Check(ctx context.Context) error
	Close() error
}

type App struct {
	config *config.Config
	api    accountAPI
	probe  healthChecker
	reader *bufio.Reader
	out    io.Writer

	mu       sync.Mutex
	userName string
	Mode     Mode
}

// NewApp builds the CLI. An empty HealthAddr disables the online watcher.
func NewApp(c *config.Config) (*App, error) {
	a := &App{
		config: c,
		api:    api.New(c.ServerURL, c.RequestTimeout),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	if c.HealthAddr != "" {
		probe, err := api.NewHealthProbe(c.HealthAddr)
		if err != nil {
			return nil, fmt.Errorf("health probe: %w", err)
		}
		a.probe = probe
	}
	return a, nil
}

// Run blocks in the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.probe != nil {
		defer a.probe.Close()
		go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}

	fmt.Fprintln(a.out, "Welcome to StaffKeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.api.LoggedIn()
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.userName != "" && a.api.LoggedIn() {
		s = a.userName + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// StartOnlineStatusWatcher probes the health endpoint every interval and
// flips Mode accordingly until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.probeOnce(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probeOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) probeOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.probe.Check(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}
