package store

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/config"
	"github.com/jensholdgaard/clubhub/internal/event"
)

// Repositories groups the repositories bound to one handle: either the
// connection pool or a single transaction.
type Repositories struct {
	Users         UserRepository
	Profiles      ProfileRepository
	Sports        SportRepository
	Memberships   MembershipRepository
	Teams         TeamRepository
	Requests      RequestRepository
	Tournaments   TournamentRepository
	Matches       MatchRepository
	Sessions      SessionRepository
	Notifications NotificationRepository
	Events        event.Store
}

// Transactor runs fn inside one atomic transaction. The transaction commits
// when fn returns nil and rolls back otherwise. fn must only use the
// repositories it is handed.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx *Repositories) error) error
}

// Store is what a driver returns.
type Store struct {
	// Repositories run outside any transaction.
	*Repositories
	Transactor
	// Closer is called to release underlying resources (e.g. DB connection).
	Closer io.Closer
	// Ping checks the underlying connection health.
	Ping func(ctx context.Context) error
}

// Driver is a function that opens a connection and returns a Store.
type Driver func(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Driver{}
)

// Register adds a named driver to the global registry.
// It is intended to be called from init() in each driver package.
func Register(name string, d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = d
}

// Open selects the driver specified in cfg.Driver and returns a Store.
func Open(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*Store, error) {
	registryMu.RLock()
	d, ok := registry[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (registered: %v)", cfg.Driver, registeredNames())
	}
	return d(ctx, cfg, clk)
}

func registeredNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
