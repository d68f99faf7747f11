// Package leader gates singleton work, such as the Discord bot, behind a
// Kubernetes Lease so only one replica runs it.
package leader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/jensholdgaard/clubhub/internal/config"
)

// Task is singleton work. It runs until ctx is canceled.
type Task func(ctx context.Context) error

// identity returns a unique identity for this instance.
// It uses the POD_NAME env var if set, otherwise the hostname.
func identity() string {
	if name := os.Getenv("POD_NAME"); name != "" {
		return name
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// ClientFactory creates a Kubernetes clientset.
// Extracted as a variable for testing.
var ClientFactory = func() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("building in-cluster config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return client, nil
}

// Elector runs a Task only while this replica holds the lease.
type Elector struct {
	cfg     config.LeaderElectionConfig
	logger  *slog.Logger
	id      string
	leading atomic.Bool
}

func New(cfg config.LeaderElectionConfig, logger *slog.Logger) *Elector {
	return &Elector{cfg: cfg, logger: logger, id: identity()}
}

// Leading reports whether the task is currently running here.
func (e *Elector) Leading() bool { return e.leading.Load() }

// Run blocks until ctx is done. With election disabled the task runs
// directly. Otherwise the replica campaigns for the lease, runs the task
// while leading and campaigns again after losing it. Task failures are
// logged and do not stop Run.
func (e *Elector) Run(ctx context.Context, task Task) error {
	if !e.cfg.Enabled {
		e.leading.Store(true)
		defer e.leading.Store(false)
		return task(ctx)
	}

	e.logger.Info("starting leader election",
		slog.String("identity", e.id),
		slog.String("lease", e.cfg.LeaseName),
		slog.String("namespace", e.cfg.LeaseNamespace),
	)

	client, err := ClientFactory()
	if err != nil {
		return fmt.Errorf("leader election client: %w", err)
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      e.cfg.LeaseName,
			Namespace: e.cfg.LeaseNamespace,
		},
		Client: client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.id,
		},
	}

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   e.cfg.LeaseDuration,
		RenewDeadline:   e.cfg.RenewDeadline,
		RetryPeriod:     e.cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Name:            e.cfg.LeaseName,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				e.logger.Info("acquired leadership", slog.String("identity", e.id))
				e.leading.Store(true)
				if err := task(ctx); err != nil {
					e.logger.Error("leader task failed", slog.Any("error", err))
				}
			},
			OnStoppedLeading: func() {
				e.leading.Store(false)
				e.logger.Info("lost leadership", slog.String("identity", e.id))
			},
			OnNewLeader: func(newID string) {
				if newID == e.id {
					return
				}
				e.logger.Info("new leader elected", slog.String("leader", newID))
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating leader elector: %w", err)
	}

	for ctx.Err() == nil {
		elector.Run(ctx)
	}
	return nil
}
