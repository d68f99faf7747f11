package leader_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/k3s"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/jensholdgaard/clubhub/internal/config"
	"github.com/jensholdgaard/clubhub/internal/leader"
)

// TestLeaderElection_K3s validates real Kubernetes Lease-based leader election
// using a k3s testcontainer. Skipped in short mode.
func TestLeaderElection_K3s(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping k3s integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Start a k3s container.
	ctr, err := k3s.Run(ctx, "rancher/k3s:v1.31.6-k3s1")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting k3s container: %v", err)
	}

	// Get kubeconfig from the container.
	kubeConfigYaml, err := ctr.GetKubeConfig(ctx)
	if err != nil {
		t.Fatalf("getting kubeconfig: %v", err)
	}

	restCfg, err := clientcmd.RESTConfigFromKubeConfig(kubeConfigYaml)
	if err != nil {
		t.Fatalf("building rest config: %v", err)
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		t.Fatalf("creating kubernetes client: %v", err)
	}

	// Override the ClientFactory so the elector uses our test cluster.
	origFactory := leader.ClientFactory
	leader.ClientFactory = func() (kubernetes.Interface, error) {
		return clientset, nil
	}
	t.Cleanup(func() { leader.ClientFactory = origFactory })

	cfg := config.LeaderElectionConfig{
		Enabled:        true,
		LeaseName:      "clubhub-test-leader",
		LeaseNamespace: "default",
		LeaseDuration:  5 * time.Second,
		RenewDeadline:  3 * time.Second,
		RetryPeriod:    1 * time.Second,
	}

	first := leader.New(cfg, slog.Default())

	var taskRuns atomic.Int32
	leaderCtx, leaderCancel := context.WithCancel(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- first.Run(leaderCtx, func(ctx context.Context) error {
			taskRuns.Add(1)
			// Block until leadership ends, as the bot does.
			<-ctx.Done()
			return nil
		})
	}()

	// Wait for leadership to be acquired.
	deadline := time.After(30 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for taskRuns.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for leader election")
		case <-ticker.C:
		}
	}

	if !first.Leading() {
		t.Error("Leading() = false while the task runs, want true")
	}

	// Cancel to release leadership.
	leaderCancel()

	select {
	case runErr := <-errCh:
		if runErr != nil {
			t.Fatalf("Run() error = %v", runErr)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
}
