// Package orchestrator abstracts the cluster scheduler behind the
// primitives the control plane needs: create an ephemeral job, read its
// status, stream its logs, and delete it. The production implementation targets
// Kubernetes Jobs; tests use the in-process Fake.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors.
var (
	// ErrJobNotFound is returned when the named job does not exist (not
	// yet created, or already reclaimed by the TTL controller).
	ErrJobNotFound = errors.New("job not found")

	// ErrUnavailable is returned when the orchestrator API cannot be
	// reached; the control plane maps it to HTTP 503.
	ErrUnavailable = errors.New("orchestrator unavailable")
)

// JobPhase is the coarse lifecycle phase of an orchestrator job.
type JobPhase string

// Job phases.
const (
	JobPending   JobPhase = "pending"
	JobRunning   JobPhase = "running"
	JobSucceeded JobPhase = "succeeded"
	JobFailed    JobPhase = "failed"
)

// JobSpec describes one ephemeral worker job. Jobs never restart on
// failure — a worker crash is a terminal investigation failure, and retry
// semantics belong to the submitter.
type JobSpec struct {
	Name      string
	Namespace string
	Image     string

	// Env is the worker's plain environment (goal, budget, UFFLOW_*).
	Env map[string]string

	// SecretEnvFrom names an orchestrator-managed secret whose keys are
	// injected as environment variables (the oracle credentials).
	SecretEnvFrom string

	// TTL is how long a terminal job is retained before the orchestrator
	// garbage-collects it (and its logs).
	TTL time.Duration

	// ActiveDeadline bounds the job's run time at the orchestrator level
	// as a backstop behind the control plane's own hard deadline.
	ActiveDeadline time.Duration
}

// JobStatus is the observed state of a job.
type JobStatus struct {
	Phase JobPhase

	// ExitCode is the worker container's exit code, set once the job is
	// terminal and the code is known.
	ExitCode *int32

	// Message carries the orchestrator's failure detail, if any.
	Message string
}

// Orchestrator is the scheduler interface.
type Orchestrator interface {
	// CreateJob schedules the job. Rejection (quota, bad spec,
	// unreachable API) is returned as an error.
	CreateJob(ctx context.Context, spec JobSpec) error

	// GetJobStatus reads the job's current status.
	GetJobStatus(ctx context.Context, namespace, name string) (JobStatus, error)

	// StreamLogs opens the job's log stream. With follow, the stream
	// stays open until the job terminates; without, it returns the
	// retained logs and closes. The caller closes the reader.
	StreamLogs(ctx context.Context, namespace, name string, follow bool) (io.ReadCloser, error)

	// DeleteJob removes the job and terminates its worker. Deleting an
	// absent job returns ErrJobNotFound.
	DeleteJob(ctx context.Context, namespace, name string) error
}
