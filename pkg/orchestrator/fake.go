package orchestrator

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Fake is an in-process Orchestrator for tests and local development. A
// script controls each job's behavior: the log lines it emits and how it
// terminates.
type Fake struct {
	mu   sync.Mutex
	jobs map[string]*fakeJob

	// CreateErr, when set, makes CreateJob fail (orchestrator rejection).
	CreateErr error

	// Script produces the behavior for a job at creation time. Nil gets
	// DefaultScript.
	Script func(spec JobSpec) FakeScript
}

// FakeScript describes one fake job's run.
type FakeScript struct {
	// LogLines are emitted (newline-terminated) before the job
	// terminates.
	LogLines []string

	// RunFor delays termination after creation.
	RunFor time.Duration

	// ExitCode is the worker's exit code at termination.
	ExitCode int32
}

// DefaultScript terminates immediately with exit 0 and no logs.
var DefaultScript = func(JobSpec) FakeScript { return FakeScript{} }

type fakeJob struct {
	spec    JobSpec
	script  FakeScript
	created time.Time
	deleted bool
	doneAt  time.Time
}

// NewFake creates an empty fake.
func NewFake() *Fake {
	return &Fake{jobs: make(map[string]*fakeJob)}
}

func key(namespace, name string) string { return namespace + "/" + name }

// CreateJob implements Orchestrator.
func (f *Fake) CreateJob(_ context.Context, spec JobSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}

	script := DefaultScript(spec)
	if f.Script != nil {
		script = f.Script(spec)
	}
	now := time.Now()
	f.jobs[key(spec.Namespace, spec.Name)] = &fakeJob{
		spec:    spec,
		script:  script,
		created: now,
		doneAt:  now.Add(script.RunFor),
	}
	return nil
}

// GetJobStatus implements Orchestrator.
func (f *Fake) GetJobStatus(_ context.Context, namespace, name string) (JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[key(namespace, name)]
	if !ok || job.deleted {
		return JobStatus{}, ErrJobNotFound
	}

	if time.Now().Before(job.doneAt) {
		return JobStatus{Phase: JobRunning}, nil
	}
	code := job.script.ExitCode
	status := JobStatus{ExitCode: &code}
	if code == 0 {
		status.Phase = JobSucceeded
	} else {
		status.Phase = JobFailed
	}
	return status, nil
}

// StreamLogs implements Orchestrator. The fake returns all scripted lines
// at once; follow semantics (blocking until termination) are approximated
// by the job already being terminal in most tests.
func (f *Fake) StreamLogs(_ context.Context, namespace, name string, _ bool) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[key(namespace, name)]
	if !ok || job.deleted {
		return nil, ErrJobNotFound
	}

	var b strings.Builder
	for _, line := range job.script.LogLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return io.NopCloser(strings.NewReader(b.String())), nil
}

// DeleteJob implements Orchestrator.
func (f *Fake) DeleteJob(_ context.Context, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[key(namespace, name)]
	if !ok || job.deleted {
		return ErrJobNotFound
	}
	job.deleted = true
	return nil
}

// JobSpecFor returns the spec a job was created with, for assertions.
func (f *Fake) JobSpecFor(namespace, name string) (JobSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[key(namespace, name)]
	if !ok {
		return JobSpec{}, false
	}
	return job.spec, true
}
