package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestKubernetes_CreateJob(t *testing.T) {
	client := fake.NewSimpleClientset()
	k := NewKubernetesWithClient(client)

	spec := JobSpec{
		Name:      "investigation-abcd1234",
		Namespace: "default",
		Image:     "oats-worker:test",
		Env: map[string]string{
			"OATS_GOAL":      "db latency",
			"OATS_MAX_TURNS": "15",
		},
		SecretEnvFrom:  "oats-oracle-credentials",
		TTL:            300 * time.Second,
		ActiveDeadline: 30 * time.Minute,
	}
	require.NoError(t, k.CreateJob(context.Background(), spec))

	job, err := client.BatchV1().Jobs("default").Get(context.Background(), "investigation-abcd1234", metav1.GetOptions{})
	require.NoError(t, err)

	require.NotNil(t, job.Spec.BackoffLimit)
	assert.Equal(t, int32(0), *job.Spec.BackoffLimit)
	require.NotNil(t, job.Spec.TTLSecondsAfterFinished)
	assert.Equal(t, int32(300), *job.Spec.TTLSecondsAfterFinished)
	require.NotNil(t, job.Spec.ActiveDeadlineSeconds)
	assert.Equal(t, int64(1800), *job.Spec.ActiveDeadlineSeconds)

	pod := job.Spec.Template.Spec
	assert.Equal(t, corev1.RestartPolicyNever, pod.RestartPolicy)
	require.Len(t, pod.Containers, 1)

	container := pod.Containers[0]
	assert.Equal(t, "oats-worker:test", container.Image)
	require.Len(t, container.EnvFrom, 1)
	assert.Equal(t, "oats-oracle-credentials", container.EnvFrom[0].SecretRef.Name)

	// Env is sorted by name for deterministic specs.
	require.Len(t, container.Env, 2)
	assert.Equal(t, "OATS_GOAL", container.Env[0].Name)
	assert.Equal(t, "OATS_MAX_TURNS", container.Env[1].Name)
}

func TestKubernetes_GetJobStatus(t *testing.T) {
	client := fake.NewSimpleClientset()
	k := NewKubernetesWithClient(client)

	_, err := k.GetJobStatus(context.Background(), "default", "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	require.NoError(t, k.CreateJob(context.Background(), JobSpec{
		Name: "inv-1", Namespace: "default", Image: "img", TTL: time.Minute,
	}))

	status, err := k.GetJobStatus(context.Background(), "default", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, JobPending, status.Phase)

	// Mark it active, then succeeded.
	job, err := client.BatchV1().Jobs("default").Get(context.Background(), "inv-1", metav1.GetOptions{})
	require.NoError(t, err)

	job.Status.Active = 1
	_, err = client.BatchV1().Jobs("default").UpdateStatus(context.Background(), job, metav1.UpdateOptions{})
	require.NoError(t, err)
	status, err = k.GetJobStatus(context.Background(), "default", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, JobRunning, status.Phase)

	job.Status.Active = 0
	job.Status.Succeeded = 1
	_, err = client.BatchV1().Jobs("default").UpdateStatus(context.Background(), job, metav1.UpdateOptions{})
	require.NoError(t, err)
	status, err = k.GetJobStatus(context.Background(), "default", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, status.Phase)
	require.NotNil(t, status.ExitCode)
	assert.Equal(t, int32(0), *status.ExitCode)
}

func TestKubernetes_FailedJobReportsExitCode(t *testing.T) {
	client := fake.NewSimpleClientset()
	k := NewKubernetesWithClient(client)

	require.NoError(t, k.CreateJob(context.Background(), JobSpec{
		Name: "inv-2", Namespace: "default", Image: "img", TTL: time.Minute,
	}))
	job, err := client.BatchV1().Jobs("default").Get(context.Background(), "inv-2", metav1.GetOptions{})
	require.NoError(t, err)
	job.Status.Failed = 1
	job.Status.Conditions = []batchv1.JobCondition{{
		Type: batchv1.JobFailed, Status: corev1.ConditionTrue, Message: "BackoffLimitExceeded",
	}}
	_, err = client.BatchV1().Jobs("default").UpdateStatus(context.Background(), job, metav1.UpdateOptions{})
	require.NoError(t, err)

	// Worker pod with a terminated container.
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "inv-2-xyz",
			Namespace: "default",
			Labels:    map[string]string{"job-name": "inv-2"},
		},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{{
				Name: workerContainerName,
				State: corev1.ContainerState{
					Terminated: &corev1.ContainerStateTerminated{ExitCode: 1},
				},
			}},
		},
	}
	_, err = client.CoreV1().Pods("default").Create(context.Background(), pod, metav1.CreateOptions{})
	require.NoError(t, err)

	status, err := k.GetJobStatus(context.Background(), "default", "inv-2")
	require.NoError(t, err)
	assert.Equal(t, JobFailed, status.Phase)
	assert.Equal(t, "BackoffLimitExceeded", status.Message)
	require.NotNil(t, status.ExitCode)
	assert.Equal(t, int32(1), *status.ExitCode)
}

func TestKubernetes_DeleteJob(t *testing.T) {
	client := fake.NewSimpleClientset()
	k := NewKubernetesWithClient(client)

	assert.ErrorIs(t, k.DeleteJob(context.Background(), "default", "missing"), ErrJobNotFound)

	require.NoError(t, k.CreateJob(context.Background(), JobSpec{
		Name: "inv-3", Namespace: "default", Image: "img", TTL: time.Minute,
	}))
	require.NoError(t, k.DeleteJob(context.Background(), "default", "inv-3"))

	_, err := k.GetJobStatus(context.Background(), "default", "inv-3")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
