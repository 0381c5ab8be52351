package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sort"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/utils/ptr"
)

// workerContainerName is the single container in every investigation job.
const workerContainerName = "worker"

// Kubernetes implements Orchestrator on top of the Jobs API.
type Kubernetes struct {
	client kubernetes.Interface
}

// NewKubernetes builds a client from the kubeconfig path, or from the
// in-cluster service account when the path is empty.
func NewKubernetes(kubeconfig string) (*Kubernetes, error) {
	var cfg *rest.Config
	var err error
	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
	}

	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return &Kubernetes{client: client}, nil
}

// NewKubernetesWithClient wraps an existing clientset (used by tests).
func NewKubernetesWithClient(client kubernetes.Interface) *Kubernetes {
	return &Kubernetes{client: client}
}

// CreateJob implements Orchestrator.
func (k *Kubernetes) CreateJob(ctx context.Context, spec JobSpec) error {
	env := make([]corev1.EnvVar, 0, len(spec.Env))
	for name, value := range spec.Env {
		env = append(env, corev1.EnvVar{Name: name, Value: value})
	}
	sort.Slice(env, func(i, j int) bool { return env[i].Name < env[j].Name })

	container := corev1.Container{
		Name:  workerContainerName,
		Image: spec.Image,
		Env:   env,
	}
	if spec.SecretEnvFrom != "" {
		container.EnvFrom = []corev1.EnvFromSource{{
			SecretRef: &corev1.SecretEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: spec.SecretEnvFrom},
			},
		}}
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: spec.Namespace,
			Labels:    map[string]string{"app.kubernetes.io/managed-by": "oats"},
		},
		Spec: batchv1.JobSpec{
			// One attempt, no restarts: worker exit codes are the
			// investigation's terminal signal.
			BackoffLimit:            ptr.To(int32(0)),
			TTLSecondsAfterFinished: ptr.To(int32(spec.TTL.Seconds())),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers:    []corev1.Container{container},
				},
			},
		},
	}
	if spec.ActiveDeadline > 0 {
		job.Spec.ActiveDeadlineSeconds = ptr.To(int64(spec.ActiveDeadline.Seconds()))
	}

	_, err := k.client.BatchV1().Jobs(spec.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GetJobStatus implements Orchestrator.
func (k *Kubernetes) GetJobStatus(ctx context.Context, namespace, name string) (JobStatus, error) {
	job, err := k.client.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return JobStatus{}, ErrJobNotFound
		}
		return JobStatus{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	status := JobStatus{Phase: JobPending}
	switch {
	case job.Status.Succeeded > 0:
		status.Phase = JobSucceeded
		status.ExitCode = ptr.To(int32(0))
	case job.Status.Failed > 0:
		status.Phase = JobFailed
		status.Message = failureMessage(job)
		if code, ok := k.workerExitCode(ctx, namespace, name); ok {
			status.ExitCode = ptr.To(code)
		}
	case job.Status.Active > 0:
		status.Phase = JobRunning
	}
	return status, nil
}

func failureMessage(job *batchv1.Job) string {
	for _, cond := range job.Status.Conditions {
		if cond.Type == batchv1.JobFailed && cond.Status == corev1.ConditionTrue {
			return cond.Message
		}
	}
	return ""
}

// workerExitCode digs the container exit code out of the job's pod.
func (k *Kubernetes) workerExitCode(ctx context.Context, namespace, jobName string) (int32, bool) {
	pod, err := k.jobPod(ctx, namespace, jobName)
	if err != nil {
		return 0, false
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.Name == workerContainerName && cs.State.Terminated != nil {
			return cs.State.Terminated.ExitCode, true
		}
	}
	return 0, false
}

// jobPod finds the newest pod belonging to a job via the job-name label
// the Job controller stamps on its pods.
func (k *Kubernetes) jobPod(ctx context.Context, namespace, jobName string) (*corev1.Pod, error) {
	pods, err := k.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + jobName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(pods.Items) == 0 {
		return nil, ErrJobNotFound
	}

	newest := pods.Items[0]
	for _, p := range pods.Items[1:] {
		if p.CreationTimestamp.After(newest.CreationTimestamp.Time) {
			newest = p
		}
	}
	return &newest, nil
}

// StreamLogs implements Orchestrator.
func (k *Kubernetes) StreamLogs(ctx context.Context, namespace, name string, follow bool) (io.ReadCloser, error) {
	pod, err := k.jobPod(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	req := k.client.CoreV1().Pods(namespace).GetLogs(pod.Name, &corev1.PodLogOptions{
		Container: workerContainerName,
		Follow:    follow,
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return stream, nil
}

// DeleteJob implements Orchestrator. Foreground propagation tears the pod
// down with the job so a cancelled worker actually stops.
func (k *Kubernetes) DeleteJob(ctx context.Context, namespace, name string) error {
	policy := metav1.DeletePropagationForeground
	err := k.client.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return ErrJobNotFound
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
