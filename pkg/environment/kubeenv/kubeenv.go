// Package kubeenv implements environment.Farm/Environment by running each
// Environment as a single Kubernetes Pod: created on Up, exec'd into for
// Cmd/Run/Shell, deleted on Down. Grounded directly on the teacher's own
// build/exec Pod lifecycle (see DESIGN.md).
package kubeenv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	stdpath "path"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/edo-build/edo/pkg/environment"
)

// Farm mints Pod-backed Environments in one Kubernetes namespace.
type Farm struct {
	Clientset kubernetes.Interface
	Config    *rest.Config
	Namespace string
	Image     string // default image for the build container if unset per-Environment
}

var _ environment.Farm = Farm{}

func (f Farm) Setup(ctx context.Context, log logr.Logger, _ environment.StorageManager) error {
	_, err := f.Clientset.CoreV1().Namespaces().Get(ctx, f.Namespace, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("kubeenv: check namespace %s: %w", f.Namespace, err)
	}
	log.V(1).Info("creating namespace", "namespace", f.Namespace)
	_, err = f.Clientset.CoreV1().Namespaces().Create(ctx, &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: f.Namespace},
	}, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("kubeenv: create namespace %s: %w", f.Namespace, err)
	}
	return nil
}

func (f Farm) Create(_ context.Context, _ logr.Logger, path string) (environment.Environment, error) {
	image := f.Image
	if image == "" {
		image = "alpine:3.19"
	}
	return &Environment{
		clientset: f.Clientset,
		config:    f.Config,
		namespace: f.Namespace,
		podName:   sanitizePodName(path),
		image:     image,
		env:       map[string]string{},
	}, nil
}

// Environment is one Kubernetes Pod, alive between Up and Down.
type Environment struct {
	clientset kubernetes.Interface
	config    *rest.Config
	namespace string
	podName   string
	image     string
	env       map[string]string
}

var _ environment.Environment = (*Environment)(nil)

// Expand resolves path under the pod's /workspace root, clamping any
// ".." segments to the root lexically (the textbook net/http.Dir
// mitigation: prefix a leading "/" before path.Clean so an absolute
// Clean can never walk above it, then re-root under /workspace).
// localenv.Environment.Expand instead uses securejoin.SecureJoin, which
// resolves symlinks by lstat-ing real directories — there is no local
// filesystem to stat here, since every path lives inside a remote Pod
// reached only through exec (see DESIGN.md).
func (e *Environment) Expand(path string) string {
	return stdpath.Join("/workspace", stdpath.Clean("/"+path))
}

func (e *Environment) CreateDir(ctx context.Context, path string) error {
	_, err := e.execCapture(ctx, "mkdir -p "+shq(e.Expand(path)))
	return err
}

func (e *Environment) SetEnv(key, value string) { e.env[key] = value }

func (e *Environment) GetEnv(key string) (string, bool) {
	v, ok := e.env[key]
	return v, ok
}

func (e *Environment) Setup(ctx context.Context, log logr.Logger, _ environment.StorageManager) error {
	return nil
}

// Up creates the backing Pod and waits for it to become Running, mirroring
// the teacher's own job/pod readiness polling in reconcileSingleBuild.
func (e *Environment) Up(ctx context.Context, log logr.Logger) error {
	pod := e.desiredPod()
	_, err := e.clientset.CoreV1().Pods(e.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("kubeenv: create pod %s: %w", e.podName, err)
	}

	return wait.PollUntilContextTimeout(ctx, 2*time.Second, 5*time.Minute, true, func(ctx context.Context) (bool, error) {
		p, err := e.clientset.CoreV1().Pods(e.namespace).Get(ctx, e.podName, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		switch p.Status.Phase {
		case corev1.PodRunning:
			return true, nil
		case corev1.PodFailed:
			return false, fmt.Errorf("kubeenv: pod %s failed to start", e.podName)
		default:
			log.V(1).Info("waiting for pod", "pod", e.podName, "phase", p.Status.Phase)
			return false, nil
		}
	})
}

func (e *Environment) Down(ctx context.Context, _ logr.Logger) error {
	grace := int64(0)
	err := e.clientset.CoreV1().Pods(e.namespace).Delete(ctx, e.podName, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("kubeenv: delete pod %s: %w", e.podName, err)
	}
	return nil
}

func (e *Environment) Clean(ctx context.Context, log logr.Logger) error {
	return e.Down(ctx, log)
}

func (e *Environment) desiredPod() *corev1.Pod {
	var envVars []corev1.EnvVar
	for k, v := range e.env {
		envVars = append(envVars, corev1.EnvVar{Name: k, Value: v})
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      e.podName,
			Namespace: e.namespace,
			Labels:    map[string]string{"edo.dev/role": "build-environment"},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:    "workspace",
					Image:   e.image,
					Command: []string{"sleep", "infinity"},
					Env:     envVars,
				},
			},
		},
	}
}

// Write streams r into path via a tar exec pipeline, the Kubernetes-native
// substitute for a filesystem mount.
func (e *Environment) Write(ctx context.Context, path string, r io.Reader) error {
	dest := e.Expand(path)
	dir, file := stdpath.Split(dest)
	if dir == "" {
		dir = "/workspace/"
	}
	return e.execStream(ctx, fmt.Sprintf("mkdir -p %s && tar -xf - -C %s", shq(dir), shq(dir)), singleFileTar(file, r), nil)
}

func (e *Environment) Unpack(ctx context.Context, path string, r io.Reader) error {
	dest := e.Expand(path)
	return e.execStream(ctx, fmt.Sprintf("mkdir -p %s && tar -xf - -C %s", shq(dest), shq(dest)), r, nil)
}

func (e *Environment) Read(ctx context.Context, path string, w io.Writer) error {
	return e.execStream(ctx, "cat "+shq(e.Expand(path)), nil, w)
}

func (e *Environment) Cmd(ctx context.Context, log logr.Logger, id, path, cmdString string) (bool, error) {
	script := fmt.Sprintf("cd %s && %s", shq(e.Expand(path)), cmdString)
	out, err := e.execCapture(ctx, script)
	log.V(1).Info("ran command in pod", "id", id, "pod", e.podName, "output", out)
	if err != nil {
		return false, nil //nolint:nilerr // non-zero exit is a reported failure, not a transport error
	}
	return true, nil
}

func (e *Environment) Run(ctx context.Context, log logr.Logger, id, path string, command *environment.Command) (bool, error) {
	script, err := command.Script()
	if err != nil {
		return false, fmt.Errorf("kubeenv: build script: %w", err)
	}
	return e.Cmd(ctx, log, id, path, script)
}

func (e *Environment) Shell(ctx context.Context, log logr.Logger, path string) error {
	sessionID := uuid.NewString()
	log.V(1).Info("opening shell session", "session_id", sessionID, "pod", e.podName, "path", path)
	return e.exec(ctx, "cd "+shq(e.Expand(path))+" && exec sh", os.Stdin, os.Stdout, os.Stderr, true)
}

func (e *Environment) execCapture(ctx context.Context, script string) (string, error) {
	var stdout bytes.Buffer
	err := e.execStream(ctx, script, nil, &stdout)
	return stdout.String(), err
}

func (e *Environment) execStream(ctx context.Context, script string, stdin io.Reader, stdout io.Writer) error {
	return e.exec(ctx, script, stdin, stdout, nil, false)
}

func (e *Environment) exec(ctx context.Context, script string, stdin io.Reader, stdout, stderr io.Writer, tty bool) error {
	req := e.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(e.podName).
		Namespace(e.namespace).
		SubResource("exec")

	req.VersionedParams(&corev1.PodExecOptions{
		Container: "workspace",
		Command:   []string{"sh", "-c", script},
		Stdin:     stdin != nil || tty,
		Stdout:    true,
		Stderr:    !tty,
		TTY:       tty,
	}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(e.config, "POST", req.URL())
	if err != nil {
		return fmt.Errorf("kubeenv: build executor: %w", err)
	}

	if stdout == nil {
		stdout = io.Discard
	}
	var errBuf bytes.Buffer
	if stderr == nil && !tty {
		stderr = &errBuf
	}

	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Tty:    tty,
	})
	if err != nil {
		return fmt.Errorf("kubeenv: exec in pod %s: %w: %s", e.podName, err, errBuf.String())
	}
	return nil
}

func sanitizePodName(path string) string {
	out := make([]rune, 0, len(path))
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '-')
		}
	}
	name := "edo-" + string(out)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

func shq(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
