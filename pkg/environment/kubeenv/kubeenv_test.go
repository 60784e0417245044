package kubeenv_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/edo-build/edo/pkg/environment/kubeenv"
)

func TestSetupCreatesNamespaceOnce(t *testing.T) {
	client := fake.NewSimpleClientset()
	farm := kubeenv.Farm{Clientset: client, Namespace: "edo-builds"}

	require.NoError(t, farm.Setup(context.Background(), logr.Discard(), nil))
	ns, err := client.CoreV1().Namespaces().Get(context.Background(), "edo-builds", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "edo-builds", ns.Name)

	// Idempotent: calling Setup again with the namespace already present
	// must not error.
	require.NoError(t, farm.Setup(context.Background(), logr.Discard(), nil))
}

func TestCreateAcceptsPathNeedingSanitization(t *testing.T) {
	client := fake.NewSimpleClientset()
	farm := kubeenv.Farm{Clientset: client, Namespace: "edo-builds", Image: "golang:1.25"}

	env, err := farm.Create(context.Background(), logr.Discard(), "Build/One_2")
	require.NoError(t, err)
	require.NotNil(t, env)
}

func TestUpCreatesPodThenDownDeletesIt(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		createAction := action.(k8stesting.CreateAction)
		pod := createAction.GetObject().(*corev1.Pod)
		pod.Status.Phase = corev1.PodRunning
		return false, pod, nil
	})

	farm := kubeenv.Farm{Clientset: client, Namespace: "edo-builds", Image: "alpine:3.19"}
	env, err := farm.Create(context.Background(), logr.Discard(), "build-1")
	require.NoError(t, err)

	require.NoError(t, env.Up(context.Background(), logr.Discard()))

	pods, err := client.CoreV1().Pods("edo-builds").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pods.Items, 1)
	assert.Equal(t, corev1.PodRunning, pods.Items[0].Status.Phase)

	require.NoError(t, env.Down(context.Background(), logr.Discard()))
	pods, err = client.CoreV1().Pods("edo-builds").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, pods.Items, 0)
}

func TestDownOnMissingPodIsNotAnError(t *testing.T) {
	client := fake.NewSimpleClientset()
	farm := kubeenv.Farm{Clientset: client, Namespace: "edo-builds"}
	env, err := farm.Create(context.Background(), logr.Discard(), "never-upped")
	require.NoError(t, err)

	assert.NoError(t, env.Down(context.Background(), logr.Discard()))
}
