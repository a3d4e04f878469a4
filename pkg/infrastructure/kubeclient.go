package infrastructure

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// GetClientSet returns a Kubernetes clientset built from the kubeconfig at
// path, or from the in-cluster configuration when path is empty.
func GetClientSet(path string) (*kubernetes.Clientset, error) {
	var cfg *rest.Config
	var err error
	if path == "" {
		log.Debug("Using in-cluster Kubernetes configuration")
		cfg, err = rest.InClusterConfig()
	} else {
		log.WithField("kubeconfig", path).Debug("Using Kubernetes configuration file")
		cfg, err = clientcmd.BuildConfigFromFlags("", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot configure Kubernetes client")
	}

	return kubernetes.NewForConfig(cfg)
}
