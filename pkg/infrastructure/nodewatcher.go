package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	apiv1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
)

const (
	// informer resync period
	resyncPeriod = 30 * time.Second

	// full node list refresh
	updateDelay = 2 * time.Minute
)

// A NodeWatcher keeps the schedulable nodes of a Kubernetes cluster and
// describes them as an infrastructure.
type NodeWatcher struct {
	clientset kubernetes.Interface
	cfg       config.KubernetesConfig

	// Schedulable nodes by name
	mu    sync.Mutex
	nodes map[string]apiv1.Node

	stop chan struct{}
}

func NewNodeWatcher(clientset kubernetes.Interface, cfg config.KubernetesConfig) *NodeWatcher {
	return &NodeWatcher{
		clientset: clientset,
		cfg:       cfg,
		nodes:     make(map[string]apiv1.Node),
		stop:      make(chan struct{}),
	}
}

// Start lists the current nodes, then follows node events until Stop is called.
func (nw *NodeWatcher) Start(ctx context.Context) error {
	if err := nw.Refresh(ctx); err != nil {
		return err
	}

	factory := informers.NewSharedInformerFactory(nw.clientset, resyncPeriod)
	informer := factory.Core().V1().Nodes().Informer()
	if _, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    nw.addFunc,
		UpdateFunc: nw.updateFunc,
		DeleteFunc: nw.deleteFunc,
	}); err != nil {
		return errors.Wrap(err, "cannot watch nodes")
	}

	factory.Start(nw.stop)
	if !cache.WaitForCacheSync(nw.stop, informer.HasSynced) {
		return errors.New("node cache not synced")
	}

	go nw.nodeUpdater()

	return nil
}

func (nw *NodeWatcher) nodeUpdater() {
	ticker := time.NewTicker(updateDelay)
	defer ticker.Stop()

	log.Debug("Node updater started")
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), updateDelay/2)
			if err := nw.Refresh(ctx); err != nil {
				log.WithError(err).Warn("Cannot update nodes")
			}
			cancel()
		case <-nw.stop:
			log.Debug("Node updater stopped")
			return
		}
	}
}

// Stop ends the watch.
func (nw *NodeWatcher) Stop() {
	close(nw.stop)
}

// Refresh replaces the known nodes with the schedulable nodes listed by the cluster.
func (nw *NodeWatcher) Refresh(ctx context.Context) error {
	list, err := nw.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrap(err, "cannot list nodes")
	}

	nodes := make(map[string]apiv1.Node, len(list.Items))
	for _, node := range list.Items {
		if !isNodeAvailableForScheduling(&node) {
			log.WithField("node", node.Name).Debug("Node cannot be used for placement")
			continue
		}
		nodes[node.Name] = node
	}

	nw.mu.Lock()
	old := len(nw.nodes)
	nw.nodes = nodes
	nw.mu.Unlock()

	log.WithFields(log.Fields{
		"old_count": old,
		"count":     len(nodes),
	}).Info("Node list updated")

	return nil
}

func (nw *NodeWatcher) addFunc(obj interface{}) {
	node, ok := obj.(*apiv1.Node)
	if !ok {
		return
	}
	nw.set(node)
}

func (nw *NodeWatcher) updateFunc(_, obj interface{}) {
	node, ok := obj.(*apiv1.Node)
	if !ok {
		return
	}
	nw.set(node)
}

func (nw *NodeWatcher) set(node *apiv1.Node) {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	if !isNodeAvailableForScheduling(node) {
		if _, ok := nw.nodes[node.Name]; ok {
			log.WithField("node", node.Name).Info("Node no longer schedulable")
			delete(nw.nodes, node.Name)
		}
		return
	}
	if _, ok := nw.nodes[node.Name]; !ok {
		log.WithField("node", node.Name).Info("Node added")
	}
	nw.nodes[node.Name] = *node
}

func (nw *NodeWatcher) deleteFunc(obj interface{}) {
	var name string
	switch n := obj.(type) {
	case *apiv1.Node:
		name = n.Name
	case cache.DeletedFinalStateUnknown:
		node, ok := n.Obj.(*apiv1.Node)
		if !ok {
			return
		}
		name = node.Name
	default:
		return
	}

	nw.mu.Lock()
	defer nw.mu.Unlock()

	if _, ok := nw.nodes[name]; !ok {
		log.WithField("node", name).Warn("Removed node not found in node list")
		return
	}
	delete(nw.nodes, name)
	log.WithField("node", name).Info("Node removed")
}

// GetNodes returns the schedulable nodes ordered by name.
func (nw *NodeWatcher) GetNodes() []apiv1.Node {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	nodes := make([]apiv1.Node, 0, len(nw.nodes))
	for _, n := range nw.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// Infrastructure describes the schedulable nodes. Hosts are ordered by node name.
func (nw *NodeWatcher) Infrastructure() (*model.Infrastructure, error) {
	return buildInfrastructure(nw.GetNodes(), nw.cfg)
}

func isNodeAvailableForScheduling(node *apiv1.Node) bool {
	if !isNodeReady(node) {
		return false
	}
	for _, t := range node.Spec.Taints {
		if t.Effect == apiv1.TaintEffectNoSchedule {
			return false
		}
	}
	return true
}

func isNodeReady(node *apiv1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == apiv1.NodeReady {
			return cond.Status == apiv1.ConditionTrue
		}
	}
	return false
}
