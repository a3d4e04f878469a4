package deployment

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/config"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	apiv1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

const mebibyte = 1 << 20

// An Applier materializes accepted placements.
type Applier interface {
	Apply(ctx context.Context, d *Deploy, infra *model.Infrastructure) error
	Remove(ctx context.Context, d *Deploy) error
}

// A KubeApplier runs every component of a placed application as a Deployment
// pinned to the node its host stands for.
type KubeApplier struct {
	clientset kubernetes.Interface
	namespace string
}

func NewKubeApplier(clientset kubernetes.Interface, namespace string) *KubeApplier {
	return &KubeApplier{clientset: clientset, namespace: namespace}
}

// Apply creates the Deployments of d. Deployments already created are removed
// if one of them cannot be created.
func (k *KubeApplier) Apply(ctx context.Context, d *Deploy, infra *model.Infrastructure) error {
	client := k.clientset.AppsV1().Deployments(k.namespace)

	var created []string
	for _, c := range sortedComponents(d.Result) {
		h := d.Result.Mapping[c]
		if h < 0 || h >= len(infra.Hosts) {
			k.rollback(ctx, created)
			return fmt.Errorf("component %d mapped on unknown host %d", c, h)
		}

		deployment, err := k.deploymentFor(d, c, infra.Hosts[h])
		if err != nil {
			k.rollback(ctx, created)
			return err
		}

		log.WithFields(log.Fields{
			"deployment": deployment.Name,
			"node":       deployment.Spec.Template.Spec.NodeName,
		}).Debug("Creating deployment")

		if _, err := client.Create(ctx, deployment, metav1.CreateOptions{}); err != nil {
			k.rollback(ctx, created)
			return errors.Wrapf(err, "cannot create deployment %s", deployment.Name)
		}
		created = append(created, deployment.Name)
	}

	log.WithFields(log.Fields{
		"application": d.ID,
		"deployments": len(created),
	}).Info("Application applied")

	return nil
}

// Remove deletes the Deployments of d. Missing Deployments are ignored.
func (k *KubeApplier) Remove(ctx context.Context, d *Deploy) error {
	var names []string
	for _, c := range sortedComponents(d.Result) {
		names = append(names, deploymentName(d.ID, c))
	}
	return k.delete(ctx, names)
}

func (k *KubeApplier) rollback(ctx context.Context, names []string) {
	if err := k.delete(ctx, names); err != nil {
		log.WithError(err).Error("Rollback failed")
	}
}

func (k *KubeApplier) delete(ctx context.Context, names []string) error {
	client := k.clientset.AppsV1().Deployments(k.namespace)
	policy := metav1.DeletePropagationForeground

	var result *multierror.Error
	for _, name := range names {
		err := client.Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &policy})
		if err != nil && !k8serrors.IsNotFound(err) {
			result = multierror.Append(result, errors.Wrapf(err, "cannot delete deployment %s", name))
			continue
		}
		log.WithField("deployment", name).Debug("Deployment deleted")
	}
	return result.ErrorOrNil()
}

func (k *KubeApplier) deploymentFor(d *Deploy, c int, host model.Host) (*appsv1.Deployment, error) {
	if c >= len(d.Application.Components) {
		return nil, fmt.Errorf("unknown component %d", c)
	}
	comp := d.Application.Components[c]
	if comp.Image == "" {
		return nil, fmt.Errorf("component %d has no image", c)
	}
	if host.Name == "" {
		return nil, fmt.Errorf("host of component %d has no node name", c)
	}

	name := deploymentName(d.ID, c)
	labels := map[string]string{
		config.ApplicationIDLabel: d.ID,
		config.ComponentLabel:     strconv.Itoa(c),
	}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: k.namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To[int32](1),
			Selector: &metav1.LabelSelector{
				MatchLabels: labels,
			},
			Template: apiv1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels,
				},
				Spec: apiv1.PodSpec{
					NodeName: host.Name,
					Containers: []apiv1.Container{
						{
							Name:  containerName(comp, c),
							Image: comp.Image,
							Resources: apiv1.ResourceRequirements{
								Requests: apiv1.ResourceList{
									apiv1.ResourceCPU:    *resource.NewMilliQuantity(int64(comp.CPU*1000), resource.DecimalSI),
									apiv1.ResourceMemory: *resource.NewQuantity(int64(comp.RAM*mebibyte), resource.BinarySI),
								},
							},
						},
					},
				},
			},
		},
	}, nil
}

func deploymentName(appID string, component int) string {
	return fmt.Sprintf("%s-c%d", strings.ToLower(appID), component)
}

func containerName(comp model.Component, c int) string {
	if comp.Name != "" {
		return strings.ToLower(strings.ReplaceAll(comp.Name, "_", "-"))
	}
	return "component-" + strconv.Itoa(c)
}

func sortedComponents(result *placement.Result) []int {
	if result == nil {
		return nil
	}
	components := make([]int, 0, len(result.Mapping))
	for c := range result.Mapping {
		components = append(components, c)
	}
	sort.Ints(components)
	return components
}
