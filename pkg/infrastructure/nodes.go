package infrastructure

import (
	"strconv"
	"strings"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	apiv1 "k8s.io/api/core/v1"
)

const mebibyte = 1024 * 1024

// buildInfrastructure turns nodes into hosts in the given order. A node with
// a links annotation gets exactly the links it lists, any other node gets a
// link towards every other node with the configured defaults.
func buildInfrastructure(nodes []apiv1.Node, cfg config.KubernetesConfig) (*model.Infrastructure, error) {
	index := make(map[string]int, len(nodes))
	infra := &model.Infrastructure{
		HostsNb: len(nodes),
		Hosts:   make([]model.Host, len(nodes)),
		Links:   make([]model.Link, 0),
	}

	for i, node := range nodes {
		index[node.Name] = i

		cpu, err := capacity(&node, config.CPULabel, apiv1.ResourceCPU)
		if err != nil {
			return nil, err
		}
		ram, err := capacity(&node, config.RAMLabel, apiv1.ResourceMemory)
		if err != nil {
			return nil, err
		}
		infra.Hosts[i] = model.Host{Name: node.Name, CPU: cpu, RAM: ram}
	}

	for i, node := range nodes {
		annotation, ok := node.Annotations[config.LinksAnnotation]
		if !ok {
			for j := range nodes {
				if i != j {
					infra.Links = append(infra.Links, model.Link{
						Src:       i,
						Dst:       j,
						Bandwidth: cfg.DefaultLinkBandwidth,
						Latency:   cfg.DefaultLinkLatency,
					})
				}
			}
			continue
		}

		links, err := parseLinks(annotation)
		if err != nil {
			return nil, errors.Wrapf(err, "node %s", node.Name)
		}
		for _, l := range links {
			j, ok := index[l.dst]
			if !ok {
				log.WithFields(log.Fields{
					"node":        node.Name,
					"destination": l.dst,
				}).Warn("Link towards unknown node ignored")
				continue
			}
			infra.Links = append(infra.Links, model.Link{
				Src:       i,
				Dst:       j,
				Bandwidth: l.bandwidth,
				Latency:   l.latency,
			})
		}
	}

	infra.EdgesNb = len(infra.Links)
	return infra, nil
}

// capacity reads a capacity from the node label, falling back to the node
// allocatable resources: cores for cpu and MiB for memory.
func capacity(node *apiv1.Node, label string, resource apiv1.ResourceName) (float64, error) {
	if v, ok := node.Labels[label]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "node %s: label %s", node.Name, label)
		}
		return f, nil
	}

	q, ok := node.Status.Allocatable[resource]
	if !ok {
		return 0, nil
	}
	if resource == apiv1.ResourceCPU {
		return float64(q.MilliValue()) / 1000, nil
	}
	return float64(q.Value()) / mebibyte, nil
}

type nodeLink struct {
	dst       string
	bandwidth float64
	latency   float64
}

// parseLinks reads "dst:bandwidth:latency" entries separated by commas.
func parseLinks(s string) ([]nodeLink, error) {
	var links []nodeLink
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, errors.Errorf("malformed link %q", entry)
		}
		bw, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bandwidth of link %q", entry)
		}
		lat, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "latency of link %q", entry)
		}
		links = append(links, nodeLink{dst: parts[0], bandwidth: bw, latency: lat})
	}
	return links, nil
}
