package loader

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

// Infrastructure keys
const (
	keyHostsNb         = "hosts.nb"
	keyHostsConfig     = "hosts.configuration"
	keyNetworkTopology = "network.topology"
	keyEdgesNb         = "edges.nb"
	keyNetworkDiameter = "network.diameter"
)

// Application keys
const (
	keyApplicationNb   = "application.nb"
	keyApplicationComp = "application.components"
	keyComponentsReq   = "components.requirements"
	keyLinksDesc       = "links.description"
	keyLinksNb         = "links.nb"
	keyComponentNbDZ   = "component.nbDZ"
	keyComponentDZ     = "component.DZ"
)

var bracedTuple = regexp.MustCompile(`\{([^}]*)\}`)

// parseTuples splits "{1,2}, {3,4}" into [[1 2] [3 4]], dropping empty fields.
func parseTuples(s string) [][]string {
	var tuples [][]string
	for _, m := range bracedTuple.FindAllStringSubmatch(s, -1) {
		fields := make([]string, 0)
		for _, f := range strings.Split(m[1], ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		tuples = append(tuples, fields)
	}
	return tuples
}

func parseNumbers(key string, fields []string) ([]float64, error) {
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: field %d of {%s}", key, i, strings.Join(fields, ","))
		}
		values[i] = v
	}
	return values, nil
}

// parseInts reads the leading n fields as integers.
func parseInts(key string, fields []string, n int) ([]int, error) {
	values := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, errors.Wrapf(err, "%s: field %d of {%s} is not an integer", key, i, strings.Join(fields, ","))
		}
		values[i] = v
	}
	return values, nil
}

func intValue(p *properties.Properties, key string, def int) (int, error) {
	s, ok := p.Get(key)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	return v, nil
}

// InfrastructureFromProperties reads an infrastructure from its properties.
// Hosts missing a field get zero for it, links with fewer than four fields are skipped.
func InfrastructureFromProperties(p *properties.Properties) (*model.Infrastructure, error) {
	infra := &model.Infrastructure{
		Hosts: make([]model.Host, 0),
		Links: make([]model.Link, 0),
	}

	var err error
	if infra.HostsNb, err = intValue(p, keyHostsNb, 0); err != nil {
		return nil, err
	}
	if infra.EdgesNb, err = intValue(p, keyEdgesNb, 0); err != nil {
		return nil, err
	}
	if _, ok := p.Get(keyNetworkDiameter); ok {
		d, err := intValue(p, keyNetworkDiameter, 0)
		if err != nil {
			return nil, err
		}
		infra.Diameter = &d
	}

	for _, t := range parseTuples(p.GetString(keyHostsConfig, "")) {
		v, err := parseNumbers(keyHostsConfig, t)
		if err != nil {
			return nil, err
		}
		var h model.Host
		if len(v) > 0 {
			h.CPU = v[0]
		}
		if len(v) > 1 {
			h.RAM = v[1]
		}
		infra.Hosts = append(infra.Hosts, h)
	}

	for _, t := range parseTuples(p.GetString(keyNetworkTopology, "")) {
		if len(t) < 4 {
			continue
		}
		ids, err := parseInts(keyNetworkTopology, t, 2)
		if err != nil {
			return nil, err
		}
		v, err := parseNumbers(keyNetworkTopology, t)
		if err != nil {
			return nil, err
		}
		infra.Links = append(infra.Links, model.Link{
			Src:       ids[0],
			Dst:       ids[1],
			Bandwidth: v[2],
			Latency:   v[3],
		})
	}

	return infra, nil
}

// ApplicationFromProperties reads an application from its properties.
// Components missing a field get zero for it, links with fewer than five fields are skipped.
func ApplicationFromProperties(p *properties.Properties) (*model.Application, error) {
	app := &model.Application{
		Components: make([]model.Component, 0),
		Links:      make([]model.ServiceLink, 0),
	}

	var err error
	if app.ApplicationNb, err = intValue(p, keyApplicationNb, 0); err != nil {
		return nil, err
	}
	if app.ComponentsNb, err = intValue(p, keyApplicationComp, 0); err != nil {
		return nil, err
	}

	for _, t := range parseTuples(p.GetString(keyComponentsReq, "")) {
		v, err := parseNumbers(keyComponentsReq, t)
		if err != nil {
			return nil, err
		}
		var c model.Component
		if len(v) > 0 {
			c.CPU = v[0]
		}
		if len(v) > 1 {
			c.RAM = v[1]
		}
		if len(v) > 2 {
			c.Lambda = &v[2]
		}
		if len(v) > 3 {
			c.Mu = &v[3]
		}
		app.Components = append(app.Components, c)
	}

	for _, t := range parseTuples(p.GetString(keyLinksDesc, "")) {
		if len(t) < 5 {
			continue
		}
		ids, err := parseInts(keyLinksDesc, t, 3)
		if err != nil {
			return nil, err
		}
		v, err := parseNumbers(keyLinksDesc, t)
		if err != nil {
			return nil, err
		}
		app.Links = append(app.Links, model.ServiceLink{
			ID:        ids[0],
			Src:       ids[1],
			Dst:       ids[2],
			Bandwidth: v[3],
			Latency:   v[4],
		})
	}
	if app.LinksNb, err = intValue(p, keyLinksNb, len(app.Links)); err != nil {
		return nil, err
	}

	if _, ok := p.Get(keyComponentNbDZ); ok {
		n, err := intValue(p, keyComponentNbDZ, 0)
		if err != nil {
			return nil, err
		}
		app.ComponentNbDZ = &n
	}
	if tuples := parseTuples(p.GetString(keyComponentDZ, "")); len(tuples) > 0 {
		dz := make([]int, 0, len(tuples[0]))
		for _, f := range tuples[0] {
			v, err := strconv.Atoi(f)
			if err != nil {
				// unparsable zones are dropped
				dz = nil
				break
			}
			dz = append(dz, v)
		}
		app.ComponentDZ = dz
	}

	return app, nil
}
