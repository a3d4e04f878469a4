package loader

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// CSV file names inside a topology directory
const (
	HostsCSV      = "hosts.csv"
	LinksCSV      = "links.csv"
	ComponentsCSV = "components.csv"
	EdgesCSV      = "edges.csv"
)

type hostRow struct {
	Name string  `csv:"name"`
	CPU  float64 `csv:"cpu"`
	RAM  float64 `csv:"ram"`
}

type linkRow struct {
	Src       int     `csv:"src"`
	Dst       int     `csv:"dst"`
	Bandwidth float64 `csv:"bandwidth"`
	Latency   float64 `csv:"latency"`
}

type componentRow struct {
	Name   string  `csv:"name"`
	Image  string  `csv:"image"`
	CPU    float64 `csv:"cpu"`
	RAM    float64 `csv:"ram"`
	Lambda string  `csv:"lambda"`
	Mu     string  `csv:"mu"`
}

type edgeRow struct {
	ID        int     `csv:"id"`
	Src       int     `csv:"src"`
	Dst       int     `csv:"dst"`
	Bandwidth float64 `csv:"bandwidth"`
	Latency   float64 `csv:"latency"`
}

func readCSV(path string, out interface{}) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := gocsv.UnmarshalFile(in, out); err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	return nil
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// InfrastructureFromCSV reads hosts.csv and links.csv from dir.
// Host ids are row indexes.
func InfrastructureFromCSV(dir string) (*model.Infrastructure, error) {
	var hosts []*hostRow
	if err := readCSV(filepath.Join(dir, HostsCSV), &hosts); err != nil {
		return nil, err
	}
	var links []*linkRow
	if err := readCSV(filepath.Join(dir, LinksCSV), &links); err != nil {
		return nil, err
	}

	infra := &model.Infrastructure{
		HostsNb: len(hosts),
		Hosts:   make([]model.Host, len(hosts)),
		Links:   make([]model.Link, len(links)),
		EdgesNb: len(links),
	}
	for i, h := range hosts {
		infra.Hosts[i] = model.Host{Name: h.Name, CPU: h.CPU, RAM: h.RAM}
	}
	for i, l := range links {
		infra.Links[i] = model.Link{Src: l.Src, Dst: l.Dst, Bandwidth: l.Bandwidth, Latency: l.Latency}
	}

	return infra, nil
}

// ApplicationFromCSV reads components.csv and edges.csv from dir.
// Component ids are row indexes.
func ApplicationFromCSV(dir string) (*model.Application, error) {
	var components []*componentRow
	if err := readCSV(filepath.Join(dir, ComponentsCSV), &components); err != nil {
		return nil, err
	}
	var edges []*edgeRow
	if err := readCSV(filepath.Join(dir, EdgesCSV), &edges); err != nil {
		return nil, err
	}

	app := &model.Application{
		Name:          filepath.Base(dir),
		ApplicationNb: 1,
		ComponentsNb:  len(components),
		Components:    make([]model.Component, len(components)),
		Links:         make([]model.ServiceLink, len(edges)),
		LinksNb:       len(edges),
	}
	for i, c := range components {
		lambda, err := optionalFloat(c.Lambda)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: lambda of row %d", ComponentsCSV, i)
		}
		mu, err := optionalFloat(c.Mu)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: mu of row %d", ComponentsCSV, i)
		}
		app.Components[i] = model.Component{
			Name:   c.Name,
			Image:  c.Image,
			CPU:    c.CPU,
			RAM:    c.RAM,
			Lambda: lambda,
			Mu:     mu,
		}
	}
	for i, e := range edges {
		app.Links[i] = model.ServiceLink{
			ID:        e.ID,
			Src:       e.Src,
			Dst:       e.Dst,
			Bandwidth: e.Bandwidth,
			Latency:   e.Latency,
		}
	}

	return app, nil
}
