// Package loader reads infrastructure and application descriptions from
// files: Java style properties, YAML, JSON, or a directory of CSV files.
package loader

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

type format int

const (
	formatCSV format = iota
	formatProperties
	formatYAML
	formatJSON
)

func formatOf(path string) (format, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return formatCSV, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".properties":
		return formatProperties, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".json":
		return formatJSON, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
}

func decode(path string, f format, out interface{}) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	if f == formatJSON {
		err = json.Unmarshal(b, out)
	} else {
		err = yaml.Unmarshal(b, out)
	}
	return errors.Wrapf(err, "decoding %s", path)
}

// LoadInfrastructureFile reads an infrastructure. The format is chosen from
// the file extension, a directory is read as CSV files.
func LoadInfrastructureFile(path string) (*model.Infrastructure, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	switch f {
	case formatCSV:
		return InfrastructureFromCSV(path)
	case formatProperties:
		p, err := properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", path)
		}
		return InfrastructureFromProperties(p)
	}

	infra := &model.Infrastructure{}
	if err := decode(path, f, infra); err != nil {
		return nil, err
	}
	if infra.HostsNb == 0 {
		infra.HostsNb = len(infra.Hosts)
	}
	if infra.EdgesNb == 0 {
		infra.EdgesNb = len(infra.Links)
	}
	return infra, nil
}

// LoadApplicationFile reads an application. The format is chosen from
// the file extension, a directory is read as CSV files.
func LoadApplicationFile(path string) (*model.Application, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	switch f {
	case formatCSV:
		return ApplicationFromCSV(path)
	case formatProperties:
		p, err := properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", path)
		}
		return ApplicationFromProperties(p)
	}

	app := &model.Application{}
	if err := decode(path, f, app); err != nil {
		return nil, err
	}
	if app.ComponentsNb == 0 {
		app.ComponentsNb = len(app.Components)
	}
	if app.LinksNb == 0 {
		app.LinksNb = len(app.Links)
	}
	return app, nil
}
