package loader

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/magiconair/properties"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const infraProperties = `
hosts.nb = 3
hosts.configuration = {16,32000}, {8,16000}, {4}
network.topology = {0,1,100,5}, {1,2,50,2}, {2,0,10}
edges.nb = 2
network.diameter = 2
`

const appProperties = `
application.nb = 1
application.components = 2
components.requirements = {2,1000,3,4}, {1,500}
links.description = {0,0,1,10,20}, {1,1,0,5}
component.nbDZ = 2
component.DZ = {0, 5}
`

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseTuples(t *testing.T) {
	assert.Equal(t, [][]string{{"1", "2"}, {"3"}, {}}, parseTuples("{1, 2}, { 3 ,}, {}"))
	assert.Empty(t, parseTuples("no tuples here"))
}

func TestInfrastructureFromProperties(t *testing.T) {
	p, err := properties.LoadString(infraProperties)
	require.NoError(t, err)

	infra, err := InfrastructureFromProperties(p)
	require.NoError(t, err)

	assert.Equal(t, 3, infra.HostsNb)
	require.Len(t, infra.Hosts, 3)
	assert.Equal(t, 16.0, infra.Hosts[0].CPU)
	assert.Equal(t, 32000.0, infra.Hosts[0].RAM)
	assert.Equal(t, 4.0, infra.Hosts[2].CPU)
	assert.Zero(t, infra.Hosts[2].RAM)

	// the three field link is skipped
	require.Len(t, infra.Links, 2)
	assert.Equal(t, 1, infra.Links[1].Src)
	assert.Equal(t, 2, infra.Links[1].Dst)
	assert.Equal(t, 50.0, infra.Links[1].Bandwidth)
	assert.Equal(t, 2.0, infra.Links[1].Latency)

	assert.Equal(t, 2, infra.EdgesNb)
	require.NotNil(t, infra.Diameter)
	assert.Equal(t, 2, *infra.Diameter)
}

func TestInfrastructureFromPropertiesErrors(t *testing.T) {
	p, err := properties.LoadString("hosts.configuration = {a,1}")
	require.NoError(t, err)
	_, err = InfrastructureFromProperties(p)
	assert.Error(t, err)

	p, err = properties.LoadString("hosts.nb = many")
	require.NoError(t, err)
	_, err = InfrastructureFromProperties(p)
	assert.Error(t, err)
}

func TestPropertiesRejectFractionalIDs(t *testing.T) {
	p, err := properties.LoadString("network.topology = {0,1.5,100,5}")
	require.NoError(t, err)
	_, err = InfrastructureFromProperties(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")

	p, err = properties.LoadString("application.components = 2\nlinks.description = {0.2,0,1,5,20}")
	require.NoError(t, err)
	_, err = ApplicationFromProperties(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")

	p, err = properties.LoadString("links.description = {3,0,1,5.5,20}")
	require.NoError(t, err)
	app, err := ApplicationFromProperties(p)
	require.NoError(t, err)
	require.Len(t, app.Links, 1)
	assert.Equal(t, 3, app.Links[0].ID)
	assert.Equal(t, 5.5, app.Links[0].Bandwidth)
}

func TestApplicationFromProperties(t *testing.T) {
	p, err := properties.LoadString(appProperties)
	require.NoError(t, err)

	app, err := ApplicationFromProperties(p)
	require.NoError(t, err)

	assert.Equal(t, 1, app.ApplicationNb)
	assert.Equal(t, 2, app.ComponentsNb)
	require.Len(t, app.Components, 2)
	require.NotNil(t, app.Components[0].Lambda)
	assert.Equal(t, 3.0, *app.Components[0].Lambda)
	assert.Equal(t, 4.0, *app.Components[0].Mu)
	assert.Nil(t, app.Components[1].Lambda)

	require.Len(t, app.Links, 1)
	assert.Equal(t, 20.0, app.Links[0].Latency)
	assert.Equal(t, 1, app.LinksNb)

	require.NotNil(t, app.ComponentNbDZ)
	assert.Equal(t, 2, *app.ComponentNbDZ)
	assert.Equal(t, []int{0, 5}, app.ComponentDZ)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()

	t.Run("properties", func(t *testing.T) {
		infra, err := LoadInfrastructureFile(writeFile(t, dir, "infra.properties", infraProperties))
		require.NoError(t, err)
		assert.Len(t, infra.Hosts, 3)

		app, err := LoadApplicationFile(writeFile(t, dir, "app.properties", appProperties))
		require.NoError(t, err)
		assert.Len(t, app.Components, 2)
	})

	t.Run("yaml", func(t *testing.T) {
		infra, err := LoadInfrastructureFile(writeFile(t, dir, "infra.yaml", `
hosts:
  - {name: edge-0, cpu: 4, ram: 8}
  - {cpu: 2, ram: 4}
links:
  - {src: 0, dst: 1, bandwidth: 10, latency: 5}
`))
		require.NoError(t, err)
		assert.Equal(t, 2, infra.HostsNb)
		assert.Equal(t, 1, infra.EdgesNb)
		assert.Equal(t, "edge-0", infra.Hosts[0].Name)

		app, err := LoadApplicationFile(writeFile(t, dir, "app.yml", `
id: app-1
components:
  - {cpu: 2, ram: 2, lambda: 0.5}
  - {cpu: 2, ram: 2}
links:
  - {id: 0, src: 0, dst: 1, bandwidth: 5, latency: 10}
`))
		require.NoError(t, err)
		assert.Equal(t, "app-1", app.ID)
		assert.Equal(t, 2, app.ComponentsNb)
		require.NotNil(t, app.Components[0].Lambda)
		assert.Equal(t, 0.5, *app.Components[0].Lambda)
	})

	t.Run("json", func(t *testing.T) {
		infra, err := LoadInfrastructureFile(writeFile(t, dir, "infra.json",
			`{"hosts": [{"cpu": 4, "ram": 8}], "links": [], "network_diameter": 0}`))
		require.NoError(t, err)
		assert.Len(t, infra.Hosts, 1)
		require.NotNil(t, infra.Diameter)

		_, err = LoadApplicationFile(writeFile(t, dir, "broken.json", `{"components": [`))
		assert.Error(t, err)
	})

	t.Run("csv directory", func(t *testing.T) {
		infraDir := filepath.Join(dir, "infra")
		appDir := filepath.Join(dir, "app")
		for _, d := range []string{infraDir, appDir} {
			require.NoError(t, os.MkdirAll(d, 0755))
		}
		writeFile(t, infraDir, HostsCSV, "name,cpu,ram\nedge-0,4,8\nedge-1,2,4\n")
		writeFile(t, infraDir, LinksCSV, "src,dst,bandwidth,latency\n0,1,10,5\n1,0,10,5\n")
		writeFile(t, appDir, ComponentsCSV, "name,image,cpu,ram,lambda,mu\nfront,nginx,2,2,,\nback,redis,1,1,0.2,0.4\n")
		writeFile(t, appDir, EdgesCSV, "id,src,dst,bandwidth,latency\n0,0,1,5,10\n")

		infra, err := LoadInfrastructureFile(infraDir)
		require.NoError(t, err)
		require.Len(t, infra.Hosts, 2)
		assert.Equal(t, "edge-1", infra.Hosts[1].Name)
		assert.Len(t, infra.Links, 2)

		app, err := LoadApplicationFile(appDir)
		require.NoError(t, err)
		require.Len(t, app.Components, 2)
		assert.Equal(t, "nginx", app.Components[0].Image)
		assert.Nil(t, app.Components[0].Lambda)
		require.NotNil(t, app.Components[1].Mu)
		assert.Equal(t, 0.4, *app.Components[1].Mu)
		assert.Equal(t, 10.0, app.Links[0].Latency)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := LoadInfrastructureFile(writeFile(t, dir, "infra.txt", "hosts"))
		assert.Equal(t, ErrUnsupportedFormat, errors.Cause(err))

		_, err = LoadApplicationFile(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}
