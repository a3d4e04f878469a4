package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/a-liut/fogplace/pkg/deployment"
	"github.com/a-liut/fogplace/pkg/graphinfo"
	"github.com/a-liut/fogplace/pkg/loader"
	"github.com/a-liut/fogplace/pkg/network"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/a-liut/fogplace/pkg/service"
	"github.com/a-liut/fogplace/pkg/uds"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	version string

	app = kingpin.New("fogplace", "Places service components on fog infrastructures")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	pretty = app.Flag(
		"pretty", "indent the JSON output").
		Short('p').
		Default("false").
		Bool()

	place         = app.Command("place", "place an application on an infrastructure")
	placeInfra    = place.Flag("infra", "infrastructure file (.properties, .json, .yaml) or CSV directory").Short('i').Required().ExistingFileOrDir()
	placeApp      = place.Flag("app", "application file (.properties, .json, .yaml) or CSV directory").Short('a').Required().ExistingFileOrDir()
	placeStart    = place.Flag("start-host", "host the search for a fitting host starts from").Default("-1").Int()
	placeStrategy = place.Flag("strategy", "placement strategy").Default(placement.GreedyFirstFitName).String()
	placeValidate = place.Flag("validate", "validate the result").Default("true").Bool()

	describe      = app.Command("describe", "print the summary of an infrastructure or an application")
	describeInfra = describe.Flag("infra", "infrastructure file or CSV directory").Short('i').ExistingFileOrDir()
	describeApp   = describe.Flag("app", "application file or CSV directory").Short('a').ExistingFileOrDir()

	submit        = app.Command("submit", "send an application to a running fogplaced")
	submitSocket  = submit.Flag("socket", "fogplaced socket").Default("/tmp/fogplace.sock").Envar("FOGPLACE_SOCKET").String()
	submitApp     = submit.Flag("app", "application file or CSV directory").Short('a').Required().ExistingFileOrDir()
	submitTimeout = submit.Flag("timeout", "request timeout").Default("30s").Duration()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stderr)
	if *debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	var ok bool
	var err error
	switch cmd {
	case place.FullCommand():
		ok, err = runPlace()
	case describe.FullCommand():
		ok, err = runDescribe()
	case submit.FullCommand():
		ok, err = runSubmit()
	}

	if err != nil {
		app.Fatalf("%s", err)
	}
	if !ok {
		os.Exit(1)
	}
}

func runPlace() (bool, error) {
	infra, err := loader.LoadInfrastructureFile(*placeInfra)
	if err != nil {
		return false, err
	}
	application, err := loader.LoadApplicationFile(*placeApp)
	if err != nil {
		return false, err
	}

	placement.Init()
	strategy, err := placement.Create(*placeStrategy, nil)
	if err != nil {
		return false, err
	}

	var opts []placement.Option
	if *placeStart >= 0 {
		opts = append(opts, placement.WithStartHost(*placeStart))
	}

	eval, err := deployment.Evaluate(strategy, infra, application, *placeValidate, opts...)
	if err != nil {
		return false, err
	}

	if err := printJSON(eval); err != nil {
		return false, err
	}
	return eval.Accepted(), nil
}

type infrastructureDescription struct {
	Summary      network.Summary        `json:"summary"`
	Nodes        []network.Host         `json:"nodes"`
	Edges        []network.Link         `json:"edges"`
	Degrees      graphinfo.DegreeStats  `json:"degrees"`
	Connectivity graphinfo.Connectivity `json:"connectivity"`
}

type applicationDescription struct {
	Summary      service.Summary        `json:"summary"`
	Nodes        []service.Component    `json:"nodes"`
	Edges        []service.Edge         `json:"edges"`
	Degrees      graphinfo.DegreeStats  `json:"degrees"`
	Connectivity graphinfo.Connectivity `json:"connectivity"`
}

func runDescribe() (bool, error) {
	if *describeInfra == "" && *describeApp == "" {
		return false, fmt.Errorf("one of --infra or --app is required")
	}

	out := map[string]interface{}{}
	if *describeInfra != "" {
		infra, err := loader.LoadInfrastructureFile(*describeInfra)
		if err != nil {
			return false, err
		}
		net, err := network.FromInfrastructure(infra)
		if err != nil {
			return false, err
		}
		out["infrastructure"] = infrastructureDescription{
			Summary:      net.Summary(),
			Nodes:        net.Nodes(),
			Edges:        net.Edges(),
			Degrees:      net.DegreeStats(),
			Connectivity: net.Connectivity(),
		}
	}
	if *describeApp != "" {
		application, err := loader.LoadApplicationFile(*describeApp)
		if err != nil {
			return false, err
		}
		svc, err := service.FromApplication(application)
		if err != nil {
			return false, err
		}
		out["application"] = applicationDescription{
			Summary:      svc.Summary(),
			Nodes:        svc.Nodes(),
			Edges:        svc.Edges(),
			Degrees:      svc.DegreeStats(),
			Connectivity: svc.Connectivity(),
		}
	}

	return true, printJSON(out)
}

func runSubmit() (bool, error) {
	application, err := loader.LoadApplicationFile(*submitApp)
	if err != nil {
		return false, err
	}

	reply, err := uds.Submit(*submitSocket, application, *submitTimeout)
	if err != nil {
		return false, err
	}
	return reply.Accepted, printJSON(reply)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
