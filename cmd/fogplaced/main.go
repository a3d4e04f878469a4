package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/a-liut/fogplace/pkg/api"
	"github.com/a-liut/fogplace/pkg/config"
	"github.com/a-liut/fogplace/pkg/deployment"
	"github.com/a-liut/fogplace/pkg/infrastructure"
	"github.com/a-liut/fogplace/pkg/metrics"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/a-liut/fogplace/pkg/uds"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

const startTimeout = time.Minute

var (
	version string
	app     = kingpin.New("fogplaced", "FogPlace placement daemon")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	cfgFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		ExistingFiles()

	httpPort = app.Flag(
		"http-port",
		"HTTP port (http.port override) (set $HTTP_PORT to override)").
		Envar("HTTP_PORT").
		Int()

	infraFile = app.Flag(
		"infra",
		"static infrastructure file (infrastructure.file override) (set $INFRASTRUCTURE_FILE to override)").
		Envar("INFRASTRUCTURE_FILE").
		String()

	useKubernetes = app.Flag(
		"kubernetes", "read the infrastructure from the Kubernetes nodes (kubernetes.enable override)").
		Envar("USE_KUBERNETES").
		Bool()

	kubeconfig = app.Flag(
		"kubeconfig", "kubeconfig path, in-cluster configuration when empty (set $KUBECONFIG to override)").
		Envar("KUBECONFIG").
		String()

	socketPath = app.Flag(
		"socket", "unix socket path, enables the socket intake (uds.path override)").
		Envar("FOGPLACE_SOCKET").
		String()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg := config.Default()
	if err := config.Parse(cfg, *cfgFiles...); err != nil {
		log.WithError(err).Fatal("Cannot parse config")
	}
	overrideConfig(cfg)
	if err := config.Validate(cfg); err != nil {
		log.WithError(err).Fatal("Invalid config")
	}

	setupLogging(cfg.Logging)
	log.WithField("config", cfg).Info("Loaded fogplaced config")

	rootScope, scopeCloser, mux := metrics.InitMetricScope(cfg.Metrics, "fogplace")
	defer scopeCloser.Close()

	placement.Init()
	strategy, err := placement.Create(cfg.Placement.Strategy, rootScope)
	if err != nil {
		log.WithError(err).Fatal("Cannot create placement strategy")
	}

	quit := make(chan struct{})
	var wg sync.WaitGroup

	source, applier, stopSource, err := initInfrastructure(cfg)
	if err != nil {
		log.WithError(err).Fatal("Cannot init infrastructure source")
	}
	defer stopSource()

	opts := []deployment.ManagerOption{deployment.WithAudit(cfg.Placement.Validate)}
	if applier != nil {
		opts = append(opts, deployment.WithApplier(applier))
	}
	manager := deployment.NewManager(source, strategy, opts...)

	mux.Handle("/", api.NewServer(manager, rootScope))
	wg.Add(1)
	go func() {
		defer wg.Done()
		api.StartHTTPInterface(mux, cfg.HTTP.Port, quit)
	}()

	if cfg.UDS.Enable {
		i := uds.NewUDSSocketInterface(cfg.UDS)
		if err := i.Start(); err != nil {
			log.WithError(err).Fatal("Cannot start socket intake")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveSocket(manager, cfg.Placement, i)
		}()
		go func() {
			<-quit
			i.Stop()
		}()
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stopChan

	log.WithField("signal", sig).Info("Stopping")
	close(quit)
	wg.Wait()

	log.Info("fogplaced ends")
}

func overrideConfig(cfg *config.Config) {
	if *httpPort != 0 {
		cfg.HTTP.Port = *httpPort
	}
	if *infraFile != "" {
		cfg.Infrastructure.File = *infraFile
	}
	if *useKubernetes {
		cfg.Kubernetes.Enable = true
	}
	if *kubeconfig != "" {
		cfg.Kubernetes.Kubeconfig = *kubeconfig
	}
	if *socketPath != "" {
		cfg.UDS.Enable = true
		cfg.UDS.Path = *socketPath
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
}

func setupLogging(cfg config.LoggingConfig) {
	if cfg.Format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithError(err).WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// initInfrastructure returns the infrastructure source, the applier if any
// and a function releasing the source.
func initInfrastructure(cfg *config.Config) (deployment.InfrastructureSource, deployment.Applier, func(), error) {
	if !cfg.Kubernetes.Enable {
		if cfg.Infrastructure.File == "" {
			return nil, nil, nil, errors.New("no infrastructure file and Kubernetes disabled")
		}
		source, err := infrastructure.LoadStaticSource(cfg.Infrastructure.File)
		if err != nil {
			return nil, nil, nil, err
		}
		log.WithField("file", cfg.Infrastructure.File).Info("Using static infrastructure")
		return source, nil, func() {}, nil
	}

	clientset, err := infrastructure.GetClientSet(cfg.Kubernetes.Kubeconfig)
	if err != nil {
		return nil, nil, nil, err
	}

	watcher := infrastructure.NewNodeWatcher(clientset, cfg.Kubernetes)
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		return nil, nil, nil, err
	}
	log.Info("Using Kubernetes nodes as infrastructure")

	var applier deployment.Applier
	if cfg.Kubernetes.Apply {
		applier = deployment.NewKubeApplier(clientset, cfg.Kubernetes.Namespace)
	}
	return watcher, applier, watcher.Stop, nil
}

func serveSocket(manager *deployment.Manager, cfg config.PlacementConfig, i *uds.UDSocketInterface) {
	log.Info("Waiting for applications")

	var opts []placement.Option
	if cfg.StartHost != nil {
		opts = append(opts, placement.WithStartHost(*cfg.StartHost))
	}

	for req := range i.Data() {
		log.WithField("application", req.Application.ID).Debug("Application received on socket")
		req.Reply(handleRequest(manager, req, opts))
	}

	log.Debug("Data channel closed")
}

func handleRequest(manager *deployment.Manager, req *uds.Request, opts []placement.Option) *uds.Reply {
	d, err := manager.AddApplication(context.Background(), req.Application, opts...)
	if err != nil {
		reply := &uds.Reply{ID: req.Application.ID, Error: err.Error()}
		if rejected, ok := deployment.IsRejected(err); ok {
			reply.Result = rejected.Evaluation
		}
		log.WithError(err).WithField("application", req.Application.ID).Warn("Cannot add application")
		return reply
	}
	return &uds.Reply{Accepted: true, ID: d.ID, Result: d}
}
