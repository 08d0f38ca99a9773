package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvcluster/raftkv/pkg/cluster"
	"github.com/kvcluster/raftkv/pkg/config"
	"github.com/kvcluster/raftkv/pkg/metrics"
	"github.com/kvcluster/raftkv/pkg/rlog"
	"github.com/kvcluster/raftkv/pkg/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a raftkvd node",
	Long: `Run a single raftkvd node: starts Raft (bootstrapping a new cluster
or standing by to be added to an existing one, per the config file), then
serves the External Service's HTTP+JSON API.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "", "Path to the node's YAML config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := rlog.WithComponent("main")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	node, err := cluster.New(cluster.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.BindAddr,
		DataDir:  cfg.DataDir,
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	switch {
	case cfg.Bootstrap:
		if err := node.Bootstrap(cfg.Peers); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		log.Info("bootstrapped cluster", "node_id", cfg.NodeID)
	default:
		if err := node.Start(); err != nil {
			return fmt.Errorf("start raft: %w", err)
		}
		log.Info("started raft, awaiting membership change from leader", "node_id", cfg.NodeID, "join", cfg.Join)
	}

	collector := cluster.NewCollector(node)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion("1.0.0")
	metrics.SetComponentHealth("raft", true, "running")
	metrics.SetComponentHealth("storage", true, "open")
	metrics.SetComponentHealth("service", true, "ready")

	healthMux := http.NewServeMux()
	healthMux.Handle("/metrics", metrics.Handler())
	healthMux.Handle("/healthz", metrics.HealthHandler())
	healthMux.Handle("/readyz", metrics.ReadyHandler())
	healthMux.Handle("/livez", metrics.LivenessHandler())

	svc := service.New(node)
	router := service.NewRouter(svc, healthMux)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	log.Info("serving", "http_addr", cfg.HTTPAddr, "bind_addr", cfg.BindAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server error", "error", err)
	}

	_ = httpSrv.Close()
	return node.Close()
}
