// Command sptdemo wires a config file into a running SPT client, exposes
// its state and Prometheus metrics over HTTP, and sends one test message
// on startup.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vanovost/dc09spt/clog"
	"github.com/vanovost/dc09spt/config"
	"github.com/vanovost/dc09spt/dc09"
	"github.com/vanovost/dc09spt/metrics"
	"github.com/vanovost/dc09spt/spt"
	"github.com/vanovost/dc09spt/transpath"
)

var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "sptdemo.yaml", "path to config file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if lvl, err := log.ParseLevel(cfg.Logs.Level); err == nil {
		log.SetLevel(lvl)
	}

	log.Infof("starting sptdemo v%s", Version)

	sptLog := clog.NewLogger("spt")
	client := spt.New(cfg.Account.Account, cfg.Account.Receiver, cfg.Account.Line, sptLog)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg, "dc09spt")
	client.SetMetrics(collector)

	for _, pc := range cfg.Paths {
		branch, slot, err := parseCoordinate(pc.Branch, pc.Slot)
		if err != nil {
			log.Fatalf("invalid path entry %s/%s: %v", pc.Branch, pc.Slot, err)
		}
		key, err := hex.DecodeString(pc.Key)
		if err != nil {
			log.Fatalf("invalid key for path %s/%s: %v", pc.Branch, pc.Slot, err)
		}
		transport := transpath.TCP
		if pc.Transport == "udp" {
			transport = transpath.UDP
		}
		client.SetPath(branch, slot, &spt.Path{
			Target: transpath.Target{
				Host:      pc.Host,
				Port:      pc.Port,
				Transport: transport,
				Timeout:   pc.Timeout,
			},
			Account:  pc.Account,
			Key:      key,
			Receiver: pc.Receiver,
			Line:     pc.Line,
		})
		log.Infof("configured path %s/%s -> %s:%d (%s)", pc.Branch, pc.Slot, pc.Host, pc.Port, pc.Transport)
	}

	if cfg.Poll.MainInterval != nil || cfg.Poll.BackupInterval != nil {
		client.StartPoll(cfg.Poll.MainInterval, cfg.Poll.BackupInterval, cfg.Poll.RetryDelay, nil, nil)
	}

	if len(cfg.Routines) > 0 {
		routines := make([]spt.RoutineConfig, len(cfg.Routines))
		for i, r := range cfg.Routines {
			routines[i] = spt.RoutineConfig{
				Params:   spt.EventParams{Code: r.Code, Zone: r.Zone},
				Interval: r.Interval,
				Start:    r.Start,
			}
		}
		client.StartRoutine(routines)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down...")
		client.StopPoll()
		cancel()
	}()

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%+v\n", client.State())
	}).Methods("GET")

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: router}
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := client.SendMsg(dc09.TypeADMCID, spt.EventParams{Code: "602"}); err != nil {
		log.Errorf("startup test message failed: %v", err)
	}

	log.Infof("listening on port %d", cfg.Server.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server error: %v", err)
	}
}

func parseCoordinate(branch, slot string) (spt.Branch, spt.Slot, error) {
	var b spt.Branch
	switch branch {
	case "main":
		b = spt.Main
	case "back-up", "backup":
		b = spt.Backup
	default:
		return 0, 0, fmt.Errorf("unknown branch %q", branch)
	}
	var s spt.Slot
	switch slot {
	case "primary":
		s = spt.Primary
	case "secondary":
		s = spt.Secondary
	default:
		return 0, 0, fmt.Errorf("unknown slot %q", slot)
	}
	return b, s, nil
}
