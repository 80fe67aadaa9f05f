// Command pagewatch wires config, mcast, rtpwire/paging, codec,
// session, analyzer, recorder, and sink together into a runnable
// multicast paging receiver. It deliberately stops short of a full
// front end: no endpoint-pattern expansion (`224.0.{1-10}.1:{5000-
// 5010}`), no TUI result review, no persisted configuration file.
// Those belong to tooling built on top of this library.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwsl/pagewatch/config"
	"github.com/cwsl/pagewatch/mcast"
	"github.com/cwsl/pagewatch/session"
	"github.com/cwsl/pagewatch/sink"
)

func main() {
	endpointsFlag := flag.String("endpoints", "", "comma-separated group:port pairs to monitor, e.g. 239.1.1.1:5004,239.1.1.2:5006")
	protoFlag := flag.String("protocol", "paging", `packet grammar carried on the endpoints: "rtp" or "paging"`)
	ifaceName := flag.String("iface", "", "network interface to join on (default: all multicast-capable interfaces)")
	recordDir := flag.String("record-dir", "", "directory to write one WAV file per completed page (empty disables recording)")
	summaryPath := flag.String("summary", "summary.json", "path to write the end-of-run summary document")
	jsonEvents := flag.Bool("json", true, "emit line-delimited JSON events to stdout")
	textEvents := flag.Bool("text", true, "emit human-readable events to stderr")
	timeout := flag.Duration("timeout", 0, "automated-mode wall-clock run duration; 0 runs until interrupted (non-automated mode, no forced timeout error)")
	automated := flag.Bool("automated", false, "automated mode: -timeout must be > 0, and the run exits non-zero if it is not")
	flag.Parse()

	if *endpointsFlag == "" {
		log.Fatal("pagewatch: -endpoints is required (comma-separated group:port pairs)")
	}
	if *automated && *timeout <= 0 {
		log.Fatal("pagewatch: -automated requires -timeout > 0")
	}

	endpoints, err := parseEndpoints(*endpointsFlag)
	if err != nil {
		log.Fatalf("pagewatch: %v", err)
	}

	var proto session.Protocol
	switch *protoFlag {
	case "rtp":
		proto = session.ProtocolRTP
	case "paging":
		proto = session.ProtocolPaging
	default:
		log.Fatalf("pagewatch: unknown -protocol %q (want \"rtp\" or \"paging\")", *protoFlag)
	}

	var iface *net.Interface
	if *ifaceName != "" {
		iface, err = net.InterfaceByName(*ifaceName)
		if err != nil {
			log.Fatalf("pagewatch: interface %q: %v", *ifaceName, err)
		}
	}

	if *recordDir != "" {
		if err := os.MkdirAll(*recordDir, 0o755); err != nil {
			log.Fatalf("pagewatch: create record dir: %v", err)
		}
	}

	var sinks []sink.Sink
	if *jsonEvents {
		sinks = append(sinks, sink.NewJSONSink(noCloseWriter{os.Stdout}, 10))
	}
	if *textEvents {
		sinks = append(sinks, sink.NewTextSink(noCloseWriter{os.Stderr}))
	}
	events := sink.NewMultiSink(sinks...)

	metrics := sink.NewMetrics(prometheus.NewRegistry())

	var ctx context.Context
	var cancel context.CancelFunc
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), *timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Println("pagewatch: shutting down")
		cancel()
	}()

	mon := NewMonitor(config.Default(), proto, iface, *recordDir, events, metrics)

	log.Printf("pagewatch: monitoring %d endpoint(s) as %s", len(endpoints), *protoFlag)
	summary := mon.Run(ctx, endpoints)
	summary.Metadata.Pattern = *endpointsFlag
	summary.Metadata.Timeout = *timeout

	f, err := os.Create(*summaryPath)
	if err != nil {
		log.Fatalf("pagewatch: create summary file: %v", err)
	}
	defer f.Close()
	if err := sink.WriteJSON(f, summary); err != nil {
		log.Fatalf("pagewatch: write summary: %v", err)
	}
	log.Printf("pagewatch: wrote summary to %s", *summaryPath)
}

// noCloseWriter hides an io.Closer so sink.Close() can't shut down the
// process's stdout/stderr out from under later log output (the
// end-of-run summary write still logs to stderr after events.Close()).
type noCloseWriter struct{ io.Writer }

// parseEndpoints parses a literal comma-separated list of group:port
// pairs. Pattern expansion syntax like 224.0.{1-10}.1:{5000-5010} is
// left to front-end tooling; this binary only accepts the
// fully-expanded form.
func parseEndpoints(s string) ([]mcast.Endpoint, error) {
	var eps []mcast.Endpoint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		host, portStr, err := net.SplitHostPort(part)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", part, err)
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsMulticast() {
			return nil, fmt.Errorf("invalid endpoint %q: not a multicast address", part)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", part, err)
		}
		eps = append(eps, mcast.Endpoint{Group: ip, Port: port})
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("no endpoints parsed from %q", s)
	}
	return eps, nil
}
