package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/input"
	"github.com/vango-dev/frp/pkg/protocol"
	"github.com/vango-dev/frp/pkg/server"
)

type benchConfig struct {
	Clients      int
	Duration     time.Duration
	RPS          float64
	InputTimeout time.Duration
	JSONOutput   string
}

type benchCounters struct {
	inputsSent     atomic.Uint64
	inputsAcked    atomic.Uint64
	inputBytes     atomic.Uint64
	outputFrames   atomic.Uint64
	outputBytes    atomic.Uint64
	errorFrames    atomic.Uint64
	dialFailures   atomic.Uint64
	writeFailures  atomic.Uint64
	decodeFailures atomic.Uint64
	ackMissing     atomic.Uint64
}

func benchCmd() *cobra.Command {
	cfg := benchConfig{
		Clients:      50,
		Duration:     10 * time.Second,
		RPS:          20,
		InputTimeout: 5 * time.Second,
	}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load test the websocket bridge",
		Long: `Start an in-process server running the mouse demo and drive it with
concurrent websocket clients.

Every client sends mouse positions at a fixed rate and waits for the
Ack of each one. The round trip from send to Ack covers decoding, the
propagation step and the per-connection outputs it produced.

Examples:
  frp bench
  frp bench --clients 200 --duration 30s --rps 50 --json report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Clients < 1 || cfg.RPS <= 0 {
				return fmt.Errorf("clients and rps must be positive")
			}
			report, err := runBench(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			writeSummary(cmd.ErrOrStderr(), report)
			if cfg.JSONOutput != "" {
				return writeJSON(cmd.OutOrStdout(), cfg.JSONOutput, report)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.Clients, "clients", cfg.Clients, "Number of concurrent websocket clients")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", cfg.Duration, "Benchmark duration")
	cmd.Flags().Float64Var(&cfg.RPS, "rps", cfg.RPS, "Target inputs per second per client")
	cmd.Flags().DurationVar(&cfg.InputTimeout, "input-timeout", cfg.InputTimeout, "How long to wait for an Ack")
	cmd.Flags().StringVar(&cfg.JSONOutput, "json", "", "Write a JSON report to this path ('-' for stdout)")

	return cmd
}

func runBench(parent context.Context, cfg benchConfig) (benchReport, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := frp.NewRuntime(frp.WithLogger(logger))
	srv := server.New(rt, server.Options{
		Logger:        logger,
		Window:        1 << 16,
		SendQueueSize: 1024,
	})
	demos["mouse"].install(srv)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return benchReport{}, fmt.Errorf("listen: %w", err)
	}

	srvCtx, stopServer := context.WithCancel(parent)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(srvCtx, ln) }()
	defer func() {
		stopServer()
		<-served
	}()

	wsURL := "ws://" + ln.Addr().String() + "/ws"

	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	var (
		counters  benchCounters
		samples   []time.Duration
		samplesMu sync.Mutex
	)
	record := func(rtt time.Duration) {
		samplesMu.Lock()
		samples = append(samples, rtt)
		samplesMu.Unlock()
	}

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	start := time.Now()
	failed, firstErr := runClients(cfg.Clients, func(id int) error {
		return runClient(ctx, wsURL, id, cfg, &counters, record)
	})
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	report := buildReport(cfg, elapsed, samples, &counters, failed, before, after)
	if firstErr != nil {
		report.Errors.First = firstErr.Error()
	}
	return report, nil
}

// runClients runs n clients concurrently. It returns how many failed and
// the first failure.
func runClients(n int, client func(id int) error) (uint64, error) {
	var (
		g      errgroup.Group
		failed atomic.Uint64
	)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := client(i); err != nil {
				failed.Add(1)
				return fmt.Errorf("client %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return failed.Load(), err
}

func runClient(
	ctx context.Context,
	wsURL string,
	clientID int,
	cfg benchConfig,
	counters *benchCounters,
	record func(time.Duration),
) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		counters.dialFailures.Add(1)
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	hello, err := readFrame(conn, cfg.InputTimeout, counters)
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	if hello.Type != protocol.FrameHello {
		return fmt.Errorf("expected Hello frame, got %s", hello.Type)
	}

	period := time.Duration(float64(time.Second) / cfg.RPS)
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		in, err := protocol.NewInput(seq, "mouse.position", input.Position{X: clientID, Y: int(seq)})
		if err != nil {
			return err
		}
		data := protocol.NewFrame(protocol.FrameInput, protocol.EncodeInput(in)).Encode()

		start := time.Now()
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			counters.writeFailures.Add(1)
			return fmt.Errorf("input write: %w", err)
		}
		counters.inputsSent.Add(1)
		counters.inputBytes.Add(uint64(len(data)))

		if err := waitForAck(conn, seq, cfg.InputTimeout, counters); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			counters.ackMissing.Add(1)
			return err
		}
		counters.inputsAcked.Add(1)
		record(time.Since(start))

		if sleep := period - time.Since(start); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// waitForAck reads frames until the Ack for seq arrives.
func waitForAck(conn *websocket.Conn, seq uint64, timeout time.Duration, counters *benchCounters) error {
	deadline := time.Now().Add(timeout)
	for {
		f, err := readFrame(conn, time.Until(deadline), counters)
		if err != nil {
			return err
		}
		switch f.Type {
		case protocol.FrameOutput:
			counters.outputFrames.Add(1)
			counters.outputBytes.Add(uint64(len(f.Payload) + protocol.FrameHeaderSize))
		case protocol.FrameError:
			counters.errorFrames.Add(1)
			if em, err := protocol.DecodeErrorMessage(f.Payload); err == nil && em.Seq == seq {
				return em
			}
		case protocol.FrameAck:
			ack, err := protocol.DecodeAck(f.Payload)
			if err != nil {
				counters.decodeFailures.Add(1)
				return err
			}
			if ack.LastSeq >= seq {
				return nil
			}
		}
	}
}

func readFrame(conn *websocket.Conn, timeout time.Duration, counters *benchCounters) (*protocol.Frame, error) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	f, err := protocol.DecodeFrame(msg)
	if err != nil {
		counters.decodeFailures.Add(1)
		return nil, err
	}
	return f, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type benchReport struct {
	Version    string         `json:"version"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
	Errors     errorInfo      `json:"errors"`
}

type workloadInfo struct {
	Clients      int     `json:"clients"`
	DurationMS   int64   `json:"duration_ms"`
	RPSPerClient float64 `json:"rps_per_client"`
}

type latencyInfo struct {
	Samples int     `json:"samples"`
	Min     float64 `json:"min"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
	Max     float64 `json:"max"`
}

type throughputInfo struct {
	InputsTotal    uint64  `json:"inputs_total"`
	InputsPerSec   float64 `json:"inputs_per_sec"`
	OutputsTotal   uint64  `json:"outputs_total"`
	OutputsPerIn   float64 `json:"outputs_per_input"`
	AvgInputBytes  float64 `json:"avg_input_bytes"`
	AvgOutputBytes float64 `json:"avg_output_bytes"`
}

type gcInfo struct {
	AllocMB      float64 `json:"alloc_mb"`
	NumGC        uint32  `json:"num_gc"`
	PauseTotalMS float64 `json:"pause_total_ms"`
}

type errorInfo struct {
	Clients        uint64 `json:"clients"`
	DialFailures   uint64 `json:"dial_failures"`
	WriteFailures  uint64 `json:"write_failures"`
	DecodeFailures uint64 `json:"decode_failures"`
	ErrorFrames    uint64 `json:"error_frames"`
	AckMissing     uint64 `json:"ack_missing"`
	First          string `json:"first,omitempty"`
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	c *benchCounters,
	clientErrors uint64,
	before, after runtime.MemStats,
) benchReport {
	ratio := func(a, b uint64) float64 {
		if b == 0 {
			return 0
		}
		return float64(a) / float64(b)
	}
	sent, outputs := c.inputsSent.Load(), c.outputFrames.Load()

	return benchReport{
		Version: version,
		Workload: workloadInfo{
			Clients:      cfg.Clients,
			DurationMS:   cfg.Duration.Milliseconds(),
			RPSPerClient: cfg.RPS,
		},
		LatencyMS: latencyInfo{
			Samples: len(latencies),
			Min:     ms(percentile(latencies, 0)),
			P50:     ms(percentile(latencies, 0.50)),
			P95:     ms(percentile(latencies, 0.95)),
			P99:     ms(percentile(latencies, 0.99)),
			Max:     ms(percentile(latencies, 1)),
		},
		Throughput: throughputInfo{
			InputsTotal:    c.inputsAcked.Load(),
			InputsPerSec:   float64(c.inputsAcked.Load()) / elapsed.Seconds(),
			OutputsTotal:   outputs,
			OutputsPerIn:   ratio(outputs, sent),
			AvgInputBytes:  ratio(c.inputBytes.Load(), sent),
			AvgOutputBytes: ratio(c.outputBytes.Load(), outputs),
		},
		GC: gcInfo{
			AllocMB:      float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			NumGC:        after.NumGC - before.NumGC,
			PauseTotalMS: float64(after.PauseTotalNs-before.PauseTotalNs) / float64(time.Millisecond),
		},
		Errors: errorInfo{
			Clients:        clientErrors,
			DialFailures:   c.dialFailures.Load(),
			WriteFailures:  c.writeFailures.Load(),
			DecodeFailures: c.decodeFailures.Load(),
			ErrorFrames:    c.errorFrames.Load(),
			AckMissing:     c.ackMissing.Load(),
		},
	}
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== frp bridge benchmark ===")
	fmt.Fprintf(w, "Clients: %d\n", report.Workload.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-client rate: %.2f inputs/s\n", report.Workload.RPSPerClient)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Acked inputs: %d\n", report.Throughput.InputsTotal)
	fmt.Fprintf(w, "Throughput: %.1f inputs/s\n", report.Throughput.InputsPerSec)
	fmt.Fprintf(w, "Outputs per input: %.2f\n", report.Throughput.OutputsPerIn)
	fmt.Fprintf(w, "Failed clients: %d\n", report.Errors.Clients)
	if report.Errors.First != "" {
		fmt.Fprintf(w, "First failure: %s\n", report.Errors.First)
	}
	fmt.Fprintln(w)

	if report.LatencyMS.Samples == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "RTT (input sent -> Ack received):")
		fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:    %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  num_gc:   %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause: %.2f ms (total)\n", report.GC.PauseTotalMS)
}

func writeJSON(stdout io.Writer, path string, report benchReport) error {
	out := stdout
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
