// Package main replays archived processor events for reconciliation and
// projection rebuilds. It runs purely from the archive, with no provider
// dependency.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/processor"
	"loyalty-service/internal/storage"
	"loyalty-service/internal/storage/clickhouse"
	"loyalty-service/internal/storage/memory"
)

func main() {
	// Parse flags
	orderID := flag.String("order-id", "", "Replay all events for one order")
	fromTime := flag.String("from-time", "", "Start time (RFC3339)")
	toTime := flag.String("to-time", "", "End time (RFC3339)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use an empty in-memory archive (dry run)")
	verify := flag.Bool("verify", false, "Verify replay determinism instead of delivering")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	if *orderID == "" && (*fromTime == "" || *toTime == "") {
		logger.Fatal("Either --order-id or both --from-time and --to-time are required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create archive
	var archive storage.ProcessorEventStore = memory.NewProcessorEventStore()
	if !*useMemory {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required (use --use-memory for a dry run)")
		}
		conn, err := clickhouse.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		archive = clickhouse.NewProcessorEventStore(conn)
	}

	// Create printing sink and replayer
	sink := NewPrintingSink(*outputJSON)
	replayer := processor.NewReplayer(processor.ReplayerOptions{
		Archive: archive,
		Sink:    sink,
		Logger:  logger,
	})

	// Determine time range
	var from, to int64
	if *fromTime != "" {
		t, err := time.Parse(time.RFC3339, *fromTime)
		if err != nil {
			logger.Fatalf("parse from-time: %v", err)
		}
		from = t.UnixMilli()
	}
	if *toTime != "" {
		t, err := time.Parse(time.RFC3339, *toTime)
		if err != nil {
			logger.Fatalf("parse to-time: %v", err)
		}
		to = t.UnixMilli()
	}

	if *verify {
		ok, err := replayer.VerifyDeterminism(ctx, from, to)
		if err != nil {
			logger.Fatalf("verify failed: %v", err)
		}
		if !ok {
			logger.Fatal("Replay is NOT deterministic over this range")
		}
		fmt.Println("Replay verified deterministic")
		return
	}

	var result *processor.ReplayResult
	var err error
	if *orderID != "" {
		logger.Printf("Replaying events for order %s", *orderID)
		result, err = replayer.ReplayOrder(ctx, *orderID)
	} else {
		logger.Printf("Replaying events from %d to %d", from, to)
		result, err = replayer.ReplayRange(ctx, from, to)
	}
	if err != nil {
		logger.Fatalf("replay failed: %v", err)
	}

	// Output summary
	if *outputJSON {
		output, _ := json.MarshalIndent(map[string]any{
			"events_loaded":    result.EventsLoaded,
			"events_delivered": result.EventsDelivered,
			"duration":         result.Duration.String(),
		}, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("\n=== Replay Summary ===\n")
		fmt.Printf("Events Loaded:    %d\n", result.EventsLoaded)
		fmt.Printf("Events Delivered: %d\n", result.EventsDelivered)
		fmt.Printf("Duration:         %v\n", result.Duration)
	}
}

// PrintingSink implements processor.Sink and prints each event.
type PrintingSink struct {
	outputJSON bool
}

// NewPrintingSink creates a sink that writes events to stdout.
func NewPrintingSink(outputJSON bool) *PrintingSink {
	return &PrintingSink{outputJSON: outputJSON}
}

// Deliver prints one archived event.
func (s *PrintingSink) Deliver(_ context.Context, event *domain.ProcessorEvent) error {
	if s.outputJSON {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	order := "-"
	if event.OrderID != nil {
		order = *event.OrderID
	}
	fmt.Printf("[%s] id=%s provider=%s type=%s order=%s\n",
		time.UnixMilli(event.OccurredAt).Format(time.RFC3339),
		event.ID,
		event.Provider,
		event.EventType,
		order,
	)
	return nil
}

// Ensure PrintingSink implements processor.Sink
var _ processor.Sink = (*PrintingSink)(nil)
