// Package tracex is the dispatch core of a structured diagnostics library.
// Instrumented code describes spans and events at callsites; tracex decides,
// cheaply and concurrently, which collector receives them.
//
// # Overview
//
// The package provides:
//   - A [Collector] interface with optional extensions for static callsite
//     interest, level hints, span reference counting and current-span lookup
//   - [Dispatch], a copyable handle to one collector
//   - Per-context default dispatches ([SetDefault], [WithDefault]) with a
//     one-shot process-wide fallback ([SetGlobalDefault])
//   - [Callsite]s that cache the combined [Interest] of every live dispatch,
//     invalidated by [RebuildInterestCache]
//   - A re-entrancy guard: a collector that emits diagnostics while handling
//     one reaches the none dispatch instead of itself
//
// # Quick Start
//
// Install a collector for the process and instrument code with callsites:
//
//	var handleRequest = tracex.NewSpanCallsite("handle_request", "myapp/server", tracex.LevelInfo)
//	var requestDone = tracex.NewEventCallsite("request_done", "myapp/server", tracex.LevelDebug)
//
//	func main() {
//	    if err := tracex.SetGlobalDefault(tracex.New(myCollector)); err != nil {
//	        log.Fatal(err)
//	    }
//	    ...
//	}
//
//	func serve(ctx context.Context, r *Request) {
//	    span := handleRequest.NewSpan(ctx, attribute.String("path", r.Path))
//	    defer span.Close(ctx)
//
//	    ctx, exit := span.Enter(ctx)
//	    defer exit()
//
//	    requestDone.Event(ctx, attribute.Int("status", 200))
//	}
//
// # Scoped Defaults
//
// A default installed with [SetDefault] applies to the returned context and
// every context derived from it, until its guard is closed:
//
//	ctx, guard := tracex.SetDefault(ctx, tracex.New(testCollector))
//	defer guard.Close()
//
// Contexts that never saw the scope keep resolving to the global default.
//
// # Layers, Filters and Reloading
//
// Collectors are usually assembled from layers (package layer) on top of a
// span registry (package registry), filtered by level or predicate (package
// filter). Package reload wraps a layer so it can be swapped at runtime, and
// rebuilds the interest cache after every change.
//
// # Bridges
//
// Package otelbridge forwards spans and events to OpenTelemetry, package
// logbridge routes log/slog records through the current dispatch, and
// packages http and grpc open request spans for servers and clients.
//
// # Configuration
//
// [Config] is loaded with [LoadConfig] or [ParseConfig] from YAML or JSON,
// with TRACEX_* and OTEL_* environment variables overriding file values:
//
//	enabled: true
//	serviceName: "my-service"  # OTEL_SERVICE_NAME
//	level: info                # TRACEX_LEVEL
//	collector: otel            # TRACEX_COLLECTOR
//	traces:
//	  exporter: console
//
// [ConfigFromEnv] builds the same Config from defaults and the environment
// alone. The tracex-sim command under cmd/ shows a complete stack: a
// reloadable level filter over a slog layer over a collector, installed
// with [SetGlobalDefault].
package tracex
