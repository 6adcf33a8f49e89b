// Command proxy runs the caching HTTP/1.0 forward proxy.
//
// Usage: proxy <port>
//
// port must be an integer in [1024, 65535]. Wrong argument count or an
// invalid port prints usage to stderr and exits 0, matching the
// reference implementation's usage-error contract.
package main

import (
    "context"
    "fmt"
    "log"
    "log/slog"
    "os"
    "os/signal"
    "strconv"
    "syscall"
    "time"

    "github.com/example/cacheproxy/internal/config"
    "github.com/example/cacheproxy/internal/logging"
    "github.com/example/cacheproxy/internal/proxy"
    "github.com/example/cacheproxy/internal/tracing"
)

const (
    minPort = 1024
    maxPort = 65535
)

func main() {
    port, ok := parseArgs(os.Args)
    if !ok {
        fmt.Fprintf(os.Stderr, "usage: %s <port>\n", programName(os.Args))
        os.Exit(0)
    }

    cfg, err := config.Load(port, os.Getenv("CACHEPROXY_CONFIG"))
    if err != nil {
        log.Fatalf("loading configuration: %v", err)
    }

    shutdownTracing, err := tracing.InitTracing(cfg.Tracing)
    if err != nil {
        log.Fatalf("initialising tracing: %v", err)
    }
    defer shutdownTracing()

    logger := logging.NewLogger(cfg.Tracing.ServiceName)

    server, err := proxy.NewServer(cfg, logger)
    if err != nil {
        log.Fatalf("constructing proxy server: %v", err)
    }

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    sigChan := make(chan os.Signal, 1)
    signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

    errChan := make(chan error, 1)
    go func() {
        logger.Info(ctx, "starting proxy", slog.Int("port", port))
        if err := server.Start(ctx); err != nil && ctx.Err() == nil {
            errChan <- err
        }
    }()

    select {
    case <-sigChan:
        logger.Info(ctx, "received termination signal, shutting down")
    case err := <-errChan:
        logger.Fatal(ctx, "server failed to start", err)
    }

    cancel()

    shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer shutdownCancel()

    if err := server.Shutdown(shutdownCtx); err != nil {
        logger.Error(shutdownCtx, "error during shutdown", err)
    }

    logger.Info(context.Background(), "proxy stopped")
}

// parseArgs validates the single positional port argument.
func parseArgs(args []string) (int, bool) {
    if len(args) != 2 {
        return 0, false
    }
    port, err := strconv.Atoi(args[1])
    if err != nil || port < minPort || port > maxPort {
        return 0, false
    }
    return port, true
}

func programName(args []string) string {
    if len(args) == 0 {
        return "proxy"
    }
    return args[0]
}
