package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/algojuke/discovery/internal/config"
	"github.com/algojuke/discovery/internal/httpclient"
	"github.com/algojuke/discovery/internal/wiring"
	"github.com/algojuke/discovery/pkg/agentstream"
	"github.com/algojuke/discovery/pkg/agenttools"
	"github.com/algojuke/discovery/pkg/catalogue"
	"github.com/algojuke/discovery/pkg/expansion"
	"github.com/algojuke/discovery/pkg/hybridsearch"
	"github.com/algojuke/discovery/pkg/library"
	"github.com/algojuke/discovery/pkg/toolexec"
	"github.com/algojuke/discovery/pkg/tracing"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	transport := flag.String("transport", "stdio", "serve tools over stdio (MCP) or http (streamed chat)")
	flag.Parse()

	// stdout belongs to the MCP transport.
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, store, err := wiring.OpenIndex(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer db.Close()

	encoder, err := wiring.NewEncoder(cfg)
	if err != nil {
		log.Fatalf("Failed to create encoder: %v", err)
	}

	var expander hybridsearch.Expander = expansion.Passthrough{}
	if cfg.Expansion.APIKey != "" {
		expander = expansion.NewOpenAIExpander(httpclient.New(httpclient.Config{
			BaseURL:     cfg.Expansion.BaseURL,
			BearerToken: cfg.Expansion.APIKey,
		}), cfg.Expansion.Model, cfg.Search.MaxSubQueries)
	} else {
		log.Printf("Query expansion disabled: no API key")
	}

	searcher := hybridsearch.New(store, expander, encoder, hybridsearch.Options{
		RRFConstant:   cfg.Search.RRFConstant,
		OverFetch:     cfg.Search.OverFetch,
		MaxSubQueries: cfg.Search.MaxSubQueries,
		MaxCandidates: cfg.Search.MaxCandidates,
	})

	var tp trace.TracerProvider = noop.NewTracerProvider()
	var sdkTP *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		sdkTP, err = tracing.NewProvider(cfg.Tracing.ServiceName, os.Stderr)
		if err != nil {
			log.Fatalf("Failed to create tracer provider: %v", err)
		}
		tp = sdkTP
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx, sdkTP); err != nil {
			log.Printf("Tracer shutdown: %v", err)
		}
	}()
	tracer := tracing.New(tp, "github.com/algojuke/discovery/agenttools")

	exec := toolexec.NewExecutor(
		toolexec.WithRetryDelay(cfg.Tools.RetryDelay),
		toolexec.WithTracer(tracer),
	)

	deps := agenttools.Deps{
		Retriever:     searcher,
		Index:         store,
		Library:       library.NewPostgresStore(db.Pool()),
		DefaultUserID: cfg.Agent.UserID,
	}
	if cfg.Catalogue.BaseURL != "" {
		deps.Catalogue = catalogue.NewClient(cfg.Catalogue.BaseURL, cfg.Catalogue.APIKey)
	} else {
		log.Printf("Catalogue search disabled: CATALOGUE_BASE_URL not set")
	}
	tools := agenttools.New(exec, deps)

	go serveHealth(cfg.HealthAddr)

	switch *transport {
	case "stdio":
		log.Printf("Starting discovery MCP server %s over stdio", Version)
		if err := server.ServeStdio(newMCPServer(tools, tracer)); err != nil {
			log.Fatalf("MCP server failed: %v", err)
		}
	case "http":
		if err := serveChat(ctx, cfg, tools, tracer); err != nil {
			log.Fatalf("Chat server failed: %v", err)
		}
	default:
		log.Fatalf("Unknown transport %q", *transport)
	}
}

func newMCPServer(tools *agenttools.Tools, tracer *tracing.Tracer) *server.MCPServer {
	s := server.NewMCPServer(
		"algojuke-discovery",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
			return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				ctx, span := tracer.StartTurn(ctx, "mcp.call_tool", attribute.String("tool.name", req.Params.Name))
				defer span.End()
				return next(ctx, req)
			}
		}),
	)
	tools.Register(s)
	return s
}

func serveChat(ctx context.Context, cfg *config.Config, tools *agenttools.Tools, tracer *tracing.Tracer) error {
	defs := make([]mcp.Tool, 0, len(agenttools.IDs()))
	for _, id := range agenttools.IDs() {
		defs = append(defs, agenttools.Definition(id))
	}
	model := agentstream.NewOpenAIModel(httpclient.New(httpclient.Config{
		BaseURL:     cfg.Agent.BaseURL,
		BearerToken: cfg.Agent.APIKey,
		Timeout:     2 * time.Minute,
	}), cfg.Agent.Model, defs)
	runner := agentstream.NewRunner(model, tools, agentstream.WithMaxTurns(cfg.Agent.MaxTurns))

	mux := http.NewServeMux()
	mux.Handle("/v1/chat", agentstream.NewHandler(runner, tracer))
	srv := &http.Server{Addr: cfg.Agent.ListenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Chat endpoint listening on %s", cfg.Agent.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func serveHealth(addr string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("Health endpoint disabled: %v", err)
		return
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	log.Printf("gRPC health listening on %s", addr)
	if err := grpcServer.Serve(lis); err != nil {
		log.Printf("Health server stopped: %v", err)
	}
}
