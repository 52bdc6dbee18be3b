package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
	"github.com/therealutkarshpriyadarshi/vector/pkg/api/rest"
	"github.com/therealutkarshpriyadarshi/vector/pkg/api/rest/middleware"
	"github.com/therealutkarshpriyadarshi/vector/pkg/config"
	"github.com/therealutkarshpriyadarshi/vector/pkg/observability"
	"github.com/therealutkarshpriyadarshi/vector/pkg/quota"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		showHelp    = flag.Bool("help", false, "show help and exit")
		configFile  = flag.String("config", "", "path to YAML configuration file (optional)")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mlclusters-server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	printBanner()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewDefaultLogger()
	metrics := observability.NewMetrics()

	quotaMgr := quota.NewManager(quota.JobQuota{
		MaxConcurrentJobs: cfg.Quota.MaxConcurrentJobs,
		MaxKValue:         cfg.Quota.MaxKValue,
		MaxReplicates:     cfg.Quota.MaxReplicates,
		MaxInstances:      cfg.Quota.MaxInstances,
	})

	engine := clustering.NewEngine(log, nil, nil)
	handler := rest.NewHandler(engine, quotaMgr, metrics, log, cfg.Training)

	server := rest.NewServer(rest.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSEnabled: true,
		CORSOrigins: []string{"*"},
		Auth: middleware.AuthConfig{
			Enabled:     cfg.Auth.Secret != "",
			JWTSecret:   cfg.Auth.Secret,
			PublicPaths: []string{"/v1/health"},
		},
		RateLimit: middleware.RateLimitConfig{
			Enabled:        cfg.Auth.RateLimit > 0,
			RequestsPerSec: cfg.Auth.RateLimit,
			Burst:          cfg.Auth.RateBurst,
			PerIP:          true,
		},
	}, handler, log)

	printStartupInfo(cfg)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Info("training service ready", map[string]interface{}{"address": cfg.Server.Address()})
	select {
	case sig := <-sigChan:
		log.Info("received signal", map[string]interface{}{"signal": sig.String()})
	case err := <-errChan:
		log.Error("server error", map[string]interface{}{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("error stopping server", map[string]interface{}{"error": err.Error()})
	}
	log.Info("training service stopped", nil)
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	return config.LoadFromEnv(), nil
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   _ __ ___ | | ___| |_   _ ___| |_ ___ _ __ ___           ║
║  | '_ ` + "`" + ` _ \| |/ __| | | / __| __/ _ \ '__/ __|          ║
║  | | | | | | | (__| | |_| \__ \ ||  __/ |  \__ \          ║
║  |_| |_| |_|_|\___|_|\__,_|___/\__\___|_|  |___/          ║
║                                                           ║
║   K-Means Clustering Training Service                    ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("Version: %s (commit: %s)\n\n", version, commit)
}

func printStartupInfo(cfg *config.Config) {
	fmt.Println("\n╔════════════════════════════════════════════════════════╗")
	fmt.Println("║            Training Service Configuration              ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Address:          %-35s ║\n", cfg.Server.Address())
	fmt.Printf("║ Auth Enabled:     %-35v ║\n", cfg.Auth.Secret != "")
	fmt.Printf("║ Rate Limit:       %-35s ║\n", fmt.Sprintf("%.1f req/s (burst: %d)", cfg.Auth.RateLimit, cfg.Auth.RateBurst))
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               Quota Configuration                       ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Max Concurrent Jobs: %-32d ║\n", cfg.Quota.MaxConcurrentJobs)
	fmt.Printf("║ Max K Value:         %-32d ║\n", cfg.Quota.MaxKValue)
	fmt.Printf("║ Max Replicates:      %-32d ║\n", cfg.Quota.MaxReplicates)
	fmt.Printf("║ Max Instances:       %-32d ║\n", cfg.Quota.MaxInstances)
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func showUsage() {
	fmt.Println("mlclusters-server - K-Means clustering training service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mlclusters-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help             Show this help message")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -config PATH      Path to configuration file (YAML)")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 8080)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  MLCLUSTERS_HOST                    Server host")
	fmt.Println("  MLCLUSTERS_PORT                    Server port")
	fmt.Println("  MLCLUSTERS_REQUEST_TIMEOUT         Request timeout (e.g., 30s)")
	fmt.Println("  MLCLUSTERS_DEFAULT_MAX_ITERATIONS  Default max iterations per run")
	fmt.Println("  MLCLUSTERS_DEFAULT_EPSILON         Default convergence epsilon")
	fmt.Println("  MLCLUSTERS_MAX_CONCURRENT_JOBS     Quota: max concurrent jobs per caller")
	fmt.Println("  MLCLUSTERS_MAX_K_VALUE             Quota: max k_value per caller")
	fmt.Println("  MLCLUSTERS_MAX_REPLICATES          Quota: max n_replicates per caller")
	fmt.Println("  MLCLUSTERS_MAX_INSTANCES           Quota: max instance count per caller")
	fmt.Println("  MLCLUSTERS_JWT_SECRET              JWT signing secret (empty disables auth)")
	fmt.Println("  MLCLUSTERS_RATE_LIMIT              Requests/sec per caller")
	fmt.Println("  MLCLUSTERS_RATE_BURST              Rate limiter burst size")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  mlclusters-server")
	fmt.Println("  mlclusters-server -port 9090")
	fmt.Println("  MLCLUSTERS_PORT=9090 mlclusters-server")
	fmt.Println("  mlclusters-server -config config.yaml")
	fmt.Println()
}
