package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/judwhite/go-svc"

	"github.com/adcondev/brother-daemon/internal/auth"
	"github.com/adcondev/brother-daemon/internal/bridge"
	"github.com/adcondev/brother-daemon/internal/brother"
	"github.com/adcondev/brother-daemon/internal/config"
	"github.com/adcondev/brother-daemon/internal/server"
)

// GetEnvConfig returns the current environment configuration
func GetEnvConfig() config.Environment {
	return config.GetEnvironment(config.BuildEnvironment)
}

// Program implements svc.Service interface
type Program struct {
	wg         sync.WaitGroup
	quit       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	httpServer *http.Server
	wsServer   *server.Server
	bridge     *bridge.Client
	printer    *brother.Client
	authMgr    *auth.Manager
	startTime  time.Time
	discovery  *PrinterDiscovery
}

var _ svc.Service = (*Program)(nil)

// Init initializes the service
func (p *Program) Init(_ svc.Environment) error {
	envConfig := GetEnvConfig()

	if err := initLogging(envConfig); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║   🖨️  BROTHER PRINT DAEMON - SDK Bridge                     ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Printf("[INIT] 🚀 Starting service - Environment: %s", envConfig.Name)
	log.Printf("[INIT] 📅 Build: %s %s", config.BuildDate, config.BuildTime)

	return nil
}

// Start starts the service
func (p *Program) Start() error {
	p.quit = make(chan struct{})
	p.startTime = time.Now()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	cfg := GetEnvConfig()

	// Auth manager (bound to service context for clean shutdown)
	p.authMgr = auth.NewManager(p.ctx, config.AuthTokenHashB64)

	// Native host link; dialed on first call
	p.bridge = bridge.NewClient(bridge.Config{
		URL:         cfg.NativeHostURL,
		DialTimeout: cfg.DialTimeout,
	})
	p.printer = brother.NewClient(p.bridge)

	p.wsServer = server.NewServer(server.Config{
		AllowedOrigins:  cfg.AllowedOrigins,
		PrintsPerMinute: cfg.PrintsPerMinute,
	}, p.printer, p.bridge, p.authMgr)

	p.discovery = NewPrinterDiscovery(p.printer, cfg.CallTimeout)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.discovery.LogStartupDiagnostics(p.ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", p.wsServer.HandleWebSocket) // token validated per connection inside
	mux.HandleFunc("/health", p.handleHealth)         // public for monitoring tools

	p.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		log.Println("┌─────────────────────────────────────────────────────────────┐")
		log.Printf("│ 🖨️  BROTHER DAEMON READY - Environment: %-20s│", cfg.Name)
		log.Printf("│ 🔌 WebSocket:   ws://%s/ws%-24s│", cfg.ListenAddr, "")
		log.Printf("│ 💚 Health:      http://%s/health%-18s│", cfg.ListenAddr, "")
		log.Printf("│ 🧩 Native host: %-43s│", cfg.NativeHostURL)
		log.Printf("│ 🔐 Auth:        %-43v│", p.authMgr.Enabled())
		log.Println("└─────────────────────────────────────────────────────────────┘")

		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HTTP] ❌ Error starting HTTP server: %v", err)
		}
	}()

	return nil
}

// Stop stops the service gracefully
func (p *Program) Stop() error {
	log.Println("[STOP] 🛑 Service shutting down...")

	// 1. Cancel context (auth cleanup, startup discovery wait)
	p.cancel()

	// 2. Graceful HTTP shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if p.httpServer != nil {
		if err := p.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[STOP] ⚠️ HTTP shutdown error: %v", err)
		}
	}

	// 3. Disconnect scripting clients
	if p.wsServer != nil {
		p.wsServer.Shutdown()
	}

	// 4. Close the native link; in-flight calls fail as transmission errors
	if p.bridge != nil {
		if err := p.bridge.Close(); err != nil {
			log.Printf("[STOP] ⚠️ Bridge close error: %v", err)
		}
	}

	close(p.quit)
	p.wg.Wait()

	uptime := time.Since(p.startTime)
	log.Printf("[STOP] ✅ Service stopped (uptime: %v)", uptime.Round(time.Second))
	return nil
}

// handleHealth reports link and client status
func (p *Program) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status: "ok",
		Bridge: BridgeStatus{
			URL:       p.bridge.URL(),
			Connected: p.bridge.Connected(),
			Pending:   p.bridge.Pending(),
		},
		Clients: p.wsServer.ClientCount(),
		Build: BuildInfo{
			Env:  config.BuildEnvironment,
			Date: config.BuildDate,
			Time: config.BuildTime,
		},
		Uptime:  int(time.Since(p.startTime).Seconds()),
		LogSize: GetLogFileSize(),
	}

	if !response.Bridge.Connected {
		response.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(response)
}

func initLogging(envConfig config.Environment) error {
	logPath := envConfig.LogPath(os.Getenv("PROGRAMDATA"))
	logDir := filepath.Dir(logPath)

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	if err := InitLogger(logPath, envConfig.Verbose); err != nil {
		return err
	}

	log.Printf("[INIT] 📁 Log file: %s", logPath)
	return nil
}
