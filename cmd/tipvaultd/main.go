package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tipvault/config"
	"tipvault/core/state"
	"tipvault/native/tipping"
	"tipvault/observability/logging"
	"tipvault/rpc"
	"tipvault/storage"
)

const shutdownGrace = 10 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TIPVAULT_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup("tipvaultd", env, cfg.Debug)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	st := state.NewManager(db)

	registry, ledger, gateway, err := wireEngines(st, cfg)
	if err != nil {
		logger.Error("Failed to wire engines", slog.Any("error", err))
		os.Exit(1)
	}

	rpcServer := rpc.NewServer(st, registry, ledger, gateway, logger, cfg.AdminToken)

	apiServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           rpcServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	opsServer := &http.Server{
		Addr:              cfg.OpsAddress,
		Handler:           rpc.OpsHandler(st),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("JSON-RPC server listening", "addr", cfg.RPCAddress, "network", cfg.NetworkName)
		if serveErr := apiServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()
	go func() {
		logger.Info("ops server listening", "addr", cfg.OpsAddress)
		if serveErr := opsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case serveErr := <-errCh:
		logger.Error("server failed", slog.Any("error", serveErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("RPC shutdown failed", slog.Any("error", err))
	}
	if err := opsServer.Shutdown(ctx); err != nil {
		logger.Error("ops shutdown failed", slog.Any("error", err))
	}
}

// wireEngines builds the registry, ledger, and gateway over the shared state
// manager and seeds the configured roles and addresses.
func wireEngines(st *state.Manager, cfg *config.Config) (*tipping.Registry, *tipping.Ledger, *tipping.Gateway, error) {
	registry := tipping.NewRegistry(st)
	registry.SetEmitter(st)
	registry.SetPauses(st)

	ledger := tipping.NewLedger(st)
	ledger.SetEmitter(st)
	ledger.SetPauses(st)

	programCap := cfg.ProgramCapInt()
	if programCap.Sign() > 0 {
		registry.SetProgramCap(programCap)
		ledger.SetProgramCap(programCap)
	}

	var admin [20]byte
	if strings.TrimSpace(cfg.AdminAddress) != "" {
		parsed, err := config.ParseAddress(cfg.AdminAddress)
		if err != nil {
			return nil, nil, nil, err
		}
		admin = parsed
		if !st.HasRole(tipping.RoleAdmin, admin[:]) {
			if err := st.SetRole(tipping.RoleAdmin, admin[:]); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	if strings.TrimSpace(cfg.CustodyAddress) != "" {
		custody, err := config.ParseAddress(cfg.CustodyAddress)
		if err != nil {
			return nil, nil, nil, err
		}
		ledger.SetCustody(custody)
	}
	if strings.TrimSpace(cfg.TreasuryAddress) != "" {
		treasury, err := config.ParseAddress(cfg.TreasuryAddress)
		if err != nil {
			return nil, nil, nil, err
		}
		ledger.SetTreasury(treasury)
	}

	var gatewayAddr [20]byte
	if strings.TrimSpace(cfg.GatewayAddress) != "" {
		parsed, err := config.ParseAddress(cfg.GatewayAddress)
		if err != nil {
			return nil, nil, nil, err
		}
		gatewayAddr = parsed
	}

	gateway := tipping.NewGateway(st, gatewayAddr)
	gateway.SetEmitter(st)
	gateway.SetPauses(st)
	gateway.SetPrecheck(cfg.PrecheckQuota)
	if floor := cfg.GatewayMinHoldingInt(); floor.Sign() > 0 {
		gateway.SetMinHolding(floor)
	}

	if gatewayAddr != ([20]byte{}) {
		if err := ledger.SetGatewayAddress(admin, gatewayAddr); err != nil {
			return nil, nil, nil, err
		}
		if err := gateway.SetLedger(admin, ledger); err != nil {
			return nil, nil, nil, err
		}
	}

	if err := st.Commit(); err != nil {
		return nil, nil, nil, err
	}
	return registry, ledger, gateway, nil
}
