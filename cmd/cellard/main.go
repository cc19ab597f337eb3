package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/cellar-network/cellar/internal/adaptor"
	"github.com/cellar-network/cellar/internal/cellar"
	"github.com/cellar-network/cellar/internal/config"
	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/registry"
	"github.com/cellar-network/cellar/internal/state"
	"github.com/cellar-network/cellar/internal/types"
	"github.com/cellar-network/cellar/internal/web"
)

// baseAssetDecimals is the precision metrics are scaled by.
const baseAssetDecimals = 6

// main is the entry point for the cellar daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Cellar daemon starting...")

	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Core Wiring ---
	book := ledger.NewBook()
	baseAsset := types.Asset(config.BaseAsset)

	router := oracle.NewFixedRouter()
	if err := router.SetPrice(baseAsset, sdkmath.LegacyOneDec(), baseAssetDecimals); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed base asset price")
	}

	reg := registry.NewRegistry(config.GovernanceAccount, router)

	vault, err := cellar.New(cellar.Config{
		Name:               config.VaultName,
		BaseAsset:          baseAsset,
		Governance:         config.GovernanceAccount,
		Strategist:         config.StrategistAccount,
		Registry:           reg,
		Book:               book,
		LockPeriod:         config.ShareLockPeriod,
		RebalanceDeviation: config.RebalanceDeviation,
		DepositCap:         config.DepositCap,
		MinHealthFactor:    config.MinHealthFactor,
		DecimalsOffset:     0,
		Recorders: []cellar.Recorder{
			state.NewRecorder(),
			web.NewMetricsRecorder(config.VaultName, baseAssetDecimals),
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault engine")
	}

	// Bootstrap the holding position so deposits have somewhere to land.
	holding := adaptor.NewHoldingAdaptor("holding", book)
	if err := reg.TrustAdaptor(config.GovernanceAccount, holding); err != nil {
		log.Fatal().Err(err).Msg("Failed to trust holding adaptor")
	}
	holdingConfig, err := json.Marshal(adaptor.HoldingConfig{
		Account: vault.Account(),
		Asset:   baseAsset,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode holding position configuration")
	}
	holdingID, err := reg.TrustPosition(config.GovernanceAccount, "holding", holdingConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to trust holding position")
	}
	if err := vault.AddAdaptorToCatalogue(config.GovernanceAccount, "holding"); err != nil {
		log.Fatal().Err(err).Msg("Failed to catalogue holding adaptor")
	}
	if err := vault.AddPositionToCatalogue(config.GovernanceAccount, holdingID); err != nil {
		log.Fatal().Err(err).Msg("Failed to catalogue holding position")
	}
	if err := vault.AddPosition(config.StrategistAccount, 0, holdingID, false); err != nil {
		log.Fatal().Err(err).Msg("Failed to activate holding position")
	}
	if err := vault.SetHoldingPosition(config.StrategistAccount, holdingID); err != nil {
		log.Fatal().Err(err).Msg("Failed to set holding position")
	}

	// --- 3. Web Server ---
	webServer := web.NewWebServer(vault, config.WebPort)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting cellar ops server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	log.Info().
		Str("vault", vault.Name()).
		Str("baseAsset", string(baseAsset)).
		Str("holdingPosition", holdingID.String()).
		Msg("Cellar daemon ready")

	// --- 4. Wait for Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down cellar daemon")
}

func mustAtoi(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
