package config

import (
	"errors"
	"os"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by LoadConfig.
var (
	// VaultName identifies the vault instance this daemon manages.
	VaultName string

	// BaseAsset is the denomination deposits are made in and all positions
	// are valued against.
	BaseAsset string

	// GovernanceAccount may toggle shutdown, tune bounds and force-remove
	// positions. StrategistAccount may administer positions and rebalance.
	GovernanceAccount string
	StrategistAccount string

	// ShareLockPeriod is how long freshly minted shares stay locked.
	ShareLockPeriod time.Duration

	// RebalanceDeviation is the maximum fraction of total assets a single
	// strategist batch may destroy before it is rejected (e.g. 0.01).
	RebalanceDeviation sdkmath.LegacyDec

	// DepositCap bounds total assets; zero means uncapped.
	DepositCap sdkmath.Int

	// MinHealthFactor is the floor on collateral/debt value after any
	// rebalance touching a debt position.
	MinHealthFactor sdkmath.LegacyDec

	// WebPort is the listen port for the ops/observability server.
	WebPort string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All variables without a stated default are required.
func LoadConfig() error {
	log.Info().Msg("Loading cellar configuration from environment variables...")

	var err error

	VaultName, err = getEnv("CELLAR_VAULT_NAME")
	if err != nil {
		return err
	}

	BaseAsset, err = getEnv("CELLAR_BASE_ASSET")
	if err != nil {
		return err
	}

	GovernanceAccount, err = getEnv("CELLAR_GOVERNANCE_ACCOUNT")
	if err != nil {
		return err
	}

	StrategistAccount, err = getEnv("CELLAR_STRATEGIST_ACCOUNT")
	if err != nil {
		return err
	}

	ShareLockPeriod, err = getEnvAsDuration("CELLAR_SHARE_LOCK_PERIOD")
	if err != nil {
		return err
	}

	RebalanceDeviation, err = getEnvAsDec("CELLAR_REBALANCE_DEVIATION")
	if err != nil {
		return err
	}

	DepositCap, err = getEnvAsInt("CELLAR_DEPOSIT_CAP")
	if err != nil {
		return err
	}

	MinHealthFactor, err = getEnvAsDec("CELLAR_MIN_HEALTH_FACTOR")
	if err != nil {
		return err
	}

	WebPort = os.Getenv("CELLAR_WEB_PORT")
	if WebPort == "" {
		WebPort = "8080"
	}

	log.Debug().
		Str("VaultName", VaultName).
		Str("BaseAsset", BaseAsset).
		Str("RebalanceDeviation", RebalanceDeviation.String()).
		Str("ShareLockPeriod", ShareLockPeriod.String()).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsDuration retrieves an environment variable as a time.Duration
// (e.g. "24h", "90s"). Returns error if not set or invalid.
func getEnvAsDuration(key string) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	if value < 0 {
		return 0, errors.New("environment variable " + key + " must not be negative, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDec retrieves an environment variable as a LegacyDec fraction.
func getEnvAsDec(key string) (sdkmath.LegacyDec, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	value, err := sdkmath.LegacyNewDecFromStr(valueStr)
	if err != nil {
		return sdkmath.LegacyZeroDec(), errors.New("environment variable " + key + " must be a valid decimal, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an sdkmath.Int amount.
func getEnvAsInt(key string) (sdkmath.Int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	value, ok := sdkmath.NewIntFromString(valueStr)
	if !ok {
		return sdkmath.ZeroInt(), errors.New("environment variable " + key + " must be a valid integer amount, got: " + valueStr)
	}
	return value, nil
}
