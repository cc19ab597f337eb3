package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/cellar-network/cellar/internal/types"
)

// SaveVaultEvent persists one share-ledger event.
func SaveVaultEvent(event types.VaultEvent) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO vault_events (
			event_timestamp, event_type, account, receiver, assets, shares
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING event_id;
	`

	var eventID int64
	err := DB.QueryRow(
		query,
		event.Timestamp, string(event.Type), event.Account, event.Receiver,
		event.Assets.String(), event.Shares.String(),
	).Scan(&eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vault event: %w", err)
	}

	log.Debug().Int64("eventId", eventID).Str("type", string(event.Type)).Msg("Vault event saved")
	return eventID, nil
}

// GetEventsForAccount returns the newest limit events touching account,
// newest first.
func GetEventsForAccount(account string, limit int) ([]types.VaultEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT event_timestamp, event_type, account, receiver, assets, shares
		FROM vault_events
		WHERE account = $1 OR receiver = $1
		ORDER BY event_timestamp DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault events: %w", err)
	}
	defer rows.Close()

	var events []types.VaultEvent
	for rows.Next() {
		var (
			event          types.VaultEvent
			eventType      string
			assets, shares string
		)
		if err := rows.Scan(&event.Timestamp, &eventType, &event.Account,
			&event.Receiver, &assets, &shares); err != nil {
			return nil, fmt.Errorf("failed to scan vault event: %w", err)
		}
		event.Type = types.VaultEventType(eventType)

		assetsInt, ok := sdkmath.NewIntFromString(assets)
		if !ok {
			return nil, fmt.Errorf("invalid assets value: %s", assets)
		}
		sharesInt, ok := sdkmath.NewIntFromString(shares)
		if !ok {
			return nil, fmt.Errorf("invalid shares value: %s", shares)
		}
		event.Assets = assetsInt
		event.Shares = sharesInt

		events = append(events, event)
	}
	return events, rows.Err()
}
