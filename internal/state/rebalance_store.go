package state

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/cellar-network/cellar/internal/types"
)

// SaveRebalanceSnapshot persists one CallOnAdaptor receipt.
func SaveRebalanceSnapshot(snapshot types.RebalanceSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	batchesJSON, err := json.Marshal(snapshot.Batches)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal batches: %w", err)
	}

	query := `
		INSERT INTO rebalance_snapshots (
			trace_id, snapshot_timestamp,
			pre_total_assets, post_total_assets, batches,
			success, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.TraceID, snapshot.Timestamp,
		snapshot.PreTotalAssets.String(), snapshot.PostTotalAssets.String(), batchesJSON,
		snapshot.Success, snapshot.Error,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rebalance snapshot: %w", err)
	}

	log.Debug().Int64("snapshotId", snapshotID).Str("traceId", snapshot.TraceID).Msg("Rebalance snapshot saved")
	return snapshotID, nil
}

// GetRecentRebalances returns the newest limit receipts, newest first.
func GetRecentRebalances(limit int) ([]types.RebalanceSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT trace_id, snapshot_timestamp, pre_total_assets, post_total_assets,
		       batches, success, COALESCE(error_message, '')
		FROM rebalance_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.RebalanceSnapshot
	for rows.Next() {
		var (
			snap        types.RebalanceSnapshot
			pre, post   string
			batchesJSON []byte
		)
		if err := rows.Scan(&snap.TraceID, &snap.Timestamp, &pre, &post,
			&batchesJSON, &snap.Success, &snap.Error); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance snapshot: %w", err)
		}

		preInt, ok := sdkmath.NewIntFromString(pre)
		if !ok {
			return nil, fmt.Errorf("invalid pre_total_assets value: %s", pre)
		}
		postInt, ok := sdkmath.NewIntFromString(post)
		if !ok {
			return nil, fmt.Errorf("invalid post_total_assets value: %s", post)
		}
		snap.PreTotalAssets = preInt
		snap.PostTotalAssets = postInt

		if len(batchesJSON) > 0 {
			if err := json.Unmarshal(batchesJSON, &snap.Batches); err != nil {
				return nil, fmt.Errorf("failed to unmarshal batches: %w", err)
			}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
