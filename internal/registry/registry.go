/*

Package registry is the protocol-wide trust store: it decides which adaptor
implementations and which (adaptor, configuration) pairs any vault may use.
It is consulted for trust and lookup only; fund movement never passes
through it.

*/

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/adaptor"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/types"
)

var (
	ErrUnauthorized            = errors.New("caller is not authorized")
	ErrAdaptorNotTrusted       = errors.New("adaptor is not trusted")
	ErrAdaptorUnknown          = errors.New("adaptor is unknown")
	ErrPositionDoesNotExist    = errors.New("position does not exist")
	ErrPositionPricingNotSetUp = errors.New("position pricing not set up for asset")
	ErrNilAdaptor              = errors.New("adaptor is nil")
)

// TrustedPosition binds a position identifier permanently to one adaptor and
// configuration blob. Identity and configuration never change after
// creation; only the Trusted flag may be cleared, which gates future vault
// adoption without breaking vaults already holding the position.
type TrustedPosition struct {
	ID      types.PositionID
	Adaptor adaptor.Adaptor
	Config  json.RawMessage
	IsDebt  bool
	Trusted bool
}

type adaptorEntry struct {
	impl    adaptor.Adaptor
	trusted bool
}

// Registry is the shared trust store. A single governance account mutates
// it; concurrent readers see a consistent snapshot per call.
type Registry struct {
	mu         sync.RWMutex
	log        zerolog.Logger
	governance string
	router     oracle.Router
	adaptors   map[string]*adaptorEntry
	positions  map[types.PositionID]*TrustedPosition
}

// NewRegistry creates a registry whose privileged operations only accept the
// given governance account.
func NewRegistry(governance string, router oracle.Router) *Registry {
	return &Registry{
		log:        logger.GetForComponent("registry"),
		governance: governance,
		router:     router,
		adaptors:   make(map[string]*adaptorEntry),
		positions:  make(map[types.PositionID]*TrustedPosition),
	}
}

// Router returns the valuation oracle the registry validates positions with.
func (r *Registry) Router() oracle.Router {
	return r.router
}

// TrustAdaptor admits an adaptor implementation for use by any vault.
// Idempotent; re-trusting a revoked adaptor reinstates it.
func (r *Registry) TrustAdaptor(caller string, ad adaptor.Adaptor) error {
	if err := r.requireGovernance(caller); err != nil {
		return err
	}
	if ad == nil {
		return ErrNilAdaptor
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.adaptors[ad.Name()]; ok {
		entry.trusted = true
		return nil
	}
	r.adaptors[ad.Name()] = &adaptorEntry{impl: ad, trusted: true}
	r.log.Info().Str("adaptor", ad.Name()).Msg("Adaptor trusted")
	return nil
}

// RevokeAdaptor marks an adaptor unusable for future trust decisions.
func (r *Registry) RevokeAdaptor(caller, name string) error {
	if err := r.requireGovernance(caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.adaptors[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAdaptorUnknown, name)
	}
	entry.trusted = false
	r.log.Info().Str("adaptor", name).Msg("Adaptor revoked")
	return nil
}

// IsAdaptorTrusted reports whether the named adaptor is currently trusted.
func (r *Registry) IsAdaptorTrusted(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.adaptors[name]
	return ok && entry.trusted
}

// Adaptor resolves a trusted adaptor implementation by name.
func (r *Registry) Adaptor(name string) (adaptor.Adaptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.adaptors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdaptorUnknown, name)
	}
	if !entry.trusted {
		return nil, fmt.Errorf("%w: %s", ErrAdaptorNotTrusted, name)
	}
	return entry.impl, nil
}

// TrustPosition validates that every asset the configuration touches is
// priceable, then allocates a fresh identifier bound permanently to
// (adaptor, config, debt flag).
func (r *Registry) TrustPosition(caller, adaptorName string, config json.RawMessage) (types.PositionID, error) {
	if err := r.requireGovernance(caller); err != nil {
		return types.NilPositionID, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.adaptors[adaptorName]
	if !ok {
		return types.NilPositionID, fmt.Errorf("%w: %s", ErrAdaptorUnknown, adaptorName)
	}
	if !entry.trusted {
		return types.NilPositionID, fmt.Errorf("%w: %s", ErrAdaptorNotTrusted, adaptorName)
	}

	assets, err := assetsTouched(entry.impl, config)
	if err != nil {
		return types.NilPositionID, err
	}
	for _, asset := range assets {
		if !r.router.IsSupported(asset) {
			return types.NilPositionID, fmt.Errorf("%w: %s", ErrPositionPricingNotSetUp, asset)
		}
	}

	id := types.NewPositionID()
	r.positions[id] = &TrustedPosition{
		ID:      id,
		Adaptor: entry.impl,
		Config:  append(json.RawMessage(nil), config...),
		IsDebt:  entry.impl.IsDebt(),
		Trusted: true,
	}

	r.log.Info().
		Str("position", id.String()).
		Str("adaptor", adaptorName).
		Bool("isDebt", entry.impl.IsDebt()).
		Msg("Position trusted")
	return id, nil
}

// RevokePosition marks a position unusable for future vault adoption. Vaults
// already holding it keep resolving it through Lookup so they can exit.
func (r *Registry) RevokePosition(caller string, id types.PositionID) error {
	if err := r.requireGovernance(caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.positions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPositionDoesNotExist, id)
	}
	pos.Trusted = false
	r.log.Info().Str("position", id.String()).Msg("Position revoked")
	return nil
}

// IsPositionTrusted reports whether id exists and is currently trusted.
func (r *Registry) IsPositionTrusted(id types.PositionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.positions[id]
	return ok && pos.Trusted
}

// Lookup resolves an identifier to its (adaptor, configuration, debt flag)
// tuple. Revoked positions still resolve.
func (r *Registry) Lookup(id types.PositionID) (adaptor.Adaptor, json.RawMessage, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.positions[id]
	if !ok {
		return nil, nil, false, fmt.Errorf("%w: %s", ErrPositionDoesNotExist, id)
	}
	return pos.Adaptor, pos.Config, pos.IsDebt, nil
}

func (r *Registry) requireGovernance(caller string) error {
	if caller != r.governance {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	return nil
}

// assetsTouched prices a configuration: variants listing multiple assets
// are asked directly, everything else is priced on AssetOf alone.
func assetsTouched(ad adaptor.Adaptor, config json.RawMessage) ([]types.Asset, error) {
	if lister, ok := ad.(adaptor.AssetLister); ok {
		return lister.AssetsUsed(config)
	}
	asset, err := ad.AssetOf(config)
	if err != nil {
		return nil, err
	}
	return []types.Asset{asset}, nil
}
