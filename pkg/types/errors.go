package types

import "errors"

// Sentinel errors shared across packages.
var (
	// ErrDryRunDisabled is returned when configuration attempts to disable
	// dry-run mode. The scanner never places real orders.
	ErrDryRunDisabled = errors.New("dry-run must remain enabled")

	// ErrNoMappings is returned at startup when cross-venue scanning is
	// requested without a curated mapping file.
	ErrNoMappings = errors.New("no market mappings defined")

	// ErrMarketNotFound is returned when a venue lookup yields no market.
	ErrMarketNotFound = errors.New("market not found")

	// ErrNotBinary is returned when token resolution meets a market whose
	// outcomes are not a strict Yes/No pair.
	ErrNotBinary = errors.New("market is not a strict yes/no binary")

	// ErrEmptyBook is returned when an orderbook has no ask levels; callers
	// may fall back to metadata prices.
	ErrEmptyBook = errors.New("orderbook has no ask levels")
)
