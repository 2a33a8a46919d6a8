package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Pool endpoints
	PoolEndpoint = "/pool" // GET: pool configuration and current root

	NullifierURLParam = "nullifier"                               // URL parameter for a nullifier hash
	AddressURLParam   = "address"                                 // URL parameter for an address
	NullifierEndpoint = "/nullifiers/{" + NullifierURLParam + "}" // GET: nullifier spent status
	BalanceEndpoint   = "/balances/{" + AddressURLParam + "}"     // GET: ledger balance of an address
	RelayerEndpoint   = "/relayers/{" + AddressURLParam + "}"     // GET: relayer rate limit state

	// Settlement endpoints
	DepositsEndpoint    = "/deposits"    // POST: signed deposit
	WithdrawalsEndpoint = "/withdrawals" // POST: withdrawal with proof

	// Event endpoints
	CommitmentEventsEndpoint = "/events/commitments" // GET: committed deposit events
	SettlementEventsEndpoint = "/events/settlements" // GET: committed withdrawal events

	// Admin endpoints, every request is signed by the pool authority
	AdminEndpoint         = "/admin"
	AdminVerifierEndpoint = AdminEndpoint + "/verifier" // POST: set verifier mode and magic
	AdminDenyListEndpoint = AdminEndpoint + "/denylist" // POST: add, DELETE: remove
	AdminPauseEndpoint    = AdminEndpoint + "/pause"    // POST: pause or resume withdrawals
	AdminRootEndpoint     = AdminEndpoint + "/root"     // POST: overwrite the pool root
	AdminChunksEndpoint   = AdminEndpoint + "/chunks"   // POST: provision a nullifier chunk
	AdminRelayersEndpoint = AdminEndpoint + "/relayers" // POST: register a relayer
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
