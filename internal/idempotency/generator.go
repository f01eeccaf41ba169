package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope represents the scope of idempotency
type Scope string

const (
	// ScopeInvoiceFinalize covers invoice finalization by subscription+period
	ScopeInvoiceFinalize Scope = "invoice_finalize"
	// ScopeWebhook covers inbound provider webhook deliveries
	ScopeWebhook Scope = "webhook"
	// ScopeAPIRequest covers client-supplied API idempotency keys
	ScopeAPIRequest Scope = "api_request"
	// ScopeUsage covers usage ingestion deduplication
	ScopeUsage Scope = "usage"
)

// Generator generates idempotency keys
type Generator struct{}

// NewGenerator creates a new idempotency key generator
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey generates an idempotency key from a scope and parameters
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	// Sort params for consistent hashing
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:8]))
}

// ScopedKey builds the scope key for a caller-supplied idempotency key
func ScopedKey(scope Scope, key string) string {
	return fmt.Sprintf("%s:%s", scope, key)
}
