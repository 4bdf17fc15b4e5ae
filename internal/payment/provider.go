package payment

import (
	"strings"
)

// EndpointMode is the gateway environment a provider is configured for.
type EndpointMode string

const (
	EndpointLive EndpointMode = "live"
	EndpointTest EndpointMode = "test"
)

// ProviderConfig is the per-event, per-brand configuration read from the
// settings store.
type ProviderConfig struct {
	Enabled          bool
	AccessToken      string
	Endpoint         EndpointMode
	EntityID         string
	EntityIDByMethod map[string]string
	EnabledMethods   map[string]bool
}

// MethodEnabled reports the method_{code} flag.
func (c ProviderConfig) MethodEnabled(code string) bool {
	if c.EnabledMethods == nil {
		return false
	}
	return c.EnabledMethods[strings.ToUpper(code)]
}

// matchesTestmode reports whether the configured endpoint serves orders with
// the given test flag.
func (c ProviderConfig) matchesTestmode(testmode bool) bool {
	if testmode {
		return c.Endpoint == EndpointTest
	}
	return c.Endpoint == EndpointLive
}

// Provider is either the meta provider of a brand (Method == nil), grouping its
// card schemes, or a standalone method provider.
type Provider struct {
	Brand  *Brand
	Method *MethodDescriptor
}

// IsMeta reports whether the provider groups the brand's card schemes.
func (p Provider) IsMeta() bool {
	return p.Method == nil
}

// Identifier returns "brand" for meta providers and "brand_method" otherwise.
func (p Provider) Identifier() string {
	if p.Brand == nil {
		return ""
	}
	if p.IsMeta() {
		return p.Brand.Identifier
	}
	return p.Brand.Identifier + "_" + strings.ToLower(p.Method.Code)
}

// Name is the display name of the provider.
func (p Provider) Name() string {
	if p.Brand == nil {
		return ""
	}
	if p.IsMeta() {
		return p.Brand.Name
	}
	return p.Brand.Name + " " + p.Method.DisplayName
}

// methodKey is the suffix used for entityId_{method} lookups.
func (p Provider) methodKey() string {
	if p.IsMeta() {
		return "scheme"
	}
	return strings.ToLower(p.Method.Code)
}

// IsEnabled checks the _enabled flag together with the method flags. A meta
// provider needs at least one of its schemes enabled.
func (p Provider) IsEnabled(cfg ProviderConfig) bool {
	if !cfg.Enabled || p.Brand == nil {
		return false
	}
	if !p.IsMeta() {
		return cfg.MethodEnabled(p.Method.Code)
	}
	for _, m := range p.Brand.Schemes() {
		if cfg.MethodEnabled(m.Code) {
			return true
		}
	}
	return false
}

// ResolveEntityID returns the entity id to charge against. It fails when the
// configured endpoint does not match the order's test flag.
func (p Provider) ResolveEntityID(cfg ProviderConfig, testmode bool) (string, bool) {
	if !cfg.matchesTestmode(testmode) {
		return "", false
	}
	if id := cfg.EntityIDByMethod[p.methodKey()]; id != "" {
		return id, true
	}
	if cfg.EntityID != "" {
		return cfg.EntityID, true
	}
	return "", false
}

// IsUsable reports whether the provider can take payments for an order with
// the given test flag.
func (p Provider) IsUsable(cfg ProviderConfig, testmode bool) bool {
	if !p.IsEnabled(cfg) {
		return false
	}
	_, ok := p.ResolveEntityID(cfg, testmode)
	return ok
}

// Brands lists the gateway brand codes the hosted widget should display.
func (p Provider) Brands() string {
	if !p.IsMeta() {
		return p.Method.Code
	}
	schemes := p.Brand.Schemes()
	codes := make([]string, 0, len(schemes))
	for _, m := range schemes {
		codes = append(codes, m.Code)
	}
	return strings.Join(codes, " ")
}

// RefundSupported and PartialRefundSupported are true for every OPPWA method.
func (p Provider) RefundSupported() bool        { return true }
func (p Provider) PartialRefundSupported() bool { return true }
