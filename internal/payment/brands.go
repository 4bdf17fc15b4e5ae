package payment

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MethodKind distinguishes card schemes grouped under the meta provider from
// methods that are providers of their own.
type MethodKind int

const (
	KindScheme MethodKind = iota
	KindStandalone
)

func (k MethodKind) String() string {
	if k == KindScheme {
		return "scheme"
	}
	return "standalone"
}

// MethodDescriptor describes one payment method a brand offers.
type MethodDescriptor struct {
	Code        string
	Kind        MethodKind
	DisplayName string
}

// Brand is one reseller flavour of the OPPWA platform.
type Brand struct {
	Identifier string
	Name       string
	// UniqueEntityID means one entity id serves all methods; otherwise card
	// schemes are configured under entityId_scheme.
	UniqueEntityID bool
	// HasNotify registers the server-to-server notify route.
	HasNotify bool
	Methods   []MethodDescriptor
}

// Schemes returns the brand's card scheme methods.
func (b *Brand) Schemes() []MethodDescriptor {
	var out []MethodDescriptor
	for _, m := range b.Methods {
		if m.Kind == KindScheme {
			out = append(out, m)
		}
	}
	return out
}

// EntityIDSettingKey is the settings key the merchant fills in for card schemes.
func (b *Brand) EntityIDSettingKey() string {
	if b.UniqueEntityID {
		return "entityId"
	}
	return "entityId_scheme"
}

// Providers returns the meta provider followed by one provider per standalone method.
func (b *Brand) Providers() []Provider {
	providers := []Provider{{Brand: b}}
	for i := range b.Methods {
		if b.Methods[i].Kind == KindStandalone {
			providers = append(providers, Provider{Brand: b, Method: &b.Methods[i]})
		}
	}
	return providers
}

// Registry maps brand identifiers to their static method tables.
type Registry struct {
	mu     sync.RWMutex
	brands map[string]*Brand
}

func NewRegistry() *Registry {
	return &Registry{brands: make(map[string]*Brand)}
}

// Register adds a brand. Identifiers must be unique and must not contain '_'.
func (r *Registry) Register(b *Brand) error {
	if b == nil || b.Identifier == "" {
		return fmt.Errorf("brand identifier is required")
	}
	if strings.Contains(b.Identifier, "_") {
		return fmt.Errorf("brand identifier %q must not contain '_'", b.Identifier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.brands[b.Identifier]; exists {
		return fmt.Errorf("brand %q already registered", b.Identifier)
	}
	r.brands[b.Identifier] = b
	return nil
}

// Get returns the brand with the given identifier.
func (r *Registry) Get(identifier string) (*Brand, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.brands[identifier]
	return b, ok
}

// All returns registered brands sorted by identifier.
func (r *Registry) All() []*Brand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Brand, 0, len(r.brands))
	for _, b := range r.brands {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Provider resolves a provider identifier such as "vrpay" or "vrpay_paypal".
func (r *Registry) Provider(identifier string) (Provider, bool) {
	brandID, methodCode, hasMethod := strings.Cut(identifier, "_")
	b, ok := r.Get(brandID)
	if !ok {
		return Provider{}, false
	}
	if !hasMethod {
		return Provider{Brand: b}, true
	}
	for i := range b.Methods {
		m := &b.Methods[i]
		if m.Kind == KindStandalone && strings.EqualFold(m.Code, methodCode) {
			return Provider{Brand: b, Method: m}, true
		}
	}
	return Provider{}, false
}

func cardSchemes() []MethodDescriptor {
	return []MethodDescriptor{
		{Code: "VISA", Kind: KindScheme, DisplayName: "Visa"},
		{Code: "MASTER", Kind: KindScheme, DisplayName: "Mastercard"},
		{Code: "AMEX", Kind: KindScheme, DisplayName: "American Express"},
	}
}

// DefaultRegistry returns the registry with every supported brand.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	_ = r.Register(&Brand{
		Identifier:     "oppwa",
		Name:           "OPPWA",
		UniqueEntityID: true,
		HasNotify:      true,
		Methods: append(cardSchemes(),
			MethodDescriptor{Code: "PAYPAL", Kind: KindStandalone, DisplayName: "PayPal"},
			MethodDescriptor{Code: "SOFORTUEBERWEISUNG", Kind: KindStandalone, DisplayName: "Sofort"},
			MethodDescriptor{Code: "GIROPAY", Kind: KindStandalone, DisplayName: "giropay"},
			MethodDescriptor{Code: "APPLEPAY", Kind: KindStandalone, DisplayName: "Apple Pay"},
			MethodDescriptor{Code: "GOOGLEPAY", Kind: KindStandalone, DisplayName: "Google Pay"},
		),
	})

	_ = r.Register(&Brand{
		Identifier:     "vrpay",
		Name:           "VR Payment",
		UniqueEntityID: false,
		HasNotify:      true,
		Methods: append(cardSchemes(),
			MethodDescriptor{Code: "PAYPAL", Kind: KindStandalone, DisplayName: "PayPal"},
			MethodDescriptor{Code: "SOFORTUEBERWEISUNG", Kind: KindStandalone, DisplayName: "Sofort"},
			MethodDescriptor{Code: "GIROPAY", Kind: KindStandalone, DisplayName: "giropay"},
			MethodDescriptor{Code: "DIRECTDEBIT_SEPA", Kind: KindStandalone, DisplayName: "SEPA Direct Debit"},
		),
	})

	_ = r.Register(&Brand{
		Identifier:     "hobex",
		Name:           "Hobex",
		UniqueEntityID: true,
		HasNotify:      false,
		Methods: []MethodDescriptor{
			{Code: "VISA", Kind: KindScheme, DisplayName: "Visa"},
			{Code: "MASTER", Kind: KindScheme, DisplayName: "Mastercard"},
			{Code: "MAESTRO", Kind: KindScheme, DisplayName: "Maestro"},
			{Code: "EPS", Kind: KindStandalone, DisplayName: "eps-Überweisung"},
		},
	})

	return r
}
