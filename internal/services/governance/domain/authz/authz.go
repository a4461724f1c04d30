// Package authz resolves privileged capabilities for callers.
//
// Capabilities are checked by the engine at the start of every command,
// before any state is read. Deciders only see the resolved grant set and
// never inspect tokens or static tables themselves.
package authz

import (
	"context"
	"sort"
	"strings"
)

// Capability names a privileged operation class.
type Capability string

const (
	CapabilitySlash                Capability = "slash"
	CapabilityEmergency            Capability = "emergency"
	CapabilityActivateOrganization Capability = "activate_organization"
	CapabilityTreasury             Capability = "treasury"
	CapabilityReputationOracle     Capability = "reputation_oracle"
	CapabilityPropose              Capability = "propose"
)

var knownCapabilities = map[Capability]struct{}{
	CapabilitySlash:                {},
	CapabilityEmergency:            {},
	CapabilityActivateOrganization: {},
	CapabilityTreasury:             {},
	CapabilityReputationOracle:     {},
	CapabilityPropose:              {},
}

// ParseCapability normalizes a capability name.
func ParseCapability(value string) (Capability, bool) {
	c := Capability(strings.ToLower(strings.TrimSpace(value)))
	_, ok := knownCapabilities[c]
	return c, ok
}

// Grants is the set of capabilities held by a caller for one command.
type Grants map[Capability]struct{}

// NewGrants builds a grant set from capabilities.
func NewGrants(capabilities ...Capability) Grants {
	g := make(Grants, len(capabilities))
	for _, c := range capabilities {
		g[c] = struct{}{}
	}
	return g
}

// Has reports whether the capability is granted. A nil set grants nothing.
func (g Grants) Has(c Capability) bool {
	if g == nil {
		return false
	}
	_, ok := g[c]
	return ok
}

// Merge returns the union of g and other.
func (g Grants) Merge(other Grants) Grants {
	out := make(Grants, len(g)+len(other))
	for c := range g {
		out[c] = struct{}{}
	}
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

// List returns the granted capabilities in sorted order.
func (g Grants) List() []Capability {
	out := make([]Capability, 0, len(g))
	for c := range g {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Principal identifies the caller being authorized.
type Principal struct {
	AccountID string
	// Token is an optional signed capability token presented by the caller.
	Token string
}

// Authorizer resolves the capabilities held by a principal.
type Authorizer interface {
	Grants(ctx context.Context, principal Principal) (Grants, error)
}

// Chain unions the grants of several authorizers. The first error aborts.
type Chain []Authorizer

// Grants implements Authorizer.
func (c Chain) Grants(ctx context.Context, principal Principal) (Grants, error) {
	out := Grants{}
	for _, a := range c {
		if a == nil {
			continue
		}
		g, err := a.Grants(ctx, principal)
		if err != nil {
			return nil, err
		}
		out = out.Merge(g)
	}
	return out, nil
}

// Deny grants nothing to anyone.
type Deny struct{}

// Grants implements Authorizer.
func (Deny) Grants(context.Context, Principal) (Grants, error) {
	return Grants{}, nil
}
