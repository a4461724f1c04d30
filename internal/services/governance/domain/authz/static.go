package authz

import (
	"context"
	"fmt"
	"strings"
)

// StaticAuthorizer grants fixed capabilities per account.
type StaticAuthorizer struct {
	grants map[string]Grants
}

// NewStaticAuthorizer builds a static authorizer from an account → capabilities table.
func NewStaticAuthorizer(table map[string][]Capability) *StaticAuthorizer {
	grants := make(map[string]Grants, len(table))
	for account, caps := range table {
		account = strings.TrimSpace(account)
		if account == "" {
			continue
		}
		grants[account] = grants[account].Merge(NewGrants(caps...))
	}
	return &StaticAuthorizer{grants: grants}
}

// ParseStaticGrants parses "acct=slash|emergency;acct2=treasury".
func ParseStaticGrants(raw string) (map[string][]Capability, error) {
	table := map[string][]Capability{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return table, nil
	}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		account, list, ok := strings.Cut(entry, "=")
		account = strings.TrimSpace(account)
		if !ok || account == "" {
			return nil, fmt.Errorf("authority entry %q must be account=capabilities", entry)
		}
		for _, name := range strings.Split(list, "|") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			c, known := ParseCapability(name)
			if !known {
				return nil, fmt.Errorf("authority entry %q: unknown capability %q", entry, name)
			}
			table[account] = append(table[account], c)
		}
	}
	return table, nil
}

// Grant adds capabilities to an account at runtime.
func (s *StaticAuthorizer) Grant(account string, caps ...Capability) {
	if s.grants == nil {
		s.grants = map[string]Grants{}
	}
	s.grants[account] = s.grants[account].Merge(NewGrants(caps...))
}

// Grants implements Authorizer.
func (s *StaticAuthorizer) Grants(_ context.Context, principal Principal) (Grants, error) {
	if s == nil {
		return Grants{}, nil
	}
	account := strings.TrimSpace(principal.AccountID)
	if account == "" {
		return Grants{}, nil
	}
	return Grants{}.Merge(s.grants[account]), nil
}
