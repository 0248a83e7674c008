package entity

import (
	"fmt"
	"strings"
)

// Collection names one of the insurance record collections that is indexed
// for semantic search.
type Collection string

const (
	Customers Collection = "customers"
	Policies  Collection = "policies"
	Claims    Collection = "claims"
	Documents Collection = "documents"
)

// Collections returns every indexed collection in a stable order.
func Collections() []Collection {
	return []Collection{Customers, Policies, Claims, Documents}
}

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	c := Collection(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Customers, Policies, Claims, Documents:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
}

func (c Collection) String() string { return string(c) }

// Scope is the collection hint a query is routed with.
type Scope string

const (
	ScopeCustomers Scope = "customers"
	ScopePolicies  Scope = "policies"
	ScopeClaims    Scope = "claims"
	ScopeDocuments Scope = "documents"
	ScopeGeneral   Scope = "general"
)

// ParseScope validates a scope name. An empty string means general.
func ParseScope(s string) (Scope, error) {
	sc := Scope(strings.ToLower(strings.TrimSpace(s)))
	switch sc {
	case "":
		return ScopeGeneral, nil
	case ScopeCustomers, ScopePolicies, ScopeClaims, ScopeDocuments, ScopeGeneral:
		return sc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

// Collections returns the collections searched for this scope. General
// searches every collection.
func (s Scope) Collections() []Collection {
	switch s {
	case ScopeCustomers:
		return []Collection{Customers}
	case ScopePolicies:
		return []Collection{Policies}
	case ScopeClaims:
		return []Collection{Claims}
	case ScopeDocuments:
		return []Collection{Documents}
	default:
		return Collections()
	}
}

// CountField is the response key carrying the scope specific match count.
// General queries only report matchCount and get an empty string.
func (s Scope) CountField() string {
	switch s {
	case ScopeCustomers:
		return "similarCustomersCount"
	case ScopePolicies:
		return "similarPoliciesCount"
	case ScopeClaims:
		return "similarClaimsCount"
	case ScopeDocuments:
		return "similarDocumentsCount"
	default:
		return ""
	}
}

func (s Scope) String() string { return string(s) }
