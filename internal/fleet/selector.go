// Package fleet turns declarative advisor-group configuration into a
// running fleet: it parses group entries, expands product selectors,
// delegates to factories for spec minting, and supervises the actors.
package fleet

import (
	"strings"

	"keel/internal/pkg/symbol"
)

// Selector is a parsed product filter: space-separated tokens, unioned.
//
//	*               all products
//	venue           all products on that venue
//	venue.symbol    a single product
//
// An empty selector matches nothing.
type Selector []string

func ParseSelector(expr string) Selector {
	return Selector(strings.Fields(strings.ToLower(expr)))
}

func (s Selector) Match(p symbol.Product) bool {
	for _, token := range s {
		if token == "*" {
			return true
		}
		if strings.Contains(token, ".") {
			if symbol.Parse(token) == p {
				return true
			}
			continue
		}
		if token == p.VenueID {
			return true
		}
	}
	return false
}

// Filter returns the products matched by the selector, preserving the
// input order.
func (s Selector) Filter(products []symbol.Product) []symbol.Product {
	if len(s) == 0 {
		return nil
	}
	var out []symbol.Product
	for _, p := range products {
		if s.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
