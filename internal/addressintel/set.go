package addressintel

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// SourcePrefixes is the result of one provider fetch.
type SourcePrefixes struct {
	Source   string
	Prefixes []netip.Prefix
}

// AddressSet is an immutable set of prefixes backed by a BART routing table.
// Each prefix remembers the first source that contributed it.
type AddressSet struct {
	table *bart.Table[string]
}

// NewAddressSet builds the union of the given sources. Invalid prefixes are
// ignored. When two sources contain the same prefix the earlier one is kept.
func NewAddressSet(sources ...SourcePrefixes) *AddressSet {
	table := new(bart.Table[string])
	for _, src := range sources {
		for _, pfx := range src.Prefixes {
			if !pfx.IsValid() {
				continue
			}
			pfx = pfx.Masked()
			if _, exists := table.Get(pfx); exists {
				continue
			}
			table.Insert(pfx, src.Source)
		}
	}
	return &AddressSet{table: table}
}

// Match reports whether addr falls inside any prefix and which source listed it.
// IPv4-mapped IPv6 addresses match IPv4 prefixes.
func (s *AddressSet) Match(addr netip.Addr) (string, bool) {
	if s == nil || !addr.IsValid() {
		return "", false
	}
	return s.table.Lookup(addr.Unmap().WithZone(""))
}

func (s *AddressSet) Contains(addr netip.Addr) bool {
	_, ok := s.Match(addr)
	return ok
}

// Len returns the number of distinct prefixes.
func (s *AddressSet) Len() int {
	if s == nil {
		return 0
	}
	return s.table.Size()
}
