package addressintel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
)

// ParseAddress normalizes a single address or CIDR entry into a prefix.
// The address part is parsed on its own; a valid suffix is re-applied and the
// prefix masked, a bare address becomes a /32 or /128.
func ParseAddress(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	host, bitsText, hasBits := strings.Cut(entry, "/")

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("parse address %q: %w", entry, err)
	}
	addr = addr.WithZone("")

	bits := addr.BitLen()
	if hasBits {
		bits, err = strconv.Atoi(bitsText)
		if err != nil || bits < 0 || bits > addr.BitLen() {
			return netip.Prefix{}, fmt.Errorf("parse address %q: invalid prefix length", entry)
		}
	}

	if addr.Is4In6() {
		if bits < 96 {
			return netip.Prefix{}, fmt.Errorf("parse address %q: mapped prefix shorter than /96", entry)
		}
		addr = addr.Unmap()
		bits -= 96
	}

	return netip.PrefixFrom(addr, bits).Masked(), nil
}

// parseEntries parses every entry and drops the malformed ones.
func parseEntries(entries []string) (prefixes []netip.Prefix, skipped int) {
	prefixes = make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		pfx, err := ParseAddress(entry)
		if err != nil {
			skipped++
			continue
		}
		prefixes = append(prefixes, pfx)
	}
	return prefixes, skipped
}

// maxFeedLine bounds a single feed line. Longer lines are skipped.
const maxFeedLine = 4096

// parseFeed reads a plain-text list: one address or CIDR per line.
// Lines starting with # or ; are comments, as are trailing "; note" parts.
// Malformed and over-long lines are skipped; err is only set when reading
// fails, and the prefixes parsed up to that point are still returned.
func parseFeed(r io.Reader) (prefixes []netip.Prefix, skipped int, err error) {
	br := bufio.NewReaderSize(r, maxFeedLine)
	for {
		raw, isPrefix, rerr := br.ReadLine()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return prefixes, skipped, nil
			}
			return prefixes, skipped, rerr
		}
		if isPrefix {
			skipped++
			for isPrefix {
				if _, isPrefix, rerr = br.ReadLine(); rerr != nil {
					break
				}
			}
			continue
		}

		line := strings.TrimSpace(string(raw))
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if idx := strings.IndexAny(line, ";#"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}
		// Some lists separate columns with whitespace.
		if fields := strings.Fields(line); len(fields) > 1 {
			line = fields[0]
		}

		pfx, perr := ParseAddress(line)
		if perr != nil {
			skipped++
			continue
		}
		prefixes = append(prefixes, pfx)
	}
}
