package topology

import (
	"fmt"
	"slices"
	"strings"

	"firestige.xyz/wirechart/internal/core"
)

// FormatGUID renders g the way Wireshark's RTPS dissector displays it: a
// colon separated prefix and a hex entity id.
func FormatGUID(g core.GUID) (prefix, entity string) {
	return g.Prefix.Colon(), fmt.Sprintf("%#x", uint32(g.Entity))
}

// Endpoints lists the distinct DataWriters and DataReaders of the edges
// matching filters, each sorted, as "prefix entity" lines.
func Endpoints(idx *Index, filters ...Filter) (writers, readers []string) {
	ws := make(map[string]struct{})
	rs := make(map[string]struct{})
	for _, e := range idx.Elements(filters...) {
		p, id := FormatGUID(e.Src)
		ws[p+" "+id] = struct{}{}
		p, id = FormatGUID(e.Dst)
		rs[p+" "+id] = struct{}{}
	}
	return sortedKeys(ws), sortedKeys(rs)
}

// EndpointReport renders Endpoints as a two section listing.
func EndpointReport(idx *Index, filters ...Filter) string {
	writers, readers := Endpoints(idx, filters...)
	lines := make([]string, 0, len(writers)+len(readers)+3)
	lines = append(lines, "DataWriters")
	lines = append(lines, writers...)
	lines = append(lines, "", "DataReaders")
	lines = append(lines, readers...)
	return strings.Join(lines, "\n")
}

// DisplayFilter builds a Wireshark display filter selecting every edge that
// matches filters. It is empty when nothing matches.
func DisplayFilter(idx *Index, filters ...Filter) string {
	edges := idx.Elements(filters...)
	clauses := make([]string, 0, len(edges))
	for _, e := range edges {
		ps, is := FormatGUID(e.Src)
		pd, id := FormatGUID(e.Dst)
		clauses = append(clauses, fmt.Sprintf(
			"((rtps.guidPrefix.src == %s && rtps.sm.wrEntityId == %s) && (rtps.guidPrefix.dst == %s && rtps.sm.rdEntityId == %s))",
			ps, is, pd, id))
	}
	return strings.Join(clauses, " || ")
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
