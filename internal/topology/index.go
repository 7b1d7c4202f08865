// Package topology keeps the writer to reader graph of a capture, indexed
// by (topic, domain).
package topology

import (
	"cmp"
	"slices"
	"strconv"

	"firestige.xyz/wirechart/internal/core"
)

// Key is a concrete (topic, domain) pair. Wildcards exist only in queries.
type Key struct {
	Topic  string
	Domain int
}

func (k Key) String() string {
	return k.Topic + "@" + strconv.Itoa(k.Domain)
}

func compareKeys(a, b Key) int {
	if c := cmp.Compare(a.Topic, b.Topic); c != 0 {
		return c
	}
	return cmp.Compare(a.Domain, b.Domain)
}

// Edge is one observed writer to reader flow.
type Edge struct {
	Src core.GUID `json:"src" yaml:"src"`
	Dst core.GUID `json:"dst" yaml:"dst"`
}

func compareEdges(a, b Edge) int {
	if c := a.Src.Compare(b.Src); c != 0 {
		return c
	}
	return a.Dst.Compare(b.Dst)
}

// EdgeSet is an unordered set of edges.
type EdgeSet map[Edge]struct{}

// Add inserts e and reports whether it was new.
func (s EdgeSet) Add(e Edge) bool {
	if _, ok := s[e]; ok {
		return false
	}
	s[e] = struct{}{}
	return true
}

// Contains reports whether e is in the set.
func (s EdgeSet) Contains(e Edge) bool {
	_, ok := s[e]
	return ok
}

// Sorted returns the edges ordered by source then destination GUID.
func (s EdgeSet) Sorted() []Edge {
	out := make([]Edge, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	slices.SortFunc(out, compareEdges)
	return out
}

// Filter narrows a query to one topic, one domain, or both. No filter
// matches every key.
type Filter func(*match)

type match struct {
	topic     string
	domain    int
	hasTopic  bool
	hasDomain bool
}

// WithTopic restricts a query to topic.
func WithTopic(topic string) Filter {
	return func(m *match) {
		m.topic = topic
		m.hasTopic = true
	}
}

// WithDomain restricts a query to domain.
func WithDomain(domain int) Filter {
	return func(m *match) {
		m.domain = domain
		m.hasDomain = true
	}
}

func newMatch(filters []Filter) match {
	var m match
	for _, f := range filters {
		f(&m)
	}
	return m
}

func (m match) matches(k Key) bool {
	return (!m.hasTopic || k.Topic == m.topic) && (!m.hasDomain || k.Domain == m.domain)
}

// Index maps (topic, domain) to an edge set. The by-topic and by-domain
// indices are maintained on insert so partial-key queries never scan.
type Index struct {
	entries  map[Key]EdgeSet
	byTopic  map[string]map[int]struct{}
	byDomain map[int]map[string]struct{}
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		entries:  make(map[Key]EdgeSet),
		byTopic:  make(map[string]map[int]struct{}),
		byDomain: make(map[int]map[string]struct{}),
	}
}

// Len returns the number of stored keys.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Set stores value under (topic, domain), replacing any previous set.
func (idx *Index) Set(topic string, domain int, value EdgeSet) {
	k := Key{Topic: topic, Domain: domain}
	if value == nil {
		value = make(EdgeSet)
	}
	idx.entries[k] = value
	idx.link(k)
}

// AddEdge inserts e under (topic, domain) and reports whether it was new.
func (idx *Index) AddEdge(topic string, domain int, e Edge) bool {
	k := Key{Topic: topic, Domain: domain}
	set, ok := idx.entries[k]
	if !ok {
		set = make(EdgeSet)
		idx.entries[k] = set
		idx.link(k)
	}
	return set.Add(e)
}

func (idx *Index) link(k Key) {
	domains, ok := idx.byTopic[k.Topic]
	if !ok {
		domains = make(map[int]struct{})
		idx.byTopic[k.Topic] = domains
	}
	domains[k.Domain] = struct{}{}

	topics, ok := idx.byDomain[k.Domain]
	if !ok {
		topics = make(map[string]struct{})
		idx.byDomain[k.Domain] = topics
	}
	topics[k.Topic] = struct{}{}
}

// Get returns the edge set stored under the exact key.
func (idx *Index) Get(topic string, domain int) (EdgeSet, bool) {
	set, ok := idx.entries[Key{Topic: topic, Domain: domain}]
	return set, ok
}

// ByTopic returns the edge sets of topic keyed by domain.
func (idx *Index) ByTopic(topic string) map[int]EdgeSet {
	out := make(map[int]EdgeSet, len(idx.byTopic[topic]))
	for d := range idx.byTopic[topic] {
		out[d] = idx.entries[Key{Topic: topic, Domain: d}]
	}
	return out
}

// ByDomain returns the edge sets of domain keyed by topic.
func (idx *Index) ByDomain(domain int) map[string]EdgeSet {
	out := make(map[string]EdgeSet, len(idx.byDomain[domain]))
	for t := range idx.byDomain[domain] {
		out[t] = idx.entries[Key{Topic: t, Domain: domain}]
	}
	return out
}

// All returns every stored key and its edge set.
func (idx *Index) All() map[Key]EdgeSet {
	out := make(map[Key]EdgeSet, len(idx.entries))
	for k, v := range idx.entries {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys matching filters, ordered by topic then domain.
func (idx *Index) Keys(filters ...Filter) []Key {
	m := newMatch(filters)
	var keys []Key
	switch {
	case m.hasTopic && m.hasDomain:
		if _, ok := idx.entries[Key{Topic: m.topic, Domain: m.domain}]; ok {
			keys = append(keys, Key{Topic: m.topic, Domain: m.domain})
		}
	case m.hasTopic:
		for d := range idx.byTopic[m.topic] {
			keys = append(keys, Key{Topic: m.topic, Domain: d})
		}
	case m.hasDomain:
		for t := range idx.byDomain[m.domain] {
			keys = append(keys, Key{Topic: t, Domain: m.domain})
		}
	default:
		for k := range idx.entries {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// KeyPresent reports whether any stored key matches filters.
func (idx *Index) KeyPresent(filters ...Filter) bool {
	m := newMatch(filters)
	switch {
	case m.hasTopic && m.hasDomain:
		_, ok := idx.entries[Key{Topic: m.topic, Domain: m.domain}]
		return ok
	case m.hasTopic:
		return len(idx.byTopic[m.topic]) > 0
	case m.hasDomain:
		return len(idx.byDomain[m.domain]) > 0
	default:
		return len(idx.entries) > 0
	}
}

// RelatedDomains returns the domains topic was observed in, ascending.
func (idx *Index) RelatedDomains(topic string) []int {
	out := make([]int, 0, len(idx.byTopic[topic]))
	for d := range idx.byTopic[topic] {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// RelatedTopics returns the topics observed in domain, ascending.
func (idx *Index) RelatedTopics(domain int) []string {
	out := make([]string, 0, len(idx.byDomain[domain]))
	for t := range idx.byDomain[domain] {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// MostNodes ranks the keys matching filters by edge count, largest first, and
// returns at most topN of them. Ties keep key order.
func (idx *Index) MostNodes(topN int, filters ...Filter) []Key {
	keys := idx.Keys(filters...)
	slices.SortStableFunc(keys, func(a, b Key) int {
		return cmp.Compare(len(idx.entries[b]), len(idx.entries[a]))
	})
	if topN >= 0 && len(keys) > topN {
		keys = keys[:topN]
	}
	return keys
}

// Elements returns the union of the edge sets matching filters, sorted.
func (idx *Index) Elements(filters ...Filter) []Edge {
	union := make(EdgeSet)
	for _, k := range idx.Keys(filters...) {
		for e := range idx.entries[k] {
			union.Add(e)
		}
	}
	return union.Sorted()
}

// ToDict serializes the index domain-major: domain -> topic -> sorted edges.
// Domains are rendered as strings so the result encodes as a JSON object.
func (idx *Index) ToDict() map[string]map[string][]Edge {
	out := make(map[string]map[string][]Edge)
	for k, set := range idx.entries {
		d := strconv.Itoa(k.Domain)
		topics, ok := out[d]
		if !ok {
			topics = make(map[string][]Edge)
			out[d] = topics
		}
		topics[k.Topic] = set.Sorted()
	}
	return out
}
