package rtps

import (
	"fmt"
	"net/netip"
	"strings"

	"firestige.xyz/wirechart/internal/core"
)

// Frame is one reconstructed RTPS frame.
type Frame struct {
	Number   int
	DomainID int
	IPSrc    netip.Addr // invalid when the decoder reported none
	IPDst    netip.Addr
	GUIDSrc  core.GUID
	GUIDDst  core.GUID // zero when absent
	Type     core.FrameType
	// Submessages are pointers so the analysis pass can reclassify in place.
	Submessages []*Submessage
}

// HasDst reports whether the frame has a destination GUID.
func (f *Frame) HasDst() bool {
	return !f.GUIDDst.IsZero()
}

// Topic returns the first topic carried by the frame's submessages.
func (f *Frame) Topic() string {
	for _, sm := range f.Submessages {
		if sm.Topic != "" {
			return sm.Topic
		}
	}
	return ""
}

// AnnouncedTopics returns the topics a discovery frame advertises. Non
// discovery frames announce nothing.
func (f *Frame) AnnouncedTopics() []string {
	if !f.Type.Has(core.FrameDiscovery) {
		return nil
	}
	var topics []string
	seen := make(map[string]struct{})
	for _, sm := range f.Submessages {
		if sm.Topic == "" {
			continue
		}
		if _, ok := seen[sm.Topic]; ok {
			continue
		}
		seen[sm.Topic] = struct{}{}
		topics = append(topics, sm.Topic)
	}
	return topics
}

// ContainsSubmessage reports whether any submessage has exactly type t.
func (f *Frame) ContainsSubmessage(t SubmessageType) bool {
	for _, sm := range f.Submessages {
		if sm.Type == t {
			return true
		}
	}
	return false
}

// TotalLength sums the submessage lengths, which equals the frame length.
func (f *Frame) TotalLength() int {
	total := 0
	for _, sm := range f.Submessages {
		total += sm.Length
	}
	return total
}

func (f *Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Frame: %09d GUID_SRC: %s Frame Type: %s\n  Submessages (%d):",
		f.Number, f.GUIDSrc.Prefix, f.Type, len(f.Submessages))
	for i, sm := range f.Submessages {
		fmt.Fprintf(&b, "\n    %d %s", i+1, sm)
	}
	b.WriteString("\n")
	return b.String()
}
