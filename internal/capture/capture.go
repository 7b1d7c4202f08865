// Package capture holds the ordered frames reconstructed from one capture
// file and the summaries derived from them.
package capture

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/rtps"
)

// Capture is append-only while records are ingested and read-only afterwards.
// Frames keep arrival order.
type Capture struct {
	frames []*rtps.Frame
	// byTopic maps a submessage topic to the positions of the frames carrying it.
	byTopic map[string]*roaring.Bitmap
}

// Summary is the headline description of a capture.
type Summary struct {
	Frames       int      `json:"frames" yaml:"frames"`
	Participants int      `json:"participants" yaml:"participants"`
	Writers      int      `json:"writers" yaml:"writers"`
	Readers      int      `json:"readers" yaml:"readers"`
	Topics       []string `json:"topics" yaml:"topics"`
}

// New creates an empty capture.
func New() *Capture {
	return &Capture{byTopic: make(map[string]*roaring.Bitmap)}
}

// Add appends f.
func (c *Capture) Add(f *rtps.Frame) {
	pos := uint32(len(c.frames))
	c.frames = append(c.frames, f)
	for _, sm := range f.Submessages {
		if sm.Topic == "" {
			continue
		}
		bm, ok := c.byTopic[sm.Topic]
		if !ok {
			bm = roaring.New()
			c.byTopic[sm.Topic] = bm
		}
		bm.Add(pos)
	}
}

// Frames returns the frames in arrival order. Callers must not modify the slice.
func (c *Capture) Frames() []*rtps.Frame {
	return c.frames
}

// Len returns the number of frames.
func (c *Capture) Len() int {
	return len(c.frames)
}

// Topics returns the topics announced by discovery frames, sorted.
func (c *Capture) Topics() []string {
	seen := make(map[string]struct{})
	for _, f := range c.frames {
		for _, t := range f.AnnouncedTopics() {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// FramesForTopic returns the frames with at least one submessage attributed
// to topic, in arrival order.
func (c *Capture) FramesForTopic(topic string) []*rtps.Frame {
	bm, ok := c.byTopic[topic]
	if !ok {
		return nil
	}
	out := make([]*rtps.Frame, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, c.frames[it.Next()])
	}
	return out
}

// TopicFrameCount returns how many frames carry topic.
func (c *Capture) TopicFrameCount(topic string) int {
	bm, ok := c.byTopic[topic]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// FramesForTopics returns the frames carrying any of topics, in arrival order.
func (c *Capture) FramesForTopics(topics ...string) []*rtps.Frame {
	bms := make([]*roaring.Bitmap, 0, len(topics))
	for _, t := range topics {
		if bm, ok := c.byTopic[t]; ok {
			bms = append(bms, bm)
		}
	}
	if len(bms) == 0 {
		return nil
	}
	union := roaring.FastOr(bms...)
	out := make([]*rtps.Frame, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		out = append(out, c.frames[it.Next()])
	}
	return out
}

// CountParticipants counts the distinct GUID prefixes sending discovery.
func (c *Capture) CountParticipants() int {
	participants := make(map[core.GUIDPrefix]struct{})
	for _, f := range c.frames {
		if f.Type.Has(core.FrameDiscovery) {
			participants[f.GUIDSrc.Prefix] = struct{}{}
		}
	}
	return len(participants)
}

// CountWritersAndReaders counts distinct source and destination GUIDs.
// Discovery endpoints are left out unless includeBuiltin is set.
func (c *Capture) CountWritersAndReaders(includeBuiltin bool) (writers, readers int) {
	ws := make(map[core.GUID]struct{})
	rs := make(map[core.GUID]struct{})
	for _, f := range c.frames {
		if !includeBuiltin && f.Type.Has(core.FrameDiscovery) {
			continue
		}
		ws[f.GUIDSrc] = struct{}{}
		if f.HasDst() {
			rs[f.GUIDDst] = struct{}{}
		}
	}
	return len(ws), len(rs)
}

// Summary collects the headline numbers of the capture.
func (c *Capture) Summary(includeBuiltin bool) Summary {
	writers, readers := c.CountWritersAndReaders(includeBuiltin)
	return Summary{
		Frames:       len(c.frames),
		Participants: c.CountParticipants(),
		Writers:      writers,
		Readers:      readers,
		Topics:       c.Topics(),
	}
}
