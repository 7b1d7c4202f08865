package pcapfile

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/layers"

	"firestige.xyz/wirechart/internal/core"
)

// Info describes a capture file. RTPSPackets counts the UDP/IPv4 packets
// carrying RTPS and is only filled in for Ethernet captures.
type Info struct {
	Path        string        `json:"path" yaml:"path"`
	Format      string        `json:"format" yaml:"format"`
	LinkType    string        `json:"link_type" yaml:"link_type"`
	Packets     int           `json:"packets" yaml:"packets"`
	RTPSPackets int           `json:"rtps_packets" yaml:"rtps_packets"`
	Bytes       int           `json:"bytes" yaml:"bytes"`
	First       time.Time     `json:"first" yaml:"first"`
	Last        time.Time     `json:"last" yaml:"last"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Probe reads the whole file once and reports its format, link type,
// packet count, RTPS packet count and time span. An empty capture is an error.
func Probe(path string) (Info, error) {
	fs, err := Open(path)
	if err != nil {
		return Info{}, err
	}
	defer fs.Close()

	info := Info{Path: path, Format: fs.Format(), LinkType: fs.LinkType().String()}

	var matcher *rtpsMatcher
	if fs.LinkType() == layers.LinkTypeEthernet {
		if matcher, err = newRTPSMatcher(); err != nil {
			return info, fmt.Errorf("rtps packet filter: %w", err)
		}
	}

	for {
		data, ci, err := fs.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return info, fmt.Errorf("%w: %s: packet %d: %v", core.ErrCaptureFile, path, info.Packets+1, err)
		}
		if info.Packets == 0 {
			info.First = ci.Timestamp
		}
		info.Last = ci.Timestamp
		info.Packets++
		info.Bytes += ci.Length
		if matcher != nil && matcher.Match(data) {
			info.RTPSPackets++
		}
	}

	if info.Packets == 0 {
		return info, fmt.Errorf("%w: %s", core.ErrNoRecords, path)
	}
	info.Duration = info.Last.Sub(info.First)
	return info, nil
}
