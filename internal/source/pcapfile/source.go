// Package pcapfile opens capture files with gopacket's pure Go readers and
// checks them before they are handed to the decoder.
package pcapfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/wirechart/internal/core"
)

// Capture file formats.
const (
	FormatPcap   = "pcap"
	FormatPcapNG = "pcapng"
)

const (
	magicMicros        = 0xa1b2c3d4
	magicMicrosSwapped = 0xd4c3b2a1
	magicNanos         = 0xa1b23c4d
	magicNanosSwapped  = 0x4d3cb2a1
	magicSectionHeader = 0x0a0d0d0a
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// FileSource reads packets from a pcap or pcapng file.
type FileSource struct {
	path   string
	format string
	file   *os.File
	reader packetReader
}

// Open opens path and detects its format from the leading magic number.
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCaptureFile, err)
	}

	br := bufio.NewReader(f)
	head, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: too short", core.ErrCaptureFile, path)
	}

	fs := &FileSource{path: path, file: f}
	switch binary.BigEndian.Uint32(head) {
	case magicMicros, magicMicrosSwapped, magicNanos, magicNanosSwapped:
		fs.format = FormatPcap
		fs.reader, err = pcapgo.NewReader(br)
	case magicSectionHeader:
		fs.format = FormatPcapNG
		fs.reader, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	default:
		err = errors.New("not a pcap or pcapng file")
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", core.ErrCaptureFile, path, err)
	}
	return fs, nil
}

// Format returns FormatPcap or FormatPcapNG.
func (fs *FileSource) Format() string {
	return fs.format
}

// ReadPacket returns the next packet, io.EOF at the end of the file.
func (fs *FileSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	if fs.reader == nil {
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("file source closed")
	}
	data, ci, err := fs.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("failed to read packet: %w", err)
	}
	return data, ci, nil
}

// LinkType returns the link type of the capture.
func (fs *FileSource) LinkType() layers.LinkType {
	if fs.reader == nil {
		return layers.LinkTypeEthernet
	}
	return fs.reader.LinkType()
}

// Close releases the file.
func (fs *FileSource) Close() error {
	fs.reader = nil
	if fs.file != nil {
		err := fs.file.Close()
		fs.file = nil
		return err
	}
	return nil
}
