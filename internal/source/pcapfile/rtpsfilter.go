package pcapfile

import (
	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"
)

// rtpsMagic is "RTPS" read as a big-endian word.
const rtpsMagic = 0x52545053

// rtpsProgram accepts unfragmented Ethernet/IPv4/UDP packets whose payload
// starts with the RTPS protocol magic.
var rtpsProgram = []bpf.Instruction{
	bpf.LoadAbsolute{Off: 12, Size: 2},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(layers.EthernetTypeIPv4), SkipFalse: 8},
	bpf.LoadAbsolute{Off: 23, Size: 1},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(layers.IPProtocolUDP), SkipFalse: 6},
	bpf.LoadAbsolute{Off: 20, Size: 2},
	bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 4},
	bpf.LoadMemShift{Off: 14},
	bpf.LoadIndirect{Off: 14 + 8, Size: 4},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: rtpsMagic, SkipFalse: 1},
	bpf.RetConstant{Val: 0xffff},
	bpf.RetConstant{Val: 0},
}

// rtpsMatcher runs rtpsProgram in the pure Go BPF VM.
type rtpsMatcher struct {
	vm *bpf.VM
}

func newRTPSMatcher() (*rtpsMatcher, error) {
	vm, err := bpf.NewVM(rtpsProgram)
	if err != nil {
		return nil, err
	}
	return &rtpsMatcher{vm: vm}, nil
}

// Match reports whether an Ethernet frame carries RTPS over UDP/IPv4.
func (m *rtpsMatcher) Match(frame []byte) bool {
	n, err := m.vm.Run(frame)
	return err == nil && n > 0
}
