// Package core defines core types with zero external dependencies.
package core

import "strings"

// FrameType classifies a frame by the writer that produced it.
type FrameType uint8

const (
	FrameUnset          FrameType = 0
	FrameUserData       FrameType = 0x01
	FrameDiscovery      FrameType = 0x02
	FrameMetaData       FrameType = 0x04
	FrameRoutingService FrameType = 0x08
)

var frameTypeNames = []struct {
	flag FrameType
	name string
}{
	{FrameUserData, "USER_DATA"},
	{FrameDiscovery, "DISCOVERY"},
	{FrameMetaData, "META_DATA"},
	{FrameRoutingService, "ROUTING_SERVICE"},
}

// Has reports whether every bit of flag is set.
func (t FrameType) Has(flag FrameType) bool {
	return flag != 0 && t&flag == flag
}

// IsUserDataOnly reports whether the frame carries user data and nothing else.
func (t FrameType) IsUserDataOnly() bool {
	return t == FrameUserData
}

func (t FrameType) String() string {
	if t == FrameUnset {
		return "UNSET"
	}
	parts := make([]string, 0, 2)
	for _, n := range frameTypeNames {
		if t&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Well-known RTPS builtin entity ids.
const (
	EntityIDSPDPParticipantWriter         EntityID = 0x000100c2
	EntityIDSEDPPublicationsWriter        EntityID = 0x000003c2
	EntityIDSEDPSubscriptionsWriter       EntityID = 0x000004c2
	EntityIDSEDPPublicationsSecureWriter  EntityID = 0xff0003c2
	EntityIDSEDPSubscriptionsSecureWriter EntityID = 0xff0004c2
	EntityIDP2PParticipantMessageWriter   EntityID = 0x000200c2
	EntityIDRTIServiceRequestWriter       EntityID = 0x00020082
	EntityIDRTIServiceRequestReader       EntityID = 0x00020087
)

// ServiceKindRoutingService is the service_kind parameter value announced by
// routing service participants.
const ServiceKindRoutingService uint32 = 0x3

var discoveryWriters = map[EntityID]struct{}{
	EntityIDSPDPParticipantWriter:         {},
	EntityIDSEDPPublicationsWriter:        {},
	EntityIDSEDPSubscriptionsWriter:       {},
	EntityIDSEDPPublicationsSecureWriter:  {},
	EntityIDSEDPSubscriptionsSecureWriter: {},
}

// IsDiscoveryWriter reports whether id belongs to a participant or endpoint
// discovery writer.
func IsDiscoveryWriter(id EntityID) bool {
	_, ok := discoveryWriters[id]
	return ok
}

// IsServiceRequest reports whether id belongs to service-request traffic,
// which is excluded from analysis entirely.
func IsServiceRequest(id EntityID) bool {
	return id == EntityIDRTIServiceRequestWriter || id == EntityIDRTIServiceRequestReader
}

// ClassifyFrame derives the frame type from the writer entity id and the
// service kind parameter.
func ClassifyFrame(writer EntityID, serviceKind uint32, hasServiceKind bool) FrameType {
	t := FrameUnset
	if hasServiceKind && serviceKind == ServiceKindRoutingService {
		t |= FrameRoutingService
	}
	switch {
	case IsDiscoveryWriter(writer):
		t |= FrameDiscovery
	case writer == EntityIDP2PParticipantMessageWriter:
		t |= FrameMetaData
	default:
		t |= FrameUserData
	}
	return t
}
