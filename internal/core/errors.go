package core

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// Record structure errors (StructuralReject)
	ErrInvalidRecord       = errors.New("wirechart: invalid record")
	ErrMissingGUIDPrefix   = errors.New("wirechart: missing guid prefix")
	ErrInvalidGUIDPrefix   = errors.New("wirechart: invalid guid prefix")
	ErrMalformedPacket     = errors.New("wirechart: malformed packet")
	ErrServiceRequestFrame = errors.New("wirechart: service request frame")
	ErrInvalidEntityID     = errors.New("wirechart: invalid entity id")
	ErrSeqNumExhausted     = errors.New("wirechart: sequence numbers exhausted")
	ErrNoSubmessages       = errors.New("wirechart: no submessages")

	// Benign skips
	ErrNoAttributableTopic = errors.New("wirechart: no attributable topic")
	ErrRoutingNoise        = errors.New("wirechart: routing noise")

	// Vocabulary gap (ClassificationFailure)
	ErrUnrecognizedSubmessage = errors.New("wirechart: unrecognized submessage")

	// Analysis errors
	ErrMissingSourceGUID = errors.New("wirechart: frame has no source guid")
	ErrNoUserData        = errors.New("wirechart: no user data with associated discovery data")
	ErrNoPriorHeartbeat  = errors.New("wirechart: acknack without a previous heartbeat")

	// Decoder collaborator errors
	ErrNoRecords       = errors.New("wirechart: no records")
	ErrDecoderNotFound = errors.New("wirechart: decoder not found")
	ErrCaptureFile     = errors.New("wirechart: unreadable capture file")

	// Configuration errors
	ErrConfigInvalid = errors.New("wirechart: invalid configuration")
)

// ErrorClass is the handling category of an error.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	// ClassStructuralReject drops the record, counts it and logs at low severity.
	ClassStructuralReject
	// ClassBenignSkip drops the record; the record carried nothing to analyze.
	ClassBenignSkip
	// ClassClassificationFailure drops the record and logs loudly: the
	// submessage vocabulary has a gap.
	ClassClassificationFailure
	// ClassFatalPrecondition aborts the analysis pass.
	ClassFatalPrecondition
	// ClassRecoverableGap is logged and otherwise ignored.
	ClassRecoverableGap
)

func (c ErrorClass) String() string {
	switch c {
	case ClassStructuralReject:
		return "structural_reject"
	case ClassBenignSkip:
		return "benign_skip"
	case ClassClassificationFailure:
		return "classification_failure"
	case ClassFatalPrecondition:
		return "fatal_precondition"
	case ClassRecoverableGap:
		return "recoverable_gap"
	default:
		return "unknown"
	}
}

// Classify maps err onto its handling category.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrUnrecognizedSubmessage):
		return ClassClassificationFailure
	case errors.Is(err, ErrNoAttributableTopic), errors.Is(err, ErrRoutingNoise):
		return ClassBenignSkip
	case errors.Is(err, ErrMissingSourceGUID), errors.Is(err, ErrNoUserData):
		return ClassFatalPrecondition
	case errors.Is(err, ErrNoPriorHeartbeat):
		return ClassRecoverableGap
	case errors.Is(err, ErrInvalidRecord),
		errors.Is(err, ErrMissingGUIDPrefix),
		errors.Is(err, ErrInvalidGUIDPrefix),
		errors.Is(err, ErrMalformedPacket),
		errors.Is(err, ErrServiceRequestFrame),
		errors.Is(err, ErrInvalidEntityID),
		errors.Is(err, ErrSeqNumExhausted),
		errors.Is(err, ErrNoSubmessages):
		return ClassStructuralReject
	default:
		return ClassUnknown
	}
}
