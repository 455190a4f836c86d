package service

import (
	"trafficserver/internal/dto"
	"trafficserver/internal/model"
)

// CycleKind classifies the outcome of one inbound device message.
type CycleKind string

const (
	CycleProcessed CycleKind = "processed"
	CycleSkipped   CycleKind = "skipped"
	CycleSensor    CycleKind = "sensor"
	CycleError     CycleKind = "error"
)

// CycleResult is the outcome of handling one device message.
type CycleResult struct {
	Kind       CycleKind
	Detections []model.Detection
	Counts     model.ZoneCounts
	Command    *model.Command

	// ErrKind is dto.ErrorMalformedInput or dto.ErrorModelFailure when Kind
	// is CycleError.
	ErrKind string
	Err     error
}

func errorResult(kind string, err error) CycleResult {
	return CycleResult{Kind: CycleError, ErrKind: kind, Err: err}
}

// Reply returns the message to send back to the device, or nil when the
// device expects no reply.
func (r CycleResult) Reply() interface{} {
	switch r.Kind {
	case CycleProcessed:
		resp := dto.DeviceResponse{
			Detections: dto.NewDetections(r.Detections),
			ZoneCounts: r.Counts,
		}
		if r.Command != nil {
			zone := r.Command.Zone.String()
			resp.Command = &zone
		}
		return resp
	case CycleSkipped:
		return dto.NewSkippedResponse()
	case CycleError:
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		return dto.NewErrorAck(r.ErrKind, msg)
	}
	return nil
}
