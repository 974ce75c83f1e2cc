package driver

import (
	"context"

	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Diagnostic commands served by EchoDriver.
const (
	// CmdEcho returns the request wrapped in an EchoReply.
	CmdEcho int32 = 0

	// CmdEchoEvent raises the request as an event to every listener of the
	// endpoint and replies like CmdEcho.
	CmdEchoEvent int32 = 1
)

// EchoEventID is the event id used by CmdEchoEvent.
const EchoEventID uint32 = 0xEC40

// EchoRequest is the CBOR payload of a diagnostic echo.
type EchoRequest struct {
	Seq     uint32 `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint,omitempty"`
	Data    []byte `cbor:"3,keyasint,omitempty"`
}

// EchoReply is the CBOR reply of a diagnostic echo.
type EchoReply struct {
	Result wire.Status `cbor:"1,keyasint"`
	Echo   EchoRequest `cbor:"2,keyasint"`
}

// EchoDriver is a diagnostic driver that echoes CBOR requests back.
type EchoDriver struct {
	endpoint *Endpoint
}

// PublishEcho publishes an EchoDriver on h.
func PublishEcho(h *Host, name, class string) (*Endpoint, error) {
	d := &EchoDriver{}
	ep, err := h.Publish(name, class, d)
	if err != nil {
		return nil, err
	}
	d.endpoint = ep
	return ep, nil
}

// Dispatch implements Dispatcher.
func (d *EchoDriver) Dispatch(_ context.Context, _ *Service, cmdID int32, req, reply *pbuf.PBuf) error {
	if cmdID != CmdEcho && cmdID != CmdEchoEvent {
		return wire.Errorf(wire.StatusNotSupport, "echo cmd %d", cmdID)
	}
	if req == nil || reply == nil {
		return wire.Errorf(wire.StatusNullPointer, "echo needs request and reply")
	}

	var in EchoRequest
	if err := req.ReadCBOR(&in); err != nil {
		return err
	}

	if cmdID == CmdEchoEvent {
		if d.endpoint == nil {
			return wire.Errorf(wire.StatusInvalidObject, "echo driver not published")
		}
		ev := pbuf.ObtainDefault()
		defer ev.Recycle()
		if err := ev.WriteCBOR(in); err != nil {
			return err
		}
		if err := d.endpoint.Notify(EchoEventID, ev.Bytes()); err != nil {
			return err
		}
	}

	return reply.WriteCBOR(EchoReply{Result: wire.StatusSuccess, Echo: in})
}
