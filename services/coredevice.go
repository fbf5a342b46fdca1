package services

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"idevice/frames"
	"idevice/xpc"
)

const CoreDeviceVersion = "443.18"

// IDGenerator hands out correlation identifiers.
type IDGenerator interface {
	NextID() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) NextID() string {
	return uuid.NewString()
}

// CoreDeviceService invokes CoreDevice features over a RemoteXPC connection.
// The device identifier is fixed for the lifetime of the client; each call gets
// a fresh invocation identifier.
type CoreDeviceService struct {
	conn     xpc.Conn
	ids      IDGenerator
	deviceID string
}

// NewCoreDeviceService expects conn to have finished its handshake. A nil ids uses random UUIDs.
func NewCoreDeviceService(conn xpc.Conn, ids IDGenerator) *CoreDeviceService {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &CoreDeviceService{
		conn:     conn,
		ids:      ids,
		deviceID: ids.NextID(),
	}
}

func (this *CoreDeviceService) DeviceID() string {
	return this.deviceID
}

func (this *CoreDeviceService) envelope(feature string, input frames.Dict) xpc.Dictionary {
	if input == nil {
		input = frames.Dict{}
	}
	return xpc.Dictionary{
		"CoreDevice.CoreDeviceDDIProtocolVersion": xpc.Int64(0),
		"CoreDevice.action":                       xpc.Dictionary{},
		"CoreDevice.coreDeviceVersion":            versionObject(CoreDeviceVersion),
		"CoreDevice.deviceIdentifier":             xpc.String(this.deviceID),
		"CoreDevice.featureIdentifier":            xpc.String(feature),
		"CoreDevice.input":                        xpc.FromDict(input),
		"CoreDevice.invocationIdentifier":         xpc.String(this.ids.NextID()),
	}
}

// Invoke calls feature with input and returns the unwrapped CoreDevice.output.
func (this *CoreDeviceService) Invoke(feature string, input frames.Dict) (frames.Value, error) {
	if this.conn == nil {
		return nil, frames.ErrNoConnection
	}

	if err := this.conn.SendObject(this.envelope(feature, input), true); err != nil {
		return nil, err
	}
	resp, err := this.conn.Recv()
	if err != nil {
		return nil, err
	}

	dict, ok := resp.(xpc.Dictionary)
	if !ok {
		log.Warn().Str("feature", feature).Msg("XPC reply is not a dictionary")
		return nil, frames.Unexpected("%s reply is not a dictionary", feature)
	}
	output, ok := dict["CoreDevice.output"]
	if !ok {
		log.Warn().Str("feature", feature).Msg("XPC reply has no output")
		return nil, frames.Unexpected("%s reply without CoreDevice.output", feature)
	}
	return xpc.ToValue(output)
}

// versionObject splits version on dots. Components that are not unsigned
// integers are dropped and do not count towards originalComponentsCount.
func versionObject(version string) xpc.Dictionary {
	components := xpc.Array{}
	for _, part := range strings.Split(version, ".") {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}
		components = append(components, xpc.UInt64(n))
	}

	return xpc.Dictionary{
		"originalComponentsCount": xpc.Int64(len(components)),
		"components":              components,
		"stringValue":             xpc.String(version),
	}
}
