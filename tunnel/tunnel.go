package tunnel

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"howett.net/plist"

	"idevice/frames"
)

// UsbmuxdAddress overrides the platform usbmuxd socket when set.
var UsbmuxdAddress string

const (
	ResultOk          = 0
	ResultBadCommand  = 1
	ResultBadDev      = 2
	ResultCommRefused = 3
	// ???
	// ???
	ResultBadVersion = 6
	ResultUnknown    = 100
)

func getError(num int) error {
	switch num {
	case ResultOk:
		return nil
	case ResultBadCommand:
		return errors.New("BadCommand")
	case ResultBadDev:
		return errors.New("BadDev")
	case ResultCommRefused:
		return errors.New("CommRefused")
	case ResultBadVersion:
		return errors.New("BadVersion")
	default:
		return fmt.Errorf("ErrorCode %d", num)
	}
}

type PlistConnection struct {
	RawConn net.Conn
	version uint32
	tag     uint32
}

func NewPlistConnection() *PlistConnection {
	return &PlistConnection{
		version: 1,
	}
}

func (this *PlistConnection) Close() {
	if this.RawConn != nil {
		_ = this.RawConn.Close()
		this.RawConn = nil
	}
}

func (this *PlistConnection) Dial() error {
	conn, err := RawDial()
	if err != nil {
		return err
	}
	this.RawConn = conn
	return nil
}

func (this *PlistConnection) Send(frame interface{}) error {
	if this.RawConn == nil {
		return frames.ErrNoConnection
	}

	this.tag++
	pkg := &frames.Package{
		Version: this.version,
		Type:    8,
		Tag:     this.tag,
	}

	packageBuf, err := pkg.Pack(frame)
	if err != nil {
		return err
	}

	if _, err := this.RawConn.Write(packageBuf); err != nil {
		return fmt.Errorf("%w: %w", frames.ErrTransport, err)
	}
	return nil
}

func (this *PlistConnection) Sync() (*frames.Package, error) {
	if this.RawConn == nil {
		return nil, frames.ErrNoConnection
	}
	return frames.ReadUsbmuxPackage(this.RawConn)
}

// roundTrip sends one request on a fresh usbmuxd connection and decodes the reply into resp.
func roundTrip(req interface{}, resp interface{}) error {
	conn := NewPlistConnection()
	if err := conn.Dial(); err != nil {
		return err
	}
	defer conn.Close()

	return conn.exchange(req, resp)
}

func (this *PlistConnection) exchange(req interface{}, resp interface{}) error {
	if err := this.Send(req); err != nil {
		return err
	}
	pkg, err := this.Sync()
	if err != nil {
		return err
	}
	return pkg.UnmarshalBody(resp)
}

// Connect asks usbmuxd for a raw stream to port on the device.
func Connect(deviceID int, port uint16) (net.Conn, error) {
	conn := NewPlistConnection()
	if err := conn.Dial(); err != nil {
		return nil, err
	}

	connRequest := &frames.ConnectRequest{
		BaseRequest: *frames.CreateBaseRequest(frames.Connect),
		DeviceID:    deviceID,
		PortNumber:  int(((port << 8) & 0xFF00) | (port >> 8)),
	}

	var result frames.Result
	if err := conn.exchange(connRequest, &result); err != nil {
		conn.Close()
		return nil, err
	}
	if result.Number != ResultOk {
		conn.Close()
		return nil, getError(result.Number)
	}

	return conn.RawConn, nil
}

func ReadBUID() (string, error) {
	var resp frames.BUIDResponse
	if err := roundTrip(frames.CreateBaseRequest(frames.ReadBUID), &resp); err != nil {
		return "", err
	}
	if resp.BUID == "" {
		if resp.Number != ResultOk {
			return "", getError(resp.Number)
		}
		return "", getError(ResultUnknown)
	}
	return resp.BUID, nil
}

func ReadPairRecord(udid string) (*frames.PairRecord, error) {
	req := &frames.PairRecordRequest{
		BaseRequest:  *frames.CreateBaseRequest(frames.ReadPairRecord),
		PairRecordID: udid,
	}

	var m frames.PairRecordResponse
	if err := roundTrip(req, &m); err != nil {
		return nil, err
	}
	if m.Number != ResultOk {
		return nil, getError(m.Number)
	}

	var record frames.PairRecord
	if _, err := plist.Unmarshal(m.PairRecordData, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", frames.ErrEncoding, err)
	}
	return &record, nil
}

// SavePairRecord hands a freshly created record to usbmuxd for storage.
func SavePairRecord(udid string, deviceID int, record *frames.PairRecord) error {
	data, err := plist.Marshal(record, plist.XMLFormat)
	if err != nil {
		return fmt.Errorf("%w: %w", frames.ErrEncoding, err)
	}

	req := &frames.SavePairRecordRequest{
		BaseRequest:    *frames.CreateBaseRequest(frames.SavePairRecord),
		PairRecordID:   udid,
		PairRecordData: data,
		DeviceID:       deviceID,
	}

	var result frames.Result
	if err := roundTrip(req, &result); err != nil {
		return err
	}
	return getError(result.Number)
}

// UsbmuxDialer reaches device ports through usbmuxd.
type UsbmuxDialer struct {
	DeviceID int
}

func (this *UsbmuxDialer) Dial(port uint16) (DeviceConn, error) {
	conn, err := Connect(this.DeviceID, port)
	if err != nil {
		return nil, err
	}
	return MixConnectionClient(conn), nil
}

// NetDialer reaches device ports over a plain network socket.
type NetDialer struct {
	Host    string
	Timeout time.Duration
}

func (this *NetDialer) Dial(port uint16) (DeviceConn, error) {
	d := net.Dialer{Timeout: this.Timeout}
	conn, err := d.Dial("tcp", net.JoinHostPort(this.Host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", frames.ErrTransport, err)
	}
	return MixConnectionClient(conn), nil
}
