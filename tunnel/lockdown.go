package tunnel

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"idevice/frames"
)

const (
	LockdownPort = 62078
)

// LockdownConnection speaks the lockdownd session protocol: values, sessions and service discovery.
type LockdownConnection struct {
	conn      DeviceConn
	service   *Service
	label     string
	sessionID string
	authority CertificateAuthority
	sleep     func(time.Duration)
}

func NewLockdownConnection(conn DeviceConn) *LockdownConnection {
	return &LockdownConnection{
		conn:      conn,
		service:   GenerateService(conn),
		label:     frames.BundleID,
		authority: DefaultAuthority{},
		sleep:     time.Sleep,
	}
}

func LockdownDial(dialer Dialer) (*LockdownConnection, error) {
	conn, err := dialer.Dial(LockdownPort)
	if err != nil {
		return nil, err
	}
	return NewLockdownConnection(conn), nil
}

func (this *LockdownConnection) SetLabel(label string) {
	this.label = label
}

func (this *LockdownConnection) SetCertificateAuthority(ca CertificateAuthority) {
	this.authority = ca
}

func (this *LockdownConnection) send(req interface{}) error {
	if this.conn == nil {
		return frames.ErrNoConnection
	}
	return this.service.SendXML(req)
}

// readResponse reads one reply and turns a lockdownd Error field into a Go error.
func (this *LockdownConnection) readResponse() (frames.Dict, error) {
	resp, err := this.service.SyncDict()
	if err != nil {
		return nil, err
	}
	if e, ok := resp.GetString("Error"); ok {
		return nil, lockdownError(e)
	}
	return resp, nil
}

func lockdownError(e string) error {
	if e == "PairingDialogResponsePending" {
		return frames.ErrPairingDialogResponsePending
	}
	return &frames.ServiceError{Service: "lockdown", Message: e}
}

func (this *LockdownConnection) request(req interface{}) (frames.Dict, error) {
	if err := this.send(req); err != nil {
		return nil, err
	}
	return this.readResponse()
}

func (this *LockdownConnection) QueryType() (string, error) {
	resp, err := this.request(frames.CreateLockdownRequest(this.label, "QueryType"))
	if err != nil {
		return "", err
	}
	t, ok := resp.GetString("Type")
	if !ok {
		return "", frames.Unexpected("QueryType reply without Type")
	}
	return t, nil
}

// GetValue reads key from domain. An empty domain means the global one.
func (this *LockdownConnection) GetValue(key string, domain string) (frames.Value, error) {
	req := &frames.ValueRequest{
		LockdownRequest: *frames.CreateLockdownRequest(this.label, "GetValue"),
		Domain:          domain,
		Key:             key,
	}

	resp, err := this.request(req)
	if err != nil {
		return nil, err
	}

	v, ok := resp["Value"]
	if !ok {
		log.Warn().Str("key", key).Msg("GetValue reply has no Value")
		return nil, frames.Unexpected("GetValue %q reply without Value", key)
	}
	return v, nil
}

func (this *LockdownConnection) GetAllValues(domain string) (frames.Dict, error) {
	req := &frames.ValueRequest{
		LockdownRequest: *frames.CreateLockdownRequest(this.label, "GetValue"),
		Domain:          domain,
	}

	resp, err := this.request(req)
	if err != nil {
		return nil, err
	}

	v, ok := resp.GetDict("Value")
	if !ok {
		log.Warn().Str("domain", domain).Msg("GetValue reply has no Value dictionary")
		return nil, frames.Unexpected("GetValue reply without Value dictionary")
	}
	return v, nil
}

// SetValue writes key. Any reply counts as an acknowledgement.
func (this *LockdownConnection) SetValue(key string, value frames.Value, domain string) error {
	pv, err := frames.ToPlist(value)
	if err != nil {
		return err
	}

	req := &frames.ValueRequest{
		LockdownRequest: *frames.CreateLockdownRequest(this.label, "SetValue"),
		Domain:          domain,
		Key:             key,
		Value:           pv,
	}

	if err := this.send(req); err != nil {
		return err
	}
	_, err = this.service.Sync()
	return err
}

func (this *LockdownConnection) GetStringValue(key string) (string, error) {
	v, err := this.GetValue(key, "")
	if err != nil {
		return "", err
	}
	s, ok := v.(frames.String)
	if !ok {
		return "", frames.Unexpected("%s is %s, want string", key, v.Kind())
	}
	return string(s), nil
}

func (this *LockdownConnection) UniqueDeviceID() (string, error) {
	return this.GetStringValue("UniqueDeviceID")
}

func (this *LockdownConnection) DeviceName() (string, error) {
	return this.GetStringValue("DeviceName")
}

func (this *LockdownConnection) DeviceClass() (string, error) {
	return this.GetStringValue("DeviceClass")
}

func (this *LockdownConnection) ProductVersion() (string, error) {
	return this.GetStringValue("ProductVersion")
}

// StartSession asks for a session and upgrades the connection to TLS with record.
// The device must answer EnableSessionSSL=true; nothing else triggers the upgrade.
func (this *LockdownConnection) StartSession(record *frames.PairRecord) error {
	if this.conn == nil {
		return frames.ErrNoConnection
	}
	if record == nil {
		return errors.New("pair record is nil")
	}

	req := &frames.StartSessionRequest{
		LockdownRequest: *frames.CreateLockdownRequest(this.label, "StartSession"),
		HostID:          record.HostID,
		SystemBUID:      record.SystemBUID,
	}

	resp, err := this.request(req)
	if err != nil {
		return err
	}

	enable, ok := resp.GetBool("EnableSessionSSL")
	if !ok || !enable {
		log.Warn().Msg("StartSession reply did not enable session SSL")
		return frames.Unexpected("EnableSessionSSL missing or false")
	}

	if err := this.conn.Handshake(record); err != nil {
		return fmt.Errorf("%w: session handshake: %w", frames.ErrTransport, err)
	}
	this.sessionID, _ = resp.GetString("SessionID")

	return nil
}

func (this *LockdownConnection) StopSession() error {
	if this.sessionID == "" {
		return nil
	}

	req := &frames.StopSessionRequest{
		LockdownRequest: *frames.CreateLockdownRequest(this.label, "StopSession"),
		SessionID:       this.sessionID,
	}

	if _, err := this.request(req); err != nil {
		return err
	}

	this.sessionID = ""
	return nil
}

// StartService resolves identifier to a port. Dialing it, and the TLS upgrade when
// RequiresTLS is set, is up to the caller and needs a started session first.
func (this *LockdownConnection) StartService(identifier string) (*frames.ServiceDescriptor, error) {
	req := &frames.StartServiceRequest{
		LockdownRequest: frames.LockdownRequest{Request: "StartService"},
		Service:         identifier,
	}

	resp, err := this.request(req)
	if err != nil {
		return nil, err
	}

	// over USB the flag is usually absent
	ssl, _ := resp.GetBool("EnableServiceSSL")

	port, ok := resp.GetUint("Port")
	if !ok {
		log.Warn().Str("service", identifier).Msg("StartService reply without an unsigned Port")
		return nil, frames.Unexpected("StartService %q reply without unsigned Port", identifier)
	}
	if port > math.MaxUint16 {
		log.Warn().Uint64("port", port).Msg("StartService port out of range")
		return nil, frames.Unexpected("port %d out of range", port)
	}

	return &frames.ServiceDescriptor{
		Name:        identifier,
		Port:        uint16(port),
		RequiresTLS: ssl,
	}, nil
}

func (this *LockdownConnection) Close() error {
	if this.conn == nil {
		return nil
	}
	if this.sessionID != "" {
		_ = this.StopSession()
	}

	err := this.conn.Close()
	this.conn = nil
	this.service = GenerateService(nil)
	return err
}
