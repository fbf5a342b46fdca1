package tunnel

import (
	"crypto/tls"
	"errors"
	"io"
	"net"

	"idevice/frames"
)

// DeviceConn is an ordered byte stream to the device that can be upgraded to TLS in place.
// It belongs to exactly one client.
type DeviceConn interface {
	io.ReadWriteCloser
	Handshake(record *frames.PairRecord) error
}

// Dialer opens a fresh DeviceConn to a port on the device.
type Dialer interface {
	Dial(port uint16) (DeviceConn, error)
}

type MixConnection struct {
	conn net.Conn
	ssl  *tls.Conn
}

func MixConnectionClient(conn net.Conn) *MixConnection {
	return &MixConnection{
		conn: conn,
	}
}

// Handshake upgrades the connection with the pairing record's root identity.
func (this *MixConnection) Handshake(record *frames.PairRecord) error {
	if record == nil {
		return errors.New("pair record is nil")
	}

	cert, err := tls.X509KeyPair(record.RootCertificate, record.RootPrivateKey)
	if err != nil {
		return err
	}

	cfg := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS11,
		MaxVersion:         tls.VersionTLS13,
	}

	ssl := tls.Client(this.conn, cfg)
	if err := ssl.Handshake(); err != nil {
		return err
	}
	this.ssl = ssl

	return nil
}

func (this *MixConnection) getConn() net.Conn {
	if this.ssl != nil {
		return this.ssl
	}
	return this.conn
}

func (this *MixConnection) Read(b []byte) (n int, err error) {
	return this.getConn().Read(b)
}

func (this *MixConnection) Write(b []byte) (n int, err error) {
	return this.getConn().Write(b)
}

func (this *MixConnection) Close() error {
	conn := this.getConn()
	this.ssl = nil
	return conn.Close()
}
