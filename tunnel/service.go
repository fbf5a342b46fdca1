package tunnel

import (
	"io"

	"github.com/rs/zerolog/log"
	"howett.net/plist"

	"idevice/frames"
)

// Service is a length framed plist channel over a device stream.
// Calls are strictly sequential: every reply must be read before the next request.
type Service struct {
	conn io.ReadWriteCloser
}

func GenerateService(c io.ReadWriteCloser) *Service {
	return &Service{conn: c}
}

// SendPackage writes an already encoded body.
func (this *Service) SendPackage(body []byte) error {
	if this.conn == nil {
		return frames.ErrNoConnection
	}
	log.Debug().Int("bytes", len(body)).Msg("send package")
	return frames.WritePackage(this.conn, body)
}

func (this *Service) Send(frame interface{}, format int) error {
	if this.conn == nil {
		return frames.ErrNoConnection
	}

	pkg := &frames.ServicePackage{}
	packageBuf, err := pkg.Pack(frame, format)
	if err != nil {
		return err
	}
	return this.SendPackage(packageBuf[4:])
}

func (this *Service) SendXML(frame interface{}) error {
	return this.Send(frame, plist.XMLFormat)
}

func (this *Service) SendBinary(frame interface{}) error {
	return this.Send(frame, plist.BinaryFormat)
}

func (this *Service) Sync() (*frames.ServicePackage, error) {
	if this.conn == nil {
		return nil, frames.ErrNoConnection
	}

	pkg, err := frames.ReadPackage(this.conn)
	if err != nil {
		return nil, err
	}
	log.Debug().Uint32("bytes", pkg.Length).Msg("recv package")
	return pkg, nil
}

// SyncDict reads one package and requires a dictionary body.
func (this *Service) SyncDict() (frames.Dict, error) {
	pkg, err := this.Sync()
	if err != nil {
		return nil, err
	}
	return pkg.Dict()
}

func (this *Service) Close() error {
	if this.conn == nil {
		return nil
	}
	err := this.conn.Close()
	this.conn = nil
	return err
}
