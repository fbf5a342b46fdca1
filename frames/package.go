package frames

import (
	"encoding/binary"
	"fmt"
	"io"

	"howett.net/plist"
)

// ServicePackage is one big endian length prefixed service message.
// The declared length is trusted; there is no upper bound.
type ServicePackage struct {
	Length uint32
	Body   []byte
}

type flusher interface {
	Flush() error
}

// WritePackage writes the length header and body in one write and flushes w when it buffers.
func WritePackage(w io.Writer, body []byte) error {
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)

	if _, err := w.Write(buf); err != nil {
		return transportError(err)
	}
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return transportError(err)
		}
	}
	return nil
}

// ReadPackage reads exactly one package. A short read never yields a partial body.
func ReadPackage(r io.Reader) (*ServicePackage, error) {
	var l [4]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return nil, transportError(err)
	}

	pkg := &ServicePackage{Length: binary.BigEndian.Uint32(l[:])}
	pkg.Body = make([]byte, pkg.Length)
	if _, err := io.ReadFull(r, pkg.Body); err != nil {
		return nil, transportError(err)
	}
	return pkg, nil
}

// Pack marshals body with the given plist format and prepends the length header.
func (this *ServicePackage) Pack(body interface{}, format int) ([]byte, error) {
	b, err := marshalFrame(body, format)
	if err != nil {
		return nil, err
	}
	this.Length = uint32(len(b))
	this.Body = b

	buf := make([]byte, 4, 4+len(b))
	binary.BigEndian.PutUint32(buf, this.Length)
	return append(buf, b...), nil
}

func (this *ServicePackage) UnmarshalBody(out interface{}) error {
	if _, err := plist.Unmarshal(this.Body, out); err != nil {
		return encodingError(err)
	}
	return nil
}

// Dict decodes the body as a dictionary.
func (this *ServicePackage) Dict() (Dict, error) {
	return UnmarshalDict(this.Body)
}

func (this *ServicePackage) String() string {
	return string(this.Body)
}

func marshalFrame(body interface{}, format int) ([]byte, error) {
	if v, ok := body.(Value); ok {
		return Marshal(v, format)
	}
	b, err := plist.Marshal(body, format)
	if err != nil {
		return nil, encodingError(err)
	}
	return b, nil
}

// Package is a usbmuxd packet: a 16 byte little endian header followed by an XML plist.
type Package struct {
	Length  uint32
	Version uint32
	Type    uint32
	Tag     uint32
	Body    []byte
}

func (this *Package) Pack(body interface{}) ([]byte, error) {
	b, err := marshalFrame(body, plist.XMLFormat)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 16, 16+len(b))
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(b)+16))
	binary.LittleEndian.PutUint32(buf[4:], this.Version)
	binary.LittleEndian.PutUint32(buf[8:], this.Type)
	binary.LittleEndian.PutUint32(buf[12:], this.Tag)
	return append(buf, b...), nil
}

func (this *Package) String() string {
	return fmt.Sprintf("Length: %d Version: %d Type: %d Tag: %d\nBody: %s",
		this.Length, this.Version, this.Type, this.Tag,
		this.Body)
}

func (this *Package) UnmarshalBody(out interface{}) error {
	if _, err := plist.Unmarshal(this.Body, out); err != nil {
		return encodingError(err)
	}
	return nil
}

// ReadUsbmuxPackage reads one usbmuxd packet.
func ReadUsbmuxPackage(r io.Reader) (*Package, error) {
	var header [16]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, transportError(err)
	}

	pkg := &Package{
		Length:  binary.LittleEndian.Uint32(header[0:4]),
		Version: binary.LittleEndian.Uint32(header[4:8]),
		Type:    binary.LittleEndian.Uint32(header[8:12]),
		Tag:     binary.LittleEndian.Uint32(header[12:16]),
	}
	if pkg.Length < 16 {
		return nil, encodingError(fmt.Errorf("usbmux length %d shorter than header", pkg.Length))
	}

	pkg.Body = make([]byte, pkg.Length-16)
	if _, err := io.ReadFull(r, pkg.Body); err != nil {
		return nil, transportError(err)
	}
	return pkg, nil
}
