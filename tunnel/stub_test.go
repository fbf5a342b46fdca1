package tunnel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"idevice/frames"
)

// stubConn replays scripted device replies and records every request.
type stubConn struct {
	t              *testing.T
	in             bytes.Buffer
	out            bytes.Buffer
	allowHandshake bool
	handshakes     int
	closed         bool
}

func newStubConn(t *testing.T, replies ...frames.Dict) *stubConn {
	t.Helper()
	c := &stubConn{t: t}
	for _, r := range replies {
		b, err := frames.Marshal(r, plist.XMLFormat)
		require.NoError(t, err)
		require.NoError(t, frames.WritePackage(&c.in, b))
	}
	return c
}

func (this *stubConn) Read(b []byte) (int, error)  { return this.in.Read(b) }
func (this *stubConn) Write(b []byte) (int, error) { return this.out.Write(b) }

func (this *stubConn) Close() error {
	this.closed = true
	return nil
}

func (this *stubConn) Handshake(record *frames.PairRecord) error {
	this.handshakes++
	if !this.allowHandshake {
		this.t.Errorf("unexpected TLS upgrade")
	}
	return nil
}

// requests decodes everything the client wrote.
func (this *stubConn) requests() []frames.Dict {
	this.t.Helper()
	var out []frames.Dict
	r := bytes.NewReader(this.out.Bytes())
	for r.Len() > 0 {
		pkg, err := frames.ReadPackage(r)
		require.NoError(this.t, err)
		d, err := pkg.Dict()
		require.NoError(this.t, err)
		out = append(out, d)
	}
	return out
}

func (this *stubConn) rawRequests() [][]byte {
	this.t.Helper()
	var out [][]byte
	r := bytes.NewReader(this.out.Bytes())
	for r.Len() > 0 {
		pkg, err := frames.ReadPackage(r)
		require.NoError(this.t, err)
		out = append(out, pkg.Body)
	}
	return out
}
