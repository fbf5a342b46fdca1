package services

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"idevice/frames"
	"idevice/tunnel"
	"idevice/xpc"
)

// scriptedConn replays framed device replies and records what the client wrote.
type scriptedConn struct {
	t          *testing.T
	in         bytes.Buffer
	out        bytes.Buffer
	handshakes int
	closed     bool
}

func newScriptedConn(t *testing.T, replies ...frames.Dict) *scriptedConn {
	t.Helper()
	c := &scriptedConn{t: t}
	for _, r := range replies {
		b, err := frames.Marshal(r, plist.XMLFormat)
		require.NoError(t, err)
		require.NoError(t, frames.WritePackage(&c.in, b))
	}
	return c
}

func (this *scriptedConn) Read(b []byte) (int, error)  { return this.in.Read(b) }
func (this *scriptedConn) Write(b []byte) (int, error) { return this.out.Write(b) }

func (this *scriptedConn) Close() error {
	this.closed = true
	return nil
}

func (this *scriptedConn) Handshake(record *frames.PairRecord) error {
	this.handshakes++
	return nil
}

func (this *scriptedConn) requests() []frames.Dict {
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

func scriptedService(t *testing.T, replies ...frames.Dict) (*tunnel.Service, *scriptedConn) {
	conn := newScriptedConn(t, replies...)
	return tunnel.GenerateService(conn), conn
}

// fakeXPC answers every object with reply(sent).
type fakeXPC struct {
	sent  []xpc.Dictionary
	reply func(sent xpc.Dictionary) xpc.Object
}

func (this *fakeXPC) SendObject(obj xpc.Dictionary, expectsReply bool) error {
	this.sent = append(this.sent, obj)
	return nil
}

func (this *fakeXPC) Recv() (xpc.Object, error) {
	if len(this.sent) == 0 {
		return nil, fmt.Errorf("%w: nothing sent", frames.ErrTransport)
	}
	return this.reply(this.sent[len(this.sent)-1]), nil
}

func (this *fakeXPC) input(i int) frames.Dict {
	v, _ := xpc.ToValue(this.sent[i]["CoreDevice.input"])
	d, _ := v.(frames.Dict)
	return d
}

// replyOutput answers with output wrapped in CoreDevice.output.
func replyOutput(output frames.Value) *fakeXPC {
	return &fakeXPC{reply: func(xpc.Dictionary) xpc.Object {
		return xpc.Dictionary{"CoreDevice.output": xpc.FromValue(output)}
	}}
}

type sequenceIDs struct {
	next int
}

func (this *sequenceIDs) NextID() string {
	this.next++
	return fmt.Sprintf("id-%d", this.next)
}

// fakeDialer hands out prepared connections by port.
type fakeDialer struct {
	conns  map[uint16]*scriptedConn
	dialed []uint16
}

func (this *fakeDialer) Dial(port uint16) (tunnel.DeviceConn, error) {
	this.dialed = append(this.dialed, port)
	conn, ok := this.conns[port]
	if !ok {
		return nil, fmt.Errorf("%w: connection refused on %d", frames.ErrTransport, port)
	}
	return conn, nil
}

// captureLog sends the global logger to a buffer until the test ends.
func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}
