//go:build windows

package tunnel

import "net"

const defaultUsbmuxdAddress = "localhost:27015"

func RawDial() (net.Conn, error) {
	if UsbmuxdAddress != "" {
		return net.Dial("tcp", UsbmuxdAddress)
	}
	return net.Dial("tcp", defaultUsbmuxdAddress)
}
