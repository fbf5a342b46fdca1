//go:build !windows

package tunnel

import "net"

const defaultUsbmuxdAddress = "/var/run/usbmuxd"

func RawDial() (net.Conn, error) {
	if UsbmuxdAddress != "" {
		return net.Dial("unix", UsbmuxdAddress)
	}
	return net.Dial("unix", defaultUsbmuxdAddress)
}
