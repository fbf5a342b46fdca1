package services

import (
	"fmt"

	"idevice/frames"
	"idevice/tunnel"
)

const (
	InstallationProxyServiceName = "com.apple.mobile.installation_proxy"
	MisagentServiceName          = "com.apple.misagent"
	MisagentRSDServiceName       = "com.apple.misagent.shim.remote"
	AppServiceName               = "com.apple.coredevice.appservice"
)

// Discover starts a session on lockdown and resolves name to a port.
func Discover(lockdown *tunnel.LockdownConnection, name string, record *frames.PairRecord) (*frames.ServiceDescriptor, error) {
	if err := lockdown.StartSession(record); err != nil {
		return nil, err
	}
	return lockdown.StartService(name)
}

// DialService opens the port in desc, upgrading to TLS when the device asked for it.
func DialService(dialer tunnel.Dialer, desc *frames.ServiceDescriptor, record *frames.PairRecord) (*tunnel.Service, error) {
	conn, err := dialer.Dial(desc.Port)
	if err != nil {
		return nil, err
	}
	if desc.RequiresTLS {
		if err := conn.Handshake(record); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %s handshake: %w", frames.ErrTransport, desc.Name, err)
		}
	}
	return tunnel.GenerateService(conn), nil
}

func startService(dialer tunnel.Dialer, name string, record *frames.PairRecord) (*tunnel.Service, error) {
	lockdown, err := tunnel.LockdownDial(dialer)
	if err != nil {
		return nil, err
	}
	defer lockdown.Close()

	desc, err := Discover(lockdown, name, record)
	if err != nil {
		return nil, err
	}
	return DialService(dialer, desc, record)
}
