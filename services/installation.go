package services

import (
	"github.com/rs/zerolog/log"

	"idevice/frames"
	"idevice/tunnel"
)

type ApplicationType string

const (
	System   = ApplicationType("System")
	User     = ApplicationType("User")
	Internal = ApplicationType("Internal")
	Any      = ApplicationType("Any")
)

type InstallationProxyService struct {
	service *tunnel.Service
}

func NewInstallationProxyService(dialer tunnel.Dialer, record *frames.PairRecord) (*InstallationProxyService, error) {
	serv, err := startService(dialer, InstallationProxyServiceName, record)
	if err != nil {
		return nil, err
	}

	return NewInstallationProxy(serv), nil
}

// NewInstallationProxy wraps an already started installation_proxy service.
func NewInstallationProxy(service *tunnel.Service) *InstallationProxyService {
	return &InstallationProxyService{service: service}
}

func command(name string, options frames.Dict) frames.Dict {
	if options == nil {
		options = frames.Dict{}
	}
	return frames.Dict{
		"Command":       frames.String(name),
		"ClientOptions": options,
	}
}

func (this *InstallationProxyService) request(req frames.Dict) (frames.Dict, error) {
	if err := this.service.SendXML(req); err != nil {
		return nil, err
	}
	return this.service.SyncDict()
}

// GetApps looks up installed apps keyed by bundle id. An empty appType means Any.
func (this *InstallationProxyService) GetApps(appType ApplicationType, bundleIDs []string) (frames.Dict, error) {
	if appType == "" {
		appType = Any
	}
	options := frames.Dict{"ApplicationType": frames.String(appType)}
	if bundleIDs != nil {
		ids := make(frames.Array, len(bundleIDs))
		for i, id := range bundleIDs {
			ids[i] = frames.String(id)
		}
		options["BundleIDs"] = ids
	}

	resp, err := this.request(command("Lookup", options))
	if err != nil {
		return nil, err
	}

	result, ok := resp.GetDict("LookupResult")
	if !ok {
		log.Warn().Msg("Lookup reply without LookupResult")
		return nil, frames.Unexpected("Lookup reply without LookupResult dictionary")
	}
	return result, nil
}

func (this *InstallationProxyService) Install(packagePath string, options frames.Dict, sink ProgressSink) error {
	req := command("Install", options)
	req["PackagePath"] = frames.String(packagePath)
	return this.run(req, sink)
}

func (this *InstallationProxyService) Upgrade(packagePath string, options frames.Dict, sink ProgressSink) error {
	req := command("Upgrade", options)
	req["PackagePath"] = frames.String(packagePath)
	return this.run(req, sink)
}

func (this *InstallationProxyService) Uninstall(bundleID string, options frames.Dict, sink ProgressSink) error {
	req := command("Uninstall", options)
	req["ApplicationIdentifier"] = frames.String(bundleID)
	return this.run(req, sink)
}

func (this *InstallationProxyService) run(req frames.Dict, sink ProgressSink) error {
	if err := this.service.SendXML(req); err != nil {
		return err
	}
	return watchCompletion(this.service, sink)
}

func (this *InstallationProxyService) CheckCapabilitiesMatch(capabilities frames.Array, options frames.Dict) (bool, error) {
	if capabilities == nil {
		capabilities = frames.Array{}
	}
	req := command("CheckCapabilitiesMatch", options)
	req["Capabilities"] = capabilities

	resp, err := this.request(req)
	if err != nil {
		return false, err
	}

	match, ok := resp.GetBool("LookupResult")
	if !ok {
		log.Warn().Msg("CheckCapabilitiesMatch reply without boolean LookupResult")
		return false, frames.Unexpected("CheckCapabilitiesMatch reply without boolean LookupResult")
	}
	return match, nil
}

// Browse lists apps page by page. See browse for how an early end is handled.
func (this *InstallationProxyService) Browse(options frames.Dict) (frames.Array, error) {
	if err := this.service.SendXML(command("Browse", options)); err != nil {
		return nil, err
	}
	return browse(this.service)
}

func (this *InstallationProxyService) Close() error {
	return this.service.Close()
}
