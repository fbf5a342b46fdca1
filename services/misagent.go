package services

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"idevice/frames"
	"idevice/tunnel"
)

const provisioningProfileType = "Provisioning"

// MisagentService manages provisioning profiles through the lockdown started misagent.
// Install and Remove succeed on Status 1.
type MisagentService struct {
	service *tunnel.Service
}

func NewMisagentService(dialer tunnel.Dialer, record *frames.PairRecord) (*MisagentService, error) {
	serv, err := startService(dialer, MisagentServiceName, record)
	if err != nil {
		return nil, err
	}
	return NewMisagent(serv), nil
}

func NewMisagent(service *tunnel.Service) *MisagentService {
	return &MisagentService{service: service}
}

func (this *MisagentService) Install(profile []byte) error {
	return expectStatus(this.service, installRequest(profile), 1)
}

func (this *MisagentService) Remove(profileID string) error {
	return expectStatus(this.service, removeRequest(profileID), 1)
}

func (this *MisagentService) CopyAll() ([][]byte, error) {
	return copyAllProfiles(this.service)
}

func (this *MisagentService) Close() error {
	return this.service.Close()
}

// MisagentRSDService is the misagent shim reached over RSD. Install succeeds on
// Status 0, Remove on Status 1.
type MisagentRSDService struct {
	service *tunnel.Service
}

// NewMisagentRSDService checks in on an RSD stream already connected to MisagentRSDServiceName.
func NewMisagentRSDService(conn io.ReadWriteCloser) (*MisagentRSDService, error) {
	service := tunnel.GenerateService(conn)
	if err := rsdCheckin(service, "misagent-rsd"); err != nil {
		return nil, err
	}
	return &MisagentRSDService{service: service}, nil
}

func (this *MisagentRSDService) Install(profile []byte) error {
	return expectStatus(this.service, installRequest(profile), 0)
}

func (this *MisagentRSDService) Remove(profileID string) error {
	return expectStatus(this.service, removeRequest(profileID), 1)
}

func (this *MisagentRSDService) CopyAll() ([][]byte, error) {
	return copyAllProfiles(this.service)
}

func (this *MisagentRSDService) Close() error {
	return this.service.Close()
}

// rsdCheckin performs the RSD entitlement check-in: one request, then the
// RSDCheckin and StartService acknowledgements in that order.
func rsdCheckin(service *tunnel.Service, label string) error {
	req := frames.CreateLockdownRequest(label, "RSDCheckin")
	req.ProtocolVersion = frames.ProtocolVersion
	if err := service.SendBinary(req); err != nil {
		return err
	}

	for _, want := range []string{"RSDCheckin", "StartService"} {
		resp, err := service.SyncDict()
		if err != nil {
			return err
		}
		if got, _ := resp.GetString("Request"); got != want {
			log.Warn().Str("service", MisagentRSDServiceName).Str("want", want).Str("got", got).Msg("unexpected RSD check-in reply")
			return frames.Unexpected("check-in reply Request %q, want %q", got, want)
		}
	}
	return nil
}

func profileRequest(messageType string) frames.Dict {
	return frames.Dict{
		"MessageType": frames.String(messageType),
		"ProfileType": frames.String(provisioningProfileType),
	}
}

func installRequest(profile []byte) frames.Dict {
	req := profileRequest("Install")
	req["Profile"] = frames.Data(profile)
	return req
}

func removeRequest(profileID string) frames.Dict {
	req := profileRequest("Remove")
	req["ProfileID"] = frames.String(profileID)
	return req
}

func misagentRequest(service *tunnel.Service, req frames.Dict) (frames.Dict, error) {
	if err := service.SendXML(req); err != nil {
		return nil, err
	}
	return service.SyncDict()
}

func expectStatus(service *tunnel.Service, req frames.Dict, success int64) error {
	resp, err := misagentRequest(service, req)
	if err != nil {
		return err
	}

	status, ok := resp.GetInt("Status")
	if !ok {
		log.Warn().Msg("misagent reply without integer Status")
		return frames.Unexpected("misagent reply without integer Status")
	}
	if status != success {
		return &frames.ServiceError{Service: "misagent", Message: fmt.Sprintf("status %d", status)}
	}
	return nil
}

func copyAllProfiles(service *tunnel.Service) ([][]byte, error) {
	resp, err := misagentRequest(service, profileRequest("CopyAll"))
	if err != nil {
		return nil, err
	}

	payload, ok := resp.GetArray("Payload")
	if !ok {
		log.Warn().Msg("CopyAll reply without Payload array")
		return nil, frames.Unexpected("CopyAll reply without Payload array")
	}

	profiles := make([][]byte, 0, len(payload))
	for _, p := range payload {
		data, ok := p.(frames.Data)
		if !ok {
			log.Warn().Str("kind", p.Kind().String()).Msg("CopyAll payload entry is not data")
			return nil, frames.Unexpected("CopyAll payload entry is %s, want data", p.Kind())
		}
		profiles = append(profiles, data)
	}
	return profiles, nil
}
