package tunnel

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"howett.net/plist"

	"idevice/frames"
)

// PairRetryInterval is the wait between Pair attempts while the trust dialog is open.
var PairRetryInterval = time.Second

// Pair creates a pairing record and submits it until the user answers the trust dialog.
// The record is not persisted.
func (this *LockdownConnection) Pair(hostID string, systemBUID string) (*frames.PairRecord, error) {
	pub, err := this.GetValue("DevicePublicKey", "")
	if err != nil {
		return nil, err
	}
	pubKey, ok := pub.(frames.Data)
	if !ok {
		log.Warn().Str("kind", pub.Kind().String()).Msg("DevicePublicKey is not data")
		return nil, frames.Unexpected("DevicePublicKey is %s, want data", pub.Kind())
	}

	wifi, err := this.GetValue("WiFiAddress", "")
	if err != nil {
		return nil, err
	}
	wifiMac, ok := wifi.(frames.String)
	if !ok {
		log.Warn().Str("kind", wifi.Kind().String()).Msg("WiFiAddress is not a string")
		return nil, frames.Unexpected("WiFiAddress is %s, want string", wifi.Kind())
	}

	certs, err := this.authority.GenerateCertificates(pubKey)
	if err != nil {
		return nil, err
	}

	record := &frames.PairRecord{
		DevicePublicKey:   pubKey,
		DeviceCertificate: certs.DeviceCertificate,
		HostCertificate:   certs.HostCertificate,
		HostID:            hostID,
		RootCertificate:   certs.HostCertificate,
		RootPrivateKey:    certs.PrivateKey,
		WiFiMACAddress:    string(wifiMac),
		SystemBUID:        systemBUID,
	}

	req := &frames.PairRequest{
		LockdownRequest: frames.LockdownRequest{
			Label:           this.label,
			ProtocolVersion: frames.ProtocolVersion,
			Request:         "Pair",
		},
		PairRecord: record,
		PairingOptions: map[string]interface{}{
			"ExtendedPairingErrors": true,
		},
	}

	body, err := plist.Marshal(req, plist.XMLFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", frames.ErrEncoding, err)
	}

	for {
		if this.conn == nil {
			return nil, frames.ErrNoConnection
		}
		if err := this.service.SendPackage(body); err != nil {
			return nil, err
		}

		resp, err := this.readResponse()
		switch {
		case err == nil:
			record.HostPrivateKey = certs.PrivateKey
			if escrow, ok := resp.GetData("EscrowBag"); ok {
				record.EscrowBag = escrow
			}
			return record, nil
		case errors.Is(err, frames.ErrPairingDialogResponsePending):
			log.Info().Msg("waiting for the trust dialog on the device")
			this.sleep(PairRetryInterval)
		default:
			return nil, err
		}
	}
}
