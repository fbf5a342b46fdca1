package frames

const (
	ProtocolVersion = "2"
)

type LockdownRequest struct {
	Label           string `plist:"Label,omitempty"`
	ProtocolVersion string `plist:"ProtocolVersion,omitempty"`
	Request         string `plist:"Request"`
}

type ValueRequest struct {
	LockdownRequest
	Domain string      `plist:"Domain,omitempty"`
	Key    string      `plist:"Key,omitempty"`
	Value  interface{} `plist:"Value,omitempty"`
}

func CreateLockdownRequest(label string, request string) *LockdownRequest {
	return &LockdownRequest{
		Label:   label,
		Request: request,
	}
}

type StartSessionRequest struct {
	LockdownRequest
	HostID     string `plist:"HostID"`
	SystemBUID string `plist:"SystemBUID"`
}

type StopSessionRequest struct {
	LockdownRequest
	SessionID string `plist:"SessionID"`
}

type StartServiceRequest struct {
	LockdownRequest
	Service string `plist:"Service"`
}

type PairRequest struct {
	LockdownRequest
	PairRecord     *PairRecord            `plist:"PairRecord"`
	PairingOptions map[string]interface{} `plist:"PairingOptions"`
}

// PairRecord is the trust material created by pairing and used for every TLS upgrade.
type PairRecord struct {
	DeviceCertificate []byte `plist:"DeviceCertificate"`
	DevicePublicKey   []byte `plist:"DevicePublicKey,omitempty"`
	EscrowBag         []byte `plist:"EscrowBag,omitempty"`
	HostCertificate   []byte `plist:"HostCertificate"`
	HostPrivateKey    []byte `plist:"HostPrivateKey,omitempty"`
	HostID            string `plist:"HostID"`
	RootCertificate   []byte `plist:"RootCertificate"`
	RootPrivateKey    []byte `plist:"RootPrivateKey"`
	SystemBUID        string `plist:"SystemBUID"`
	WiFiMACAddress    string `plist:"WiFiMACAddress,omitempty"`
}

// ServiceDescriptor is the result of one StartService exchange, consumed right away to dial.
type ServiceDescriptor struct {
	Name        string
	Port        uint16
	RequiresTLS bool
}
