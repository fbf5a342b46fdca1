package frames

const (
	ProgramName      = "idevice"
	ClientVersion    = "idevice-1.0"
	BundleID         = "idevice"
	LibUSBMuxVersion = 3
)

const (
	Connect        = "Connect"
	ReadBUID       = "ReadBUID"
	ReadPairRecord = "ReadPairRecord"
	SavePairRecord = "SavePairRecord"
)

type (
	BaseRequest struct {
		MessageType         string `plist:"MessageType"`
		BundleID            string `plist:"BundleID"`
		LibUSBMuxVersion    int    `plist:"kLibUSBMuxVersion,omitempty"`
		ClientVersionString string `plist:"ClientVersionString"`
		ProgramName         string `plist:"ProgName"`
	}

	ConnectRequest struct {
		BaseRequest
		DeviceID   int `plist:"DeviceID"`
		PortNumber int `plist:"PortNumber"`
	}

	Result struct {
		MessageType string `plist:"MessageType"`
		Number      int    `plist:"Number"`
	}

	BUIDResponse struct {
		Result
		BUID string `plist:"BUID"`
	}

	PairRecordRequest struct {
		BaseRequest
		PairRecordID string `plist:"PairRecordID"`
	}

	SavePairRecordRequest struct {
		BaseRequest
		PairRecordID   string `plist:"PairRecordID"`
		PairRecordData []byte `plist:"PairRecordData"`
		DeviceID       int    `plist:"DeviceID,omitempty"`
	}

	PairRecordResponse struct {
		Result
		PairRecordData []byte `plist:"PairRecordData"`
	}
)

func CreateBaseRequest(mt string) *BaseRequest {
	return &BaseRequest{
		MessageType:         mt,
		BundleID:            BundleID,
		ClientVersionString: ClientVersion,
		ProgramName:         ProgramName,
		LibUSBMuxVersion:    LibUSBMuxVersion,
	}
}
