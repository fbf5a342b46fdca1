package services

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"howett.net/plist"

	"idevice/frames"
	"idevice/ns"
	"idevice/xpc"
)

const (
	featureListApps      = "com.apple.coredevice.feature.listapps"
	featureLaunchApp     = "com.apple.coredevice.feature.launchapplication"
	featureListProcesses = "com.apple.coredevice.feature.listprocesses"
	featureUninstallApp  = "com.apple.coredevice.feature.uninstallapp"
	featureSendSignal    = "com.apple.coredevice.feature.sendsignaltoprocess"
	featureFetchIcons    = "com.apple.coredevice.feature.fetchappicons"
)

type AppListEntry struct {
	IsRemovable      bool   `plist:"isRemovable" json:"isRemovable" yaml:"isRemovable"`
	Name             string `plist:"name" json:"name" yaml:"name"`
	IsFirstParty     bool   `plist:"isFirstParty" json:"isFirstParty" yaml:"isFirstParty"`
	Path             string `plist:"path" json:"path" yaml:"path"`
	BundleIdentifier string `plist:"bundleIdentifier" json:"bundleIdentifier" yaml:"bundleIdentifier"`
	IsDeveloperApp   bool   `plist:"isDeveloperApp" json:"isDeveloperApp" yaml:"isDeveloperApp"`
	BundleVersion    string `plist:"bundleVersion,omitempty" json:"bundleVersion,omitempty" yaml:"bundleVersion,omitempty"`
	IsInternal       bool   `plist:"isInternal" json:"isInternal" yaml:"isInternal"`
	IsHidden         bool   `plist:"isHidden" json:"isHidden" yaml:"isHidden"`
	IsAppClip        bool   `plist:"isAppClip" json:"isAppClip" yaml:"isAppClip"`
	Version          string `plist:"version,omitempty" json:"version,omitempty" yaml:"version,omitempty"`
}

type ExecutableURL struct {
	Relative string `plist:"relative" json:"relative" yaml:"relative"`
}

type LaunchResponse struct {
	ProcessIdentifierVersion uint32        `plist:"processIdentifierVersion" json:"processIdentifierVersion" yaml:"processIdentifierVersion"`
	PID                      uint32        `plist:"processIdentifier" json:"processIdentifier" yaml:"processIdentifier"`
	ExecutableURL            ExecutableURL `plist:"executableURL" json:"executableURL" yaml:"executableURL"`
	AuditToken               []uint32      `plist:"auditToken" json:"auditToken" yaml:"auditToken"`
}

type ProcessToken struct {
	PID           uint32         `plist:"processIdentifier" json:"processIdentifier" yaml:"processIdentifier"`
	ExecutableURL *ExecutableURL `plist:"executableURL,omitempty" json:"executableURL,omitempty" yaml:"executableURL,omitempty"`
}

type SignalResponse struct {
	Process         ProcessToken `plist:"process" json:"process" yaml:"process"`
	DeviceTimestamp time.Time    `plist:"deviceTimestamp" json:"deviceTimestamp" yaml:"deviceTimestamp"`
	Signal          uint32       `plist:"signal" json:"signal" yaml:"signal"`
}

type IconUUID struct {
	Bytes   []byte   `plist:"NS.uuidbytes"`
	Classes []string `plist:"$classes"`
}

// IconData is the unarchived icon. Data holds a 0x30 byte header, whose width
// and height are float32 pairs at 0x10 and 0x20, followed by RGBA8888 pixels.
type IconData struct {
	Data            []byte   `plist:"data"`
	IconHeight      float64  `plist:"iconSize.height"`
	IconWidth       float64  `plist:"iconSize.width"`
	MinimumHeight   float64  `plist:"minimumSize.height"`
	MinimumWidth    float64  `plist:"minimumSize.width"`
	Classes         []string `plist:"$classes"`
	ValidationToken []byte   `plist:"validationToken"`
	UUID            IconUUID `plist:"uuid"`
}

const (
	iconHeaderSize = 0x30
	maxIconSide    = 4096
)

func iconSide(b []byte) (int, bool) {
	f := math.Float32frombits(binary.LittleEndian.Uint32(b))
	if !(f >= 1 && f <= maxIconSide) {
		return 0, false
	}
	return int(f), true
}

// Image decodes the pixel blob. Sides outside 1..4096 are rejected.
func (this *IconData) Image() (*image.NRGBA, error) {
	if len(this.Data) < iconHeaderSize {
		return nil, fmt.Errorf("%w: icon data of %d bytes has no header", frames.ErrEncoding, len(this.Data))
	}
	width, okWidth := iconSide(this.Data[0x10:])
	height, okHeight := iconSide(this.Data[0x14:])
	if !okWidth || !okHeight {
		return nil, fmt.Errorf("%w: icon size %vx%v out of range", frames.ErrEncoding,
			math.Float32frombits(binary.LittleEndian.Uint32(this.Data[0x10:])),
			math.Float32frombits(binary.LittleEndian.Uint32(this.Data[0x14:])))
	}

	size := width * height * 4
	pixels := this.Data[iconHeaderSize:]
	if len(pixels) < size {
		return nil, fmt.Errorf("%w: %d pixel bytes for %dx%d icon", frames.ErrEncoding, len(pixels), width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels[:size])
	return img, nil
}

// AppListFilter selects which kinds of apps listapps returns.
type AppListFilter struct {
	AppClips  bool
	Removable bool
	Hidden    bool
	Internal  bool
	Default   bool
}

// AppService binds the CoreDevice app features of AppServiceName.
type AppService struct {
	core   *CoreDeviceService
	logger zerolog.Logger
}

func NewAppService(conn xpc.Conn, ids IDGenerator) *AppService {
	return &AppService{
		core:   NewCoreDeviceService(conn, ids),
		logger: log.With().Str("service", AppServiceName).Logger(),
	}
}

// ListApps fails as a whole when any entry does not decode.
func (this *AppService) ListApps(filter AppListFilter) ([]AppListEntry, error) {
	res, err := this.core.Invoke(featureListApps, frames.Dict{
		"includeAppClips":      frames.Bool(filter.AppClips),
		"includeRemovableApps": frames.Bool(filter.Removable),
		"includeHiddenApps":    frames.Bool(filter.Hidden),
		"includeInternalApps":  frames.Bool(filter.Internal),
		"includeDefaultApps":   frames.Bool(filter.Default),
	})
	if err != nil {
		return nil, err
	}

	list, ok := res.(frames.Array)
	if !ok {
		this.logger.Warn().Str("kind", res.Kind().String()).Msg("listapps result is not an array")
		return nil, frames.Unexpected("listapps result is %s, want array", res.Kind())
	}

	apps := make([]AppListEntry, len(list))
	for i, entry := range list {
		if err := frames.DecodeStrict(entry, &apps[i]); err != nil {
			this.logger.Warn().Err(err).Int("index", i).Msg("failed to decode app entry")
			return nil, err
		}
	}
	return apps, nil
}

// LaunchApplication starts bundleID. platformOptions travels as an embedded XML plist.
func (this *AppService) LaunchApplication(bundleID string, args []string, killExisting bool, startSuspended bool, env frames.Dict, platformOptions frames.Dict) (*LaunchResponse, error) {
	if env == nil {
		env = frames.Dict{}
	}
	if platformOptions == nil {
		platformOptions = frames.Dict{}
	}
	platform, err := frames.Marshal(platformOptions, plist.XMLFormat)
	if err != nil {
		return nil, err
	}

	arguments := make(frames.Array, len(args))
	for i, a := range args {
		arguments[i] = frames.String(a)
	}

	res, err := this.core.Invoke(featureLaunchApp, frames.Dict{
		"applicationSpecifier": frames.Dict{
			"bundleIdentifier": frames.Dict{"_0": frames.String(bundleID)},
		},
		"options": frames.Dict{
			"arguments":                     arguments,
			"environmentVariables":          env,
			"standardIOUsesPseudoterminals": frames.Bool(true),
			"startStopped":                  frames.Bool(startSuspended),
			"terminateExisting":             frames.Bool(killExisting),
			"user":                          frames.Dict{"shortName": frames.String("mobile")},
			"platformSpecificOptions":       frames.Data(platform),
		},
		"standardIOIdentifiers": frames.Dict{},
	})
	if err != nil {
		return nil, err
	}

	token, ok := lookup(res, "processToken")
	if !ok {
		this.logger.Warn().Msg("launchapplication result without processToken")
		return nil, frames.Unexpected("launchapplication result without processToken")
	}

	var launch LaunchResponse
	if err := frames.DecodeStrict(token, &launch); err != nil {
		return nil, err
	}
	return &launch, nil
}

func (this *AppService) ListProcesses() ([]ProcessToken, error) {
	res, err := this.core.Invoke(featureListProcesses, nil)
	if err != nil {
		return nil, err
	}

	tokens, ok := lookup(res, "processTokens")
	list, isArray := tokens.(frames.Array)
	if !ok || !isArray {
		this.logger.Warn().Msg("listprocesses result without processTokens")
		return nil, frames.Unexpected("listprocesses result without processTokens array")
	}

	procs := make([]ProcessToken, len(list))
	for i, entry := range list {
		if err := frames.DecodeStrict(entry, &procs[i]); err != nil {
			return nil, err
		}
	}
	return procs, nil
}

// UninstallApp cannot tell success from failure: the reply carries no status.
func (this *AppService) UninstallApp(bundleID string) error {
	_, err := this.core.Invoke(featureUninstallApp, frames.Dict{
		"bundleIdentifier": frames.String(bundleID),
	})
	return err
}

func (this *AppService) SendSignal(pid uint32, signal uint32) (*SignalResponse, error) {
	res, err := this.core.Invoke(featureSendSignal, frames.Dict{
		"process": frames.Dict{"processIdentifier": frames.Int(pid)},
		"signal":  frames.Int(signal),
	})
	if err != nil {
		return nil, err
	}

	var resp SignalResponse
	if err := frames.DecodeStrict(res, &resp); err != nil {
		this.logger.Warn().Err(err).Msg("could not decode signal response")
		return nil, err
	}
	return &resp, nil
}

func (this *AppService) FetchAppIcon(bundleID string, width, height, scale float32, allowPlaceholder bool) (*IconData, error) {
	res, err := this.core.Invoke(featureFetchIcons, frames.Dict{
		"width":            frames.Real(width),
		"height":           frames.Real(height),
		"scale":            frames.Real(scale),
		"allowPlaceholder": frames.Bool(allowPlaceholder),
		"bundleIdentifier": frames.String(bundleID),
	})
	if err != nil {
		return nil, err
	}

	container, _ := lookup(res, "appIconContainer")
	raw, ok := lookup(container, "iconImage")
	archive, isData := raw.(frames.Data)
	if !ok || !isData {
		this.logger.Warn().Msg("fetchappicons result without appIconContainer.iconImage data")
		return nil, frames.Unexpected("fetchappicons result without appIconContainer.iconImage data")
	}

	unarchived, err := ns.Unarchive(archive)
	if err != nil {
		return nil, err
	}

	var icon IconData
	if err := frames.DecodeStrict(unarchived, &icon); err != nil {
		this.logger.Warn().Err(err).Msg("failed to decode icon archive")
		return nil, err
	}
	return &icon, nil
}

func lookup(v frames.Value, key string) (frames.Value, bool) {
	d, ok := v.(frames.Dict)
	if !ok {
		return nil, false
	}
	e, ok := d[key]
	return e, ok
}
