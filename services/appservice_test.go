package services

import (
	"encoding/binary"
	"errors"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"idevice/frames"
	"idevice/ns"
	"idevice/xpc"
)

func appEntry(bundleID string) frames.Dict {
	return frames.Dict{
		"isRemovable":      frames.Bool(true),
		"name":             frames.String("Example"),
		"isFirstParty":     frames.Bool(false),
		"path":             frames.String("/private/var/containers/Bundle/Application/X/Example.app"),
		"bundleIdentifier": frames.String(bundleID),
		"isDeveloperApp":   frames.Bool(true),
		"isInternal":       frames.Bool(false),
		"isHidden":         frames.Bool(false),
		"isAppClip":        frames.Bool(false),
	}
}

func TestListApps(t *testing.T) {
	withVersion := appEntry("com.example.b")
	withVersion["version"] = frames.String("1.2")
	conn := replyOutput(frames.Array{appEntry("com.example.a"), withVersion})
	apps := NewAppService(conn, nil)

	list, err := apps.ListApps(AppListFilter{Removable: true, Default: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "com.example.a", list[0].BundleIdentifier)
	assert.True(t, list[0].IsDeveloperApp)
	assert.Equal(t, "", list[0].Version)
	assert.Equal(t, "1.2", list[1].Version)

	assert.Equal(t, xpc.String("com.apple.coredevice.feature.listapps"), conn.sent[0]["CoreDevice.featureIdentifier"])
	assert.Equal(t, frames.Dict{
		"includeAppClips":      frames.Bool(false),
		"includeRemovableApps": frames.Bool(true),
		"includeHiddenApps":    frames.Bool(false),
		"includeInternalApps":  frames.Bool(false),
		"includeDefaultApps":   frames.Bool(true),
	}, conn.input(0))
}

func TestListAppsIsAllOrNothing(t *testing.T) {
	missing := appEntry("com.example.b")
	delete(missing, "path")

	mistyped := appEntry("com.example.c")
	mistyped["name"] = frames.Uint(3)

	for name, bad := range map[string]frames.Dict{"missing field": missing, "wrong type": mistyped} {
		t.Run(name, func(t *testing.T) {
			conn := replyOutput(frames.Array{appEntry("com.example.a"), bad})
			list, err := NewAppService(conn, nil).ListApps(AppListFilter{})
			assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse))
			assert.Nil(t, list)
		})
	}

	_, err := NewAppService(replyOutput(frames.Dict{}), nil).ListApps(AppListFilter{})
	assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse))
}

func TestAppServiceLogsCarryServiceName(t *testing.T) {
	buf := captureLog(t)
	_, err := NewAppService(replyOutput(frames.Dict{}), nil).ListApps(AppListFilter{})
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"service":"`+AppServiceName+`"`)
}

func TestLaunchApplication(t *testing.T) {
	conn := replyOutput(frames.Dict{
		"processToken": frames.Dict{
			"processIdentifierVersion": frames.Uint(1),
			"processIdentifier":        frames.Uint(812),
			"executableURL":            frames.Dict{"relative": frames.String("file:///Example.app/Example")},
			"auditToken":               frames.Array{frames.Uint(1), frames.Uint(2)},
		},
	})
	apps := NewAppService(conn, nil)

	launch, err := apps.LaunchApplication("com.example.a", []string{"-v"}, true, false,
		frames.Dict{"DEBUG": frames.String("1")}, frames.Dict{"foo": frames.String("bar")})
	require.NoError(t, err)
	assert.Equal(t, &LaunchResponse{
		ProcessIdentifierVersion: 1,
		PID:                      812,
		ExecutableURL:            ExecutableURL{Relative: "file:///Example.app/Example"},
		AuditToken:               []uint32{1, 2},
	}, launch)

	input := conn.input(0)
	spec, _ := input.GetDict("applicationSpecifier")
	assert.Equal(t, frames.Dict{"_0": frames.String("com.example.a")}, spec["bundleIdentifier"])
	assert.Equal(t, frames.Dict{}, input["standardIOIdentifiers"])

	options, ok := input.GetDict("options")
	require.True(t, ok)
	assert.Equal(t, frames.Array{frames.String("-v")}, options["arguments"])
	assert.Equal(t, frames.Dict{"DEBUG": frames.String("1")}, options["environmentVariables"])
	assert.Equal(t, frames.Bool(true), options["standardIOUsesPseudoterminals"])
	assert.Equal(t, frames.Bool(false), options["startStopped"])
	assert.Equal(t, frames.Bool(true), options["terminateExisting"])
	assert.Equal(t, frames.Dict{"shortName": frames.String("mobile")}, options["user"])

	platform, ok := options.GetData("platformSpecificOptions")
	require.True(t, ok)
	assert.Contains(t, string(platform), "<?xml")
	decoded, err := frames.UnmarshalDict(platform)
	require.NoError(t, err)
	assert.Equal(t, frames.Dict{"foo": frames.String("bar")}, decoded)
}

func TestLaunchApplicationDefaults(t *testing.T) {
	conn := replyOutput(frames.Dict{"processToken": frames.Dict{"processIdentifier": frames.Uint(1)}})

	_, err := NewAppService(conn, nil).LaunchApplication("com.example.a", nil, false, true, nil, nil)
	assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse))

	options, _ := conn.input(0).GetDict("options")
	assert.Equal(t, frames.Array{}, options["arguments"])
	assert.Equal(t, frames.Dict{}, options["environmentVariables"])
	assert.Equal(t, frames.Bool(true), options["startStopped"])

	platform, _ := options.GetData("platformSpecificOptions")
	decoded, err := frames.UnmarshalDict(platform)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestLaunchApplicationWithoutToken(t *testing.T) {
	_, err := NewAppService(replyOutput(frames.Dict{}), nil).LaunchApplication("a", nil, false, false, nil, nil)
	assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse))
}

func TestListProcesses(t *testing.T) {
	conn := replyOutput(frames.Dict{"processTokens": frames.Array{
		frames.Dict{
			"processIdentifier": frames.Uint(1),
			"executableURL":     frames.Dict{"relative": frames.String("file:///sbin/launchd")},
		},
		frames.Dict{"processIdentifier": frames.Uint(2)},
	}})

	procs, err := NewAppService(conn, nil).ListProcesses()
	require.NoError(t, err)
	assert.Equal(t, []ProcessToken{
		{PID: 1, ExecutableURL: &ExecutableURL{Relative: "file:///sbin/launchd"}},
		{PID: 2},
	}, procs)
	assert.Empty(t, conn.input(0))

	_, err = NewAppService(replyOutput(frames.Dict{"processTokens": frames.Dict{}}), nil).ListProcesses()
	assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse))
}

func TestUninstallApp(t *testing.T) {
	conn := replyOutput(frames.Dict{})

	require.NoError(t, NewAppService(conn, nil).UninstallApp("com.example.a"))
	assert.Equal(t, frames.Dict{"bundleIdentifier": frames.String("com.example.a")}, conn.input(0))
}

func TestSendSignal(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	conn := replyOutput(frames.Dict{
		"process":         frames.Dict{"processIdentifier": frames.Uint(42)},
		"deviceTimestamp": frames.Date(stamp),
		"signal":          frames.Uint(9),
	})

	resp, err := NewAppService(conn, nil).SendSignal(42, 9)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), resp.Process.PID)
	assert.Equal(t, uint32(9), resp.Signal)
	assert.True(t, stamp.Equal(resp.DeviceTimestamp))

	sent := conn.sent[0]["CoreDevice.input"].(xpc.Dictionary)
	assert.Equal(t, xpc.Int64(9), sent["signal"])
	assert.Equal(t, xpc.Dictionary{"processIdentifier": xpc.Int64(42)}, sent["process"])
}

func TestSendSignalMalformed(t *testing.T) {
	conn := replyOutput(frames.Dict{"process": frames.Dict{"processIdentifier": frames.Uint(42)}})
	_, err := NewAppService(conn, nil).SendSignal(42, 9)
	assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse))
}

func TestSendSignalRejectsOutOfRangePID(t *testing.T) {
	conn := replyOutput(frames.Dict{
		"process":         frames.Dict{"processIdentifier": frames.Uint(1 << 33)},
		"deviceTimestamp": frames.Date(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		"signal":          frames.Uint(9),
	})
	resp, err := NewAppService(conn, nil).SendSignal(42, 9)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse), "%v", err)
}

func TestLaunchApplicationRejectsOutOfRangeAuditToken(t *testing.T) {
	conn := replyOutput(frames.Dict{
		"processToken": frames.Dict{
			"processIdentifierVersion": frames.Uint(1),
			"processIdentifier":        frames.Uint(812),
			"executableURL":            frames.Dict{"relative": frames.String("file:///Example.app/Example")},
			"auditToken":               frames.Array{frames.Uint(1), frames.Int(-2)},
		},
	})
	_, err := NewAppService(conn, nil).LaunchApplication("com.example.a", nil, false, false, nil, nil)
	assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse), "%v", err)
}

func iconBlob(width, height int, pixels []byte) []byte {
	blob := make([]byte, iconHeaderSize, iconHeaderSize+len(pixels))
	for _, off := range []int{0x10, 0x20} {
		binary.LittleEndian.PutUint32(blob[off:], math.Float32bits(float32(width)))
		binary.LittleEndian.PutUint32(blob[off+4:], math.Float32bits(float32(height)))
	}
	return append(blob, pixels...)
}

func iconArchive(t *testing.T, blob []byte) []byte {
	b, err := plist.Marshal(&ns.KeyedArchiver{
		Archiver: "NSKeyedArchiver",
		Version:  100000,
		Top:      map[string]interface{}{"root": plist.UID(1)},
		Objects: []interface{}{
			ns.NSNull,
			map[string]interface{}{
				"$class":             plist.UID(3),
				"data":               plist.UID(2),
				"iconSize.height":    2.0,
				"iconSize.width":     2.0,
				"minimumSize.height": 1.0,
				"minimumSize.width":  1.0,
				"validationToken":    []byte("token"),
				"uuid":               plist.UID(4),
			},
			blob,
			map[string]interface{}{
				"$classname": "IFImage",
				"$classes":   []interface{}{"IFImage", "NSObject"},
			},
			map[string]interface{}{
				"$class":       plist.UID(5),
				"NS.uuidbytes": []byte{0xde, 0xad},
			},
			map[string]interface{}{
				"$classname": "NSUUID",
				"$classes":   []interface{}{"NSUUID", "NSObject"},
			},
		},
	}, plist.BinaryFormat)
	require.NoError(t, err)
	return b
}

func TestFetchAppIcon(t *testing.T) {
	pixels := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	conn := replyOutput(frames.Dict{
		"appIconContainer": frames.Dict{"iconImage": frames.Data(iconArchive(t, iconBlob(2, 2, pixels)))},
	})

	icon, err := NewAppService(conn, nil).FetchAppIcon("com.example.a", 2, 2, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, icon.IconWidth)
	assert.Equal(t, 1.0, icon.MinimumHeight)
	assert.Equal(t, []string{"IFImage", "NSObject"}, icon.Classes)
	assert.Equal(t, []byte("token"), icon.ValidationToken)
	assert.Equal(t, []byte{0xde, 0xad}, icon.UUID.Bytes)
	assert.Equal(t, []string{"NSUUID", "NSObject"}, icon.UUID.Classes)

	img, err := icon.Image()
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, color.NRGBA{R: 5, G: 6, B: 7, A: 8}, img.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{R: 13, G: 14, B: 15, A: 16}, img.NRGBAAt(1, 1))

	input := conn.input(0)
	assert.Equal(t, frames.Real(2), input["width"])
	assert.Equal(t, frames.Real(1), input["scale"])
	assert.Equal(t, frames.Bool(true), input["allowPlaceholder"])
	assert.Equal(t, frames.String("com.example.a"), input["bundleIdentifier"])
}

func TestFetchAppIconWithoutImage(t *testing.T) {
	for name, out := range map[string]frames.Value{
		"no container": frames.Dict{},
		"no image":     frames.Dict{"appIconContainer": frames.Dict{}},
		"not data":     frames.Dict{"appIconContainer": frames.Dict{"iconImage": frames.String("x")}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewAppService(replyOutput(out), nil).FetchAppIcon("a", 1, 1, 1, false)
			assert.True(t, errors.Is(err, frames.ErrUnexpectedResponse))
		})
	}
}

func TestIconImageTruncated(t *testing.T) {
	icon := &IconData{Data: iconBlob(4, 4, make([]byte, 10))}
	_, err := icon.Image()
	assert.True(t, errors.Is(err, frames.ErrEncoding))

	icon = &IconData{Data: []byte{1, 2, 3}}
	_, err = icon.Image()
	assert.True(t, errors.Is(err, frames.ErrEncoding))
}

func TestIconImageRejectsOutOfRangeSides(t *testing.T) {
	for _, side := range []float32{2147483648, 4097, 0, -4, float32(math.NaN()), float32(math.Inf(1))} {
		blob := make([]byte, iconHeaderSize+64)
		binary.LittleEndian.PutUint32(blob[0x10:], math.Float32bits(side))
		binary.LittleEndian.PutUint32(blob[0x14:], math.Float32bits(side))

		icon := &IconData{Data: blob}
		var err error
		require.NotPanics(t, func() { _, err = icon.Image() }, "side %v", side)
		assert.True(t, errors.Is(err, frames.ErrEncoding), "side %v: %v", side, err)
	}
}
