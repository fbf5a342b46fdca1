package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"idevice/frames"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json", "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid output format '%s': must be 'yaml' or 'json'", s)
	}
}

func FormatData(data interface{}, format Format) (string, error) {
	switch format {
	case FormatYAML:
		b, err := yaml.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("failed to format as YAML: %w", err)
		}
		return string(b), nil
	case FormatJSON:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to format as JSON: %w", err)
		}
		return string(b) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

func (this *Config) print(data interface{}) error {
	format, err := ParseFormat(this.Output)
	if err != nil {
		return err
	}
	if v, ok := data.(frames.Value); ok {
		data = plain(v)
	}
	s, err := FormatData(data, format)
	if err != nil {
		return err
	}
	fmt.Print(s)
	return nil
}

// plain turns a value tree into something both encoders print readably. Data becomes base64.
func plain(v frames.Value) interface{} {
	switch t := v.(type) {
	case frames.Bool:
		return bool(t)
	case frames.Int:
		return int64(t)
	case frames.Uint:
		return uint64(t)
	case frames.Real:
		return float64(t)
	case frames.String:
		return string(t)
	case frames.Data:
		return base64.StdEncoding.EncodeToString(t)
	case frames.Date:
		return time.Time(t).Format(time.RFC3339)
	case frames.Array:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case frames.Dict:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	}
	return nil
}
