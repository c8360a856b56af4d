// Package render writes twoslash results as json, yaml, msgpack or annotated text.
package render

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.Base("unknown output format")

type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
	FormatText    Format = "text"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatMsgpack, FormatText:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", errors.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension is the file extension results of the format are written with.
func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return ".yaml"
	case FormatMsgpack:
		return ".msgpack"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// Encode writes v in one of the structured formats.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return errors.Errorf("encoding json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return errors.Errorf("encoding yaml: %w", err)
		}
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(v); err != nil {
			return errors.Errorf("encoding msgpack: %w", err)
		}
	default:
		return errors.Errorf("%w: %q cannot encode values", ErrUnknownFormat, format)
	}
	return nil
}

// Decode reads a value written by Encode.
func Decode(r io.Reader, format Format, v any) error {
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(v)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(v)
	case FormatMsgpack:
		err = msgpack.NewDecoder(r).Decode(v)
	default:
		return errors.Errorf("%w: %q cannot decode values", ErrUnknownFormat, format)
	}
	if err != nil {
		return errors.Errorf("decoding %s: %w", format, err)
	}
	return nil
}
