package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/catapillar/lang"
)

// Output formats of evaluation results.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
	outputNone = "none"
)

// writeValue writes v to w in the named output format.
func writeValue(w io.Writer, format string, v lang.Value) error {
	switch format {
	case outputNone:
		return nil

	case outputJSON:
		data, err := json.MarshalIndent(plain(v, false), "", "  ")
		if err != nil {
			return ErrJSONMarshal.Wrap(err)
		}

		_, err = fmt.Fprintln(w, string(data))

		return err

	case outputYAML:
		data, err := yaml.Marshal(plain(v, true))
		if err != nil {
			return ErrYAMLMarshal.Wrap(err)
		}

		_, err = w.Write(data)

		return err

	default:
		if v == nil {
			v = lang.Null{}
		}

		_, err := fmt.Fprintln(w, v.String())

		return err
	}
}

// plain converts v into data the encoders understand. Callables become
// their display string. With ordered set, maps become [yaml.MapSlice] so
// YAML output keeps insertion order.
func plain(v lang.Value, ordered bool) any {
	switch v := v.(type) {
	case *lang.List:
		out := make([]any, 0, v.Len())
		for _, e := range v.All() {
			out = append(out, plain(e, ordered))
		}

		return out

	case *lang.Map:
		if ordered {
			out := make(yaml.MapSlice, 0, v.Len())
			for k, e := range v.All() {
				out = append(out, yaml.MapItem{Key: k, Value: plain(e, ordered)})
			}

			return out
		}

		out := make(map[string]any, v.Len())
		for k, e := range v.All() {
			out[k] = plain(e, ordered)
		}

		return out

	case *lang.Function, *lang.Native:
		return v.String()

	default:
		return lang.FromValue(v)
	}
}
