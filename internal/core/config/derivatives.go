package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Derivatives maps a derivative (policy) name to raw option name/value text.
type Derivatives map[string]map[string]string

// LoadDerivatives reads the "derivatives" table of a YAML, TOML or JSON
// file. An empty path yields no derivatives.
//
//	derivatives:
//	  thumbnail:
//	    width: 320
//	    height: 180
func LoadDerivatives(path string) (Derivatives, error) {
	out := Derivatives{}
	if strings.TrimSpace(path) == "" {
		return out, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read derivatives file %q: %w", path, err)
	}

	raw := v.GetStringMap("derivatives")
	if len(raw) == 0 {
		return nil, errors.New("derivatives file has no derivatives table")
	}
	for name, body := range raw {
		fields, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("derivative %q: expected a table, got %T", name, body)
		}
		opts := make(map[string]string, len(fields))
		for k, val := range fields {
			opts[strings.ToLower(k)] = fmt.Sprint(val)
		}
		out[name] = opts
	}
	return out, nil
}
