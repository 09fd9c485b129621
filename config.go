package ember

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// loadConfigFile parses the configuration file of the s, if one is set, into
// the matching fields of the s. The file format follows the extension:
// ".json", ".toml", ".yaml"/".yml" and ".ini" are understood.
func (s *Server) loadConfigFile() error {
	if s.ConfigFile == "" {
		return nil
	}

	b, err := os.ReadFile(s.ConfigFile)
	if err != nil {
		return err
	}

	m := map[string]interface{}{}
	switch e := strings.ToLower(filepath.Ext(s.ConfigFile)); e {
	case ".json":
		err = json.Unmarshal(b, &m)
	case ".toml":
		err = toml.Unmarshal(b, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	case ".ini":
		var f *ini.File
		if f, err = ini.Load(b); err == nil {
			for _, key := range f.Section("").Keys() {
				m[key.Name()] = key.Value()
			}
		}
	default:
		err = fmt.Errorf(
			"ember: unsupported configuration file extension: %s",
			e,
		)
	}

	if err != nil {
		return err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           s,
	})
	if err != nil {
		return err
	}

	return dec.Decode(m)
}
