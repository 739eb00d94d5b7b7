package ledscd

import (
	"time"

	"go.yaml.in/yaml/v4"
)

// Duration adds text and YAML codecs to time.Duration so config files and
// JSON payloads can use values like "500ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var err error
	d.Duration, err = time.ParseDuration(string(data))
	return err
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	err := value.Decode(&str)
	if err != nil {
		return err
	}

	if str == "" {
		return nil
	}

	d.Duration, err = time.ParseDuration(str)
	return err
}
