package ledscd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Debug  bool   `yaml:"debug"`
	Bind   string `yaml:"bind"`
	Serial Serial `yaml:"serial"`
	// AckTimeout bounds how long a command awaits its acknowledgment.
	// Fixed for the whole process, not tunable per request.
	AckTimeout Duration `yaml:"ack_timeout"`
}

type Serial struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

func Load(path string) (Config, error) {
	var c Config

	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()

	codec := yaml.NewDecoder(f)
	err = codec.Decode(&c)
	if err != nil {
		return c, err
	}

	//

	if c.Bind == "" {
		c.Bind = ":8080"
	}

	if c.Serial.Port == "" {
		return c, fmt.Errorf("serial.port: no device path provided")
	}
	if !strings.HasPrefix(c.Serial.Port, "/dev/") {
		return c, fmt.Errorf("serial.port: %s: not a device path", c.Serial.Port)
	}

	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.Serial.Baud < 0 {
		return c, fmt.Errorf("serial.baud: %d: invalid baud rate", c.Serial.Baud)
	}

	if c.AckTimeout.Duration == 0 {
		c.AckTimeout.Duration = 500 * time.Millisecond
	}
	if c.AckTimeout.Duration < 10*time.Millisecond || c.AckTimeout.Duration > 10*time.Second {
		return c, fmt.Errorf("ack_timeout: %s: must be in [10ms,10s]", c.AckTimeout)
	}

	return c, nil
}
