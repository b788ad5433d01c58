// Package env sets up a motorlink unit or a consumer from configuration.
//
// Configuration is layered: built-in defaults, then the YAML file named by
// MOTORLINK_CONFIG, then MOTORLINK_* variables, then command line flags in
// the order they are given (-config loads a file at its position).
package env

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l0/serial"
	"github.com/robotalks/motorlink/pkg/l1/publisher"
)

// UnitType is the registered type of motorlink units.
const UnitType = "motorlink"

// Config provides options to setup a motorlink unit.
type Config struct {
	Type        string            `yaml:"type"`
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Labels      map[string]string `yaml:"labels"`

	// MQTTBrokerURL specifies the MQTT broker to register with.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`

	// Ports are serial device paths, link 1 first.
	Ports []string `yaml:"ports"`
	Baud  int      `yaml:"baud"`
	// Streams replaces Ports with already open streams.
	Streams []io.ReadWriter `yaml:"-"`

	StreamAddr    string `yaml:"stream"`
	WebSocketAddr string `yaml:"websocket"`
	CANInterface  string `yaml:"can"`
	JournalPath   string `yaml:"journal"`

	PublishInterval time.Duration `yaml:"publish_interval"`
	LoopInterval    time.Duration `yaml:"loop_interval"`
	// WheelCircumference in mm.
	WheelCircumference uint32 `yaml:"wheel_circumference"`
}

var defaultConfig = Config{
	Type:               UnitType,
	MQTTBrokerURL:      "mqtt://localhost:1883/motorlink/",
	Baud:               serial.DefaultBaudRate,
	PublishInterval:    publisher.DefaultInterval,
	LoopInterval:       5 * time.Millisecond,
	WheelCircumference: motorlink.DefaultWheelCircumference,
}

// Errors
var (
	ErrNoLinks = errors.New("no serial ports configured")
)

func init() {
	defaultConfig.ID = MachineID()
	if fn := os.Getenv("MOTORLINK_CONFIG"); fn != "" {
		if err := defaultConfig.LoadFile(fn); err != nil {
			glog.Errorf("load config: %v", err)
		}
	}
	defaultConfig.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if val := getenv("MOTORLINK_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("MOTORLINK_ID"); val != "" {
		c.ID = val
	}
	if val := getenv("MOTORLINK_PORTS"); val != "" {
		c.Ports = splitList(val)
	}
}

func splitList(val string) (items []string) {
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load decodes YAML over the current values.
func (c *Config) Load(r io.Reader) error {
	if err := yaml.NewDecoder(r).Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// LoadFile decodes a YAML file over the current values.
func (c *Config) LoadFile(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Load(f)
}

// Links is the number of links served.
func (c *Config) Links() int {
	if len(c.Streams) > 0 {
		return len(c.Streams)
	}
	return len(c.Ports)
}

// Validate reports the first invalid option.
func (c *Config) Validate() error {
	if c.Type == "" || c.ID == "" {
		return errors.New("unit type and id must be specified")
	}
	if c.Links() == 0 {
		return ErrNoLinks
	}
	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.PublishInterval <= 0 {
		return fmt.Errorf("invalid publish interval %v", c.PublishInterval)
	}
	if c.LoopInterval <= 0 {
		return fmt.Errorf("invalid loop interval %v", c.LoopInterval)
	}
	if c.MQTTBrokerURL != "" {
		if _, err := url.Parse(c.MQTTBrokerURL); err != nil {
			return fmt.Errorf("invalid MQTT URL: %w", err)
		}
	}
	return nil
}

type listValue struct {
	list *[]string
}

func (v listValue) String() string {
	if v.list == nil {
		return ""
	}
	return strings.Join(*v.list, ",")
}

func (v listValue) Set(val string) error {
	*v.list = splitList(val)
	return nil
}

type fileValue struct {
	conf *Config
	path string
}

func (v *fileValue) String() string { return v.path }

func (v *fileValue) Set(val string) error {
	v.path = val
	return v.conf.LoadFile(val)
}

// SetupFlags registers command line flags on fs, flag.CommandLine if nil.
func (c *Config) SetupFlags(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	fs.Var(&fileValue{conf: c}, "config", "YAML config file, applied at its position")
	fs.StringVar(&c.Type, "type", c.Type, "Unit type")
	fs.StringVar(&c.ID, "id", c.ID, "Unit ID")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	fs.Var(listValue{list: &c.Ports}, "ports", "Comma separated serial ports, link 1 first")
	fs.IntVar(&c.Baud, "baud", c.Baud, "Serial baud rate")
	fs.StringVar(&c.StreamAddr, "stream", c.StreamAddr, "TCP telemetry stream listen address")
	fs.StringVar(&c.WebSocketAddr, "websocket", c.WebSocketAddr, "WebSocket telemetry listen address")
	fs.StringVar(&c.CANInterface, "can", c.CANInterface, "SocketCAN interface, e.g. can0")
	fs.StringVar(&c.JournalPath, "journal", c.JournalPath, "Fault journal database file")
	fs.DurationVar(&c.PublishInterval, "publish-interval", c.PublishInterval, "Telemetry publish interval")
}

// SetupFlags sets command line flags of the default config.
func SetupFlags() {
	defaultConfig.SetupFlags(nil)
}
