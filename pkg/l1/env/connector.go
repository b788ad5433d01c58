package env

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/robotalks/motorlink/pkg/l1"
	"github.com/robotalks/motorlink/pkg/l1/comm/mqtt"
)

// ConnectorConfig provides options to reach units.
type ConnectorConfig struct {
	Ref l1.UnitRef

	// RegistryURL specifies the URL of the unit registry.
	// e.g. mqtt://host:port/topic-prefix
	RegistryURL string
}

var defaultConnectorConfig = ConnectorConfig{
	Ref:         l1.UnitRef{Type: UnitType},
	RegistryURL: "mqtt://localhost:1883/motorlink/",
}

func init() {
	if val := os.Getenv("MOTORLINK_UNIT"); val != "" {
		if ref, err := ParseUnitRef(val); err == nil {
			defaultConnectorConfig.Ref = ref
		}
	}
	if val := os.Getenv("MOTORLINK_REGISTRY_URL"); val != "" {
		defaultConnectorConfig.RegistryURL = val
	} else if val := os.Getenv("MOTORLINK_MQTT_URL"); val != "" {
		defaultConnectorConfig.RegistryURL = val
	}
}

// ParseUnitRef parses "type/id", or "id" of the default type.
func ParseUnitRef(s string) (l1.UnitRef, error) {
	ref := l1.UnitRef{Type: UnitType, ID: s}
	if pos := strings.Index(s, "/"); pos >= 0 {
		ref.Type, ref.ID = s[:pos], s[pos+1:]
	}
	if !ref.IsValid() {
		return ref, fmt.Errorf("invalid unit %q", s)
	}
	return ref, nil
}

type unitRefValue struct {
	ref *l1.UnitRef
}

func (v unitRefValue) String() string {
	if v.ref == nil || v.ref.ID == "" {
		return ""
	}
	return v.ref.Name()
}

func (v unitRefValue) Set(val string) error {
	ref, err := ParseUnitRef(val)
	if err != nil {
		return err
	}
	*v.ref = ref
	return nil
}

// SetupFlags registers command line flags on fs, flag.CommandLine if nil.
func (c *ConnectorConfig) SetupFlags(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	fs.Var(unitRefValue{ref: &c.Ref}, "unit", "Unit to connect, type/id or id")
	fs.StringVar(&c.RegistryURL, "registry", c.RegistryURL, "Unit registry URL")
}

// SetupConnectorFlags sets up command line flags of the default connector config.
func SetupConnectorFlags() {
	defaultConnectorConfig.SetupFlags(nil)
}

// DefaultConnector gets the default connector config.
func DefaultConnector() *ConnectorConfig {
	return &defaultConnectorConfig
}

// NewConnectorConfig creates a ConnectorConfig with default configurations.
func NewConnectorConfig() *ConnectorConfig {
	conf := defaultConnectorConfig
	return &conf
}

// NewConnector creates a Connector using current config.
func (c *ConnectorConfig) NewConnector() (l1.Connector, error) {
	parsedURL, err := url.Parse(c.RegistryURL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "mqtt", "ssl", "tcp":
		return mqtt.NewConnector(c.RegistryURL)
	default:
		return nil, fmt.Errorf("unknown registry URL scheme: %q", parsedURL.Scheme)
	}
}

// MustNewConnector creates a Connector and fails on error.
func (c *ConnectorConfig) MustNewConnector() l1.Connector {
	conn, err := c.NewConnector()
	if err != nil {
		log.Fatalln(err)
	}
	return conn
}

// Connect directly connects to the configured unit.
func (c *ConnectorConfig) Connect(ctx context.Context) (l1.UnitConn, error) {
	if !c.Ref.IsValid() {
		return nil, errors.New("unit type and id must be specified")
	}
	connector, err := c.NewConnector()
	if err != nil {
		return nil, err
	}
	return connector.Connect(ctx, c.Ref)
}
