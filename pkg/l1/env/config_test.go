package env

import (
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/motorlink/pkg/l1"
)

func testConfig() *Config {
	conf := NewConfig()
	conf.ID = "unit0"
	conf.MQTTBrokerURL = ""
	conf.Ports = []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}
	return conf
}

func TestConfigLoad(t *testing.T) {
	conf := testConfig()
	require.NoError(t, conf.Load(strings.NewReader(`
id: bike
labels:
  site: garage
ports: [/dev/ttyS1]
baud: 9600
publish_interval: 100ms
can: can0
`)))
	require.Equal(t, "bike", conf.ID)
	require.Equal(t, UnitType, conf.Type)
	require.Equal(t, []string{"/dev/ttyS1"}, conf.Ports)
	require.Equal(t, 9600, conf.Baud)
	require.Equal(t, 100*time.Millisecond, conf.PublishInterval)
	require.Equal(t, "can0", conf.CANInterface)
	require.Equal(t, "garage", conf.Labels["site"])
	require.Equal(t, 1, conf.Links())

	require.NoError(t, conf.Load(strings.NewReader("")))
	require.Error(t, conf.Load(strings.NewReader("baud: fast")))
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{name: "ok", modify: func(*Config) {}},
		{name: "no id", modify: func(c *Config) { c.ID = "" }, err: "unit type and id must be specified"},
		{name: "no links", modify: func(c *Config) { c.Ports = nil }, err: ErrNoLinks.Error()},
		{name: "baud", modify: func(c *Config) { c.Baud = 0 }, err: "invalid baud rate 0"},
		{name: "interval", modify: func(c *Config) { c.PublishInterval = 0 }, err: "invalid publish interval 0s"},
		{name: "streams", modify: func(c *Config) {
			c.Ports = nil
			c.Streams = []io.ReadWriter{nil}
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := testConfig()
			tc.modify(conf)
			err := conf.Validate()
			if tc.err == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.err)
			}
		})
	}
}

func TestConfigFlags(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "motorlink.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("id: fromfile\nbaud: 9600\n"), 0644))

	conf := testConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	conf.SetupFlags(fs)
	require.NoError(t, fs.Parse([]string{"-id", "early", "-config", fn, "-baud", "38400", "-ports", "/dev/a, /dev/b,"}))
	require.Equal(t, "fromfile", conf.ID)
	require.Equal(t, 38400, conf.Baud)
	require.Equal(t, []string{"/dev/a", "/dev/b"}, conf.Ports)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	testConfig().SetupFlags(fs)
	require.Error(t, fs.Parse([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}))
}

func TestConfigEnv(t *testing.T) {
	conf := testConfig()
	vars := map[string]string{
		"MOTORLINK_MQTT_URL": "mqtt://broker:1883/bikes/",
		"MOTORLINK_PORTS":    "/dev/ttyACM0",
	}
	conf.applyEnv(func(name string) string { return vars[name] })
	require.Equal(t, "mqtt://broker:1883/bikes/", conf.MQTTBrokerURL)
	require.Equal(t, []string{"/dev/ttyACM0"}, conf.Ports)
	require.Equal(t, "unit0", conf.ID)
}

func TestNewEnv(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	conf := testConfig()
	conf.Ports = nil
	conf.Streams = []io.ReadWriter{a}
	conf.StreamAddr = "127.0.0.1:0"
	conf.JournalPath = filepath.Join(t.TempDir(), "faults.db")

	env, err := conf.NewEnv()
	require.NoError(t, err)
	defer env.Close()
	require.Equal(t, 1, env.Manager.Links())
	require.NotNil(t, env.Ports.Port(1))
	require.NotNil(t, env.Journal)
	require.Nil(t, env.CAN)
	require.Empty(t, env.RegistryURLs)
	require.Equal(t, []l1.Registrar{env.Hub}, env.Registrar.Registrars)
	require.NotNil(t, env.NewLoop())

	info := conf.Info()
	require.Equal(t, "motorlink/unit0", info.Ref.Name())
	require.Equal(t, 1, info.Meta.Links)

	conf.ID = ""
	_, err = conf.NewEnv()
	require.Error(t, err)
}
