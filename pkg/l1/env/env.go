package env

import (
	"fmt"
	"log"

	"github.com/golang/glog"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l0/serial"
	"github.com/robotalks/motorlink/pkg/l1"
	"github.com/robotalks/motorlink/pkg/l1/comm"
	"github.com/robotalks/motorlink/pkg/l1/comm/can"
	"github.com/robotalks/motorlink/pkg/l1/comm/mqtt"
	"github.com/robotalks/motorlink/pkg/l1/comm/stream"
	"github.com/robotalks/motorlink/pkg/l1/comm/websocket"
	"github.com/robotalks/motorlink/pkg/l1/journal"
	"github.com/robotalks/motorlink/pkg/l1/publisher"
)

// Env is the env of a motorlink unit: links, publishers and registrars.
type Env struct {
	Config       *Config
	Manager      *motorlink.Manager
	Ports        *serial.Ports
	Registrar    *comm.RegistrarMux
	Hub          *comm.Hub
	Publisher    *publisher.Publisher
	Journal      *journal.Journal
	CAN          *can.Publisher
	RegistryURLs []string

	adders []fx.LoopAdder
}

// Info returns the registered unit info.
func (c *Config) Info() l1.UnitInfo {
	return l1.UnitInfo{
		Ref: l1.UnitRef{Type: c.Type, ID: c.ID},
		Meta: l1.UnitMeta{
			Description: c.Description,
			Labels:      c.Labels,
			Links:       c.Links(),
		},
	}
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (env *Env, err error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mconf := motorlink.DefaultConfig()
	mconf.Links = c.Links()
	mconf.WheelCircumference = c.WheelCircumference
	env = &Env{
		Config:    c,
		Manager:   motorlink.NewManager(mconf),
		Ports:     serial.NewPorts(),
		Registrar: &comm.RegistrarMux{},
		Hub:       comm.NewHub(),
	}
	defer func() {
		if err != nil {
			env.Close()
			env = nil
		}
	}()

	if len(c.Streams) > 0 {
		for n, rw := range c.Streams {
			env.Ports.Add(serial.NewPortWith(n+1, rw, env.Manager))
		}
	} else {
		for n, path := range c.Ports {
			env.Ports.Add(serial.NewPort(n+1, path, c.Baud, env.Manager))
		}
	}
	env.Manager.Transmitter = env.Ports

	if c.MQTTBrokerURL != "" {
		reg, err := mqtt.NewRegistrar(c.MQTTBrokerURL, c.Info())
		if err != nil {
			return env, fmt.Errorf("create MQTT registrar error: %w", err)
		}
		env.Registrar.Add(reg)
		env.RegistryURLs = append(env.RegistryURLs, c.MQTTBrokerURL)
	}
	env.Registrar.Add(env.Hub)
	env.Publisher = publisher.New(env.Registrar, env.Manager)
	env.Publisher.Interval = c.PublishInterval

	if c.StreamAddr != "" {
		env.adders = append(env.adders, stream.NewServer(c.StreamAddr, env.Hub))
	}
	if c.WebSocketAddr != "" {
		env.adders = append(env.adders, websocket.NewServer(c.WebSocketAddr, env.Hub))
	}
	if c.JournalPath != "" {
		if env.Journal, err = journal.Open(c.JournalPath); err != nil {
			return env, err
		}
		ctl := journal.NewController(env.Journal)
		ctl.Faults = env.Manager
		env.adders = append(env.adders, ctl)
	}
	if c.CANInterface != "" {
		bus, err := can.OpenBus(c.CANInterface)
		if err != nil {
			return env, err
		}
		env.CAN = can.NewPublisher(bus, env.Manager)
		env.adders = append(env.adders, env.CAN, fx.LoopAdderFunc(func(loop *fx.Loop) {
			loop.AddRunnable(fx.NamedRun("can-bus", bus))
		}))
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// NewLoop creates a loop running every component of the env.
func (e *Env) NewLoop() *fx.Loop {
	loop := fx.NewLoop()
	loop.Interval = e.Config.LoopInterval
	return loop.Add(e)
}

// AddToLoop adds controllers/runners to loop.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Manager, e.Ports, e.Registrar, e.Publisher)
	loop.Add(e.adders...)
	loop.Add(&comm.UnsupportedCommands{})
}

// Close releases resources held by the env.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	if e.Journal != nil {
		errs.Add(e.Journal.Close())
	}
	return errs.Aggregate()
}

// LogLinkErrors logs link errors as they are reported.
func (e *Env) LogLinkErrors() {
	e.Manager.Errors = motorlink.HandleLinkErrorFunc(func(le *motorlink.LinkError) {
		switch le.Kind {
		case motorlink.ErrorLinkLost:
			glog.Warningf("link %d lost", le.Link)
		default:
			glog.Error(le)
		}
	})
}
