package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l1/env"
	"github.com/robotalks/motorlink/pkg/sim"
)

var (
	demo    string
	demoRPM = 300.0
)

func init() {
	env.SetupFlags()
	flag.StringVar(&demo, "demo", demo, "Emulate controllers instead of serial ports, one variant per link, e.g. legacy,modern")
	flag.Float64Var(&demoRPM, "demo-rpm", demoRPM, "Speed of emulated motors")
}

func demoControllers(conf *env.Config) ([]*sim.Controller, error) {
	var ctls []*sim.Controller
	for _, name := range strings.Split(demo, ",") {
		v := motorlink.VariantByName(strings.TrimSpace(name))
		if v == nil {
			return nil, fmt.Errorf("unknown variant %q", name)
		}
		ctlEnd, portEnd := net.Pipe()
		ctl := sim.NewController(v, ctlEnd)
		ctl.Motor.Drive(time.Now(), demoRPM)
		ctls = append(ctls, ctl)
		conf.Streams = append(conf.Streams, portEnd)
	}
	return ctls, nil
}

func main() {
	flag.Parse()

	conf := env.Default()
	var ctls []*sim.Controller
	if demo != "" {
		var err error
		if ctls, err = demoControllers(conf); err != nil {
			log.Fatalln(err)
		}
	}

	e := conf.MustNewEnv()
	defer e.Close()
	e.LogLinkErrors()

	loop := e.NewLoop()
	for n, ctl := range ctls {
		loop.AddRunnable(fx.NamedRun("sim-"+ctl.Variant.Name, ctl))
		glog.Infof("link %d emulates %s", n+1, ctl.Variant)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	glog.Infof("serving %d links as %s", conf.Links(), conf.Info().Ref.Name())
	loop.RunOrFail(ctx)
}
