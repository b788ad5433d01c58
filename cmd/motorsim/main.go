package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l0/serial"
	"github.com/robotalks/motorlink/pkg/sim"
)

var (
	port        string
	baud        = serial.DefaultBaudRate
	variantName = motorlink.Modern.Name
	rpm         = 300.0
	gear        uint
	motorTemp   = 25
	faults      uint
)

func init() {
	flag.StringVar(&port, "port", port, "Serial port to emulate a controller on")
	flag.IntVar(&baud, "baud", baud, "Baud rate")
	flag.StringVar(&variantName, "variant", variantName, "Protocol variant: legacy or modern")
	flag.Float64Var(&rpm, "rpm", rpm, "Motor speed, negative for reverse")
	flag.UintVar(&gear, "gear", gear, "Gear 0-3")
	flag.IntVar(&motorTemp, "motor-temp", motorTemp, "Motor temperature in °C")
	flag.UintVar(&faults, "faults", faults, "Raw fault flags to report")
}

func main() {
	flag.Parse()

	v := motorlink.VariantByName(variantName)
	if v == nil {
		log.Fatalf("unknown variant %q", variantName)
	}
	if port == "" {
		ports, err := serial.List()
		if err != nil {
			log.Fatalln(err)
		}
		log.Fatalf("-port required, available: %v", ports)
	}
	dev, err := serial.OpenDevice(port, serial.Mode(baud))
	if err != nil {
		log.Fatalln(err)
	}
	defer dev.Close()

	ctl := sim.NewController(v, dev)
	ctl.Motor.SetGear(uint8(gear))
	ctl.Motor.SetTemperatures(int8(motorTemp), int8(motorTemp))
	ctl.Motor.SetFaults(motorlink.FaultFlags(faults))
	ctl.Motor.Drive(time.Now(), rpm)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	glog.Infof("emulating %s controller on %s", v, port)
	if err := ctl.Run(ctx); err != nil && err != context.Canceled {
		glog.Fatal(err)
	}
}
