package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/robotalks/motorlink/pkg/cli/sh"
	"github.com/robotalks/motorlink/pkg/l1/comm/mqtt"
	"github.com/robotalks/motorlink/pkg/l1/env"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
)

var (
	mqttURL = env.DefaultConnector().RegistryURL
)

func init() {
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/meta") {
			if len(payload) == 0 {
				log.Printf("%s: unregistered", topic)
				return
			}
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			log.Printf("%s: decode error: (type_id=%08x) %v", topic, typed.TypeId, err)
			return
		}
		log.Printf("%s: #%d [%s] %s", topic, typed.Sequence, msgs.TypeName(typed.TypeId), sh.FormatMessage(msg))
	}))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}
