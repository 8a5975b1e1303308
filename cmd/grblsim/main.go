package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/rtserial/pkg/config"
	fx "github.com/robotalks/rtserial/pkg/framework"
	"github.com/robotalks/rtserial/pkg/protocol"
	"github.com/robotalks/rtserial/pkg/serial"
	"github.com/robotalks/rtserial/pkg/serial/hostport"
	"github.com/robotalks/rtserial/pkg/serial/sim"
	"github.com/robotalks/rtserial/pkg/system"
	"github.com/robotalks/rtserial/pkg/telemetry"
)

var configFile string

func init() {
	config.SetupFlags()
	flag.StringVar(&configFile, "config", "", "YAML config file.")
}

// device is the peripheral the Port is armed on.
type device interface {
	serial.Driver
	serial.EventSource
	telemetry.Injector
}

func wire(conf *config.Config) (device, []fx.Runnable, error) {
	switch conf.Wire.Mode {
	case config.WireSerial:
		stream, err := hostport.OpenSerial(hostport.SerialConfig{Device: conf.Wire.Device, Baud: conf.Wire.Baud})
		if err != nil {
			return nil, nil, err
		}
		hp := hostport.New()
		return hp, []fx.Runnable{fx.NamedRun("serial", hp.Bind(stream))}, nil
	case config.WireWebsocket:
		hp := hostport.New()
		srv := &http.Server{Addr: conf.Wire.Listen, Handler: hp.WebsocketHandler()}
		serve := fx.RunFunc(func(ctx context.Context) error {
			glog.Infof("listening on %s", conf.Wire.Listen)
			return fx.RunWithContextCloser(ctx, srv, func() error {
				if err := srv.ListenAndServe(); err != http.ErrServerClosed {
					return err
				}
				return nil
			})
		})
		return hp, []fx.Runnable{fx.NamedRun("websocket", serve)}, nil
	}
	uart := sim.New()
	uart.Baud = conf.Wire.Baud
	uart.Output = os.Stdout
	stdin := fx.RunFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, os.Stdin, func() error {
			_, err := io.Copy(uart, os.Stdin)
			return err
		})
	})
	return uart, []fx.Runnable{fx.NamedRun("uart", uart), fx.NamedRun("stdin", stdin)}, nil
}

func telemetryRunners(conf *config.Config, ctl *protocol.Controller, dev device) ([]fx.Runnable, error) {
	if conf.Telemetry.BrokerURL == "" {
		return nil, nil
	}
	deviceID, err := conf.DeviceID()
	if err != nil {
		return nil, err
	}
	queue, err := telemetry.NewQueueFromURL(conf.Telemetry.BrokerURL)
	if err != nil {
		return nil, err
	}
	bridge := &telemetry.Bridge{
		Broker:     queue,
		DeviceID:   deviceID,
		Source:     ctl,
		Injector:   dev,
		Classifier: conf.Classifier(),
		Interval:   conf.TelemetryInterval(),
	}
	glog.Infof("telemetry %s as %s", conf.Telemetry.BrokerURL, deviceID)
	return []fx.Runnable{fx.NamedRun("mqtt", queue), fx.NamedRun("telemetry", bridge)}, nil
}

func main() {
	flag.Parse()

	conf, err := config.Load(configFile)
	if err != nil {
		log.Fatalln(err)
	}
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}

	dev, runners, err := wire(conf)
	if err != nil {
		log.Fatalln(err)
	}
	sys := system.New()
	port := serial.NewPort(dev, sys).
		WithBufferSizes(conf.RxBufferSize, conf.TxBufferSize).
		WithClassifier(conf.Classifier())
	ctl := protocol.NewController(port, sys)
	tm, err := telemetryRunners(conf, ctl, dev)
	if err != nil {
		log.Fatalln(err)
	}
	if err := port.Arm(dev); err != nil {
		log.Fatalln(err)
	}

	loop := fx.NewLoop().Add(ctl)
	loop.Interval = conf.LoopInterval()
	loop.AddRunnable(runners...).
		AddRunnable(tm...).
		RunOrFail()
}
