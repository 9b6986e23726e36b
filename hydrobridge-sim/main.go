package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	bridgecli "github.com/hydrotel/hydrobridge/bridge-cli"
	bridgemqtt "github.com/hydrotel/hydrobridge/bridge-mqtt"
	"github.com/hydrotel/hydrobridge/hydrometer"
)

var service = bridgecli.NewService("hydrobridge-sim")

var opts struct {
	Interval time.Duration
	Mode     string
	Aliased  bool
}

func main() {
	app := bridgecli.App(
		service,
		action,
		append(
			bridgecli.CommonFlags,
			bridgecli.PortFlag(3000),
			&cli.DurationFlag{
				Name:        "interval",
				Usage:       "delay between simulated readings",
				Value:       time.Second,
				EnvVars:     []string{"SIM_INTERVAL"},
				Destination: &opts.Interval,
			},
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "delivery path, http or mqtt",
				Value:       "http",
				EnvVars:     []string{"SIM_MODE"},
				Destination: &opts.Mode,
			},
			&cli.BoolFlag{
				Name:        "aliased",
				Usage:       "send payloads with legacy field names (total, flowRate)",
				Destination: &opts.Aliased,
			},
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(cliCtx *cli.Context) error {
	logger := bridgecli.Logger(service)

	send, closer, err := sender()
	if err != nil {
		return err
	}
	defer closer()

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Dur("interval", opts.Interval).Str("mode", opts.Mode).Msg("sending simulated readings")

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var total float64
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// Flow oscillates between 0 and roughly 12 L/min.
		flow := math.Max(0, 6+6*math.Sin(float64(tick)/10)+(rand.Float64()-0.5))
		total += (flow / 60) * opts.Interval.Seconds()
		tick++

		reading := hydrometer.Reading{
			Ts:          hydrometer.Now(),
			TotalLiters: round(total, 3),
			FlowLmin:    round(flow, 2),
		}
		if err := send(payload(reading)); err != nil {
			logger.Error().Err(err).Msg("send failed")
			continue
		}
		if tick%10 == 0 {
			logger.Info().Float64("totalLiters", reading.TotalLiters).
				Float64("flowLmin", reading.FlowLmin).Msg("progress")
		}
	}
}

// payload optionally rewrites a reading to the legacy device field
// names, to exercise the server's normalizer.
func payload(reading hydrometer.Reading) any {
	if !opts.Aliased {
		return reading
	}
	return map[string]any{
		"ts":       reading.Ts,
		"total":    reading.TotalLiters,
		"flowRate": reading.FlowLmin,
	}
}

func sender() (func(any) error, func(), error) {
	switch opts.Mode {
	case "http":
		url := fmt.Sprintf("http://localhost:%v/api/data", bridgecli.CommonOpts.Port)
		return func(body any) error {
			encoded, err := json.Marshal(body)
			if err != nil {
				return err
			}
			resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %v", resp.Status)
			}
			return nil
		}, func() {}, nil

	case "mqtt":
		client := bridgemqtt.Connect(bridgemqtt.Config{
			URL:      bridgecli.CommonOpts.MQTTURL,
			ClientID: service.Name,
			Logger:   bridgecli.Logger(service),
		})
		return func(body any) error {
			return client.Publish(bridgecli.CommonOpts.DataTopic, body)
		}, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

func round(value float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(value*scale) / scale
}
