package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hydrotel/hydrobridge/bridge"
	bridgecli "github.com/hydrotel/hydrobridge/bridge-cli"
	bridgegql "github.com/hydrotel/hydrobridge/bridge-gql"
	bridgemqtt "github.com/hydrotel/hydrobridge/bridge-mqtt"
	bridgerest "github.com/hydrotel/hydrobridge/bridge-rest"
	bridgestore "github.com/hydrotel/hydrobridge/bridge-store"
	"github.com/hydrotel/hydrobridge/bridge-store/memring"
	bridgews "github.com/hydrotel/hydrobridge/bridge-ws"
)

var service = bridgecli.NewService("hydrobridge-server")

func main() {
	app := bridgecli.App(
		service,
		action,
		append(
			bridgecli.CommonFlags,
			bridgecli.PortFlag(3000),
			&bridgecli.DBPathFlag,
			&bridgecli.StaticDirFlag,
			&bridgecli.DashboardDirFlag,
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(cliCtx *cli.Context) error {
	logger := bridgecli.Logger(service)

	// A failed open is not fatal. Readings fall back to the in-memory
	// ring for the lifetime of the process.
	var store bridgestore.Store
	if sqlite, err := bridgestore.Open(bridgecli.CommonOpts.DBPath, logger); err != nil {
		logger.Warn().Err(err).Str("path", bridgecli.CommonOpts.DBPath).
			Msg("sqlite unavailable, holding readings in memory")
	} else {
		store = sqlite
		defer sqlite.Close()
	}

	hub := bridgews.NewHub(logger)

	mqttClient := bridgemqtt.Connect(bridgemqtt.Config{
		URL:      bridgecli.CommonOpts.MQTTURL,
		ClientID: service.Name,
		Logger:   logger,
	})
	defer mqttClient.Close()

	b := bridge.New(bridge.Config{
		Logger:   logger,
		Store:    store,
		Ring:     memring.New(memring.DefaultCapacity),
		Hub:      hub,
		Commands: mqttClient,
		CmdTopic: bridgecli.CommonOpts.CmdTopic,
	})
	mqttClient.Subscribe(bridgecli.CommonOpts.DataTopic, b.HandleDeviceMessage)

	router := chi.NewRouter()
	bridgerest.Middlewares(service, router)
	b.Routes(router)
	if err := bridgegql.Routes(router, b); err != nil {
		return err
	}
	router.Get("/ws", bridgews.Handler(hub, logger))
	router.Handle("/metrics", promhttp.Handler())
	bridgerest.Static(router, "/dashboard", bridgecli.CommonOpts.DashboardDir)
	bridgerest.Static(router, "/", bridgecli.CommonOpts.StaticDir)

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hub.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return bridgerest.Webserver(groupCtx, service, router)
	})
	return group.Wait()
}
