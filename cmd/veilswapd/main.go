package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/veilswap/veilswap-daemon/internal/config"
	"github.com/veilswap/veilswap-daemon/internal/core/application"
	wsnetwork "github.com/veilswap/veilswap-daemon/internal/infrastructure/network/websocket"
	dbbadger "github.com/veilswap/veilswap-daemon/internal/infrastructure/storage/db/badger"
	walletrest "github.com/veilswap/veilswap-daemon/internal/infrastructure/wallet/rest"
	"github.com/veilswap/veilswap-daemon/pkg/crawler"
	"github.com/veilswap/veilswap-daemon/pkg/explorer/esplora"
	"github.com/veilswap/veilswap-daemon/pkg/stats"
)

func main() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
	if err := config.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	dbManager, err := dbbadger.NewDbManager(config.GetDbDir(), nil)
	if err != nil {
		log.WithError(err).Fatal("opening datadir")
	}
	defer dbManager.Close()
	tradeRepo := dbbadger.NewTradeRepositoryImpl(dbManager)

	explorerSvc, err := esplora.NewService(
		config.GetString(config.ExplorerEndpointKey),
	)
	if err != nil {
		log.WithError(err).Fatal("connecting to block-data provider")
	}

	crawlerSvc := crawler.NewService(crawler.Opts{
		ExplorerSvc:            explorerSvc,
		IntervalInMilliseconds: config.GetInt(config.CrawlIntervalKey),
		RequestsPerSecond:      config.GetFloat(config.CrawlLimitKey),
		ErrorHandler:           application.CrawlerErrorHandler,
	})

	networkSvc, err := wsnetwork.NewService(
		config.GetInt(config.PeerListeningPortKey),
	)
	if err != nil {
		log.WithError(err).Fatal("starting peer endpoint")
	}
	defer networkSvc.Close()
	walletSvc := walletrest.NewService(config.GetString(config.WalletAddrKey))

	tradeManager := application.NewTradeManager(application.TradeManagerOpts{
		TradeRepository:       tradeRepo,
		WalletSvc:             walletSvc,
		NetworkSvc:            networkSvc,
		CrawlerSvc:            crawlerSvc,
		RequiredConfirmations: int64(config.GetInt(config.RequiredConfirmationsKey)),
		TradeTimeout:          config.GetDuration(config.TradeTimeoutKey),
	})
	if err := tradeManager.Start(context.Background()); err != nil {
		log.WithError(err).Fatal("starting trade manager")
	}
	defer tradeManager.Stop()

	statsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetInt(config.StatsPortKey)),
		Handler: promhttp.Handler(),
	}
	var group errgroup.Group
	group.Go(func() error {
		if err := statsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if interval := config.GetDuration(config.StatsIntervalKey); interval > 0 {
		statsCtx, stopStats := context.WithCancel(context.Background())
		defer stopStats()
		stats.EnableMemoryStatistics(statsCtx, interval)
	}

	log.Info("daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	statsServer.Close()
	if err := group.Wait(); err != nil {
		log.WithError(err).Error("stats server")
	}
	log.Info("exiting")
}
