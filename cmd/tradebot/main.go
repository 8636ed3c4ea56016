package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"dca-trader/internal/alert"
	"dca-trader/internal/config"
	"dca-trader/internal/core"
	"dca-trader/internal/exchange/coinbase"
	"dca-trader/internal/server"
	"dca-trader/internal/trader"
)

func main() {
	var (
		configPath string
		listenAddr string
		marketName string
		orderSide  string
		amount     string
		currency   string
	)
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.StringVar(&listenAddr, "listen", "", "serve HTTP on this address instead of running one trade")
	flag.StringVar(&marketName, "market", "", "market id, e.g. BTC-USD")
	flag.StringVar(&orderSide, "side", "", "buy or sell")
	flag.StringVar(&amount, "amount", "", "amount to trade, decimal string")
	flag.StringVar(&currency, "currency", "", "currency the amount is denominated in")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	if listenAddr == "" {
		listenAddr = cfg.Server.ListenAddr
	}

	client, err := coinbase.NewClient(cfg)
	if err != nil {
		fatal(err.Error())
	}

	var alerts alert.Alerter
	if cfg.Telegram.Enabled {
		alerts = alert.NewTelegramNotifier(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Telegram.APIBaseURL,
			time.Duration(cfg.Telegram.TimeoutSec)*time.Second,
		)
	}

	base := &trader.Trader{
		Exchange:       client,
		Alerts:         alerts,
		PollInterval:   time.Duration(cfg.Trade.PollIntervalSec) * time.Second,
		ConfirmTimeout: time.Duration(cfg.Trade.ConfirmTimeoutSec) * time.Second,
		MaxFunds:       cfg.Trade.MaxFunds.Decimal,
	}
	var executor server.Executor = base
	if cfg.Trade.UseFillFeed {
		executor = &feedExecutor{client: client, base: base}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listenAddr != "" {
		runServer(ctx, listenAddr, executor)
		return
	}
	runOnce(ctx, executor, marketName, orderSide, amount, currency)
}

func runOnce(ctx context.Context, executor server.Executor, marketName, orderSide, amount, currency string) {
	if marketName == "" || orderSide == "" || amount == "" || currency == "" {
		fatal("-market, -side, -amount and -currency are required (or use -listen)")
	}
	side, ok := core.ParseSide(orderSide)
	if !ok {
		fatal("side must be buy or sell")
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		fatal(fmt.Sprintf("invalid amount %q: %v", amount, err))
	}

	result, err := executor.Execute(ctx, core.OrderRequest{
		Market:         marketName,
		Side:           side,
		Amount:         amt,
		AmountCurrency: currency,
	})
	body, marshalErr := json.MarshalIndent(result, "", "  ")
	if marshalErr != nil {
		body = []byte(fmt.Sprintf("%+v", result))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, string(body))
		fatal(err.Error())
	}
	fmt.Println(string(body))
}

func runServer(ctx context.Context, listenAddr string, executor server.Executor) {
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: server.New(executor).Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("level=ERROR event=server_shutdown_failed err=%q", err.Error())
		}
	}()
	log.Printf("level=INFO event=server_listening addr=%q", listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(err.Error())
	}
}

// feedExecutor opens a user-channel feed for the traded market so fills wake
// the confirmation loop early. A feed failure only loses the early wake-up;
// the trade proceeds on polling alone.
type feedExecutor struct {
	client *coinbase.Client
	base   *trader.Trader
}

func (f *feedExecutor) Execute(ctx context.Context, req core.OrderRequest) (trader.Result, error) {
	feed, err := f.client.NewFeed(ctx, req.Market)
	if err != nil {
		log.Printf("level=WARN event=feed_unavailable market=%q err=%q", req.Market, err.Error())
		return f.base.Execute(ctx, req)
	}
	defer feed.Close()

	updates, errs := feed.Updates(ctx)
	ids := make(chan string, 16)
	go func() {
		defer close(ids)
		for u := range updates {
			select {
			case ids <- u.OrderID:
			default:
			}
		}
		select {
		case err := <-errs:
			log.Printf("level=WARN event=feed_degraded err=%q", err.Error())
		default:
		}
	}()

	tr := *f.base
	tr.Updates = ids
	return tr.Execute(ctx, req)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
