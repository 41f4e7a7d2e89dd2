package cmd

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	chiware "github.com/go-chi/chi/middleware"
	"github.com/marketwell/payhub/libs/clients/cardgateway"
	"github.com/marketwell/payhub/libs/clients/rates"
	"github.com/marketwell/payhub/libs/clients/walletpay"
	"github.com/marketwell/payhub/libs/kafka"
	"github.com/marketwell/payhub/libs/logging"
	srv "github.com/marketwell/payhub/libs/service"
	"github.com/marketwell/payhub/services/payments"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ServeCmd runs the payments service
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the payments service",
	RunE:  serveRun,
}

func init() {
	flags := ServeCmd.Flags()

	flags.String("address", ":3333", "the address to listen on")
	Must(viper.BindPFlag("address", flags.Lookup("address")))
	Must(viper.BindEnv("address", "ADDR"))

	flags.String("datastore", "", "the datastore url")
	Must(viper.BindPFlag("datastore", flags.Lookup("datastore")))
	Must(viper.BindEnv("datastore", "DATABASE_URL"))

	flags.String("card-gateway-server", "", "the card gateway server url")
	Must(viper.BindPFlag("card-gateway-server", flags.Lookup("card-gateway-server")))
	Must(viper.BindEnv("card-gateway-server", "CARD_GATEWAY_SERVER"))

	flags.String("card-gateway-merchant-id", "", "the card gateway merchant id")
	Must(viper.BindPFlag("card-gateway-merchant-id", flags.Lookup("card-gateway-merchant-id")))
	Must(viper.BindEnv("card-gateway-merchant-id", "CARD_GATEWAY_MERCHANT_ID"))

	flags.String("card-gateway-password", "", "the card gateway merchant password")
	Must(viper.BindPFlag("card-gateway-password", flags.Lookup("card-gateway-password")))
	Must(viper.BindEnv("card-gateway-password", "CARD_GATEWAY_PASSWORD"))

	flags.String("card-settlement-currency", "USD", "the currency the card gateway settles in")
	Must(viper.BindPFlag("card-settlement-currency", flags.Lookup("card-settlement-currency")))
	Must(viper.BindEnv("card-settlement-currency", "CARD_SETTLEMENT_CURRENCY"))

	flags.String("wallet-server", "", "the wallet api server url")
	Must(viper.BindPFlag("wallet-server", flags.Lookup("wallet-server")))
	Must(viper.BindEnv("wallet-server", "WALLET_SERVER"))

	flags.String("wallet-public-key", "", "the wallet api public key")
	Must(viper.BindPFlag("wallet-public-key", flags.Lookup("wallet-public-key")))
	Must(viper.BindEnv("wallet-public-key", "WALLET_PUBLIC_KEY"))

	flags.String("wallet-private-key", "", "the wallet api private key")
	Must(viper.BindPFlag("wallet-private-key", flags.Lookup("wallet-private-key")))
	Must(viper.BindEnv("wallet-private-key", "WALLET_PRIVATE_KEY"))

	flags.Bool("wallet-sandbox", false, "use the wallet sandbox environment")
	Must(viper.BindPFlag("wallet-sandbox", flags.Lookup("wallet-sandbox")))
	Must(viper.BindEnv("wallet-sandbox", "WALLET_SANDBOX"))

	flags.String("rates-server", "", "the rate feed server url")
	Must(viper.BindPFlag("rates-server", flags.Lookup("rates-server")))
	Must(viper.BindEnv("rates-server", "RATES_SERVER"))

	flags.String("rates-app-id", "", "the rate feed app id")
	Must(viper.BindPFlag("rates-app-id", flags.Lookup("rates-app-id")))
	Must(viper.BindEnv("rates-app-id", "RATES_APP_ID"))

	flags.String("kafka-brokers", "", "comma separated list of kafka brokers")
	Must(viper.BindPFlag("kafka-brokers", flags.Lookup("kafka-brokers")))
	Must(viper.BindEnv("kafka-brokers", "KAFKA_BROKERS"))

	flags.String("kafka-confirmations-topic", "payment-confirmations",
		"the topic provider confirmations arrive on")
	Must(viper.BindPFlag("kafka-confirmations-topic", flags.Lookup("kafka-confirmations-topic")))
	Must(viper.BindEnv("kafka-confirmations-topic", "KAFKA_CONFIRMATIONS_TOPIC"))

	flags.String("kafka-dlq-topic", "payment-confirmations-dlq",
		"the dead letter topic for poison confirmations")
	Must(viper.BindPFlag("kafka-dlq-topic", flags.Lookup("kafka-dlq-topic")))
	Must(viper.BindEnv("kafka-dlq-topic", "KAFKA_DLQ_TOPIC"))

	flags.String("kafka-consumer-group", "payhub",
		"the consumer group for the confirmation sink")
	Must(viper.BindPFlag("kafka-consumer-group", flags.Lookup("kafka-consumer-group")))
	Must(viper.BindEnv("kafka-consumer-group", "KAFKA_CONSUMER_GROUP"))

	RootCmd.AddCommand(ServeCmd)
}

func serveRun(command *cobra.Command, args []string) error {
	ctx := command.Context()
	logger := logging.Logger(ctx, "cmd.serve")

	if dsn := viper.GetString("sentry-dsn"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     dsn,
			Release: "payhub@" + version,
		}); err != nil {
			logger.Error().Err(err).Msg("failed to init sentry")
		}
	}

	db, err := payments.NewPostgres(viper.GetString("datastore"), true)
	if err != nil {
		return err
	}

	gatewayClient, err := cardgateway.New(cardgateway.Config{
		Server:     viper.GetString("card-gateway-server"),
		MerchantID: viper.GetString("card-gateway-merchant-id"),
		Password:   viper.GetString("card-gateway-password"),
	})
	if err != nil {
		return err
	}

	walletClient, err := walletpay.New(walletpay.Config{
		Server:     viper.GetString("wallet-server"),
		PublicKey:  viper.GetString("wallet-public-key"),
		PrivateKey: viper.GetString("wallet-private-key"),
	})
	if err != nil {
		return err
	}
	if viper.GetBool("wallet-sandbox") {
		walletClient = walletpay.NewSandboxClient(walletClient)
	}

	ratesClient, err := rates.New(rates.Config{
		Server: viper.GetString("rates-server"),
		AppID:  viper.GetString("rates-app-id"),
	})
	if err != nil {
		return err
	}

	converter := payments.NewConverter(ratesClient, db)

	registry := payments.NewRegistry(
		payments.NewCashProvider(),
		payments.NewCardProvider(gatewayClient, converter, viper.GetString("card-settlement-currency")),
		payments.NewWalletProvider(walletClient, db),
	)

	service, err := payments.InitService(ctx, db, registry, converter)
	if err != nil {
		return err
	}

	// pull a fresh rates table without delaying startup
	go func() {
		if err := converter.Refresh(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial rates refresh failed")
		}
	}()

	for _, job := range service.Jobs() {
		for i := 0; i < job.Workers; i++ {
			go srv.JobWorker(ctx, job.Func, job.Cadence)
		}
	}

	if brokers := viper.GetString("kafka-brokers"); brokers != "" {
		reader, err := kafka.NewKafkaReader(ctx, brokers,
			viper.GetString("kafka-consumer-group"),
			viper.GetString("kafka-confirmations-topic"))
		if err != nil {
			return err
		}
		dlqWriter := kafka.NewDLQWriter(brokers, viper.GetString("kafka-dlq-topic"))

		go func() {
			err := kafka.Consume(ctx, reader,
				payments.NewConfirmationHandler(db),
				payments.NewConfirmationErrorHandler(dlqWriter))
			if err != nil {
				logger.Error().Err(err).Msg("confirmation consumer exited")
				sentry.CaptureException(err)
			}
		}()
	}

	r := chi.NewRouter()
	r.Use(chiware.RequestID)
	r.Use(chiware.Recoverer)
	r.Use(chiware.Timeout(15 * time.Second))

	r.Get("/health-check", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/v1/payments", payments.Router(service))

	addr := viper.GetString("address")
	logger.Info().Str("addr", addr).Msg("payments service listening")

	server := &http.Server{
		Addr:         addr,
		Handler:      chi.ServerBaseContext(ctx, r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
	}
	return server.ListenAndServe()
}
