package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/layer-3/paydesk"
	"github.com/layer-3/paydesk/adapters/chain"
	"github.com/layer-3/paydesk/adapters/events"
	"github.com/layer-3/paydesk/adapters/store"
	"github.com/layer-3/paydesk/adapters/tokenizer"
	"github.com/layer-3/paydesk/adapters/verifier"
	"github.com/layer-3/paydesk/adapters/wallet"
	"github.com/layer-3/paydesk/config"
	"github.com/layer-3/paydesk/internal/logger"
	"github.com/layer-3/paydesk/ports"
	"github.com/layer-3/paydesk/service"
	transport "github.com/layer-3/paydesk/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init("paydesk", cfg.Debug)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionKey, err := loadSessionKey(cfg.Session.SigningKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid SESSION_SIGNING_KEY")
	}

	var (
		accounts  ports.AccountDirectory
		nonces    ports.Store
		publisher message.Publisher
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse Redis URL")
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			logger.NewWatermillAdapter(),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Redis publisher")
		}
		accounts = store.NewRedisAccounts(redisClient)
		nonces = store.NewRedisStore(redisClient)
	} else {
		log.Warn().Msg("REDIS_URL not set, keeping state in memory")
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger.NewWatermillAdapter())
		accounts = store.NewMemoryAccounts()
		nonces = store.NewMemoryStore()
	}
	defer publisher.Close()

	if cfg.Verification.AccountCacheTTL > 0 {
		accounts = store.NewCachedDirectory(accounts, cfg.Verification.AccountCacheTTL)
	}
	eventPub := events.NewWatermillPublisher(publisher)

	verification := service.NewVerificationService(
		tokenizer.NewJWTTokenizer(sessionKey),
		nonces,
		verifier.NewPersonalSign(),
		cfg.Chain.NetworkName,
		cfg.Verification.ChallengeTTL,
		cfg.Session.TTL,
		service.WithEvents(eventPub),
	)

	var client paydesk.Client
	if cfg.WalletPrivateKey != "" {
		app, kw := buildOperator(ctx, cfg, accounts, eventPub)
		app.Init(ctx)
		defer app.Teardown()
		kw.Connect()
		client = app
	} else {
		log.Info().Msg("WALLET_PRIVATE_KEY not set, serving verification only")
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      transport.SetupRouter(verification, client, cfg.Server.Origins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}

func buildOperator(ctx context.Context, cfg *config.Config, accounts ports.AccountDirectory, eventPub ports.EventPublisher) (*paydesk.App, *wallet.KeyWallet) {
	if cfg.Chain.RPCURL == "" {
		log.Fatal().Msg("RPC_URL is required with WALLET_PRIVATE_KEY")
	}
	rpc, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RPC")
	}
	checkChainID(ctx, rpc, cfg.Chain.ChainID)

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.WalletPrivateKey, "0x"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid WALLET_PRIVATE_KEY")
	}
	kw := wallet.NewKeyWallet(key, cfg.Chain.ChainID, rpc)

	deps := paydesk.Dependencies{
		Wallet:   kw,
		Chain:    rpc,
		Accounts: accounts,
		Events:   eventPub,
	}
	if cfg.Verification.VerifierURL != "" {
		deps.Verifier = verifier.NewRemote(cfg.Verification.VerifierURL, cfg.Verification.VerifyTimeout)
	}

	app := paydesk.New(deps, paydesk.Settings{
		Network:             cfg.Chain.NetworkName,
		NativeSymbol:        cfg.Chain.NativeSymbol,
		TermsVersion:        cfg.Session.TermsVersion,
		SessionTTL:          cfg.Session.TTL,
		ExpiryCheckInterval: cfg.Session.ExpiryCheckInterval,
		SignatureTimeout:    cfg.Session.SignatureTimeout,
		BlockPollInterval:   cfg.Payments.BlockPollInterval,
		SettleDelay:         cfg.Payments.SettleDelay,
		ReceiptPollInterval: cfg.Payments.ReceiptPollInterval,
		ConfirmationTimeout: cfg.Payments.ConfirmationTimeout,
	})
	return app, kw
}

func checkChainID(ctx context.Context, rpc *ethclient.Client, want uint64) {
	got, err := rpc.ChainID(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not read chain id from RPC")
		return
	}
	if got.Uint64() != want {
		log.Fatal().Uint64("rpc", got.Uint64()).Uint64("configured", want).Msg("CHAIN_ID does not match RPC")
	}
}

// loadSessionKey parses a PEM EC key, or generates an ephemeral one when pem is empty.
func loadSessionKey(pem string) (*ecdsa.PrivateKey, error) {
	if pem == "" {
		log.Warn().Msg("SESSION_SIGNING_KEY not set, tokens will not survive a restart")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	return jwt.ParseECPrivateKeyFromPEM([]byte(pem))
}
