package main

import (
	"context"
	"os"

	"callbridge/config"
	"callbridge/logger"
	"callbridge/middleware"
	midsec "callbridge/middleware/security"
	"callbridge/module/call"
	"callbridge/module/chat"
	"callbridge/module/presence"
	"callbridge/module/signal"
	"callbridge/module/user"
	"callbridge/service/hub"
	"callbridge/service/reaper"
	"callbridge/service/relay"
	"callbridge/service/storage"
	"callbridge/tools/safe"
	sec "callbridge/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("CB_CONFIG")
	if cfgPath == "" {
		cfgPath = "callbridge.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}

	jwtOpts := sec.DefaultOptions([]byte(cfg.JWTSecret))
	middleware.Configure(midsec.Options{JWT: jwtOpts})

	// presence, mirrored to Redis when an address is configured
	var mirror presence.Mirror
	if cfg.Redis.Addr != "" {
		if err := storage.InitRedis(storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}); err != nil {
			logger.Errorf("redis init: %v", err)
			os.Exit(1)
		}
		mirror = storage.NewPresenceMirror(storage.GetRedis(), cfg.GatewayID)
	}
	reg := presence.NewRegistry(presence.Conf{
		Timeout: cfg.PresenceTimeout.Std(),
		Mirror:  mirror,
	})

	// cross-gateway relay, only with a NATS url configured
	var remote hub.RemotePublisher
	var natsRelay *relay.Relay
	if cfg.Nats.URL != "" {
		natsRelay, err = relay.New(cfg.Nats.URL, cfg.GatewayID)
		if err != nil {
			logger.Errorf("nats connect: %v", err)
			os.Exit(1)
		}
		remote = natsRelay
	}
	h := hub.New(remote)
	if natsRelay != nil {
		if err := natsRelay.Start(h); err != nil {
			logger.Errorf("nats subscribe: %v", err)
			os.Exit(1)
		}
	}

	// chat store: Mongo when configured, in-memory otherwise
	var store chat.Store
	if cfg.Mongo.URI != "" {
		if err := storage.InitMongo(storage.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		}); err != nil {
			logger.Errorf("mongo init: %v", err)
			os.Exit(1)
		}
		ms := chat.NewMongoStore(storage.GetMongo())
		if err := ms.EnsureIndexes(context.Background()); err != nil {
			logger.Warnf("mongo indexes: %v", err)
		}
		store = ms
	} else {
		logger.Warn("no mongo configured, chat messages are in-memory only")
		store = chat.NewMemoryStore()
	}

	calls := call.NewTable(call.Conf{RingTimeout: cfg.RingTimeout.Std()})
	sigSvc := signal.NewService(calls, h, reg, nil)
	chatSvc := chat.NewService(store, h, nil)

	rp := reaper.New(reg, sigSvc, cfg.SweepEvery.Std())
	safe.Go(rp.Run)
	defer rp.Stop()

	userH := user.NewHandler(jwtOpts, reg)
	presH := presence.NewHandler(reg)
	sigH := signal.NewHandler(sigSvc)
	chatH := chat.NewHandler(chatSvc)

	r := gin.New()
	r.Use(gin.Recovery())

	auth := middleware.RouteOpt{IsAuth: true}
	middleware.POST(r, "/api/login", userH.Login, middleware.RouteOpt{})
	middleware.POST(r, "/api/presence/heartbeat", presH.Heartbeat, auth)
	middleware.POST(r, "/api/presence/offline", presH.Offline, auth)
	middleware.GET(r, "/api/presence/online", presH.Online, auth)
	middleware.POST(r, "/api/signaling/sdp", sigH.SubmitSDP, auth)
	middleware.POST(r, "/api/signaling/candidate", sigH.SubmitCandidate, auth)
	middleware.GET(r, "/api/signaling/poll", sigH.Poll, auth)
	middleware.POST(r, "/api/signaling/hangup", sigH.Hangup, auth)
	middleware.POST(r, "/api/signaling/reject", sigH.Reject, auth)
	middleware.GET(r, "/api/signaling/call-status", sigH.CallStatus, auth)
	middleware.POST(r, "/api/chat/send", chatH.Send, auth)
	middleware.GET(r, "/api/chat/history", chatH.History, auth)
	middleware.GET(r, "/api/chat/unread", chatH.Unread, auth)
	middleware.POST(r, "/api/chat/read", chatH.MarkRead, auth)
	middleware.GET(r, "/ws", h.HandleWS(reg), auth)

	logger.Infof("[http] gateway=%s listening on %s", cfg.GatewayID, cfg.Listen)
	if err := r.Run(cfg.Listen); err != nil {
		logger.Errorf("http server: %v", err)
		os.Exit(1)
	}
}
