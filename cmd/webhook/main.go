package main

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/httpbackend"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/cache"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/config"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/logging"
)

type app struct {
	secret string
	inv    *httpbackend.Invalidator
	log    *zap.Logger
}

func respond(status int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

// header sin importar mayúsculas (API Gateway v2 los manda en minúscula)
func header(req events.APIGatewayV2HTTPRequest, name string) string {
	if v := req.Headers[strings.ToLower(name)]; v != "" {
		return v
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (a *app) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	a.log.Info("webhook hit",
		zap.String("path", req.RawPath),
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("ip", req.RequestContext.HTTP.SourceIP),
	)

	if !httpbackend.Authorized(header(req, httpbackend.SecretHeader), a.secret) {
		return respond(http.StatusUnauthorized, `{"error":"unauthorized"}`), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		dec, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return respond(http.StatusBadRequest, `{"error":"invalid base64"}`), nil
		}
		body = dec
	}

	ev, err := httpbackend.ParseEvent(body)
	if err == nil {
		err = a.inv.Apply(ctx, ev)
	}
	switch {
	case errors.Is(err, httpbackend.ErrUnknownEvent):
		return respond(http.StatusAccepted, `{"ok":true,"ignored":true}`), nil
	case errors.Is(err, httpbackend.ErrBadEvent):
		return respond(http.StatusBadRequest, `{"error":"bad event"}`), nil
	case err != nil:
		a.log.Warn("invalidate", zap.Error(err))
		return respond(http.StatusInternalServerError, `{"error":"cache unavailable"}`), nil
	}
	return respond(http.StatusOK, `{"ok":true}`), nil
}

func main() {
	cfg := config.LoadLambda()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	rdb, err := cache.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	a := &app{
		secret: cfg.WebhookSecret,
		inv:    httpbackend.NewInvalidator(cache.New(rdb), logger),
		log:    logger.Named("lambda"),
	}
	lambda.Start(a.handle)
}
