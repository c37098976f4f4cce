package main

import (
	"context"
	"log"
	"time"

	"memo-backend/infrastructure/config"
	"memo-backend/infrastructure/di"
	"memo-backend/interfaces/http/rest"
	"memo-backend/interfaces/http/rest/middleware"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"
)

// Global variables for Lambda lifecycle management
var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	// container holds the dependency injection container
	container *di.Container

	// coldStart tracks whether this is a cold start invocation
	coldStart = true

	// coldStartTime records when the cold start began
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The container lives as long as the execution environment; no cleanup.
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router := rest.NewRouter(
		container.MemoService,
		container.Stores.Health,
		container.Metrics,
		container.ErrorHandler,
		container.Logger,
		rest.Options{EnableCORS: cfg.EnableCORS, AllowedOrigins: cfg.CORSAllowedOrigins},
	)
	chiLambda = chiadapter.NewV2(router.Setup())

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
	)
}

// principalFromAuthorizer copies the JWT subject validated by the API Gateway
// authorizer into X-User-ID. A client-supplied header is always replaced.
func principalFromAuthorizer(req *events.APIGatewayV2HTTPRequest) {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	delete(req.Headers, "x-user-id")
	delete(req.Headers, middleware.HeaderUserID)

	authorizer := req.RequestContext.Authorizer
	if authorizer == nil || authorizer.JWT == nil {
		return
	}
	if sub := authorizer.JWT.Claims["sub"]; sub != "" {
		req.Headers[middleware.HeaderUserID] = sub
	}
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	principalFromAuthorizer(&req)

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	if resp.StatusCode >= 500 {
		container.Logger.Error("Lambda error response",
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("request_id", req.RequestContext.RequestID),
			zap.Int("status_code", resp.StatusCode),
		)
	}

	return resp, err
}

// main is the entry point for the Lambda function
func main() {
	lambda.Start(Handler)
}
