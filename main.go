package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/audit"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/http/rest"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/moderation"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/notify"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

func getEnvOrFail(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("%s not set", key)
	}
	return val
}

func main() {
	// Get env variables
	port := getEnvOrFail("APP_PORT")
	lkURL := getEnvOrFail("LIVEKIT_URL")
	lkAPIKey := getEnvOrFail("LIVEKIT_API_KEY")
	lkAPISecret := getEnvOrFail("LIVEKIT_API_SECRET")
	logLevel := os.Getenv("LOG_LEVEL")
	webhookUrls := os.Getenv("WEBHOOK_URLS")
	sentinel := os.Getenv("SENTINEL_CLAIM")

	// Get log verbosity
	var verbosity log.Lvl
	switch strings.ToLower(logLevel) {
	case "debug":
		verbosity = log.DEBUG
	case "info":
		verbosity = log.INFO
	case "warn":
		verbosity = log.WARN
	case "error":
		fallthrough
	default:
		verbosity = log.ERROR
	}
	log.SetLevel(verbosity)
	log.SetHeader("(${short_file}:${line}) ${time_rfc3339} ${level}: ")

	// Separate the webhooks by comma
	var webhooks = []string{}
	if webhookUrls != "" {
		webhooks = strings.Split(webhookUrls, ",")
	}

	// Notification sink: always log, fan out to webhooks when configured
	sink := notify.NewLogSink()
	if len(webhooks) > 0 {
		sink = notify.Combine(sink, notify.NewWebhookSink(webhooks))
	}

	// Create S3 audit archival only if the environment variables are not empty
	s3Region := os.Getenv("S3_REGION")
	s3Bucket := os.Getenv("S3_BUCKET")
	var uploader audit.Uploader
	if s3Region != "" && s3Bucket != "" {
		var err error
		uploader, err = audit.NewS3Uploader(audit.S3Config{
			Region:    s3Region,
			Bucket:    s3Bucket,
			Directory: os.Getenv("S3_DIRECTORY"),
		})
		if err != nil {
			log.Fatal(err)
		}
	}
	trail := audit.NewTrail(uploader)

	// Initialise moderation service
	service, err := moderation.NewService(lkURL, lkAPIKey, lkAPISecret, sentinel, sink, trail)
	if err != nil {
		log.Fatal(err)
	}

	// Initialise moderation controller
	controller := rest.NewModerationController(service)

	// Initialise server
	e := echo.New()

	// Attach middlewares
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "(${host}) ${time_rfc3339} ${level}: ${method} ${uri} ${status} ${error}\n",
	}))

	// Attach handlers
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Welcome to CGC")
	})
	e.GET("/health-check", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Attach moderation handlers
	e.POST("/moderation/start", controller.StartModeration)
	e.POST("/moderation/stop", controller.StopModeration)
	e.POST("/moderation/restricted-mode", controller.SetRestrictedMode)
	e.POST("/moderation/unmute-request", controller.RequestUnmute)
	e.POST("/moderation/raise-hand", controller.RaiseHand)
	e.POST("/moderation/lower-hand", controller.LowerHand)
	e.POST("/moderation/approval", controller.SetApproval)
	e.POST("/moderation/mute-all", controller.MuteAll)
	e.GET("/moderation/status", controller.Status)

	// Start server
	e.Logger.Fatal(e.Start(":" + port))
}
