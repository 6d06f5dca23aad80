package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pushwire/webpush"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP API that sends notifications",
		Long: "Serve an HTTP API for sending notifications.\n\n" +
			"  GET  /      the VAPID public key for PushManager.subscribe\n" +
			"  POST /push  {\"subscription\": {...}, \"message\": \"...\"}",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			conf, err := cfg.WebPush(a.log)
			if err != nil {
				return err
			}
			e, err := newServer(conf, a.log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := e.Shutdown(shutdownCtx); err != nil {
					a.log.WithError(err).Warn("Shutdown failed")
				}
			}()

			if cfg.TLSCertFile != "" {
				a.log.Infof("Serving on https://%s", cfg.Listen)
				err = e.StartTLS(cfg.Listen, cfg.TLSCertFile, cfg.TLSKeyFile)
			} else {
				a.log.Infof("Serving on http://%s", cfg.Listen)
				err = e.Start(cfg.Listen)
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
}

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type pushRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint" validate:"required,url"`
		Keys     struct {
			Auth   string `json:"auth" validate:"required_with=P256dh"`
			P256dh string `json:"p256dh" validate:"required_with=Auth"`
		} `json:"keys"`
	} `json:"subscription"`
	Message string `json:"message"`
	Topic   string `json:"topic"`
	Urgency string `json:"urgency" validate:"omitempty,oneof=very-low low normal high"`
}

type pushResponse struct {
	Status int    `json:"status"`
	Kind   string `json:"kind"`
}

type server struct {
	conf      *webpush.Config
	publicKey string
}

func newServer(conf *webpush.Config, log logrus.FieldLogger) (*echo.Echo, error) {
	s := &server{conf: conf}
	if conf.VAPID != nil {
		public, _, err := webpush.EncodeVAPIDKeys(conf.VAPID.Key)
		if err != nil {
			return nil, err
		}
		s.publicKey = public
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method": v.Method,
				"uri":    v.URI,
				"status": v.Status,
			}).Info("request")
			return nil
		},
	}))

	e.GET("/", s.getPublicKey)
	e.POST("/push", s.postPush)
	return e, nil
}

func (s *server) getPublicKey(c echo.Context) error {
	if s.publicKey == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no vapid key configured")
	}
	return c.JSON(http.StatusOK, map[string]string{"publicKey": s.publicKey})
}

func (s *server) postPush(c echo.Context) error {
	var req pushRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	conf := *s.conf
	if req.Topic != "" {
		conf.Topic = req.Topic
	}
	if req.Urgency != "" {
		conf.Urgency = webpush.Urgency(req.Urgency)
	}
	sub := &webpush.Subscription{
		Endpoint: req.Subscription.Endpoint,
		Keys: webpush.Keys{
			Auth:   req.Subscription.Keys.Auth,
			P256dh: req.Subscription.Keys.P256dh,
		},
	}

	resp, err := webpush.Send(c.Request().Context(), []byte(req.Message), sub, &conf)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return pushError(err)
	}
	return c.JSON(http.StatusCreated, pushResponse{
		Status: resp.StatusCode,
		Kind:   webpush.KindSuccess.String(),
	})
}

// pushError maps a send failure onto the status returned to the caller.
// Subscriptions the push service no longer knows are reported as 410 so
// callers can drop them.
func pushError(err error) *echo.HTTPError {
	var re *webpush.ResponseError
	if errors.As(err, &re) {
		status := http.StatusBadGateway
		switch re.Kind {
		case webpush.KindInvalidSubscription, webpush.KindExpiredSubscription:
			status = http.StatusGone
		case webpush.KindPayloadTooLarge:
			status = http.StatusRequestEntityTooLarge
		case webpush.KindTooManyRequests:
			status = http.StatusTooManyRequests
		}
		return echo.NewHTTPError(status, re.Kind.String())
	}

	switch {
	case errors.Is(err, webpush.ErrPayloadTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, webpush.ErrInvalidArgument):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, webpush.ErrConfiguration):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
