package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	reuseport "github.com/kavu/go_reuseport"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/argus/client"
	"github.com/luma/argus/internal/env"
	"github.com/luma/argus/protocol"
	"github.com/luma/argus/storage"
	"github.com/luma/argus/transport"
)

var (
	// The host to serve status requests on
	host string

	// The port to serve status requests on
	httpPort string

	// How long to wait before redialling a lost panel session
	reconnectDelay time.Duration
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.StringVarP(&host, "host", "a", "0.0.0.0", "The host to serve status requests on")
	flags.StringVar(&httpPort, "http-port", "7362", "The port to serve status requests on")
	flags.DurationVar(&reconnectDelay, "reconnect-delay", 5*time.Second,
		"How long to wait before redialling a lost panel session")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start monitoring the panel",
	Long: `Start monitoring the panel

Connects to the panel's ComIP module, authenticates with the UDL
password, and keeps the session alive, logging every decoded event
and serving the last observed panel state over HTTP.

Usage
	argus start

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.Trace)
		if err != nil {
			return err
		}

		store := storage.NewInmemoryStore()
		registry := client.NewRegistry()
		registerLogging(registry, log.Named("events"))

		router := setupRouter(conf.DebugHTTP, log)

		// Ping test
		router.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Last observed panel state
		router.GET("/status", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", store.Document())
		})

		s := &http.Server{Handler: router}

		listener, err := reuseport.Listen("tcp", net.JoinHostPort(host, httpPort))
		if err != nil {
			return err
		}

		// Initializing the server in a goroutine so that
		// it won't block the monitor loop below
		go func() {
			if err := s.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Listening",
			zap.String("host", host),
			zap.String("httpPort", httpPort),
			zap.String("panel", net.JoinHostPort(conf.PanelHost, strconv.Itoa(conf.PanelPort))))

		monitor(ctx, conf, registry, store, log)

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		err = multierr.Append(err, s.Shutdown(shutdownCtx))
		err = multierr.Append(err, store.Close())

		log.Info("Exiting")
		return err
	},
}

// monitor owns the reconnect cycle: the protocol core never redials by
// itself, it just reports the disconnect and leaves the decision here.
func monitor(
	ctx context.Context,
	conf *env.Config,
	registry *client.Registry,
	store storage.Store,
	log *zap.Logger,
) {
	addr := net.JoinHostPort(conf.PanelHost, strconv.Itoa(conf.PanelPort))

	for ctx.Err() == nil {
		if !runSession(ctx, addr, conf, registry, store, log) {
			return
		}

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// runSession drives one connect → authenticate → observe cycle. It
// returns false when the monitor should stop rather than reconnect.
func runSession(
	ctx context.Context,
	addr string,
	conf *env.Config,
	registry *client.Registry,
	store storage.Store,
	log *zap.Logger,
) bool {
	conn, err := client.Connect(ctx, addr, client.Options{
		Registry: registry,
		Store:    store,
		Transport: transport.Options{
			Trace: conf.Trace,
		},
		Log: log.Named("client"),
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}

		log.Warn("Connect failed", zap.Error(err))
		return true
	}

	if err := conn.Login(ctx, conf.UDLPassword); err != nil {
		// Could be a wrong UDL password, a pre-v4 panel, or connecting
		// again too soon. Repeated failures can lock the panel's
		// engineer access, so this needs eyes on it either way.
		log.Error("Login failed", zap.Error(err))
		conn.Close()
		return ctx.Err() == nil
	}

	if err := conn.SetEventMessages(ctx); err != nil {
		log.Warn("Set event messages failed", zap.Error(err))
		conn.Close()
		return ctx.Err() == nil
	}

	syncSiteData(ctx, conn, log)

	poller := client.NewPoller(conn, conf.PollInterval, log.Named("poller"))
	poller.Start()

	select {
	case d := <-conn.Disconnected():
		log.Warn("Panel session ended",
			zap.String("reason", d.Reason.String()),
			zap.Error(d.Err))
		<-poller.Stopped()
		return true

	case <-ctx.Done():
		conn.Close()
		<-poller.Stopped()
		return false
	}
}

// syncSiteData reads the panel identity and zone configuration so events
// can be reported with human readable names. Failures here degrade the
// logs, not the session.
func syncSiteData(ctx context.Context, conn *client.Conn, log *zap.Logger) {
	id, err := conn.GetPanelIdentification(ctx)
	if err != nil {
		log.Warn("Failed to read panel identification", zap.Error(err))
		return
	}

	log.Info("Panel identified",
		zap.String("model", id.Model),
		zap.Int("zones", id.Zones),
		zap.String("firmware", id.Firmware))

	for zone := 1; zone <= id.Zones; zone++ {
		if ctx.Err() != nil {
			return
		}

		zd, err := conn.GetZoneDetails(ctx, zone)
		if err != nil {
			log.Warn("Failed to read zone details",
				zap.Int("zone", zone),
				zap.Error(err))
			continue
		}

		if zd.Type != protocol.ZoneTypeUnused {
			log.Info("Zone",
				zap.Int("zone", zd.Number),
				zap.String("type", zd.Type.String()),
				zap.String("name", zd.Name))
		}
	}

	for area := 1; area < id.MaxAreas(); area++ {
		if ctx.Err() != nil {
			return
		}

		if _, err := conn.GetAreaDetails(ctx, area); err != nil {
			log.Warn("Failed to read area details",
				zap.Int("area", area),
				zap.Error(err))
		}
	}

	log.Info("Site data synced, waiting for events")
}

// registerLogging subscribes a logging handler for every event category.
// These registrations live on the registry, so they survive reconnects.
func registerLogging(registry *client.Registry, log *zap.Logger) {
	registry.OnZoneEvent(func(ev *protocol.ZoneEvent) {
		log.Info("Zone event", zap.String("event", ev.String()))
	})

	registry.OnAreaEvent(func(ev *protocol.AreaEvent) {
		log.Info("Area event", zap.String("event", ev.String()))
	})

	registry.OnOutputEvent(func(ev *protocol.OutputEvent) {
		log.Info("Output event", zap.String("event", ev.String()))
	})

	registry.OnUserEvent(func(ev *protocol.UserEvent) {
		log.Info("User event", zap.String("event", ev.String()))
	})

	registry.OnLogEvent(func(ev *protocol.LogEvent) {
		log.Info("Log event", zap.String("event", ev.String()))
	})

	registry.OnUnknown(func(msg protocol.Message) {
		log.Info("Unhandled event", zap.String("event", msg.String()))
	})
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.Ginzap(log, time.RFC3339, true))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}
