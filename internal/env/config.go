package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// PanelHost and PanelPort locate the panel's ComIP/SmartCom module.
	PanelHost string `env:"ARGUS_PANEL_HOST,default=192.168.1.9"`
	PanelPort int    `env:"ARGUS_PANEL_PORT,default=10001"`

	// UDLPassword is the engineer-level credential for the protocol
	// session. The factory default is 1234; any real installation should
	// have set a random 16 character alphanumeric string via Wintex.
	UDLPassword string `env:"ARGUS_UDL_PASSWORD,default=1234"`

	// PollInterval spaces the telemetry keepalive commands.
	PollInterval time.Duration `env:"ARGUS_POLL_INTERVAL,default=30s"`

	// Trace hexdumps all panel traffic. Local debugging only.
	Trace bool `env:"ARGUS_TRACE"`

	DebugHTTP bool `env:"ARGUS_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
