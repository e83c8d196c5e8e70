package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_BUFFER_SIZE is the per-connection outbound buffer of the hub under test
	BufferSize int `envconfig:"E2E_BUFFER_SIZE" default:"64"`
	// E2E_ACK_TIMEOUT bounds how long a scenario waits for one ack or push
	AckTimeout time.Duration `envconfig:"E2E_ACK_TIMEOUT" default:"5s"`
	// E2E_RING_TIMEOUT configures the unanswered-call sweep of the hub under test
	RingTimeout time.Duration `envconfig:"E2E_RING_TIMEOUT" default:"60s"`
	// E2E_DEBUG_JSON dumps every frame the test client sends and receives
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
