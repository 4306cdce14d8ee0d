//go:build integration

//nolint:misspell // Mosquitto is the official Eclipse project name
package containers

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const anonymousMosquittoConf = `listener 1883
allow_anonymous true
`

// MosquittoContainer is a throwaway Eclipse Mosquitto broker.
type MosquittoContainer struct {
	container  testcontainers.Container
	brokerURL  string
	configFile string
}

// MosquittoConfig holds configuration for Mosquitto container creation.
type MosquittoConfig struct {
	// Image tag (default: "2.0")
	ImageTag string
}

// DefaultMosquittoConfig returns a MosquittoConfig with sensible defaults.
func DefaultMosquittoConfig() MosquittoConfig {
	return MosquittoConfig{ImageTag: "2.0"}
}

// NewMosquittoContainer starts a broker that accepts anonymous clients.
// If config is nil, uses DefaultMosquittoConfig().
func NewMosquittoContainer(ctx context.Context, config *MosquittoConfig) (*MosquittoContainer, error) {
	if config == nil {
		defaultCfg := DefaultMosquittoConfig()
		config = &defaultCfg
	}

	configFile, err := writeTempFile("mosquitto-*.conf", anonymousMosquittoConf)
	if err != nil {
		return nil, fmt.Errorf("failed to create mosquitto config: %w", err)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "eclipse-mosquitto:" + config.ImageTag,
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			Files: []testcontainers.ContainerFile{{
				HostFilePath:      configFile,
				ContainerFilePath: "/mosquitto-no-auth.conf",
				FileMode:          0o644,
			}},
			WaitingFor: wait.ForListeningPort("1883/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		_ = os.Remove(configFile)
		return nil, fmt.Errorf("failed to start Mosquitto container: %w", err)
	}

	mc := &MosquittoContainer{container: container, configFile: configFile}
	host, err := container.Host(ctx)
	if err != nil {
		_ = mc.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		_ = mc.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}
	mc.brokerURL = "tcp://" + net.JoinHostPort(host, strconv.Itoa(port.Int()))
	return mc, nil
}

func writeTempFile(pattern, content string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// BrokerURL returns the broker address, e.g. "tcp://localhost:32768".
func (c *MosquittoContainer) BrokerURL() string {
	return c.brokerURL
}

// Subscribe connects a raw client subscribed to topic and returns the
// channel its messages arrive on. The client disconnects on cleanup.
func (c *MosquittoContainer) Subscribe(t *testing.T, topic string) <-chan mqtt.Message {
	t.Helper()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL)
	opts.SetClientID("sub-" + strconv.FormatInt(time.Now().UnixNano(), 36))
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	require.True(t, token.WaitTimeout(10*time.Second), "subscriber connect timeout")
	require.NoError(t, token.Error(), "subscriber connect failed")
	t.Cleanup(func() { client.Disconnect(250) })

	messages := make(chan mqtt.Message, 16)
	token = client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		messages <- msg
	})
	require.True(t, token.WaitTimeout(5*time.Second), "subscribe timeout")
	require.NoError(t, token.Error(), "subscribe failed")
	return messages
}

// Terminate removes the container and its temporary config file.
func (c *MosquittoContainer) Terminate(ctx context.Context) error {
	defer func() { _ = os.Remove(c.configFile) }()
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	return nil
}
