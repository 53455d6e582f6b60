package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultProbeTimeout = 5 * time.Second

// DockerProbe inspects containers through the Docker Engine API.
//
// host accepts the forms Docker itself uses: "unix:///var/run/docker.sock"
// or "tcp://127.0.0.1:2375". The HTTP client is built once and reused.
type DockerProbe struct {
	client  *http.Client
	baseURL string
}

// NewDockerProbe builds a probe for the given engine endpoint. timeout bounds
// every probe call; zero means the 5s default.
func NewDockerProbe(host string, timeout time.Duration) *DockerProbe {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	switch {
	case strings.HasPrefix(host, "unix://"):
		socket := strings.TrimPrefix(host, "unix://")
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		return &DockerProbe{
			client:  &http.Client{Transport: transport, Timeout: timeout},
			// Host part is ignored once the dialer pins the socket.
			baseURL: "http://docker",
		}
	case strings.HasPrefix(host, "tcp://"):
		return &DockerProbe{
			client:  &http.Client{Timeout: timeout},
			baseURL: "http://" + strings.TrimPrefix(host, "tcp://"),
		}
	default:
		return &DockerProbe{
			client:  &http.Client{Timeout: timeout},
			baseURL: strings.TrimRight(host, "/"),
		}
	}
}

// inspectState is the slice of the engine's inspect payload we care about.
type inspectState struct {
	State struct {
		Status string `json:"Status"`
	} `json:"State"`
}

// Status returns the container's state string ("running", "exited",
// "paused", ...) lowercased. A missing container or an engine failure is an
// error; the evaluator maps both to StatusUnknown.
func (p *DockerProbe) Status(ctx context.Context, ref string) (string, error) {
	url := fmt.Sprintf("%s/containers/%s/json", p.baseURL, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("docker probe: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("docker probe: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("docker probe: container %q not found", ref)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("docker probe: unexpected status %d", resp.StatusCode)
	}

	var body inspectState
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("docker probe: decode inspect: %w", err)
	}
	if body.State.Status == "" {
		return "", fmt.Errorf("docker probe: inspect for %q had no state", ref)
	}
	return strings.ToLower(body.State.Status), nil
}
