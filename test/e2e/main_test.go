//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	localstackImage = "localstack/localstack:3.0.2"
	localstackPort  = "4566/tcp"

	// The record store, snapshot archive and event bus are the only AWS
	// surfaces this module touches.
	localstackServices = "SERVICES=dynamodb,s3,events,sts"
)

var (
	awsCfg       aws.Config
	dockerClient *client.Client
	containerID  string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	endpoint, err := startLocalStack(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "localstack startup failed: %v\n", err)
		teardown()
		os.Exit(1)
	}
	fmt.Printf("LocalStack ready at %s\n", endpoint)

	if awsCfg, err = localstackAWSConfig(ctx, endpoint); err != nil {
		fmt.Fprintf(os.Stderr, "aws config failed: %v\n", err)
		teardown()
		os.Exit(1)
	}

	code := m.Run()
	teardown()
	os.Exit(code)
}

// startLocalStack pulls and runs the localstack container on a random
// host port and blocks until its health endpoint answers.
func startLocalStack(ctx context.Context) (string, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost(dockerSocket()),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return "", fmt.Errorf("docker client: %w", err)
	}
	dockerClient = cli

	reader, err := cli.ImagePull(ctx, localstackImage, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("image pull: %w", err)
	}
	io.Copy(io.Discard, reader)

	created, err := cli.ContainerCreate(ctx, &container.Config{
		Image:        localstackImage,
		ExposedPorts: nat.PortSet{localstackPort: struct{}{}},
		Env:          []string{localstackServices},
	}, &container.HostConfig{
		AutoRemove: true,
		PortBindings: nat.PortMap{
			localstackPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "0"}},
		},
	}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}
	containerID = created.ID

	if err := cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("container start: %w", err)
	}

	inspect, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("container inspect: %w", err)
	}
	bindings := inspect.NetworkSettings.Ports[localstackPort]
	if len(bindings) == 0 {
		return "", fmt.Errorf("no host binding for %s", localstackPort)
	}
	endpoint := fmt.Sprintf("http://localhost:%s", bindings[0].HostPort)

	if err := waitForHealth(endpoint); err != nil {
		return "", err
	}
	return endpoint, nil
}

// localstackAWSConfig points the SDK, and any child process spawned by
// the tests, at the container.
func localstackAWSConfig(ctx context.Context, endpoint string) (aws.Config, error) {
	os.Setenv("AWS_ENDPOINT_URL", endpoint)
	os.Setenv("AWS_ACCESS_KEY_ID", "test")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	os.Setenv("AWS_REGION", "us-east-1")

	return config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		})),
		config.WithBaseEndpoint(endpoint),
	)
}

func dockerSocket() string {
	if env := os.Getenv("E2E_DOCKER_SOCKET"); env != "" {
		return env
	}
	if home, err := os.UserHomeDir(); err == nil {
		// OrbStack keeps its socket under the home directory.
		orb := filepath.Join(home, ".orbstack/run/docker.sock")
		if _, err := os.Stat(orb); err == nil {
			return "unix://" + orb
		}
	}
	return "unix:///var/run/docker.sock"
}

func waitForHealth(endpoint string) error {
	hc := &http.Client{Timeout: time.Second}
	for i := 0; i < 30; i++ {
		resp, err := hc.Get(endpoint + "/_localstack/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("localstack not healthy after 30s")
}

func teardown() {
	if dockerClient != nil && containerID != "" {
		dockerClient.ContainerRemove(context.Background(), containerID,
			container.RemoveOptions{Force: true})
	}
}
