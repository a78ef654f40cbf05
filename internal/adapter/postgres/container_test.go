//go:build containers

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestMain starts a throwaway PostgreSQL container and points the
// repository tests at it. Run with: go test -tags containers ./internal/adapter/postgres
func TestMain(m *testing.M) {
	os.Exit(runWithContainer(m))
}

func runWithContainer(m *testing.M) int {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ayl",
			"POSTGRES_PASSWORD": "ayl",
			"POSTGRES_DB":       "ayl_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Printf("postgres container: %v", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("postgres container: terminate: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Printf("postgres container: host: %v", err)
		return 1
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Printf("postgres container: port: %v", err)
		return 1
	}

	url := fmt.Sprintf("postgres://ayl:ayl@%s:%s/ayl_test?sslmode=disable", host, port.Port())
	if err := os.Setenv("AYL_TEST_DATABASE_URL", url); err != nil {
		log.Printf("postgres container: %v", err)
		return 1
	}
	return m.Run()
}
