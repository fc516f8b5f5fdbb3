// Пакет dbtest поднимает PostgreSQL в контейнере для интеграционных тестов.
// Тесты запускаются только при TEST_INTEGRATION=1.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shivnayan54/studyvibe/internal/config"
)

const (
	image    = "docker.io/postgres:17-alpine"
	dbName   = "studyvibe_test"
	user     = "studyvibe"
	password = "test-password"
)

// Start запускает контейнер, выставляет SV_DB_* и возвращает загруженную
// конфигурацию. Контейнер останавливается в t.Cleanup.
func Start(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("TEST_INTEGRATION не установлена, интеграционный тест пропущен")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("запуск контейнера PostgreSQL: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("остановка контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("порт контейнера: %v", err)
	}

	for k, v := range map[string]string{
		"SV_DB_HOST":     host,
		"SV_DB_PORT":     port.Port(),
		"SV_DB_NAME":     dbName,
		"SV_DB_USER":     user,
		"SV_DB_PASSWORD": password,
		"SV_DB_SSL_MODE": "disable",
	} {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("конфигурация: %v", err)
	}
	return cfg
}
