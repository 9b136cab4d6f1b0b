// Package containers starts the backing services (database, authorizer) in
// Docker for local development and integration tests. Expects environment
// variables to be loaded from .env files.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/localnerve/tipjar/data"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Stack holds the running containers for one dev or test session.
type Stack struct {
	Network             *testcontainers.DockerNetwork
	DBContainer         testcontainers.Container
	AuthorizerContainer testcontainers.Container

	// Host-mapped endpoints for processes outside the docker network.
	DBHost    string
	DBPort    string
	AuthzURL  string
	DBNetHost string
}

func logMessage(t *testing.T, format string, args ...interface{}) {
	if t != nil {
		t.Logf(format, args...)
		return
	}
	fmt.Printf(format+"\n", args...)
}

// Terminate stops and removes every container in the stack.
func (s *Stack) Terminate(t *testing.T) {
	ctx := context.Background()
	if s.AuthorizerContainer != nil {
		if err := s.AuthorizerContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Authorizer: %v", err)
		}
	}
	if s.DBContainer != nil {
		if err := s.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate database: %v", err)
		}
	}
	if s.Network != nil {
		if err := s.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Create starts the database and authorizer containers on a shared network
// and waits until both accept connections. Pass a nil *testing.T when running
// outside a test.
func Create(t *testing.T) (*Stack, error) {
	ctx := context.Background()
	stack := &Stack{}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	stack.Network = nw

	dbNetworkName := envOr("DB_HOST", "tipjar-db")
	stack.DBNetHost = dbNetworkName
	dbPortNumber := envOr("DB_PORT", "3306")
	dbDatabase := envOr("DB_DATABASE", "tipjar")
	dbUser := envOr("DB_USER", "tipjar")
	dbPassword := envOr("DB_PASSWORD", "tipjar")
	dbRootPassword := envOr("DB_ROOT_PASSWORD", "root")

	tcpDBPort, err := nat.NewPort("tcp", dbPortNumber)
	if err != nil {
		stack.Terminate(t)
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        envOr("DB_IMAGE", "mysql:8.4"),
			ExposedPorts: []string{string(tcpDBPort)},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": dbRootPassword,
				"MYSQL_DATABASE":      dbDatabase,
				"MYSQL_USER":          dbUser,
				"MYSQL_PASSWORD":      dbPassword,
			},
			WaitingFor: wait.ForListeningPort(tcpDBPort).WithStartupTimeout(60 * time.Second),
			Networks:   []string{nw.Name},
			NetworkAliases: map[string][]string{
				nw.Name: {dbNetworkName},
			},
		},
		Started: true,
	})
	if err != nil {
		stack.Terminate(t)
		return nil, fmt.Errorf("failed to start database: %w", err)
	}
	stack.DBContainer = dbContainer

	dbHost, _ := dbContainer.Host(ctx)
	mappedDBPort, _ := dbContainer.MappedPort(ctx, tcpDBPort)
	stack.DBHost = dbHost
	stack.DBPort = mappedDBPort.Port()

	if err := waitForMySQL(dbUser, dbPassword, dbHost, mappedDBPort.Port(), dbDatabase); err != nil {
		stack.Terminate(t)
		return nil, fmt.Errorf("database never became ready: %w", err)
	}
	if err := initDatabases(dbRootPassword, dbHost, mappedDBPort.Port()); err != nil {
		stack.Terminate(t)
		return nil, fmt.Errorf("failed to run init sql: %w", err)
	}
	logMessage(t, "DB_URL=%s:%s", dbHost, mappedDBPort.Port())

	// The authorizer is optional for integration tests; skip when no image is
	// configured.
	authzImage := os.Getenv("AUTHZ_IMAGE")
	if authzImage == "" {
		return stack, nil
	}

	authzPortNumber := envOr("AUTHZ_PORT", "8080")
	tcpAuthzPort, err := nat.NewPort("tcp", authzPortNumber)
	if err != nil {
		stack.Terminate(t)
		return nil, fmt.Errorf("failed to create Authorizer port: %w", err)
	}

	authzDBConnection := fmt.Sprintf("root:%s@tcp(%s:%s)/%s",
		dbRootPassword, dbNetworkName, dbPortNumber, envOr("AUTHZ_DATABASE", "authorizer"))

	authorizerContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        authzImage,
			ExposedPorts: []string{string(tcpAuthzPort)},
			Env: map[string]string{
				"ENV":           "production",
				"CLIENT_ID":     os.Getenv("AUTHZ_CLIENT_ID"),
				"PORT":          authzPortNumber,
				"DATABASE_TYPE": "mysql",
				"DATABASE_NAME": envOr("AUTHZ_DATABASE", "authorizer"),
				"DATABASE_URL":  authzDBConnection,
				"ADMIN_SECRET":  os.Getenv("AUTHZ_ADMIN_SECRET"),
				"ROLES":         "admin,user",
				"DEFAULT_ROLES": "user",
				"LOG_LEVEL":     "info",
			},
			WaitingFor: wait.ForLog("Authorizer running at PORT:").WithStartupTimeout(30 * time.Second),
			Networks:   []string{nw.Name},
			NetworkAliases: map[string][]string{
				nw.Name: {"authorizer"},
			},
		},
		Started: true,
	})
	if err != nil {
		stack.Terminate(t)
		return nil, fmt.Errorf("failed to start Authorizer: %w", err)
	}
	stack.AuthorizerContainer = authorizerContainer

	authzHost, _ := authorizerContainer.Host(ctx)
	mappedAuthzPort, _ := authorizerContainer.MappedPort(ctx, tcpAuthzPort)
	stack.AuthzURL = fmt.Sprintf("http://%s:%s", authzHost, mappedAuthzPort.Port())
	logMessage(t, "AUTHZ_URL=%s", stack.AuthzURL)

	return stack, nil
}

// waitForMySQL polls until the server accepts authenticated connections. The
// listening-port wait fires before MySQL finishes its init pass.
func waitForMySQL(user, password, host, port, database string) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", user, password, host, port, database)
	var lastErr error
	for i := 0; i < 30; i++ {
		db, err := sql.Open("mysql", dsn)
		if err == nil {
			lastErr = db.Ping()
			_ = db.Close()
			if lastErr == nil {
				return nil
			}
		} else {
			lastErr = err
		}
		time.Sleep(2 * time.Second)
	}
	return lastErr
}

// initDatabases runs the embedded init SQL as root. The MYSQL_* container env
// only provisions the app schema; the authorizer database and cross-schema
// grants come from here.
func initDatabases(rootPassword, host, port string) error {
	dsn := fmt.Sprintf("root:%s@tcp(%s:%s)/", rootPassword, host, port)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, script := range []string{data.InitdbMySQLDatabases, data.InitdbMySQLPrivileges} {
		if err := executeSQL(db, script); err != nil {
			return err
		}
	}
	return nil
}

func executeSQL(db *sql.DB, script string) error {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i]
		}
		b.WriteString(line)
		b.WriteString(" ")
	}

	for _, q := range strings.Split(b.String(), ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("%s : when executing > %s", err.Error(), q)
		}
	}
	return nil
}
