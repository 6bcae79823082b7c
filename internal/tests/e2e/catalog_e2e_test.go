// Package e2e runs the catalog HTTP API against a real PostgreSQL container.
//
// The suite applies the embedded migrations, serves the real application handler from an
// httptest.Server and truncates the products table before each test.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/petcatalog/internal/app"
	"github.com/abgdnv/petcatalog/internal/auth"
	"github.com/abgdnv/petcatalog/internal/config"
	"github.com/abgdnv/petcatalog/internal/service"
	"github.com/abgdnv/petcatalog/internal/store"
	"github.com/abgdnv/petcatalog/internal/store/migrations"
	"github.com/abgdnv/petcatalog/pkg/bootstrap"
	"github.com/abgdnv/petcatalog/pkg/messaging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

const (
	skipE2ETests = "CATALOG_SKIP_E2E_TESTS"
	productURL   = "/api/product"
	testAPIKey   = "e2e-secret"
)

type CatalogE2ESuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	server      *httptest.Server
	httpClient  *http.Client
	logger      *slog.Logger
	ctx         context.Context
	seededCount int
}

func testConfig() *config.Config {
	var cfg config.Config
	cfg.Auth.APIKey = testAPIKey
	cfg.Sell.MaxRetries = 50
	return &cfg
}

func (s *CatalogE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	require.NoError(s.T(), migrations.Up(connStr), "Failed to apply migrations")

	s.dbPool, err = bootstrap.NewDbPool(s.ctx, connStr, 10*time.Second)
	require.NoError(s.T(), err, "Failed to create pgx pool")

	require.NoError(s.T(), s.dbPool.QueryRow(s.ctx, "SELECT count(*) FROM products").Scan(&s.seededCount))

	deps := app.SetupDependencies(store.NewPgStore(s.dbPool), messaging.NoopPublisher{}, testConfig(), s.logger)
	s.server = httptest.NewServer(app.SetupHttpHandler(deps))
	s.httpClient = s.server.Client()
}

func (s *CatalogE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("Failed to terminate E2E PostgreSQL container", "error", err)
		}
	}
}

func (s *CatalogE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products RESTART IDENTITY")
	require.NoError(s.T(), err, "Failed to truncate products table")
}

func TestCatalogE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping E2E tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(CatalogE2ESuite))
}

// doRequest sends payload as JSON and returns the body and status code.
func (s *CatalogE2ESuite) doRequest(method, path string, payload any, apiKey string) ([]byte, int) {
	s.T().Helper()
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewBuffer(payloadBytes)
	}
	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, body)
	require.NoError(s.T(), err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set(auth.HeaderAPIKey, apiKey)
	}
	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer func() { _ = resp.Body.Close() }()
	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	return bodyBytes, resp.StatusCode
}

func (s *CatalogE2ESuite) decodeProduct(body []byte) service.ProductDto {
	s.T().Helper()
	var p service.ProductDto
	require.NoError(s.T(), json.Unmarshal(body, &p), string(body))
	return p
}

func (s *CatalogE2ESuite) createProduct(name, price string, quantity int) service.ProductDto {
	s.T().Helper()
	body, status := s.doRequest(http.MethodPost, productURL,
		map[string]any{"name": name, "price": price, "quantity": quantity}, testAPIKey)
	require.Equal(s.T(), http.StatusCreated, status, string(body))
	return s.decodeProduct(body)
}

func (s *CatalogE2ESuite) findByID(id int64) (service.ProductDto, int) {
	s.T().Helper()
	body, status := s.doRequest(http.MethodGet, fmt.Sprintf("%s/%d", productURL, id), nil, "")
	if status != http.StatusOK {
		return service.ProductDto{}, status
	}
	return s.decodeProduct(body), status
}

func (s *CatalogE2ESuite) TestSeedDataLoaded() {
	assert.GreaterOrEqual(s.T(), s.seededCount, 1, "seed migration should insert products")
}

func (s *CatalogE2ESuite) TestCRUD() {
	created := s.createProduct("Cat Indoor Basic", "18.99", 40)
	assert.True(s.T(), created.Active)
	assert.Equal(s.T(), "18.99", created.Price.StringFixed(2))

	body, status := s.doRequest(http.MethodPut, fmt.Sprintf("%s/%d", productURL, created.ID),
		map[string]any{"description": "chicken recipe"}, testAPIKey)
	require.Equal(s.T(), http.StatusOK, status, string(body))
	updated := s.decodeProduct(body)
	assert.Equal(s.T(), "chicken recipe", updated.Description)
	assert.Equal(s.T(), int32(40), updated.Quantity)
	assert.Greater(s.T(), updated.Version, created.Version)

	body, status = s.doRequest(http.MethodGet, productURL+"?active=true&in_stock=true", nil, "")
	require.Equal(s.T(), http.StatusOK, status)
	var list []service.ProductDto
	require.NoError(s.T(), json.Unmarshal(body, &list))
	assert.Len(s.T(), list, 1)

	_, status = s.doRequest(http.MethodDelete, fmt.Sprintf("%s/%d", productURL, created.ID), nil, testAPIKey)
	require.Equal(s.T(), http.StatusNoContent, status)
	_, status = s.findByID(created.ID)
	assert.Equal(s.T(), http.StatusNotFound, status)
	_, status = s.doRequest(http.MethodDelete, fmt.Sprintf("%s/%d", productURL, created.ID), nil, testAPIKey)
	assert.Equal(s.T(), http.StatusNotFound, status)
}

func (s *CatalogE2ESuite) TestCreateValidation() {
	s.createProduct("Parrot Seed Mix", "9.50", 1)

	testCases := []struct {
		name         string
		payload      map[string]any
		expectedCode int
	}{
		{name: "duplicate name", payload: map[string]any{"name": "Parrot Seed Mix", "price": "1.00"}, expectedCode: http.StatusConflict},
		{name: "negative price", payload: map[string]any{"name": "Bad", "price": "-1.00"}, expectedCode: http.StatusUnprocessableEntity},
		{name: "missing price", payload: map[string]any{"name": "Bad"}, expectedCode: http.StatusUnprocessableEntity},
		{name: "too many decimals", payload: map[string]any{"name": "Bad", "price": "1.999"}, expectedCode: http.StatusUnprocessableEntity},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, status := s.doRequest(http.MethodPost, productURL, tc.payload, testAPIKey)
			assert.Equal(s.T(), tc.expectedCode, status)
		})
	}
}

func (s *CatalogE2ESuite) TestUnauthorizedLeavesStateUnchanged() {
	p := s.createProduct("Dog Puppy Chicken", "2.75", 10)
	path := fmt.Sprintf("%s/%d", productURL, p.ID)

	_, status := s.doRequest(http.MethodPut, path, map[string]any{"name": "Hijacked"}, "wrong")
	assert.Equal(s.T(), http.StatusUnauthorized, status)
	_, status = s.doRequest(http.MethodPost, path+"/sell", map[string]any{"quantity": 10}, "")
	assert.Equal(s.T(), http.StatusUnauthorized, status)
	_, status = s.doRequest(http.MethodDelete, path, nil, "")
	assert.Equal(s.T(), http.StatusUnauthorized, status)

	stored, status := s.findByID(p.ID)
	require.Equal(s.T(), http.StatusOK, status)
	assert.Equal(s.T(), p, stored)
}

func (s *CatalogE2ESuite) TestSell() {
	p := s.createProduct("Cat Kitten Growth", "21.49", 20)
	sellPath := fmt.Sprintf("%s/%d/sell", productURL, p.ID)

	body, status := s.doRequest(http.MethodPost, sellPath, map[string]any{"quantity": 5}, testAPIKey)
	require.Equal(s.T(), http.StatusOK, status, string(body))
	assert.Equal(s.T(), int32(15), s.decodeProduct(body).Quantity)

	_, status = s.doRequest(http.MethodPost, sellPath, map[string]any{"quantity": 20}, testAPIKey)
	assert.Equal(s.T(), http.StatusConflict, status)
	_, status = s.doRequest(http.MethodPost, sellPath, map[string]any{"quantity": 0}, testAPIKey)
	assert.Equal(s.T(), http.StatusBadRequest, status)
	_, status = s.doRequest(http.MethodPost, fmt.Sprintf("%s/999999/sell", productURL), map[string]any{"quantity": 1}, testAPIKey)
	assert.Equal(s.T(), http.StatusNotFound, status)

	stored, _ := s.findByID(p.ID)
	assert.Equal(s.T(), int32(15), stored.Quantity)

	_, status = s.doRequest(http.MethodPut, fmt.Sprintf("%s/%d", productURL, p.ID), map[string]any{"active": false}, testAPIKey)
	require.Equal(s.T(), http.StatusOK, status)
	_, status = s.doRequest(http.MethodPost, sellPath, map[string]any{"quantity": 1}, testAPIKey)
	assert.Equal(s.T(), http.StatusConflict, status)
}

func (s *CatalogE2ESuite) TestConcurrentSellsNeverOversell() {
	p := s.createProduct("Limited Edition Bowl", "12.00", 20)
	sellPath := fmt.Sprintf("%s/%d/sell", productURL, p.ID)
	var succeeded atomic.Int32

	g := new(errgroup.Group)
	for range 10 {
		g.Go(func() error {
			_, status := s.doRequest(http.MethodPost, sellPath, map[string]any{"quantity": 3}, testAPIKey)
			switch status {
			case http.StatusOK:
				succeeded.Add(1)
			case http.StatusConflict:
			default:
				return fmt.Errorf("unexpected status %d", status)
			}
			return nil
		})
	}
	require.NoError(s.T(), g.Wait())

	stored, _ := s.findByID(p.ID)
	assert.Equal(s.T(), int32(6), succeeded.Load())
	assert.Equal(s.T(), int32(2), stored.Quantity)
}

func (s *CatalogE2ESuite) TestStatus() {
	body, status := s.doRequest(http.MethodGet, "/api/status", nil, "")
	require.Equal(s.T(), http.StatusOK, status)
	assert.JSONEq(s.T(), `{"database_status":true}`, string(body))
}
