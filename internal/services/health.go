package services

import (
	"fmt"

	"github.com/localnerve/tipjar/internal/config"
	"github.com/localnerve/tipjar/internal/logger"
	"github.com/localnerve/tipjar/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status          string            `json:"status"`
	Database        string            `json:"database"`
	Authorizer      string            `json:"authorizer"`
	PaymentProvider string            `json:"paymentProvider,omitempty"`
	Details         map[string]string `json:"details,omitempty"`
	ErrorMessage    string            `json:"error,omitempty"`
}

// HealthCheck performs a comprehensive health check of the service
func HealthCheck(cfg *config.Config, db *gorm.DB) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		logger.Log.Error("Health check failed - database connection", zap.Error(err))
	} else {
		if err := sqlDB.Ping(); err != nil {
			result.Status = "unhealthy"
			result.Database = "unreachable"
			result.Details["database_ping_error"] = err.Error()
			result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
			logger.Log.Error("Health check failed - database ping", zap.Error(err))
		} else {
			result.Database = "ok"
			result.Details["database_type"] = cfg.DBType
			result.Details["database_name"] = cfg.DBDatabase
		}
	}

	// Check Authorizer connectivity
	if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
		result.Status = "unhealthy"
		result.Authorizer = "unreachable"
		result.Details["authorizer_error"] = err.Error()
		appendError(&result, fmt.Sprintf("Authorizer ping failed: %v", err))
		logger.Log.Error("Health check failed - authorizer ping", zap.Error(err))
	} else {
		result.Authorizer = "ok"
		result.Details["authorizer_url"] = cfg.AuthzURL
	}

	// Check payment provider connectivity, when configured
	if cfg.PaymentProviderURL != "" {
		if err := utils.PingPaymentProvider(cfg.PaymentProviderURL); err != nil {
			result.Status = "unhealthy"
			result.PaymentProvider = "unreachable"
			result.Details["payment_provider_error"] = err.Error()
			appendError(&result, fmt.Sprintf("Payment provider ping failed: %v", err))
			logger.Log.Error("Health check failed - payment provider ping", zap.Error(err))
		} else {
			result.PaymentProvider = "ok"
			result.Details["payment_provider_url"] = cfg.PaymentProviderURL
		}
	}

	if result.Status == "healthy" {
		logger.Log.Debug("Health check passed - all systems operational")
	}

	return result
}

func appendError(result *HealthCheckResult, msg string) {
	if result.ErrorMessage == "" {
		result.ErrorMessage = msg
		return
	}
	result.ErrorMessage += "; " + msg
}
