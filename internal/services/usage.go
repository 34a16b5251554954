package services

import (
	"context"
	"strings"

	"github.com/elasticdoctor/webapp/internal/gateway"
)

// DefaultUsageDays is the reporting window when none is requested.
const DefaultUsageDays = 30

// UsageGateway fetches usage statistics from the diagnostic gateway.
type UsageGateway interface {
	UsageStats(ctx context.Context, email string, days int) (gateway.Response, error)
}

// UsageService relays usage statistics requests to the gateway.
type UsageService struct {
	gateway UsageGateway
}

func NewUsageService(gw UsageGateway) *UsageService {
	return &UsageService{gateway: gw}
}

// Stats returns the gateway response unchanged. A non-2xx gateway status is
// not an error; only transport failures are.
func (s *UsageService) Stats(ctx context.Context, email string, days int) (gateway.Response, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return gateway.Response{}, newValidationError("user_email parameter is required")
	}
	if days == 0 {
		days = DefaultUsageDays
	}
	if days < 0 {
		return gateway.Response{}, newValidationError("days must be a positive integer")
	}
	return s.gateway.UsageStats(ctx, email, days)
}
