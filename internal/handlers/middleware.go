package handlers

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"unibank/internal/metrics"
	"unibank/internal/models"
)

// LogAccess records action for the caller before the route runs. A failure
// to record is logged and does not fail the request.
func (h *Handler) LogAccess(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var userID *uint
		if claims, ok := c.Locals(claimsKey).(*models.Claims); ok {
			id := uint(claims.UserID)
			userID = &id
		}
		if err := h.auditService.Record(userID, action, c.IP(), c.Get(fiber.HeaderUserAgent)); err != nil {
			h.logger.WithError(err).WithField("action", action).Warn("access log write failed")
		}
		return c.Next()
	}
}

// Metrics counts requests by route template and final status.
func Metrics(c *fiber.Ctx) error {
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status, _ = statusOf(err)
	}
	route := "unmatched"
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		route = r.Path
	}
	metrics.ObserveServerRequest(c.Method(), route, strconv.Itoa(status))
	return err
}

// LoginLimiter throttles token requests per client IP.
type LoginLimiter struct {
	mu      sync.Mutex
	perIP   map[string]*rate.Limiter
	every   rate.Limit
	burst   int
	maxKeys int
}

func NewLoginLimiter(perMinute int) *LoginLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &LoginLimiter{
		perIP:   map[string]*rate.Limiter{},
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		maxKeys: 10000,
	}
}

func (l *LoginLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.perIP[ip]
	if !ok {
		if len(l.perIP) >= l.maxKeys {
			l.perIP = map[string]*rate.Limiter{}
		}
		lim = rate.NewLimiter(l.every, l.burst)
		l.perIP[ip] = lim
	}
	return lim.Allow()
}

func (l *LoginLimiter) Handler(c *fiber.Ctx) error {
	if !l.allow(c.IP()) {
		return &AppError{
			Code:    fiber.StatusTooManyRequests,
			Message: "Too many login attempts, try again later",
			Details: c.IP(),
		}
	}
	return c.Next()
}
