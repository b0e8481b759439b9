package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"

	"localstack-relay/internal/model"
	"localstack-relay/internal/service"
)

// signingPattern matches SigV4 query parameters of presigned URLs embedded in
// error messages.
var signingPattern = regexp.MustCompile(`(?i)(X-Amz-(?:Signature|Credential|Security-Token)=)[^&\s"]+`)

// RelayHandler relays gateway requests to the emulator.
type RelayHandler struct {
	service *service.RelayService
	logger  *slog.Logger
}

// NewRelayHandler creates a RelayHandler.
func NewRelayHandler(svc *service.RelayService, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		service: svc,
		logger:  logger.With("component", "relay_handler"),
	}
}

// Handle relays the request to the emulator and writes the response back.
// Absolute-form requests (HTTP_PROXY clients) take their destination from the
// request URI; origin-form requests from the Host header.
func (h *RelayHandler) Handle(c echo.Context) error {
	req := c.Request()

	scheme, host := "http", req.Host
	if req.URL.IsAbs() {
		scheme, host = req.URL.Scheme, req.URL.Host
	}

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Scheme:   scheme,
		Host:     host,
		Path:     req.URL.EscapedPath(),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Once the status is sent a copy error can only be logged; the client
	// sees a truncated body.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"host", host,
			"path", req.URL.Path,
		)
	}

	return nil
}

func (h *RelayHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("relay error",
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, service.ErrMissingHost) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "request has no destination host",
		})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "emulator request timed out",
		})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "emulator host unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "emulator connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "emulator request failed",
	})
}

// sanitizeError redacts presigned-URL credentials from error messages.
func sanitizeError(err error) string {
	return signingPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
