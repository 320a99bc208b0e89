package steps

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// SourceHTTP — source HTTP шага.
	SourceHTTP = "builtin.http"

	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Ключи параметров HTTP шага.
const (
	configMethod          = "method"
	configURL             = "url"
	configHeaders         = "headers"
	configBody            = "body"
	configFollowRedirects = "follow_redirects"
	configValidateSSL     = "validate_ssl"
	configTimeoutSec      = "timeout_sec"
	configFailOnStatus    = "fail_on_status"
)

// HTTPStep — шаг HTTP запроса.
//
// Выполняет запрос и записывает тело ответа в каждый объявленный выход.
//
// Параметры:
//
//	method: POST
//	url: https://api.example.com/data
//	headers:
//	  Authorization: "Bearer {{ .Params.token }}"
//	body:
//	  data: "{{ .Inputs.raw.items }}"
//	follow_redirects: true
//	validate_ssl: true
//	timeout_sec: 30
//	fail_on_status: true   # статус >= 400 — ошибка шага
type HTTPStep struct {
	client *http.Client
}

// NewHTTPStep создаёт новый HTTPStep.
func NewHTTPStep() *HTTPStep {
	return &HTTPStep{
		client: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// Source возвращает source шага.
func (s *HTTPStep) Source() string {
	return SourceHTTP
}

// Execute выполняет HTTP запрос.
func (s *HTTPStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	cfg, err := s.parseConfig(req.Parameters)
	if err != nil {
		return nil, err
	}

	client := s.buildClient(cfg)

	httpReq, err := s.buildRequest(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if cfg.FailOnStatus && resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	return NewResponse(req.Outputs, body), nil
}

// httpConfig — распарсенные параметры HTTP шага.
type httpConfig struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            any
	FollowRedirects bool
	ValidateSSL     bool
	TimeoutSec      int
	FailOnStatus    bool
}

// parseConfig парсит параметры HTTP шага.
func (s *HTTPStep) parseConfig(config map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		Method:          GetConfigString(config, configMethod),
		URL:             GetConfigString(config, configURL),
		Headers:         GetConfigMapString(config, configHeaders),
		Body:            config[configBody],
		FollowRedirects: GetConfigBool(config, configFollowRedirects, true),
		ValidateSSL:     GetConfigBool(config, configValidateSSL, true),
		TimeoutSec:      GetConfigInt(config, configTimeoutSec),
		FailOnStatus:    GetConfigBool(config, configFailOnStatus, true),
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, SourceHTTP)
	}

	// Метод по умолчанию — GET
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	cfg.Method = strings.ToUpper(cfg.Method)

	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return cfg, nil
}

// buildClient создаёт HTTP клиент с нужными настройками.
func (s *HTTPStep) buildClient(cfg *httpConfig) *http.Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	// Значения по умолчанию — общий клиент
	if timeout == defaultHTTPTimeout && cfg.FollowRedirects && cfg.ValidateSSL {
		return s.client
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if !cfg.FollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.ValidateSSL},
		},
	}
}

// buildRequest создаёт HTTP запрос.
func (s *HTTPStep) buildRequest(ctx context.Context, cfg *httpConfig) (*http.Request, error) {
	var bodyReader io.Reader

	if cfg.Body != nil {
		bodyBytes, err := s.serializeBody(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, hasContentType := cfg.Headers["Content-Type"]; !hasContentType {
			cfg.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// serializeBody сериализует body в bytes.
func (s *HTTPStep) serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// HTTPError — ответ с кодом >= 400.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Unwrap позволяет проверять HTTPError через errors.Is(err, ErrStepFailed).
func (e *HTTPError) Unwrap() error {
	return ErrStepFailed
}

// IsHTTPError проверяет, является ли ошибка HTTP ошибкой.
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}
