// Package httprequest provides the HTTP actions sending one request to a target.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

const defaultTimeout = 2 * time.Second

var methods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
	http.MethodPatch, http.MethodHead, http.MethodOptions,
}

// Action sends one HTTP request to its target and reports the response.
// Any response, whatever its status code, is a success: assertions on the
// status belong to later steps.
type Action struct {
	Method  string
	URI     string
	Headers map[string]string
	Body    any
	Timeout string

	target    *models.Target
	logger    *slog.Logger
	transport *http.Transport
}

func newAction(method string, request protocol.ActionRequest) *Action {
	inputs := request.Inputs

	if method == "" {
		method = inputs.String("method")
	}

	if method == "" {
		method = http.MethodGet
	}

	return &Action{
		Method:    strings.ToUpper(method),
		URI:       inputs.String("uri"),
		Headers:   inputs.StringMap("headers"),
		Body:      inputs["body"],
		Timeout:   inputs.String("timeout"),
		target:    request.Target,
		logger:    request.Log().With(slog.String("module", "http_request_action")),
		transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
}

func (a *Action) ValidateInputs() []string {
	validation := protocol.NewValidation().
		Target(a.target).
		Scheme(a.target, "http", "https").
		Duration("timeout", a.Timeout)

	known := false

	for _, method := range methods {
		if a.Method == method {
			known = true

			break
		}
	}

	return validation.
		Check(known, fmt.Sprintf("Unsupported HTTP method %s", a.Method)).
		Errors()
}

func (a *Action) Execute(ctx context.Context) protocol.ActionResult {
	request, err := a.buildRequest(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, err.Error())

		return protocol.Ko(err.Error())
	}

	timeout := defaultTimeout
	if a.Timeout != "" {
		timeout, _ = time.ParseDuration(a.Timeout)
	}

	client := &http.Client{Transport: a.transport, Timeout: timeout}

	a.logger.InfoContext(ctx, fmt.Sprintf("%s %s", a.Method, request.URL))

	response, err := client.Do(request)
	if err != nil {
		message := fmt.Sprintf("http request failed: %s", err)
		a.logger.ErrorContext(ctx, message)

		return protocol.Ko(message)
	}

	return a.processResponse(ctx, response)
}

// Release drops the pooled connections of an abandoned call.
func (a *Action) Release() {
	a.transport.CloseIdleConnections()
}

func (a *Action) buildRequest(ctx context.Context) (*http.Request, error) {
	body, contentType, err := a.buildBody()
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(a.target.URL, "/") + "/" + strings.TrimPrefix(a.URI, "/")
	if a.URI == "" {
		url = a.target.URL
	}

	request, err := http.NewRequestWithContext(ctx, a.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}

	for key, value := range a.Headers {
		request.Header.Set(key, value)
	}

	return request, nil
}

// buildBody sends strings as they are and encodes any other value as JSON.
func (a *Action) buildBody() (io.Reader, string, error) {
	switch body := a.Body.(type) {
	case nil:
		return http.NoBody, "", nil
	case string:
		return strings.NewReader(body), "", nil
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal body: %w", err)
		}

		return strings.NewReader(string(encoded)), "application/json", nil
	}
}

func (a *Action) processResponse(ctx context.Context, response *http.Response) protocol.ActionResult {
	defer func() {
		_ = response.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		message := fmt.Sprintf("failed to read response body: %s", err)
		a.logger.ErrorContext(ctx, message)

		return protocol.Ko(message)
	}

	var body any

	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		body = string(bodyBytes)
	}

	headers := make(map[string]any, len(response.Header))
	for key, values := range response.Header {
		headers[key] = strings.Join(values, ",")
	}

	a.logger.InfoContext(ctx, fmt.Sprintf("Response status %d, body length %d", response.StatusCode, len(bodyBytes)))

	return protocol.Ok(map[string]any{
		"status":  response.StatusCode,
		"body":    body,
		"headers": headers,
	})
}
