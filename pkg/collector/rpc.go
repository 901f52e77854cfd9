/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package collector

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

const maxErrorBody = 2048

// RPCClient calls a service control API: JSON POST to <url>/<method>,
// authenticated with the service's private client certificate.
type RPCClient struct {
	baseURL *url.URL
	timeout time.Duration
	client  *http.Client
	log     logger.Logger
}

// NewRPCClient builds a client for one endpoint.
func NewRPCClient(ep *models.RPCEndpoint, log logger.Logger) (*RPCClient, error) {
	if ep == nil {
		return nil, ErrNotConfigured
	}

	if strings.TrimSpace(ep.URL) == "" {
		return nil, errURLRequired
	}

	parsed, err := url.Parse(ep.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid rpc url %q: %w", ep.URL, err)
	}

	timeout := ep.Timeout.Std()
	if timeout <= 0 {
		timeout = models.DefaultRPCTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	if parsed.Scheme == "https" {
		tlsConfig, err := rpcTLSConfig(ep)
		if err != nil {
			return nil, err
		}

		transport.TLSClientConfig = tlsConfig
	}

	return &RPCClient{
		baseURL: parsed,
		timeout: timeout,
		client:  &http.Client{Transport: transport},
		log:     log,
	}, nil
}

// rpcTLSConfig presents the service's private certificate. Private service
// certificates carry no usable host name, so the server chain is verified
// against the private CA without a host name check.
func rpcTLSConfig(ep *models.RPCEndpoint) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if ep.CertFile != "" && ep.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(ep.CertFile, ep.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errLoadClientCert, err)
		}

		cfg.Certificates = []tls.Certificate{cert}
	}

	if ep.CAFile == "" {
		cfg.InsecureSkipVerify = true //nolint:gosec // local service with a self-signed private CA

		return cfg, nil
	}

	caPEM, err := os.ReadFile(ep.CAFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errReadCACert, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errAppendCACert
	}

	cfg.InsecureSkipVerify = true //nolint:gosec // chain verified in VerifyConnection
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errNoCertificate
		}

		opts := x509.VerifyOptions{
			Roots:         pool,
			Intermediates: x509.NewCertPool(),
		}

		for _, c := range cs.PeerCertificates[1:] {
			opts.Intermediates.AddCert(c)
		}

		_, err := cs.PeerCertificates[0].Verify(opts)

		return err
	}

	return cfg, nil
}

type rpcStatus struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// Call posts req to method and decodes the response into resp.
func (c *RPCClient) Call(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if req == nil {
		req = struct{}{}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, method)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}

		return fmt.Errorf("%w: %s returned %d: %s", errRPCStatus, method, httpResp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	var status rpcStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if status.Success != nil && !*status.Success {
		return fmt.Errorf("%w: %s: %s", errRPCFailed, method, status.Error)
	}

	if resp == nil {
		return nil
	}

	if err := json.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	return nil
}

// Close releases idle connections.
func (c *RPCClient) Close() {
	c.client.CloseIdleConnections()
}
