package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/sqlock/sqlock/rpc/common"
	"github.com/sqlock/sqlock/rpc/transport"
)

func NewHTTPClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	// Create client with default transport
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     time.Duration(config.TimeoutSecond) * time.Second,
		},
	}

	t.client = client
	t.serverURLs = parsedURLs
	t.counter = 0
	t.retryCount = config.RetryCount
	if t.retryCount < 1 {
		t.retryCount = 1
	}

	return nil
}

func (t *httpClientTransport) Send(shardID uint64, req []byte) (resp []byte, err error) {
	// Check if the transport is initialized
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	// Select the next server via round-robin
	idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.serverURLs))
	serverURL := t.serverURLs[idx]

	// Create the complete URL
	requestURL := fmt.Sprintf("%s/%v", serverURL.String(), shardID)

	// Send the request (with retries)
	var httpResponse *http.Response
	for i := 0; i < t.retryCount; i++ {
		httpResponse, err = t.client.Post(requestURL, "application/octet-stream", bytes.NewReader(req))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	// Read the response body
	return io.ReadAll(httpResponse.Body)
}

func (t *httpClientTransport) Close() error {
	// Close the client
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	// Reset the client and server URLs
	t.client = nil
	t.serverURLs = nil

	return nil
}
