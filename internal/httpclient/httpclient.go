package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/plugfox/foxy-entity-store/internal/config"
	"golang.org/x/net/proxy"
)

// NewHttpSocks5Client returns a client dialing through the SOCKS5 proxy,
// or nil when no proxy is configured.
func NewHttpSocks5Client(config *config.ProxyConfig) (*http.Client, error) {
	if config == nil || config.Address == "" || config.Port == 0 {
		return nil, nil
	}
	addr := net.JoinHostPort(config.Address, strconv.Itoa(config.Port))
	var auth *proxy.Auth
	if config.Username != "" && config.Password != "" {
		auth = &proxy.Auth{User: config.Username, Password: config.Password}
	}
	dialer, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("cannot init socks5 proxy client dialer: %w", err)
	}
	httpTransport := &http.Transport{}
	httpTransport.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			return contextDialer.DialContext(ctx, network, address)
		}
		return dialer.Dial(network, address)
	}
	return &http.Client{Transport: httpTransport}, nil
}
