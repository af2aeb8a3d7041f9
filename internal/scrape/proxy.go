package scrape

import (
	"net/http"
	"net/url"

	"github.com/ppiankov/srs/internal/model"
)

// proxySelector picks the proxy for each request. A scheme with no setting
// falls back to the environment (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
type proxySelector struct {
	http, https *url.URL
	httpDirect  bool
	httpsDirect bool
	fromEnv     func(*http.Request) (*url.URL, error)
}

func newProxySelector(cfg model.HTTPConfig) (*proxySelector, error) {
	p := &proxySelector{fromEnv: http.ProxyFromEnvironment}
	var err error
	if p.http, p.httpDirect, err = model.ParseProxy(cfg.HTTPProxy); err != nil {
		return &proxySelector{fromEnv: http.ProxyFromEnvironment}, err
	}
	if p.https, p.httpsDirect, err = model.ParseProxy(cfg.HTTPSProxy); err != nil {
		return &proxySelector{fromEnv: http.ProxyFromEnvironment}, err
	}
	return p, nil
}

// proxy implements http.Transport.Proxy. HTTPS requests use http_proxy when
// https_proxy is unset.
func (p *proxySelector) proxy(req *http.Request) (*url.URL, error) {
	if req.URL.Scheme == "https" {
		switch {
		case p.httpsDirect:
			return nil, nil
		case p.https != nil:
			return p.https, nil
		}
	}
	switch {
	case p.httpDirect:
		return nil, nil
	case p.http != nil:
		return p.http, nil
	}
	return p.fromEnv(req)
}
