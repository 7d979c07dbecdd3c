package http

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/core/ports"
)

// ProxyHandler manages reverse proxying for subdomains.
type ProxyHandler struct {
	service ports.ContainerService
	domain  string
}

// NewProxyHandler routes <app>.<baseDomain> to the app's container.
func NewProxyHandler(service ports.ContainerService, baseDomain string) *ProxyHandler {
	return &ProxyHandler{service: service, domain: strings.ToLower(strings.Trim(baseDomain, "."))}
}

// ProxyRequest intercepts requests to subdomains (e.g., app-name.localhost)
// and routes them to the container's address on its app port.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	app, ok := h.subdomain(c.Hostname())
	if !ok {
		return c.Next()
	}

	containers, err := h.service.ListContainers(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to list containers")
	}

	var target *domain.Container
	for i := range containers {
		ctr := containers[i]
		if ctr.Name == app && ctr.Running() && ctr.IPAddress != "" {
			target = &ctr
			break
		}
	}
	if target == nil {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' not found or not running", app))
	}

	port := target.Port
	if port == 0 {
		port = domain.DefaultPort
	}
	remote := &url.URL{Scheme: "http", Host: net.JoinHostPort(target.IPAddress, strconv.Itoa(port))}

	proxy := httputil.NewSingleHostReverseProxy(remote)
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "app %s unreachable at %s: %v", app, remote.Host, err)
	}

	return adaptor.HTTPHandler(proxy)(c)
}

// subdomain returns the app label of host under the base domain.
func (h *ProxyHandler) subdomain(host string) (string, bool) {
	host = strings.ToLower(host)
	if name, _, err := net.SplitHostPort(host); err == nil {
		host = name
	}
	suffix := "." + h.domain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	app := strings.TrimSuffix(host, suffix)
	if app == "" || app == "www" || strings.Contains(app, ".") {
		return "", false
	}
	return app, true
}
