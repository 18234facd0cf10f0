package esplora

import (
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"github.com/veilswap/veilswap-daemon/pkg/circuitbreaker"
	"github.com/veilswap/veilswap-daemon/pkg/explorer"
	"github.com/veilswap/veilswap-daemon/pkg/httputil"
)

type esplora struct {
	apiURL string
	cb     *gobreaker.CircuitBreaker
}

// NewService returns a new esplora service as an explorer.Service interface.
func NewService(apiURL string) (explorer.Service, error) {
	service := &esplora{
		apiURL: apiURL,
		cb:     circuitbreaker.NewCircuitBreaker(),
	}

	if err := service.healthCheck(); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	return service, nil
}

func (e *esplora) healthCheck() error {
	_, err := e.GetBlockHeight()
	return err
}

func (e *esplora) request(
	method, url, body string, headers map[string]string,
) (string, error) {
	resp, err := e.cb.Execute(func() (interface{}, error) {
		status, resp, err := httputil.NewHTTPRequest(method, url, body, headers)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf(resp)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	return resp.(string), nil
}
