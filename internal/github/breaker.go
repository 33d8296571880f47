package github

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// hostBreakers holds one circuit breaker per API host, so a dead endpoint
// stops being hammered partway through a batch of candidate lookups.
type hostBreakers struct {
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

func newHostBreakers() *hostBreakers {
	return &hostBreakers{
		breakers: make(map[string]*circuit.Breaker),
	}
}

func (hb *hostBreakers) get(host string) *circuit.Breaker {
	hb.mu.RLock()
	breaker, exists := hb.breakers[host]
	hb.mu.RUnlock()

	if exists {
		return breaker
	}

	hb.mu.Lock()
	defer hb.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := hb.breakers[host]; exists {
		return breaker
	}

	// Trips after 5 consecutive failures
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	opts := &circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	}
	breaker = circuit.NewBreakerWithOptions(opts)

	hb.breakers[host] = breaker
	return breaker
}

// call runs fn through the breaker for the given API URL. fn reports
// separately whether the attempt should count as a breaker failure and
// what error to surface; expected misses keep the breaker closed.
func (hb *hostBreakers) call(apiURL string, fn func() (failed bool, err error)) error {
	host := extractHost(apiURL)
	breaker := hb.get(host)

	if !breaker.Ready() {
		return fmt.Errorf("circuit breaker open for %s", host)
	}

	var callErr error
	err := breaker.Call(func() error {
		failed, fnErr := fn()
		callErr = fnErr
		if failed {
			return fnErr
		}
		return nil
	}, 0)
	if err != nil {
		return err
	}
	return callErr
}

// state returns the current breaker states, keyed by host.
func (hb *hostBreakers) state() map[string]string {
	hb.mu.RLock()
	defer hb.mu.RUnlock()

	states := make(map[string]string)
	for host, breaker := range hb.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
