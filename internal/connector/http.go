package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

// HTTPSource polls a URL for JSON. An array body fans out into one event
// per element. After a failed poll the next attempt is delayed with an
// exponential backoff instead of the regular interval.
type HTTPSource struct {
	url        string
	interval   time.Duration
	maxBackoff time.Duration
	client     *http.Client
	runner
}

// NewHTTPSource reads "url" (or "path"), "interval" and "maxBackoff" in
// milliseconds, and "timeout" in milliseconds.
func NewHTTPSource(cfg map[string]interface{}) (model.Source, error) {
	url := utils.StringOption(cfg, "url", utils.StringOption(cfg, "path", ""))
	if url == "" {
		return nil, errors.New("http source requires a url")
	}
	return &HTTPSource{
		url:        url,
		interval:   time.Duration(utils.IntOption(cfg, "interval", 1000)) * time.Millisecond,
		maxBackoff: time.Duration(utils.IntOption(cfg, "maxBackoff", 30000)) * time.Millisecond,
		client:     &http.Client{Timeout: time.Duration(utils.IntOption(cfg, "timeout", 10000)) * time.Millisecond},
	}, nil
}

func (s *HTTPSource) Start(ctx context.Context, emit model.Emitter) error {
	return s.launch(ctx, func(ctx context.Context) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = s.interval
		bo.MaxInterval = s.maxBackoff
		bo.MaxElapsedTime = 0
		bo.Reset()

		var wait time.Duration
		for {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if err := s.poll(ctx, emit); err != nil {
				if ctx.Err() != nil {
					return
				}
				emit.Error(err)
				wait = bo.NextBackOff()
				continue
			}
			bo.Reset()
			wait = s.interval
		}
	})
}

func (s *HTTPSource) Stop(ctx context.Context) error {
	return s.halt(ctx)
}

func (s *HTTPSource) poll(ctx context.Context, emit model.Emitter) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", s.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: HTTP error: %d", s.url, resp.StatusCode)
	}

	var body interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errors.Wrapf(err, "decode JSON from %s", s.url)
	}

	if items, ok := body.([]interface{}); ok {
		for _, item := range items {
			emit.Data(item)
		}
		return nil
	}
	emit.Data(body)
	return nil
}
