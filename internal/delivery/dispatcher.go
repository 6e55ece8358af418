package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"producer-service/internal/model"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 30 * time.Second
)

// Sleeper blocks the calling goroutine for the given duration
type Sleeper interface {
	Sleep(d time.Duration)
}

// Dispatcher delivers a message to the API, retrying with a fixed delay.
// Every outcome other than 201 Created counts as a failed attempt.
type Dispatcher struct {
	Endpoint   string
	MaxRetries int
	RetryDelay time.Duration
	Poster     Poster
	Sleeper    Sleeper
}

func NewDispatcher(endpoint string, poster Poster, sleeper Sleeper) *Dispatcher {
	return &Dispatcher{
		Endpoint:   endpoint,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Poster:     poster,
		Sleeper:    sleeper,
	}
}

// Send returns true as soon as one attempt gets 201, false once all attempts have failed.
// Failures never escape as errors; they are only logged.
func (d *Dispatcher) Send(ctx context.Context, msg model.Message) bool {
	logger := log.Ctx(ctx)

	maxRetries := d.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	delay := d.RetryDelay
	if delay < 0 {
		delay = 0
	}

	body, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to serialize message")
		return false
	}

	var errs *multierror.Error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := d.attempt(ctx, attempt, maxRetries, body)
		if err == nil {
			return true
		}
		errs = multierror.Append(errs, errors.Wrapf(err, "attempt %d", attempt))

		if attempt < maxRetries {
			logger.Info().Dur("delay", delay).Msgf("Waiting %s before retry...", delay)
			d.Sleeper.Sleep(delay)
		}
	}

	logger.Error().
		Err(errs.ErrorOrNil()).
		Int("attempts", maxRetries).
		Msgf("Failed to send message to API after %d attempts", maxRetries)
	return false
}

func (d *Dispatcher) attempt(ctx context.Context, attempt, maxRetries int, body []byte) error {
	logger := log.Ctx(ctx).With().
		Int("attempt", attempt).
		Int("max_retries", maxRetries).
		Logger()

	logger.Info().Msgf("Sending message to API (attempt %d/%d)", attempt, maxRetries)
	logger.Info().Str("endpoint", d.Endpoint).Msg("Endpoint")
	logger.Info().RawJSON("payload", body).Msg("Payload")

	resp, err := d.Poster.PostJSON(ctx, d.Endpoint, body)
	if err != nil {
		logger.Error().Err(err).Msgf("Request failed (attempt %d/%d)", attempt, maxRetries)
		return err
	}

	logger.Info().Int("status", resp.StatusCode).Msg("Response status")
	logger.Info().Str("body", string(resp.Body)).Msg("Response body")

	if resp.StatusCode != http.StatusCreated {
		logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(resp.Body)).
			Msgf("API returned error %d", resp.StatusCode)
		return errors.Errorf("api returned status %d", resp.StatusCode)
	}

	event := logger.Info()
	var parsed interface{}
	if json.Unmarshal(resp.Body, &parsed) == nil {
		event = event.Interface("response", parsed)
	} else {
		event = event.Str("response", string(resp.Body))
	}
	event.Msg("Successfully sent message to API")
	return nil
}
