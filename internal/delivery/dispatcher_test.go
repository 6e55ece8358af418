package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"producer-service/internal/logger"
	"producer-service/internal/model"
)

type postCall struct {
	url  string
	body []byte
}

// fakePoster replays scripted outcomes in order and repeats the last one when exhausted.
type fakePoster struct {
	outcomes []outcome
	calls    []postCall
}

type outcome struct {
	resp Response
	err  error
}

func (p *fakePoster) PostJSON(_ context.Context, url string, body []byte) (Response, error) {
	p.calls = append(p.calls, postCall{url: url, body: body})
	i := len(p.calls) - 1
	if i >= len(p.outcomes) {
		i = len(p.outcomes) - 1
	}
	return p.outcomes[i].resp, p.outcomes[i].err
}

type fakeSleeper struct {
	sleeps []time.Duration
}

func (s *fakeSleeper) Sleep(d time.Duration) {
	s.sleeps = append(s.sleeps, d)
}

func created() outcome {
	return outcome{resp: Response{StatusCode: 201, Body: []byte(`{"id":1}`)}}
}

func status(code int) outcome {
	return outcome{resp: Response{StatusCode: code, Body: []byte(`{"error":"nope"}`)}}
}

func transportErr() outcome {
	return outcome{err: errors.New("dial tcp: connection refused")}
}

var testMessage = model.Message{Datetime: "2024-03-09 10:30:15", Environment: "prod"}

const testEndpoint = "http://api-service:3000/api/messages"

func newTestDispatcher(outcomes ...outcome) (*Dispatcher, *fakePoster, *fakeSleeper) {
	poster := &fakePoster{outcomes: outcomes}
	sleeper := &fakeSleeper{}
	return NewDispatcher(testEndpoint, poster, sleeper), poster, sleeper
}

func TestDispatcher_Send_ImmediateSuccess(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ass := assert.New(t)
	d, poster, sleeper := newTestDispatcher(created())

	ok := d.Send(context.Background(), testMessage)

	ass.True(ok)
	ass.Len(poster.calls, 1)
	ass.Empty(sleeper.sleeps)
	ass.Equal(testEndpoint, poster.calls[0].url)
	ass.JSONEq(`{"datetime":"2024-03-09 10:30:15","environment":"prod"}`, string(poster.calls[0].body))
}

func TestDispatcher_Send_AllTransportErrors(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ass := assert.New(t)
	d, poster, sleeper := newTestDispatcher(transportErr())

	ok := d.Send(context.Background(), testMessage)

	ass.False(ok)
	ass.Len(poster.calls, 3)
	ass.Equal([]time.Duration{30 * time.Second, 30 * time.Second}, sleeper.sleeps)
}

func TestDispatcher_Send_ServerErrorThenCreated(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ass := assert.New(t)
	d, poster, sleeper := newTestDispatcher(status(500), created())

	ok := d.Send(context.Background(), testMessage)

	ass.True(ok)
	ass.Len(poster.calls, 2)
	ass.Equal([]time.Duration{30 * time.Second}, sleeper.sleeps)
}

func TestDispatcher_Send_ClientErrorIsRetried(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ass := assert.New(t)
	d, poster, sleeper := newTestDispatcher(status(400), status(400), created())

	ok := d.Send(context.Background(), testMessage)

	ass.True(ok)
	ass.Len(poster.calls, 3)
	ass.Len(sleeper.sleeps, 2)
}

func TestDispatcher_Send_OnlyCreatedCountsAsSuccess(t *testing.T) {
	for _, code := range []int{200, 202, 204, 301, 404, 503} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			logger.ConfigureTestLogging(t)
			d, poster, _ := newTestDispatcher(status(code))

			ok := d.Send(context.Background(), testMessage)

			assert.False(t, ok, "status %d", code)
			assert.Len(t, poster.calls, 3)
		})
	}
}

func TestDispatcher_Send_RetryBounds(t *testing.T) {
	tests := []struct {
		name        string
		maxRetries  int
		delay       time.Duration
		outcomes    []outcome
		wantOK      bool
		wantCalls   int
		wantSleeps  int
		wantSleepOf time.Duration
	}{
		{name: "single attempt failing", maxRetries: 1, delay: time.Second, outcomes: []outcome{status(503)}, wantCalls: 1},
		{name: "five attempts failing", maxRetries: 5, delay: 2 * time.Second, outcomes: []outcome{transportErr()}, wantCalls: 5, wantSleeps: 4, wantSleepOf: 2 * time.Second},
		{name: "success on last attempt", maxRetries: 4, delay: time.Second, outcomes: []outcome{status(502), transportErr(), status(429), created()}, wantOK: true, wantCalls: 4, wantSleeps: 3, wantSleepOf: time.Second},
		{name: "zero delay", maxRetries: 3, delay: 0, outcomes: []outcome{transportErr()}, wantCalls: 3, wantSleeps: 2},
		{name: "zero retries clamped to one", maxRetries: 0, delay: time.Second, outcomes: []outcome{transportErr()}, wantCalls: 1},
		{name: "negative delay clamped", maxRetries: 2, delay: -time.Second, outcomes: []outcome{transportErr()}, wantCalls: 2, wantSleeps: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger.ConfigureTestLogging(t)
			ass := assert.New(t)
			d, poster, sleeper := newTestDispatcher(tt.outcomes...)
			d.MaxRetries = tt.maxRetries
			d.RetryDelay = tt.delay

			ok := d.Send(context.Background(), testMessage)

			ass.Equal(tt.wantOK, ok)
			ass.Len(poster.calls, tt.wantCalls)
			require.Len(t, sleeper.sleeps, tt.wantSleeps)
			for _, s := range sleeper.sleeps {
				ass.Equal(tt.wantSleepOf, s)
			}
		})
	}
}

func TestDispatcher_Send_NonJSONSuccessBody(t *testing.T) {
	logger.ConfigureTestLogging(t)
	d, poster, _ := newTestDispatcher(outcome{resp: Response{StatusCode: 201, Body: []byte("created")}})

	ok := d.Send(context.Background(), testMessage)

	assert.True(t, ok)
	assert.Len(t, poster.calls, 1)
}

func TestDispatcher_Send_SameBodyOnEveryAttempt(t *testing.T) {
	logger.ConfigureTestLogging(t)
	d, poster, _ := newTestDispatcher(status(500))

	d.Send(context.Background(), testMessage)

	require.Len(t, poster.calls, 3)
	var first model.Message
	require.NoError(t, json.Unmarshal(poster.calls[0].body, &first))
	assert.Equal(t, testMessage, first)
	for _, c := range poster.calls[1:] {
		assert.Equal(t, poster.calls[0].body, c.body)
	}
}
