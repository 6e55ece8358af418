package model

import "time"

// DateTimeLayout is the wire format of Message.Datetime: UTC, second precision, no zone suffix.
const DateTimeLayout = "2006-01-02 15:04:05"

// DefaultEnvironment is used when no environment label is configured.
const DefaultEnvironment = "prod"

// Message is the payload delivered to the API
type Message struct {
	Datetime    string `json:"datetime" validate:"required,datetime=2006-01-02 15:04:05"`
	Environment string `json:"environment" validate:"required"`
}

// Clock is the time source used to stamp messages
type Clock interface {
	Now() time.Time
}

// Builder stamps messages with the current time and a fixed environment label
type Builder struct {
	environment string
	clock       Clock
}

func NewBuilder(environment string, clock Clock) *Builder {
	if environment == "" {
		environment = DefaultEnvironment
	}
	return &Builder{
		environment: environment,
		clock:       clock,
	}
}

// Create returns a new Message stamped at the instant of the call.
// The timestamp is always rendered in UTC regardless of the host timezone.
func (b *Builder) Create() Message {
	return Message{
		Datetime:    b.clock.Now().UTC().Format(DateTimeLayout),
		Environment: b.environment,
	}
}
