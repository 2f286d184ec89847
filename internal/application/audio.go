package application

import "context"

// AudioSource yields one recorded utterance at a time for the listen loop.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	NextCommand(ctx context.Context) ([]byte, error)
	Name() string
}
