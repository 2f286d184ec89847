//go:build !whispercpp

package whispercpp

import (
	"context"
	"errors"
)

var errNativeUnavailable = errors.New("native whisper not available: rebuild with -tags whispercpp")

// NativeTranscriber stub when the whisper.cpp bindings are not compiled in.
type NativeTranscriber struct{}

func NewNative(_, _ string) (*NativeTranscriber, error) {
	return nil, errNativeUnavailable
}

func (n *NativeTranscriber) Close() error {
	return nil
}

func (n *NativeTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	return "", errNativeUnavailable
}
