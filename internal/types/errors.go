package types

import (
	"errors"
	"fmt"
)

// FetchError wraps an upstream source failure. A cycle that hits one yields
// an empty candidate list for that source, never a crash.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchError(source string, err error) *FetchError {
	return &FetchError{Source: source, Err: err}
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// AssetError wraps a failure while preparing an article's caption or media.
// The coordinator treats it as a permanent failure for every platform and
// still records the attempt.
type AssetError struct {
	Stage string
	Err   error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset preparation failed at %s: %v", e.Stage, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

func NewAssetError(stage string, err error) *AssetError {
	return &AssetError{Stage: stage, Err: err}
}

func IsAssetError(err error) bool {
	var ae *AssetError
	return errors.As(err, &ae)
}
