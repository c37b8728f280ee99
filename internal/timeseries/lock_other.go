//go:build !unix

package timeseries

import "errors"

type fileLock struct{}

func acquire(path string) (*fileLock, error) {
	return nil, errors.New("timeseries: file locking not supported on this platform")
}

func (l *fileLock) release() {}
