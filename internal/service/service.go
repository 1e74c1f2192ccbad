// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import "time"

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// SeedWorkers bounds how many config entries are seeded concurrently at startup.
	SeedWorkers int
	// WatchRetryInterval is how long the entry registry waits before re-watching the store
	// after its watch ended unexpectedly.
	WatchRetryInterval time.Duration
	// Now is the service clock. It defaults to time.Now.
	Now func() time.Time
}

func (c ServiceConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
