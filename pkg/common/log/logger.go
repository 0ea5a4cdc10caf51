/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package log provides module-scoped loggers for the credential engine.
// It forwards to the shared aries logging component so embedders can install
// their own provider with Initialize before the first log line is written.
package log

import (
	"github.com/hyperledger/aries-framework-go/component/log"
	spilog "github.com/hyperledger/aries-framework-go/spi/log"
)

// Logger is the logging interface used throughout the engine.
type Logger = spilog.Logger

// Log is the module-scoped logger implementation returned by New.
type Log = log.Log

// Provider is a pluggable source of Logger instances.
type Provider = spilog.LoggerProvider

// Level is a logging verbosity level.
type Level = spilog.Level

// Log levels.
const (
	CRITICAL = spilog.CRITICAL
	ERROR    = spilog.ERROR
	WARNING  = spilog.WARNING
	INFO     = spilog.INFO
	DEBUG    = spilog.DEBUG
)

// New creates a Logger implementation based on given module name.
// note: the underlying logger instance is lazy initialized on first use.
// To use your own logger implementation provide logger provider in
// 'Initialize()' before logging any line.
func New(module string) *log.Log {
	return log.New(module)
}

// Initialize sets a custom logging provider which takes over logging
// operations. It must be called before the first log output.
func Initialize(provider Provider) {
	log.Initialize(provider)
}

// SetLevel sets the log level for given module.
func SetLevel(module string, level Level) {
	log.SetLevel(module, level)
}

// GetLevel returns the log level for given module.
func GetLevel(module string) Level {
	return log.GetLevel(module)
}

// IsEnabledFor reports whether given log level is enabled for given module.
func IsEnabledFor(module string, level Level) bool {
	return log.IsEnabledFor(module, level)
}

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (Level, error) {
	return log.ParseLevel(level)
}
