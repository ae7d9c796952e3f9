// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !windows && !darwin

package config

const (
	defaultStrategy      = StrategyDocument
	defaultBackend       = BackendKeyring
	defaultLegacyBackend = ""
)
