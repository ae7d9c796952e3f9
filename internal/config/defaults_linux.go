// SPDX-License-Identifier: Apache-2.0

package config

const (
	defaultStrategy      = StrategyDocument
	defaultBackend       = BackendSecretService
	defaultLegacyBackend = ""
)
