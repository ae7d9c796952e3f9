// SPDX-License-Identifier: Apache-2.0

package config

const (
	defaultStrategy      = StrategyItem
	defaultBackend       = BackendKeychain
	defaultLegacyBackend = ""
)
