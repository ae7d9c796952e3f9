// SPDX-License-Identifier: Apache-2.0

package config

const (
	defaultStrategy      = StrategyFile
	defaultBackend       = BackendWincred
	defaultLegacyBackend = BackendWincred
)
