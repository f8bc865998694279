/*
Package log provides structured logging for poolkeeper using zerolog.

It wraps zerolog to give each logging subsystem (worker, balancer,
balancer-manager, reaper, manager, api) a child logger carrying a
"component" field. Contextual fields like resource_id and driver are
attached per-event at the call sites with zerolog's own Str/Err builders.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	balancerLog := log.WithComponent("balancer")
	balancerLog.Info().Str("driver", "l3-router").Int("deficit", 2).Msg("eliminating deficit")

	log.Logger.Error().Err(err).Str("resource_id", id).Msg("driver init failed")

# Levels

Debug is for per-resource state-machine noise (useful when chasing a
push-gate race); Info is the default production level; Warn/Error mark
conditions an operator should look at; Fatal exits the process and is
reserved for configuration and bind failures at startup.
*/
package log
