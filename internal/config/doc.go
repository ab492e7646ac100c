// Package config loads BallotKeeper settings.
//
// Sources, later ones taking precedence:
//
//  1. defaults (Config.LoadDefaults)
//  2. an optional JSON or YAML file named by --config
//  3. .env.local and .env in the working directory
//  4. BALLOTKEEPER_* environment variables
//  5. command-line flags
package config
