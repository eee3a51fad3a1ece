// Package cmd provides CLI commands for the strata tool.
//
// This package implements the command-line interface for strata on top of
// pkg/engine and pkg/project. Commands are wired together with fx and run by
// a urfave/cli/v3 root command.
//
// # Available Commands
//
//   - init: Initialize a new strata project structure
//   - new: Create a correctly named empty script
//   - info: Show every script and history record with its state
//   - plan: Show the scripts migrate would apply
//   - migrate: Apply pending scripts (--dry-run prints the plan)
//   - validate: Compare applied scripts with the local scripts
//   - repair: Remove failed records and/or realign checksums
//   - baseline: Mark the database as being at a version
//
// # Command Structure
//
// Each command is implemented as a function that takes the shared *Session
// and returns a *cli.Command. The functions are registered in Module under
// the "commands" value group.
//
// # Global Options
//
// All commands support global flags, before or after the command name:
//   - --dir, -d: Project directory (defaults to current directory)
//   - --config, -c: Config file (defaults to strata.yaml, or $STRATA_CONFIG)
//   - --dialect, --url, -u: Database overrides ($STRATA_DATABASE_URL)
//   - --location, -l: Script directories, replacing the configured ones
//   - --out-of-order: Allow applying versions below the highest applied one
//   - --verbose: Debug logging on stderr
//
// # Example Usage
//
//	strata init --dialect postgres --url '${DATABASE_URL}'
//	strata new create users
//	strata plan
//	strata migrate
//	strata info
//	strata repair --remove-failed
//	strata baseline --version 3
package cmd
